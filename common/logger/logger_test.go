package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	_, err := ParseLogLevel("debug")
	assert.NoError(t, err)
	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nav.log")
	require.NoError(t, InitLogger(&Config{AppName: "logger_test", Level: "DEBUG", File: file}))
	defer func() {
		CloseLogger()
		require.NoError(t, InitLogger(&Config{}))
	}()
	Warn("logger test ...")
	for i := 0; i < 100; i++ {
		Debug("%v", i)
	}
	CloseLogger()
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "logger test ...")
	assert.Contains(t, string(data), "99")
}
