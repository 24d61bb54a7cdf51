package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultFileMaxSizeMB = 10
	DefaultMaxBackups    = 3
)

type Config struct {
	AppName    string `json:"appName"`
	Level      string `json:"level"`
	Console    bool   `json:"console"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
	Compress   bool   `json:"compress"`
	EnableJson bool   `json:"enableJson"`
}

// LOG is silent until InitLogger is called.
var LOG = zap.NewNop().Sugar()

func ParseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(level) {
	case "", "INFO":
		return zapcore.InfoLevel, nil
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %v", level)
	}
}

// InitLogger replaces LOG with a zap logger writing to the console and,
// when config.File is set, to a size-rotated file.
func InitLogger(config *Config) error {
	if config == nil {
		config = &Config{AppName: "application", Level: "DEBUG", Console: true}
	}
	level, err := ParseLogLevel(config.Level)
	if err != nil {
		return err
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	var enc zapcore.Encoder
	if config.EnableJson {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	var cores []zapcore.Core
	if config.Console {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level))
	}
	if config.File != "" {
		maxSize := config.MaxSizeMB
		if maxSize == 0 {
			maxSize = DefaultFileMaxSizeMB
		}
		backups := config.MaxBackups
		if backups == 0 {
			backups = DefaultMaxBackups
		}
		w := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    maxSize,
			MaxBackups: backups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(w), level))
	}
	if len(cores) == 0 {
		LOG = zap.NewNop().Sugar()
		return nil
	}
	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	if config.AppName != "" {
		l = l.Named(config.AppName)
	}
	LOG = l.Sugar()
	return nil
}

func CloseLogger() {
	_ = LOG.Sync()
}

func Debug(msg string, param ...any) {
	LOG.Debugf(msg, param...)
}

func Info(msg string, param ...any) {
	LOG.Infof(msg, param...)
}

func Warn(msg string, param ...any) {
	LOG.Warnf(msg, param...)
}

func Error(msg string, param ...any) {
	LOG.Errorf(msg, param...)
}
