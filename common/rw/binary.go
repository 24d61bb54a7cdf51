package rw

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer writes little-endian values. The first error sticks and every later
// write is a no-op, so callers check Err once at the end.
type Writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

func (w *Writer) WriteUInt32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

func (w *Writer) WriteInt32(v int32) {
	w.WriteUInt32(uint32(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUInt32(math.Float32bits(v))
}

func (w *Writer) WriteFloat32s(v []float32) {
	for _, f := range v {
		w.WriteFloat32(f)
	}
}

func (w *Writer) WriteBytes(b []byte) {
	w.write(b)
}

// Reader is the counterpart of Writer. A short read reports
// io.ErrUnexpectedEOF.
type Reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) read(b []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, b); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return false
	}
	return true
}

func (r *Reader) ReadUInt32() uint32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return binary.LittleEndian.Uint32(r.buf[:4])
}

func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUInt32())
}

func (r *Reader) ReadFloat32() float32 {
	return math.Float32frombits(r.ReadUInt32())
}

func (r *Reader) ReadFloat32s(v []float32) {
	for i := range v {
		v[i] = r.ReadFloat32()
	}
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if n < 0 {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	b := make([]byte, n)
	if !r.read(b) {
		return nil
	}
	return b
}
