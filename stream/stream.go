// Package stream encodes program binaries: little-endian fixed-width
// integers, and strings and byte slices prefixed by a uint32 length.
//
// Writer and Reader keep the first error and turn later calls into
// no-ops, so a sequence of reads is checked once at the end:
//
//	r := stream.NewReader(blob)
//	major := r.ReadInt()
//	name := r.ReadString()
//	if err := r.Err(); err != nil {
//	    return err
//	}
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"fortio.org/safecast"
)

// ErrTruncated reports a read past the end of the data.
var ErrTruncated = errors.New("stream: truncated data")

// ErrCorrupt reports a value that cannot have been written by Writer.
var ErrCorrupt = errors.New("stream: corrupt data")

// Writer appends encoded values to a byte slice.
type Writer struct {
	buf []byte
	err error
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// Bytes returns the encoded data.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Err returns the first encoding error.
func (w *Writer) Err() error { return w.err }

// WriteBool writes b as one byte.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

// WriteUint8 writes one byte.
func (w *Writer) WriteUint8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, v)
}

// WriteUint32 writes a 32-bit unsigned integer.
func (w *Writer) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteUint64 writes a 64-bit unsigned integer.
func (w *Writer) WriteUint64(v uint64) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteInt32 writes a 32-bit signed integer.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v)) //nolint:gosec // G115: bit pattern preserved, ReadInt32 reverses it
}

// WriteInt writes v as a 32-bit signed integer. Values outside the
// int32 range fail the writer.
func (w *Writer) WriteInt(v int) {
	n, err := safecast.Conv[int32](v)
	if err != nil {
		w.fail(fmt.Errorf("stream: int %d: %w", v, err))
		return
	}
	w.WriteInt32(n)
}

// WriteFloat32 writes the IEEE bits of f.
func (w *Writer) WriteFloat32(f float32) {
	w.WriteUint32(math.Float32bits(f))
}

// WriteLen writes a count as a uint32.
func (w *Writer) WriteLen(n int) {
	u, err := safecast.Conv[uint32](n)
	if err != nil {
		w.fail(fmt.Errorf("stream: length %d: %w", n, err))
		return
	}
	w.WriteUint32(u)
}

// WriteString writes a length-prefixed string.
func (w *Writer) WriteString(s string) {
	w.WriteLen(len(s))
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, s...)
}

// WriteBytes writes a length-prefixed byte slice.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteLen(len(b))
	w.WriteFixed(b)
}

// WriteFixed writes b without a length prefix.
func (w *Writer) WriteFixed(b []byte) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, b...)
}

// WriteInts writes a length-prefixed slice of ints.
func (w *Writer) WriteInts(vs []int) {
	w.WriteLen(len(vs))
	for _, v := range vs {
		w.WriteInt(v)
	}
}

// WriteStrings writes a length-prefixed slice of strings.
func (w *Writer) WriteStrings(ss []string) {
	w.WriteLen(len(ss))
	for _, s := range ss {
		w.WriteString(s)
	}
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Reader decodes values written by Writer.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader returns a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first decoding error.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Done reports whether all data was consumed without error.
func (r *Reader) Done() bool { return r.err == nil && r.off == len(r.data) }

// next returns the following n bytes, or nil after failing the reader.
func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Remaining() {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, r.Remaining())
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadBool reads a byte written by WriteBool.
func (r *Reader) ReadBool() bool {
	switch v := r.ReadUint8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail(fmt.Errorf("%w: bool byte %d at offset %d", ErrCorrupt, v, r.off-1))
		return false
	}
}

// ReadUint32 reads a 32-bit unsigned integer.
func (r *Reader) ReadUint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadUint64 reads a 64-bit unsigned integer.
func (r *Reader) ReadUint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadInt32 reads a 32-bit signed integer.
func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32()) //nolint:gosec // G115: reverses WriteInt32
}

// ReadInt reads an int written by WriteInt.
func (r *Reader) ReadInt() int {
	return int(r.ReadInt32())
}

// ReadFloat32 reads a float written by WriteFloat32.
func (r *Reader) ReadFloat32() float32 {
	return math.Float32frombits(r.ReadUint32())
}

// ReadLen reads a count. A count larger than the remaining bytes divided
// by minSize cannot be valid and fails the reader.
func (r *Reader) ReadLen(minSize int) int {
	u := r.ReadUint32()
	if r.err != nil {
		return 0
	}
	n, err := safecast.Conv[int](u)
	if err != nil {
		r.fail(fmt.Errorf("%w: length %d: %v", ErrCorrupt, u, err))
		return 0
	}
	if minSize > 0 && n > r.Remaining()/minSize {
		r.fail(fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrTruncated, n, r.Remaining()))
		return 0
	}
	return n
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() string {
	n := r.ReadLen(1)
	b := r.next(n)
	if b == nil {
		return ""
	}
	return string(b)
}

// ReadBytes reads a length-prefixed byte slice. The result is a copy.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadLen(1)
	b := r.next(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// ReadFixed fills dst with the next len(dst) bytes.
func (r *Reader) ReadFixed(dst []byte) {
	if b := r.next(len(dst)); b != nil {
		copy(dst, b)
	}
}

// ReadInts reads a slice written by WriteInts.
func (r *Reader) ReadInts() []int {
	n := r.ReadLen(4)
	if n == 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = r.ReadInt()
	}
	return out
}

// ReadStrings reads a slice written by WriteStrings.
func (r *Reader) ReadStrings() []string {
	n := r.ReadLen(4)
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = r.ReadString()
	}
	return out
}

// Fail records err as the reader's error unless one is already set.
// Callers use it to reject decoded values that fail validation.
func (r *Reader) Fail(err error) {
	r.fail(err)
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
