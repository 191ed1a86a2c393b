package stream

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// ===== Round Trip Tests =====

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteBool(true)
	w.WriteUint8(7)
	w.WriteInt(-3)
	w.WriteUint32(0xdeadbeef)
	w.WriteUint64(1 << 40)
	w.WriteFloat32(1.5)
	w.WriteString("u_color")
	w.WriteBytes([]byte{1, 2, 3})
	w.WriteFixed([]byte{9, 9})
	w.WriteInts([]int{0, -1, 4})
	w.WriteStrings([]string{"a", ""})
	if err := w.Err(); err != nil {
		t.Fatalf("Writer error: %v", err)
	}

	r := NewReader(w.Bytes())
	if got := r.ReadBool(); !got {
		t.Errorf("ReadBool() = %v, want true", got)
	}
	if got := r.ReadUint8(); got != 7 {
		t.Errorf("ReadUint8() = %d, want 7", got)
	}
	if got := r.ReadInt(); got != -3 {
		t.Errorf("ReadInt() = %d, want -3", got)
	}
	if got := r.ReadUint32(); got != 0xdeadbeef {
		t.Errorf("ReadUint32() = %#x, want 0xdeadbeef", got)
	}
	if got := r.ReadUint64(); got != 1<<40 {
		t.Errorf("ReadUint64() = %d, want %d", got, uint64(1)<<40)
	}
	if got := r.ReadFloat32(); got != 1.5 {
		t.Errorf("ReadFloat32() = %v, want 1.5", got)
	}
	if got := r.ReadString(); got != "u_color" {
		t.Errorf("ReadString() = %q, want u_color", got)
	}
	if got := r.ReadBytes(); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("ReadBytes() = %v, want [1 2 3]", got)
	}
	var fixed [2]byte
	r.ReadFixed(fixed[:])
	if fixed != [2]byte{9, 9} {
		t.Errorf("ReadFixed() = %v, want [9 9]", fixed)
	}
	ints := r.ReadInts()
	if len(ints) != 3 || ints[1] != -1 || ints[2] != 4 {
		t.Errorf("ReadInts() = %v, want [0 -1 4]", ints)
	}
	strs := r.ReadStrings()
	if len(strs) != 2 || strs[0] != "a" || strs[1] != "" {
		t.Errorf("ReadStrings() = %q, want [a \"\"]", strs)
	}
	if !r.Done() {
		t.Errorf("Done() = false, err %v, remaining %d", r.Err(), r.Remaining())
	}
}

func TestLittleEndianLayout(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(0x01020304)
	w.WriteString("ab")
	want := []byte{4, 3, 2, 1, 2, 0, 0, 0, 'a', 'b'}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("Bytes() = %v, want %v", w.Bytes(), want)
	}
}

// ===== Error Tests =====

func TestWriteIntOutOfRange(t *testing.T) {
	w := NewWriter()
	w.WriteInt(math.MaxInt32 + 1)
	w.WriteInt(1)
	if w.Err() == nil {
		t.Fatal("Err() = nil, want range error")
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d after failure, want 0", w.Len())
	}
}

func TestTruncated(t *testing.T) {
	w := NewWriter()
	w.WriteString("position")
	data := w.Bytes()

	for n := range len(data) {
		r := NewReader(data[:n])
		r.ReadString()
		if !errors.Is(r.Err(), ErrTruncated) {
			t.Errorf("ReadString() on %d bytes: err = %v, want ErrTruncated", n, r.Err())
		}
	}
}

func TestHugeLengthIsTruncated(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(math.MaxUint32)
	r := NewReader(w.Bytes())
	if got := r.ReadInts(); got != nil {
		t.Errorf("ReadInts() = %v, want nil", got)
	}
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Errorf("Err() = %v, want ErrTruncated", r.Err())
	}
}

func TestCorruptBool(t *testing.T) {
	r := NewReader([]byte{2})
	r.ReadBool()
	if !errors.Is(r.Err(), ErrCorrupt) {
		t.Errorf("Err() = %v, want ErrCorrupt", r.Err())
	}
}

func TestErrorsAreSticky(t *testing.T) {
	r := NewReader([]byte{1, 2})
	r.ReadUint32()
	first := r.Err()
	r.ReadUint8()
	if r.Err() != first {
		t.Errorf("Err() changed from %v to %v", first, r.Err())
	}
	if r.Remaining() != 2 {
		t.Errorf("Remaining() = %d, want 2", r.Remaining())
	}
}
