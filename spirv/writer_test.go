package spirv

import (
	"testing"
)

func TestModuleBuilder_MinimalModule(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityShader)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	words := builder.Build()
	if len(words) < HeaderWords {
		t.Fatalf("Module too small: got %d words, want at least %d", len(words), HeaderWords)
	}
	if words[0] != MagicNumber {
		t.Errorf("Invalid magic number: got 0x%08X, want 0x%08X", words[0], MagicNumber)
	}
	if want := uint32(1<<16 | 3<<8); words[1] != want {
		t.Errorf("Invalid version: got 0x%08X, want 0x%08X", words[1], want)
	}
	if words[2] != GeneratorID {
		t.Errorf("Invalid generator: got 0x%08X, want 0x%08X", words[2], GeneratorID)
	}
	if words[3] == 0 {
		t.Error("Bound should be > 0")
	}
	if words[4] != 0 {
		t.Errorf("Schema should be 0, got %d", words[4])
	}
	// OpCapability Shader, OpMemoryModel Logical GLSL450
	want := []uint32{2<<16 | uint32(OpCapability), 1, 3<<16 | uint32(OpMemoryModel), 0, 1}
	for i, w := range want {
		if words[HeaderWords+i] != w {
			t.Errorf("word %d = 0x%08X, want 0x%08X", HeaderWords+i, words[HeaderWords+i], w)
		}
	}
}

func TestModuleBuilder_WithTypes(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityShader)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	voidType := builder.AddTypeVoid()
	floatType := builder.AddTypeFloat(32)
	intType := builder.AddTypeInt(32, true)
	vec4Type := builder.AddTypeVector(floatType, 4)

	ids := []uint32{voidType, floatType, intType, vec4Type}
	for i, id := range ids {
		if id != uint32(i+1) {
			t.Errorf("id %d = %d, want sequential %d", i, id, i+1)
		}
	}
	words := builder.Build()
	if words[3] != 5 {
		t.Errorf("Bound = %d, want 5", words[3])
	}
}

func TestEncodeString(t *testing.T) {
	tests := []struct {
		in    string
		words int
	}{
		{"", 1},
		{"abc", 1},
		{"abcd", 2},
		{"main", 2},
		{"GLSL.std.450", 4},
	}
	for _, tt := range tests {
		w := EncodeString(tt.in)
		if len(w) != tt.words {
			t.Errorf("EncodeString(%q) = %d words, want %d", tt.in, len(w), tt.words)
		}
		s, n, ok := DecodeString(w)
		if !ok || s != tt.in || n != tt.words {
			t.Errorf("DecodeString(EncodeString(%q)) = %q, %d, %v", tt.in, s, n, ok)
		}
	}
	if _, _, ok := DecodeString([]uint32{0x61616161}); ok {
		t.Error("DecodeString accepted an unterminated string")
	}
}

func TestWordsBytesRoundTrip(t *testing.T) {
	words := []uint32{MagicNumber, 0x00010300, 7}
	data := WordsToBytes(words)
	if data[0] != 0x03 || data[3] != 0x07 {
		t.Errorf("WordsToBytes not little-endian: % x", data[:4])
	}
	back, err := BytesToWords(data)
	if err != nil {
		t.Fatalf("BytesToWords() error = %v", err)
	}
	for i := range words {
		if back[i] != words[i] {
			t.Errorf("word %d = 0x%08X, want 0x%08X", i, back[i], words[i])
		}
	}
	if _, err := BytesToWords(data[:5]); err != ErrUnaligned {
		t.Errorf("BytesToWords(5 bytes) error = %v, want ErrUnaligned", err)
	}
}
