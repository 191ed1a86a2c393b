package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/glesvk/cache"
	"github.com/gogpu/glesvk/glsl"
	"github.com/gogpu/glesvk/link"
)

// ===== Load Tests =====

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if got, want := cfg.Caps(), link.DefaultCaps(); got != want {
		t.Errorf("Default().Caps() = %+v, want DefaultCaps", got)
	}
	if cfg.NewLogger(&bytes.Buffer{}) != nil {
		t.Error("Default().NewLogger() != nil, want logging off")
	}
	if cfg.CompileOptions().SkipValidation {
		t.Error("Default().CompileOptions() skips tree validation")
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`
[translator]
hash_names = true
max_identifier_length = 64
extensions = ["GL_EXT_multiview"]

[limits]
max_vertex_attributes = 8
max_uniform_locations = 512

[backend]
max_parallel_compiles = 2
strip_debug_info = true

[log]
level = "debug"
format = "json"
`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	caps := cfg.Caps()
	if caps.MaxVertexAttributes != 8 {
		t.Errorf("MaxVertexAttributes = %d, want 8", caps.MaxVertexAttributes)
	}
	if caps.MaxUniformLocations != 512 {
		t.Errorf("MaxUniformLocations = %d, want 512", caps.MaxUniformLocations)
	}
	if want := link.DefaultCaps().MaxDrawBuffers; caps.MaxDrawBuffers != want {
		t.Errorf("MaxDrawBuffers = %d, want default %d", caps.MaxDrawBuffers, want)
	}

	opts := cfg.CompileOptions()
	if opts.HashFunction == nil || opts.HashFunction("x") != glsl.FNV64a("x") {
		t.Error("CompileOptions().HashFunction is not FNV-1a")
	}
	if opts.MaxIdentifierLength != 64 {
		t.Errorf("MaxIdentifierLength = %d, want 64", opts.MaxIdentifierLength)
	}
	if !opts.Passes.InitializeOutputVariables {
		t.Error("InitializeOutputVariables lost its default")
	}
	if len(opts.Extensions) != 1 || opts.Extensions[0] != "GL_EXT_multiview" {
		t.Errorf("Extensions = %v", opts.Extensions)
	}

	vk := cfg.VulkanOptions()
	if vk.MaxParallelCompiles != 2 || !vk.StripDebugInfo {
		t.Errorf("VulkanOptions() = %+v", vk)
	}

	var buf bytes.Buffer
	l := cfg.NewLogger(&buf)
	if l == nil {
		t.Fatal("NewLogger() = nil, want json logger")
	}
	l.Debug("hello", "k", 1)
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("log output = %q, want JSON record", buf.String())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"syntax", "[translator", "failed to parse TOML"},
		{"unknown key", "[translator]\nhash = true\n", "unknown keys: translator.hash"},
		{"log level", "[log]\nlevel = \"loud\"\n", "[log].level"},
		{"log format", "[log]\nformat = \"xml\"\n", "[log].format"},
		{"negative memory", "[cache]\nmemory_bytes = -1\n", "[cache].memory_bytes"},
		{"dual source", "[limits]\nmax_dual_source_draw_buffers = 99\n", "MaxDualSourceDrawBuffers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glesvk.toml")
	if err := os.WriteFile(path, []byte("[cache]\ndisabled = true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	c, err := cfg.OpenCache()
	if err != nil || c != nil {
		t.Errorf("OpenCache() = %v, %v, want nil cache", c, err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load(missing) succeeded")
	}
}

// ===== Cache Tests =====

func TestOpenCache(t *testing.T) {
	cfg := Default()
	c, err := cfg.OpenCache()
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	if _, ok := c.(*cache.Memory); !ok {
		t.Errorf("OpenCache() = %T, want *cache.Memory", c)
	}

	cfg.Cache.Dir = t.TempDir()
	c, err = cfg.OpenCache()
	if err != nil {
		t.Fatalf("OpenCache() with dir error = %v", err)
	}
	layered, ok := c.(*cache.Layered)
	if !ok {
		t.Fatalf("OpenCache() = %T, want *cache.Layered", c)
	}
	var key cache.Key
	key[0] = 7
	if err := layered.Put(key, []byte("blob")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := layered.Back.Get(key); !ok {
		t.Error("disk layer did not receive the blob")
	}
}
