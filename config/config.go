// Package config loads glesvk settings from a TOML file.
//
// A file has four optional sections:
//
//	[translator]
//	initialize_output_variables = true
//	hash_names = true
//
//	[limits]
//	max_vertex_attributes = 16
//
//	[backend]
//	max_parallel_compiles = 4
//
//	[cache]
//	dir = "/var/cache/glesvk"
//	memory_bytes = 33554432
//
//	[log]
//	level = "info"
//	format = "text"
//
// Missing keys keep the values of Default. Unknown keys are an error.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/glesvk/backend"
	"github.com/gogpu/glesvk/cache"
	"github.com/gogpu/glesvk/glsl"
	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/passes"
	"github.com/gogpu/glesvk/translator"
)

// Config is the decoded configuration file.
type Config struct {
	Translator Translator `toml:"translator"`
	Limits     Limits     `toml:"limits"`
	Backend    Backend    `toml:"backend"`
	Cache      Cache      `toml:"cache"`
	Log        Log        `toml:"log"`
}

// Translator selects the optional shader rewrites and name mapping.
type Translator struct {
	InitializeOutputVariables     bool     `toml:"initialize_output_variables"`
	ClampPointSize                bool     `toml:"clamp_point_size"`
	EmulateSeamfulCubeMapSampling bool     `toml:"emulate_seamful_cube_map_sampling"`
	LineRasterEmulation           bool     `toml:"line_raster_emulation"`
	TransformFeedbackEmulation    bool     `toml:"transform_feedback_emulation"`
	PreRotation                   bool     `toml:"pre_rotation"`
	HashNames                     bool     `toml:"hash_names"`
	HashAllNames                  bool     `toml:"hash_all_names"`
	MaxIdentifierLength           int      `toml:"max_identifier_length"`
	ValidateAST                   bool     `toml:"validate_ast"`
	Extensions                    []string `toml:"extensions"`
}

// Limits override device limits. Zero keeps the default.
type Limits struct {
	MaxVertexAttributes          uint32 `toml:"max_vertex_attributes"`
	MaxInterStageShaderVariables uint32 `toml:"max_inter_stage_shader_variables"`
	MaxColorAttachments          uint32 `toml:"max_color_attachments"`
	MaxTexturesPerShaderStage    uint32 `toml:"max_textures_per_shader_stage"`
	MaxStorageTexturesPerStage   uint32 `toml:"max_storage_textures_per_shader_stage"`
	MaxStorageBuffersPerStage    uint32 `toml:"max_storage_buffers_per_shader_stage"`
	MaxUniformBuffersPerStage    uint32 `toml:"max_uniform_buffers_per_shader_stage"`
	MaxUniformBufferBindingSize  uint64 `toml:"max_uniform_buffer_binding_size"`
	MaxUniformLocations          int    `toml:"max_uniform_locations"`
	MaxDualSourceDrawBuffers     int    `toml:"max_dual_source_draw_buffers"`
}

// Backend configures the reference Vulkan backend.
type Backend struct {
	MaxParallelCompiles      int  `toml:"max_parallel_compiles"`
	StripDebugInfo           bool `toml:"strip_debug_info"`
	EmulateTransformFeedback bool `toml:"emulate_transform_feedback"`
}

// Cache configures the program binary cache.
type Cache struct {
	Disabled bool `toml:"disabled"`
	// Dir enables the disk cache behind the memory cache.
	Dir         string `toml:"dir"`
	MemoryBytes int64  `toml:"memory_bytes"`
}

// Log configures the process logger.
type Log struct {
	// Level is "off", "debug", "info", "warn" or "error".
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
}

var (
	logLevels  = []string{"off", "debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Translator: Translator{
			InitializeOutputVariables: true,
			ClampPointSize:            true,
			MaxIdentifierLength:       glsl.DefaultMaxIdentifierLength,
			ValidateAST:               true,
		},
		Cache: Cache{MemoryBytes: cache.DefaultMaxBytes},
		Log:   Log{Level: "off", Format: "text"},
	}
}

// Load reads and validates the file at path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := finish(&cfg, meta); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates TOML text on top of Default.
func Parse(data string) (Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := finish(&cfg, meta); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func finish(cfg *Config, meta toml.MetaData) error {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg.Validate()
}

// Validate rejects values no component accepts.
func (c *Config) Validate() error {
	var errs []error
	if n := c.Translator.MaxIdentifierLength; n < 0 {
		errs = append(errs, fmt.Errorf("[translator].max_identifier_length %d is negative", n))
	}
	if c.Backend.MaxParallelCompiles < 0 {
		errs = append(errs, fmt.Errorf("[backend].max_parallel_compiles %d is negative", c.Backend.MaxParallelCompiles))
	}
	if c.Cache.MemoryBytes < 0 {
		errs = append(errs, fmt.Errorf("[cache].memory_bytes %d is negative", c.Cache.MemoryBytes))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("[log].level %q is not one of %s", c.Log.Level, strings.Join(logLevels, "|")))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("[log].format %q is not one of %s", c.Log.Format, strings.Join(logFormats, "|")))
	}
	caps := c.Caps()
	if err := caps.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("[limits]: %w", err))
	}
	return errors.Join(errs...)
}

// CompileOptions returns the translator options of the [translator]
// section.
func (c *Config) CompileOptions() translator.Options {
	t := c.Translator
	opts := translator.Options{
		Passes: passes.Options{
			InitializeOutputVariables:       t.InitializeOutputVariables,
			ClampPointSize:                  t.ClampPointSize,
			EmulateSeamfulCubeMapSampling:   t.EmulateSeamfulCubeMapSampling,
			AddBresenhamLineRasterEmulation: t.LineRasterEmulation,
			AddXfbEmulationSupport:          t.TransformFeedbackEmulation,
			AddPreRotation:                  t.PreRotation,
		},
		HashAllNames:        t.HashAllNames,
		MaxIdentifierLength: t.MaxIdentifierLength,
		SkipValidation:      !t.ValidateAST,
		Extensions:          slices.Clone(t.Extensions),
	}
	if t.HashNames || t.HashAllNames {
		opts.HashFunction = glsl.FNV64a
	}
	return opts
}

// Caps returns the linker caps: the WebGPU default limits with the
// [limits] overrides applied.
func (c *Config) Caps() link.Caps {
	l := gputypes.DefaultLimits()
	o := c.Limits
	override(&l.MaxVertexAttributes, o.MaxVertexAttributes)
	override(&l.MaxInterStageShaderVariables, o.MaxInterStageShaderVariables)
	override(&l.MaxColorAttachments, o.MaxColorAttachments)
	override(&l.MaxSampledTexturesPerShaderStage, o.MaxTexturesPerShaderStage)
	override(&l.MaxSamplersPerShaderStage, o.MaxTexturesPerShaderStage)
	override(&l.MaxStorageTexturesPerShaderStage, o.MaxStorageTexturesPerStage)
	override(&l.MaxStorageBuffersPerShaderStage, o.MaxStorageBuffersPerStage)
	override(&l.MaxUniformBuffersPerShaderStage, o.MaxUniformBuffersPerStage)
	override(&l.MaxUniformBufferBindingSize, o.MaxUniformBufferBindingSize)

	caps := link.CapsFromLimits(l)
	override(&caps.MaxUniformLocations, o.MaxUniformLocations)
	override(&caps.MaxDualSourceDrawBuffers, o.MaxDualSourceDrawBuffers)
	return caps
}

func override[T uint32 | uint64 | int](dst *T, v T) {
	if v != 0 {
		*dst = v
	}
}

// VulkanOptions returns the options of the [backend] section.
func (c *Config) VulkanOptions() backend.VulkanOptions {
	return backend.VulkanOptions{
		MaxParallelCompiles:      c.Backend.MaxParallelCompiles,
		StripDebugInfo:           c.Backend.StripDebugInfo,
		EmulateTransformFeedback: c.Backend.EmulateTransformFeedback,
	}
}

// OpenCache builds the cache of the [cache] section: a memory cache,
// layered over a disk cache when a directory is set. It returns nil
// when caching is disabled.
func (c *Config) OpenCache() (cache.BlobCache, error) {
	if c.Cache.Disabled {
		return nil, nil
	}
	mem := cache.NewMemory(c.Cache.MemoryBytes)
	if c.Cache.Dir == "" {
		return mem, nil
	}
	disk, err := cache.OpenDisk(c.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("config: open disk cache: %w", err)
	}
	return cache.NewLayered(mem, disk), nil
}

// NewLogger returns a logger writing to w per the [log] section, or nil
// when logging is off.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Log.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
