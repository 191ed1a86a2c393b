package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/program"
	"github.com/gogpu/glesvk/shader"
)

// programDesc is a program described by the interface of its translated
// shaders, as written in a program.toml file:
//
//	[attribute_locations]
//	position = 0
//
//	[[shader]]
//	stage = "vertex"
//	  [[shader.attribute]]
//	  name = "position"
//	  type = "vec4"
//	  [[shader.out]]
//	  name = "v_color"
//	  type = "vec4"
//
//	[[shader]]
//	stage = "fragment"
//	  [[shader.in]]
//	  name = "v_color"
//	  type = "vec4"
//	  [[shader.output]]
//	  name = "o_color"
//	  type = "vec4"
type programDesc struct {
	Separable          bool           `toml:"separable"`
	WebGL              bool           `toml:"webgl"`
	AttributeLocations map[string]int `toml:"attribute_locations"`
	UniformLocations   map[string]int `toml:"uniform_locations"`
	OutputLocations    map[string]int `toml:"output_locations"`
	OutputIndexes      map[string]int `toml:"output_indexes"`
	XfbVaryings        []string       `toml:"transform_feedback_varyings"`
	XfbMode            string         `toml:"transform_feedback_mode"`
	Shaders            []shaderDesc   `toml:"shader"`
}

type shaderDesc struct {
	Stage   string `toml:"stage"`
	Version int    `toml:"version"`
	// Source defaults to a placeholder naming the stage.
	Source        string      `toml:"source"`
	LocalSize     []int       `toml:"local_size"`
	Attributes    []varDesc   `toml:"attribute"`
	In            []varDesc   `toml:"in"`
	Out           []varDesc   `toml:"out"`
	Uniforms      []varDesc   `toml:"uniform"`
	Outputs       []varDesc   `toml:"output"`
	UniformBlocks []blockDesc `toml:"uniform_block"`
	StorageBlocks []blockDesc `toml:"storage_block"`
}

type varDesc struct {
	Name          string    `toml:"name"`
	Type          string    `toml:"type"`
	Precision     string    `toml:"precision"`
	Array         []uint32  `toml:"array"`
	Location      *int      `toml:"location"`
	Binding       *int      `toml:"binding"`
	Interpolation string    `toml:"interpolation"`
	Invariant     bool      `toml:"invariant"`
	Inactive      bool      `toml:"inactive"`
	StructName    string    `toml:"struct"`
	Fields        []varDesc `toml:"field"`
}

type blockDesc struct {
	Name     string    `toml:"name"`
	Instance string    `toml:"instance"`
	Array    uint32    `toml:"array"`
	Binding  *int      `toml:"binding"`
	Layout   string    `toml:"layout"`
	Inactive bool      `toml:"inactive"`
	Fields   []varDesc `toml:"field"`
}

func loadProgram(path string) (*programDesc, error) {
	var desc programDesc
	meta, err := toml.DecodeFile(path, &desc)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if len(desc.Shaders) == 0 {
		return nil, fmt.Errorf("%s: missing [[shader]]", path)
	}
	return &desc, nil
}

// apply attaches the described shaders and binding requests to p.
func (d *programDesc) apply(p *program.Program) error {
	for i := range d.Shaders {
		c, err := d.Shaders[i].compiled()
		if err != nil {
			return fmt.Errorf("shader %d: %w", i, err)
		}
		if err := p.AttachShader(c); err != nil {
			return err
		}
	}
	binds := []struct {
		names map[string]int
		bind  func(string, int) error
	}{
		{d.AttributeLocations, p.BindAttributeLocation},
		{d.UniformLocations, p.BindUniformLocation},
		{d.OutputLocations, p.BindFragmentOutputLocation},
		{d.OutputIndexes, p.BindFragmentOutputIndex},
	}
	for _, b := range binds {
		for name, v := range b.names {
			if err := b.bind(name, v); err != nil {
				return err
			}
		}
	}
	if len(d.XfbVaryings) > 0 {
		mode := link.XfbInterleaved
		switch d.XfbMode {
		case "", "interleaved":
		case "separate":
			mode = link.XfbSeparate
		default:
			return fmt.Errorf("unknown transform_feedback_mode %q", d.XfbMode)
		}
		if err := p.SetTransformFeedbackVaryings(d.XfbVaryings, mode); err != nil {
			return err
		}
	}
	return p.SetSeparable(d.Separable)
}

func (s *shaderDesc) compiled() (*shader.Compiled, error) {
	stage, err := shader.ParseStage(s.Stage)
	if err != nil {
		return nil, err
	}
	version := s.Version
	if version == 0 {
		version = 300
	}
	c := shader.NewCompiled(stage, version)
	c.Compiled = true
	c.Source = s.Source
	if c.Source == "" {
		c.Source = fmt.Sprintf("#version 450 core\n// %s\nvoid main() {}\n", stage)
	}
	for i, n := range s.LocalSize {
		if i < len(c.WorkGroupSize) {
			c.WorkGroupSize[i] = n
		}
	}

	lists := []struct {
		src []varDesc
		dst *[]shader.Variable
	}{
		{s.Attributes, &c.Attributes},
		{s.In, &c.InputVaryings},
		{s.Out, &c.OutputVaryings},
		{s.Uniforms, &c.Uniforms},
		{s.Outputs, &c.Outputs},
	}
	for _, l := range lists {
		for i := range l.src {
			v, err := l.src[i].variable()
			if err != nil {
				return nil, err
			}
			*l.dst = append(*l.dst, v)
		}
	}
	for i := range s.UniformBlocks {
		b, err := s.UniformBlocks[i].block(shader.BlockUniform)
		if err != nil {
			return nil, err
		}
		c.UniformBlocks = append(c.UniformBlocks, b)
	}
	for i := range s.StorageBlocks {
		b, err := s.StorageBlocks[i].block(shader.BlockBuffer)
		if err != nil {
			return nil, err
		}
		c.StorageBlocks = append(c.StorageBlocks, b)
	}
	return c, nil
}

func (v *varDesc) variable() (shader.Variable, error) {
	t := shader.TypeNone
	if len(v.Fields) == 0 || v.Type != "" {
		var err error
		if t, err = shader.ParseGLType(v.Type); err != nil {
			return shader.Variable{}, fmt.Errorf("%s: %w", v.Name, err)
		}
	}
	out := shader.NewVariable(t, v.Name)
	out.StaticUse = !v.Inactive
	out.Active = !v.Inactive
	out.ArraySizes = v.Array
	out.Invariant = v.Invariant
	out.StructName = v.StructName
	out.MappedStructName = v.StructName
	if v.Location != nil {
		out.Location = *v.Location
	}
	if v.Binding != nil {
		out.Binding = *v.Binding
	}

	var ok bool
	if out.Precision, ok = parseEnum(v.Precision, shader.PrecisionUndefined, shader.PrecisionHigh); !ok {
		return shader.Variable{}, fmt.Errorf("%s: unknown precision %q", v.Name, v.Precision)
	}
	if out.Interpolation, ok = parseEnum(v.Interpolation, shader.InterpolationSmooth, shader.InterpolationSample); !ok {
		return shader.Variable{}, fmt.Errorf("%s: unknown interpolation %q", v.Name, v.Interpolation)
	}

	for i := range v.Fields {
		f, err := v.Fields[i].variable()
		if err != nil {
			return shader.Variable{}, fmt.Errorf("%s.%w", v.Name, err)
		}
		out.Fields = append(out.Fields, f)
	}
	return out, nil
}

func (b *blockDesc) block(kind shader.BlockType) (shader.InterfaceBlock, error) {
	fields := make([]shader.Variable, 0, len(b.Fields))
	for i := range b.Fields {
		f, err := b.Fields[i].variable()
		if err != nil {
			return shader.InterfaceBlock{}, fmt.Errorf("block %s: %w", b.Name, err)
		}
		fields = append(fields, f)
	}
	out := shader.NewInterfaceBlock(b.Name, fields...)
	out.InstanceName = b.Instance
	out.ArraySize = b.Array
	out.BlockType = kind
	out.StaticUse = !b.Inactive
	out.Active = !b.Inactive
	if b.Binding != nil {
		out.Binding = *b.Binding
	}
	if kind == shader.BlockBuffer {
		out.Layout = shader.LayoutStd430
	}
	if b.Layout != "" {
		layout, ok := parseEnum(b.Layout, shader.LayoutShared, shader.LayoutStd430)
		if !ok {
			return shader.InterfaceBlock{}, fmt.Errorf("block %s: unknown layout %q", b.Name, b.Layout)
		}
		out.Layout = layout
	}
	return out, nil
}

// parseEnum finds the value in [first, last] whose String is name. An
// empty name selects first.
func parseEnum[T interface {
	~uint8
	String() string
}](name string, first, last T) (T, bool) {
	if name == "" {
		return first, true
	}
	for v := first; v <= last; v++ {
		if strings.EqualFold(v.String(), name) {
			return v, true
		}
	}
	return first, false
}
