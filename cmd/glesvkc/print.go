package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/program"
	"github.com/gogpu/glesvk/shader"
)

var (
	titleColor = color.New(color.Bold, color.FgCyan)
	okColor    = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

// table writes tab-separated rows aligned into columns.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, columns ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
	t.row(toAny(columns)...)
	return t
}

func (t *table) row(cells ...any) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(t.tw, strings.Join(parts, "\t"))
}

func (t *table) flush() error { return t.tw.Flush() }

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// section prints a title followed by a table built by fill. Empty
// sections are skipped.
func section(w io.Writer, title string, n int, columns []string, fill func(t *table)) error {
	if n == 0 {
		return nil
	}
	titleColor.Fprintf(w, "\n%s (%d)\n", title, n)
	t := newTable(w, columns...)
	fill(t)
	return t.flush()
}

func optional(v int) string {
	if v < 0 {
		return "-"
	}
	return fmt.Sprint(v)
}

func stagesOf(m shader.StageMask) string {
	if m == 0 {
		return "-"
	}
	return m.String()
}

// printExecutable prints the resource tables of a linked program.
//
//nolint:funlen // one section per resource kind
func printExecutable(w io.Writer, exe *program.Executable) error {
	fmt.Fprintf(w, "version %d, stages %s", exe.Version, stagesOf(exe.Stages))
	if exe.Separable {
		fmt.Fprint(w, ", separable")
	}
	fmt.Fprintln(w)
	if exe.ComputeLocalSize.IsDeclared() {
		s := exe.ComputeLocalSize.Resolved()
		fmt.Fprintf(w, "local size %d x %d x %d\n", s[0], s[1], s[2])
	}

	err := section(w, "Attributes", len(exe.Attributes), []string{"NAME", "TYPE", "LOCATION"}, func(t *table) {
		for i := range exe.Attributes {
			a := &exe.Attributes[i]
			t.row(a.Name, a.TypeString(), optional(a.Location))
		}
	})
	if err != nil {
		return err
	}

	err = section(w, "Varyings", len(exe.Varyings), []string{"NAME", "FROM", "TO"}, func(t *table) {
		for _, v := range exe.Varyings {
			from, to := "-", "-"
			if v.Front != nil {
				from = v.FrontStage.String()
			}
			if v.Back != nil {
				to = v.BackStage.String()
			}
			t.row(v.Name, from, to)
		}
	})
	if err != nil {
		return err
	}

	err = section(w, "Uniforms", len(exe.Uniforms), []string{"INDEX", "NAME", "TYPE", "STAGES", "BINDING", "LOCATIONS"}, func(t *table) {
		locs := make(map[uint32][]string)
		for loc, l := range exe.UniformLocations {
			if l.Used() {
				s := fmt.Sprint(loc)
				if l.Ignored {
					s += "*"
				}
				locs[l.Index] = append(locs[l.Index], s)
			}
		}
		for i := range exe.Uniforms {
			u := &exe.Uniforms[i]
			l := strings.Join(locs[uint32(i)], ",")
			if l == "" {
				l = "-"
			}
			t.row(i, u.Name, u.TypeString(), stagesOf(u.Stages), optional(u.Binding), l)
		}
	})
	if err != nil {
		return err
	}

	err = section(w, "Samplers", len(exe.SamplerBindings), []string{"UNIFORM", "TEXTURE", "UNITS"}, func(t *table) {
		for i, b := range exe.SamplerBindings {
			name := "-"
			if u := exe.SamplerRange.Low + uint32(i); int(u) < len(exe.Uniforms) {
				name = exe.Uniforms[u].Name
			}
			t.row(name, b.TextureType, fmt.Sprint(b.BoundUnits))
		}
	})
	if err != nil {
		return err
	}

	blocks := func(title string, list []link.InterfaceBlock) error {
		return section(w, title, len(list), []string{"INDEX", "NAME", "LAYOUT", "BINDING", "SIZE", "MEMBERS", "STAGES"}, func(t *table) {
			for i := range list {
				b := &list[i]
				t.row(i, b.NameWithArrayIndex(), b.Layout, optional(b.Binding), b.DataSize, len(b.MemberIndexes), stagesOf(b.Stages))
			}
		})
	}
	if err := blocks("Uniform blocks", exe.UniformBlocks); err != nil {
		return err
	}
	if err := blocks("Storage blocks", exe.StorageBlocks); err != nil {
		return err
	}

	err = section(w, "Outputs", len(exe.Outputs), []string{"NAME", "TYPE", "LOCATION", "INDEX"}, func(t *table) {
		for i := range exe.Outputs {
			o := &exe.Outputs[i]
			t.row(o.Name, o.TypeString(), optional(o.Location), optional(o.Index))
		}
	})
	if err != nil {
		return err
	}

	err = section(w, "Transform feedback", len(exe.TransformFeedbackVaryings), []string{"NAME", "COMPONENTS", "MODE"}, func(t *table) {
		for _, v := range exe.TransformFeedbackVaryings {
			t.row(v.NameWithArrayIndex(), v.Components, exe.TransformFeedbackMode)
		}
	})
	if err != nil {
		return err
	}

	if len(exe.UnusedUniforms) > 0 {
		names := make([]string, len(exe.UnusedUniforms))
		for i, u := range exe.UnusedUniforms {
			names[i] = u.Name
		}
		dimColor.Fprintf(w, "\nunused uniforms: %s\n", strings.Join(names, ", "))
	}
	return nil
}
