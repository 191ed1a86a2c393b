package link

import (
	"fmt"
	"testing"

	"github.com/gogpu/glesvk/shader"
)

// ===== Varying Packing Tests =====

// matchedVaryings declares every variable as a vertex output and a
// fragment input.
func matchedVaryings(rows int, vars ...shader.Variable) *Input {
	in, vs, fs := graphicsInput(300)
	in.Caps.MaxVaryingVectors = rows
	vs.OutputVaryings = []shader.Variable{active(shader.NewVariable(shader.TypeFloatVec4, "gl_Position"))}
	for _, v := range vars {
		vs.OutputVaryings = append(vs.OutputVaryings, active(v))
		fs.InputVaryings = append(fs.InputVaryings, active(v.Clone()))
	}
	return in
}

func placement(t *testing.T, res *Resources, name string) (int, int) {
	t.Helper()
	for _, ref := range res.Varyings {
		if ref.Name == name {
			return ref.Location, ref.Component
		}
	}
	t.Fatalf("no varying %s", name)
	return 0, 0
}

func TestVaryingPacking(t *testing.T) {
	flat := func(v shader.Variable) shader.Variable {
		v.Interpolation = shader.InterpolationFlat
		return v
	}
	tests := []struct {
		name string
		rows int
		vars []shader.Variable
		want map[string][2]int
	}{
		{
			name: "mixed widths",
			rows: 4,
			vars: []shader.Variable{
				shader.NewVariable(shader.TypeFloat, "e"),
				shader.NewVariable(shader.TypeFloatVec2, "c"),
				shader.NewVariable(shader.TypeFloatVec4, "a"),
				shader.NewVariable(shader.TypeFloat, "f"),
				shader.NewVariable(shader.TypeFloatVec3, "b"),
				shader.NewVariable(shader.TypeFloatVec2, "d"),
			},
			want: map[string][2]int{"a": {0, 0}, "b": {1, 0}, "c": {2, 0}, "d": {3, 0}, "e": {2, 2}, "f": {3, 2}},
		},
		{
			name: "two columns bottom up",
			rows: 2,
			vars: []shader.Variable{
				shader.NewVariable(shader.TypeFloatVec2, "x"),
				shader.NewVariable(shader.TypeFloatVec2, "y"),
				shader.NewVariable(shader.TypeFloatVec2, "z"),
			},
			want: map[string][2]int{"x": {0, 0}, "y": {1, 0}, "z": {1, 2}},
		},
		{
			name: "matrix and array",
			rows: 5,
			vars: []shader.Variable{
				arrayOf(shader.NewVariable(shader.TypeFloatVec2, "arr"), 2),
				shader.NewVariable(shader.TypeFloatMat3, "m"),
			},
			want: map[string][2]int{"m": {0, 0}, "arr": {3, 0}},
		},
		{
			name: "interpolation splits rows",
			rows: 2,
			vars: []shader.Variable{
				shader.NewVariable(shader.TypeFloat, "v_f"),
				flat(shader.NewVariable(shader.TypeInt, "v_i")),
			},
			want: map[string][2]int{"v_f": {0, 0}, "v_i": {1, 0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustLink(t, matchedVaryings(tt.rows, tt.vars...))
			for name, want := range tt.want {
				loc, comp := placement(t, res, name)
				if loc != want[0] || comp != want[1] {
					t.Errorf("%s placed at (%d, %d), want (%d, %d)", name, loc, comp, want[0], want[1])
				}
			}
		})
	}
}

func TestVaryingPackingLimit(t *testing.T) {
	t.Run("too many vectors", func(t *testing.T) {
		vars := make([]shader.Variable, 40)
		for i := range vars {
			vars[i] = shader.NewVariable(shader.TypeFloatVec4, fmt.Sprintf("v%d", i))
		}
		mustFail(t, matchedVaryings(4, vars...), StepVaryings, "Could not pack varying v4")
	})
	t.Run("mixed types in one row", func(t *testing.T) {
		i := shader.NewVariable(shader.TypeInt, "v_i")
		i.Interpolation = shader.InterpolationFlat
		in := matchedVaryings(1, shader.NewVariable(shader.TypeFloat, "v_f"), i)
		mustFail(t, in, StepVaryings, "Could not pack varying v_i")
	})
	t.Run("unmatched output past the grid", func(t *testing.T) {
		in := matchedVaryings(1, shader.NewVariable(shader.TypeFloatVec4, "v"))
		vs := in.Shaders[shader.StageVertex]
		vs.OutputVaryings = append(vs.OutputVaryings, active(shader.NewVariable(shader.TypeFloatVec4, "v_extra")))
		res := mustLink(t, in)
		if loc, _ := placement(t, res, "v"); loc != 0 {
			t.Errorf("v location = %d, want 0", loc)
		}
		if loc, _ := placement(t, res, "v_extra"); loc != 1 {
			t.Errorf("v_extra location = %d, want 1", loc)
		}
	})
	t.Run("captured output must fit", func(t *testing.T) {
		in := matchedVaryings(1, shader.NewVariable(shader.TypeFloatVec4, "v"))
		vs := in.Shaders[shader.StageVertex]
		vs.OutputVaryings = append(vs.OutputVaryings, active(shader.NewVariable(shader.TypeFloatVec4, "v_xfb")))
		in.TransformFeedbackVaryings = []string{"v_xfb"}
		mustFail(t, in, StepVaryings, "Could not pack varying v_xfb")
	})
}
