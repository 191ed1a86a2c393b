package link

import (
	"slices"
	"testing"

	"github.com/gogpu/glesvk/shader"
)

// ===== Binding Tests =====

func TestBindings(t *testing.T) {
	var b Bindings
	if got := b.Lookup("a"); got != -1 {
		t.Errorf("Lookup on zero value = %d, want -1", got)
	}
	b.Bind("b", 2)
	b.Bind("a", 1)
	b.Bind("a", 3)
	if got := b.Lookup("a"); got != 3 {
		t.Errorf("Lookup(a) = %d, want 3", got)
	}
	if got := b.Names(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v, want [a b]", got)
	}
	c := b.Clone()
	c.Bind("a", 7)
	if b.Lookup("a") != 3 {
		t.Error("Clone() shares state with the original")
	}
}

func TestAliasedBindings(t *testing.T) {
	arr := arrayOf(shader.NewVariable(shader.TypeFloat, "u"), 4)

	tests := []struct {
		name  string
		binds [][2]any
		want  int
	}{
		{"base only", [][2]any{{"u", 2}}, 2},
		{"element zero only", [][2]any{{"u[0]", 5}}, 5},
		{"element zero after base", [][2]any{{"u", 2}, {"u[0]", 5}}, 5},
		{"base after element zero", [][2]any{{"u[0]", 5}, {"u", 2}}, 2},
		{"unrelated", [][2]any{{"v", 1}}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b AliasedBindings
			for _, bind := range tt.binds {
				b.Bind(bind[0].(string), bind[1].(int))
			}
			if got := b.LookupVariable(&arr); got != tt.want {
				t.Errorf("LookupVariable(u[4]) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAliasedBindingsLocations(t *testing.T) {
	var b AliasedBindings
	b.Bind("a", 3)
	b.Bind("b", 1)
	b.Bind("c", 3)
	if got := b.Locations(); !slices.Equal(got, []int{1, 3}) {
		t.Errorf("Locations() = %v, want [1 3]", got)
	}
	scalar := shader.NewVariable(shader.TypeFloat, "a")
	if got := b.LookupVariable(&scalar); got != 3 {
		t.Errorf("LookupVariable(a) = %d, want 3", got)
	}
}

// ===== InfoLog Tests =====

func TestInfoLog(t *testing.T) {
	var log InfoLog
	if !log.Empty() || log.String() != "" {
		t.Fatal("zero InfoLog is not empty")
	}
	log.Printf("first %d\n", 1)
	log.Printf("sec\x00ond")
	if got := log.String(); got != "first 1\nsecond\n" {
		t.Errorf("String() = %q", got)
	}
	log.Reset()
	if !log.Empty() {
		t.Error("Reset() left messages")
	}
}

func TestMismatchMessage(t *testing.T) {
	var log InfoLog
	logMismatch(&log, "Light", "uniform", MismatchPrecision, "color", shader.StageVertex, shader.StageFragment)
	want := "Precisions of uniform 'Light' member 'Light.color' differ between VERTEX and FRAGMENT shaders."
	if got := log.Lines()[0]; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}
