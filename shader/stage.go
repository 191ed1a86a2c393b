package shader

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/gogpu/gputypes"
)

// Stage identifies a programmable pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StageGeometry
	StageFragment
	StageCompute
)

// StageCount is the number of distinct stages.
const StageCount = 4

// AllStages lists every stage in pipeline order.
var AllStages = [StageCount]Stage{StageVertex, StageGeometry, StageFragment, StageCompute}

// GraphicsStages lists the stages of a graphics pipeline in order.
var GraphicsStages = []Stage{StageVertex, StageGeometry, StageFragment}

// String returns the lower-case stage name used in diagnostics.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// Suffix returns the short suffix appended to per-stage internal names
// such as the default uniform block.
func (s Stage) Suffix() string {
	switch s {
	case StageVertex:
		return "VS"
	case StageGeometry:
		return "GS"
	case StageFragment:
		return "FS"
	case StageCompute:
		return "CS"
	default:
		return ""
	}
}

// Mask returns a StageMask with only s set.
func (s Stage) Mask() StageMask {
	return StageMask(1) << s
}

// IsGraphics reports whether s belongs to the graphics pipeline.
func (s Stage) IsGraphics() bool {
	return s != StageCompute
}

// Visibility returns the descriptor visibility for s. Geometry shares
// the pre-rasterization visibility of the vertex stage.
func (s Stage) Visibility() gputypes.ShaderStages {
	switch s {
	case StageVertex, StageGeometry:
		return gputypes.ShaderStageVertex
	case StageFragment:
		return gputypes.ShaderStageFragment
	case StageCompute:
		return gputypes.ShaderStageCompute
	default:
		return gputypes.ShaderStageNone
	}
}

// ParseStage converts a stage name ("vertex", "vert", "fs", ...) to a Stage.
func ParseStage(name string) (Stage, error) {
	switch strings.ToLower(name) {
	case "vertex", "vert", "vs":
		return StageVertex, nil
	case "geometry", "geom", "gs":
		return StageGeometry, nil
	case "fragment", "frag", "fs":
		return StageFragment, nil
	case "compute", "comp", "cs":
		return StageCompute, nil
	default:
		return 0, fmt.Errorf("unknown shader stage %q", name)
	}
}

// StageMask is a set of stages.
type StageMask uint8

// Has reports whether s is in the mask.
func (m StageMask) Has(s Stage) bool {
	return m&s.Mask() != 0
}

// With returns the mask with s added.
func (m StageMask) With(s Stage) StageMask {
	return m | s.Mask()
}

// Count returns the number of stages in the mask.
func (m StageMask) Count() int {
	return bits.OnesCount8(uint8(m))
}

// Stages returns the stages of the mask in pipeline order.
func (m StageMask) Stages() []Stage {
	out := make([]Stage, 0, m.Count())
	for _, s := range AllStages {
		if m.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// First returns the earliest stage in the mask and false if the mask is empty.
func (m StageMask) First() (Stage, bool) {
	if m == 0 {
		return 0, false
	}
	return Stage(bits.TrailingZeros8(uint8(m))), true
}

// Last returns the latest stage in the mask and false if the mask is empty.
func (m StageMask) Last() (Stage, bool) {
	if m == 0 {
		return 0, false
	}
	return Stage(7 - bits.LeadingZeros8(uint8(m))), true
}

// Visibility returns the union of descriptor visibilities.
func (m StageMask) Visibility() gputypes.ShaderStages {
	var v gputypes.ShaderStages
	for _, s := range m.Stages() {
		v |= s.Visibility()
	}
	return v
}

// String returns the stage names joined by '|'.
func (m StageMask) String() string {
	if m == 0 {
		return "none"
	}
	names := make([]string, 0, m.Count())
	for _, s := range m.Stages() {
		names = append(names, s.String())
	}
	return strings.Join(names, "|")
}
