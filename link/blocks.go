package link

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/gogpu/glesvk/shader"
)

func blockTypeString(t shader.BlockType) string {
	if t == shader.BlockBuffer {
		return "shader storage block"
	}
	return "uniform block"
}

func blockLimitName(stage shader.Stage, t shader.BlockType) string {
	if t == shader.BlockBuffer {
		return limitName(stage, "SHADER_STORAGE_BLOCKS")
	}
	return limitName(stage, "UNIFORM_BUFFERS")
}

// isActiveBlock reports whether a block takes part in linking. Only
// packed blocks may be inactive.
func isActiveBlock(b *shader.InterfaceBlock) bool {
	return b.Active || b.Layout != shader.LayoutPacked
}

func blocksOf(c *shader.Compiled, t shader.BlockType) []shader.InterfaceBlock {
	if t == shader.BlockBuffer {
		return c.StorageBlocks
	}
	return c.UniformBlocks
}

// linkInterfaceBlocks validates block counts and cross-stage agreement,
// then lays out every active block.
func (l *linker) linkInterfaceBlocks() bool {
	caps := &l.in.Caps

	combined, ok := l.countBlocks(shader.BlockUniform, caps.MaxUniformBlocks)
	if !ok {
		return false
	}
	if combined > caps.MaxCombinedUniformBlocks {
		l.log.Printf("The sum of the number of active uniform blocks exceeds MAX_COMBINED_UNIFORM_BLOCKS (%d).",
			caps.MaxCombinedUniformBlocks)
		return false
	}
	if !l.matchBlocks(shader.BlockUniform) {
		return false
	}

	if l.res.Version >= 310 {
		combined, ok := l.countBlocks(shader.BlockBuffer, caps.MaxStorageBlocks)
		if !ok {
			return false
		}
		if combined > caps.MaxCombinedStorageBlocks {
			l.log.Printf("The sum of the number of active shader storage blocks exceeds MAX_COMBINED_SHADER_STORAGE_BLOCKS (%d).",
				caps.MaxCombinedStorageBlocks)
			return false
		}
		l.combinedStorageBlocks = combined
		if !l.matchBlocks(shader.BlockBuffer) {
			return false
		}
	}

	return l.defineBlocks(shader.BlockUniform) && l.defineBlocks(shader.BlockBuffer)
}

// countBlocks checks the per-stage limits and returns the combined
// count. A block used by several stages counts once per stage.
func (l *linker) countBlocks(t shader.BlockType, limits [shader.StageCount]int) (int, bool) {
	combined := 0
	for _, stage := range shader.AllStages {
		c := l.in.Shader(stage)
		if c == nil {
			continue
		}
		count := 0
		blocks := blocksOf(c, t)
		for i := range blocks {
			if !isActiveBlock(&blocks[i]) {
				continue
			}
			count += int(blocks[i].ElementCount())
			if count > limits[stage] {
				l.log.Printf("%s shader %s count exceeds %s (%d)",
					stageName(stage), blockTypeString(t), blockLimitName(stage, t), limits[stage])
				return 0, false
			}
		}
		combined += count
	}
	return combined, true
}

type stageBlock struct {
	block *shader.InterfaceBlock
	stage shader.Stage
}

// matchBlocks rejects fields shared by differently named instanceless
// blocks and blocks whose declarations differ between stages.
func (l *linker) matchBlocks(t shader.BlockType) bool {
	fields := make(map[string]stageBlock)
	withBlocks := 0
	for _, stage := range shader.GraphicsStages {
		c := l.in.Shader(stage)
		if c == nil {
			continue
		}
		blocks := blocksOf(c, t)
		if len(blocks) > 0 {
			withBlocks++
		}
		for i := range blocks {
			b := &blocks[i]
			if b.InstanceName != "" {
				continue
			}
			for _, f := range b.Fields {
				prev, ok := fields[f.Name]
				if !ok {
					fields[f.Name] = stageBlock{block: b, stage: stage}
					continue
				}
				if prev.block.Name != b.Name {
					l.log.Printf("Ambiguous field '%s' in blocks '%s' (%s shader) and '%s' (%s shader) which don't have instance names.",
						f.Name, prev.block.Name, stageName(prev.stage), b.Name, stageName(stage))
					return false
				}
			}
		}
	}
	if withBlocks < 2 {
		return true
	}

	linked := make(map[string]stageBlock)
	for _, stage := range shader.GraphicsStages {
		c := l.in.Shader(stage)
		if c == nil {
			continue
		}
		blocks := blocksOf(c, t)
		for i := range blocks {
			b := &blocks[i]
			prev, ok := linked[b.Name]
			if !ok {
				linked[b.Name] = stageBlock{block: b, stage: stage}
				continue
			}
			if m, field := compareBlocks(prev.block, b, l.in.WebGL); m != NoMismatch {
				logMismatch(l.log, b.Name, blockTypeString(b.BlockType), m, field, prev.stage, stage)
				return false
			}
		}
	}
	return true
}

// compareBlocks checks two declarations of one block. Field precision is
// compared only under WebGL.
func compareBlocks(b1, b2 *shader.InterfaceBlock, webgl bool) (Mismatch, string) {
	if len(b1.Fields) != len(b2.Fields) {
		return MismatchFieldNumber, ""
	}
	if b1.ArraySize != b2.ArraySize {
		return MismatchArraySize, ""
	}
	if b1.Layout != b2.Layout || b1.Binding != b2.Binding {
		return MismatchLayoutQualifier, ""
	}
	if (b1.InstanceName == "") != (b2.InstanceName == "") {
		return MismatchInstanceName, ""
	}
	for i := range b1.Fields {
		f1, f2 := &b1.Fields[i], &b2.Fields[i]
		if f1.Name != f2.Name {
			return MismatchFieldName, ""
		}
		if m, field := compareVariables(f1, f2, compareOptions{precision: webgl}); m != NoMismatch {
			return m, parentPrefix(f1.Name, field)
		}
		if f1.IsRowMajor != f2.IsRowMajor {
			return MismatchMatrixPacking, f1.Name
		}
	}
	return NoMismatch, ""
}

// defineBlocks lays out every active block of type t, in stage order.
// A block seen again in a later stage only gains that stage's bit.
func (l *linker) defineBlocks(t shader.BlockType) bool {
	defined := make(map[string]bool)
	for _, stage := range shader.AllStages {
		c := l.in.Shader(stage)
		if c == nil {
			continue
		}
		blocks := blocksOf(c, t)
		for i := range blocks {
			b := &blocks[i]
			if !isActiveBlock(b) {
				continue
			}
			if !defined[b.Name] {
				defined[b.Name] = true
				if !l.defineBlock(b, stage) {
					return false
				}
				continue
			}
			if b.Active {
				l.activateBlock(b.Name, t, stage)
			}
		}
	}
	return true
}

// activateBlock marks an already defined block and its members active
// in stage.
func (l *linker) activateBlock(name string, t shader.BlockType, stage shader.Stage) {
	list := &l.res.UniformBlocks
	if t == shader.BlockBuffer {
		list = &l.res.StorageBlocks
	}
	for i := range *list {
		b := &(*list)[i]
		if b.Name != name {
			continue
		}
		b.Stages = b.Stages.With(stage)
		for _, m := range b.MemberIndexes {
			if t == shader.BlockBuffer {
				l.res.BufferVariables[m].Stages = l.res.BufferVariables[m].Stages.With(stage)
				l.res.BufferVariables[m].Active = true
			} else {
				l.res.BlockUniforms[m].Stages = l.res.BlockUniforms[m].Stages.With(stage)
				l.res.BlockUniforms[m].Active = true
			}
		}
	}
}

// defineBlock lays out b and appends one linked block per array element.
func (l *linker) defineBlock(b *shader.InterfaceBlock, stage shader.Stage) bool {
	buffer := b.BlockType == shader.BlockBuffer
	blockIndex := len(l.res.UniformBlocks)
	if buffer {
		blockIndex = len(l.res.StorageBlocks)
	}
	var stages shader.StageMask
	if b.Active {
		stages = stage.Mask()
	}

	var members []uint32
	enc := NewLayout(b.Layout)
	sink := func(v *shader.Variable, name, mapped string, info BlockMemberInfo, topLevelSize uint32) {
		member := v.Clone()
		member.Name = name
		member.MappedName = mapped
		member.Fields = nil
		member.Active = b.Active
		member.StaticUse = b.StaticUse
		if buffer {
			members = append(members, uint32(len(l.res.BufferVariables)))
			l.res.BufferVariables = append(l.res.BufferVariables, BufferVariable{
				Variable:          member,
				BufferIndex:       blockIndex,
				BlockInfo:         info,
				TopLevelArraySize: topLevelSize,
				Stages:            stages,
			})
			return
		}
		members = append(members, uint32(len(l.res.BlockUniforms)))
		l.res.BlockUniforms = append(l.res.BlockUniforms, LinkedUniform{
			Variable:    member,
			Stages:      stages,
			BufferIndex: blockIndex,
			BlockInfo:   info,
		})
	}
	prefix, mappedPrefix := b.FieldPrefix(), ""
	if b.InstanceName != "" {
		mappedPrefix = b.MappedName + "."
	}
	for i := range b.Fields {
		f := &b.Fields[i]
		topLevelSize := uint32(1)
		if f.IsArray() {
			topLevelSize = f.OutermostArraySize()
		}
		encodeMember(enc, f, prefix+f.Name, mappedPrefix+f.MappedName, b.IsRowMajor, 0, topLevelSize, sink)
	}

	size, err := safecast.Conv[uint32](enc.Size())
	if err != nil {
		l.log.Printf("%s '%s' is too large.", blockTypeString(b.BlockType), b.Name)
		return false
	}
	var firstFieldArraySize uint32
	if len(b.Fields) > 0 {
		firstFieldArraySize = b.Fields[0].ArraySizeProduct()
	}
	for e := range b.ElementCount() {
		binding := 0
		if b.Binding != -1 {
			binding = b.Binding + int(e)
		}
		linked := InterfaceBlock{
			Name:                b.Name,
			MappedName:          b.MappedName,
			IsArray:             b.IsArray(),
			ArrayElement:        e,
			FirstFieldArraySize: firstFieldArraySize,
			Binding:             binding,
			DataSize:            size,
			BlockType:           b.BlockType,
			Layout:              b.Layout,
			MemberIndexes:       append([]uint32(nil), members...),
			Stages:              stages,
		}
		if buffer {
			l.res.StorageBlocks = append(l.res.StorageBlocks, linked)
		} else {
			l.res.UniformBlocks = append(l.res.UniformBlocks, linked)
		}
	}
	return true
}

type memberSink func(v *shader.Variable, name, mapped string, info BlockMemberInfo, topLevelSize uint32)

// encodeMember lays out one block member. Structs are entered field by
// field and arrays of structs element by element.
func encodeMember(enc *Layout, f *shader.Variable, name, mapped string, rowMajor bool, depth int, topLevelSize uint32, sink memberSink) {
	rowMajor = rowMajor || f.IsRowMajor
	if f.IsStruct() {
		if f.IsArray() {
			elem := f.Clone()
			elem.ArraySizes = elem.ArraySizes[:len(elem.ArraySizes)-1]
			for i := range f.OutermostArraySize() {
				sub := fmt.Sprintf("[%d]", i)
				encodeMember(enc, &elem, name+sub, mapped+sub, rowMajor, depth+1, topLevelSize, sink)
			}
			return
		}
		align := enc.EnterStruct(f.Fields, rowMajor)
		for i := range f.Fields {
			field := &f.Fields[i]
			encodeMember(enc, field, name+"."+field.Name, mapped+"."+field.MappedName, rowMajor, depth+1, topLevelSize, sink)
		}
		enc.ExitStruct(align)
		return
	}
	info := enc.EncodeType(f.Type, f.ArraySizes, rowMajor)
	if depth == 0 && f.IsArray() {
		info.TopLevelArrayStride = info.ArrayStride
	}
	sink(f, name, mapped, info, topLevelSize)
}
