package program

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
	"github.com/gogpu/glesvk/stream"
)

// binaryFormatVersion changes whenever the layout written by
// writeExecutable changes.
const binaryFormatVersion = 2

// FingerprintSize is the length of a build fingerprint.
const FingerprintSize = 20

// Fingerprint identifies the build that wrote a program binary. Binaries
// are only loaded by a build with the same fingerprint.
type Fingerprint [FingerprintSize]byte

// DefaultFingerprint is derived from the binary format version.
func DefaultFingerprint() Fingerprint {
	sum := sha256.Sum256(fmt.Appendf(nil, "glesvk/program-binary/%d", binaryFormatVersion))
	var f Fingerprint
	copy(f[:], sum[:])
	return f
}

// ErrBinaryMismatch is returned for a binary written by another build or
// for another client version.
var ErrBinaryMismatch = errors.New("program: binary does not match this build")

// MaxReadLocations bounds the uniform locations ReadBinary accepts.
const MaxReadLocations = 1 << 16

// maxFieldDepth bounds struct nesting when decoding variables.
const maxFieldDepth = 16

// encodeBinary writes the header followed by the length-prefixed body
// (exe and the backend blob) and the SHA-256 of the body.
func encodeBinary(fp Fingerprint, major, minor int, exe *Executable, backendBlob []byte) ([]byte, error) {
	body := stream.NewWriter()
	writeExecutable(body, exe)
	body.WriteBytes(backendBlob)
	if err := body.Err(); err != nil {
		return nil, fmt.Errorf("program: encode binary: %w", err)
	}
	sum := sha256.Sum256(body.Bytes())

	w := stream.NewWriter()
	w.WriteFixed(fp[:])
	w.WriteInt(major)
	w.WriteInt(minor)
	w.WriteBytes(body.Bytes())
	w.WriteFixed(sum[:])
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("program: encode binary: %w", err)
	}
	return w.Bytes(), nil
}

// BinaryHeader identifies the build and client version that wrote a
// program binary.
type BinaryHeader struct {
	Fingerprint Fingerprint
	Major       int
	Minor       int
}

func readHeader(r *stream.Reader) (BinaryHeader, error) {
	var h BinaryHeader
	r.ReadFixed(h.Fingerprint[:])
	h.Major, h.Minor = r.ReadInt(), r.ReadInt()
	if err := r.Err(); err != nil {
		return BinaryHeader{}, fmt.Errorf("program: decode binary header: %w", err)
	}
	return h, nil
}

// readBody checks the body digest before decoding anything in it, then
// rejects decoded resources that index outside their own tables.
func readBody(r *stream.Reader, maxLocations int) (*Executable, []byte, error) {
	body := r.ReadBytes()
	var sum [sha256.Size]byte
	r.ReadFixed(sum[:])
	if err := r.Err(); err != nil {
		return nil, nil, fmt.Errorf("program: decode binary: %w", err)
	}
	if !r.Done() {
		return nil, nil, fmt.Errorf("program: decode binary: %d trailing bytes: %w", r.Remaining(), stream.ErrCorrupt)
	}
	if sha256.Sum256(body) != sum {
		return nil, nil, fmt.Errorf("program: decode binary: checksum mismatch: %w", stream.ErrCorrupt)
	}

	br := stream.NewReader(body)
	exe := readExecutable(br)
	backendBlob := br.ReadBytes()
	if err := br.Err(); err != nil {
		return nil, nil, fmt.Errorf("program: decode binary: %w", err)
	}
	if !br.Done() {
		return nil, nil, fmt.Errorf("program: decode binary: %d trailing bytes: %w", br.Remaining(), stream.ErrCorrupt)
	}
	if err := checkResources(&exe.Resources, maxLocations); err != nil {
		return nil, nil, fmt.Errorf("program: decode binary: %w", err)
	}
	return exe, backendBlob, nil
}

// decodeBinary is the inverse of encodeBinary. It fails with
// ErrBinaryMismatch when the header does not match fp and the client
// version, and with stream.ErrCorrupt for a uniform location table
// longer than maxLocations.
func decodeBinary(blob []byte, fp Fingerprint, major, minor, maxLocations int) (*Executable, []byte, error) {
	r := stream.NewReader(blob)
	h, err := readHeader(r)
	if err != nil {
		return nil, nil, err
	}
	if h.Fingerprint != fp {
		return nil, nil, fmt.Errorf("%w: fingerprint %x", ErrBinaryMismatch, h.Fingerprint[:4])
	}
	if h.Major != major || h.Minor != minor {
		return nil, nil, fmt.Errorf("%w: client version %d.%d, want %d.%d",
			ErrBinaryMismatch, h.Major, h.Minor, major, minor)
	}
	return readBody(r, maxLocations)
}

// ReadBinary decodes a binary written by SaveBinary without matching
// its header against the running build. The backend state is returned
// undecoded. A binary from a build with another format version decodes
// as garbage or fails. The uniform location table is bounded by
// MaxReadLocations.
func ReadBinary(blob []byte) (BinaryHeader, *Executable, []byte, error) {
	r := stream.NewReader(blob)
	h, err := readHeader(r)
	if err != nil {
		return BinaryHeader{}, nil, nil, err
	}
	exe, backendBlob, err := readBody(r, MaxReadLocations)
	if err != nil {
		return h, nil, nil, err
	}
	return h, exe, backendBlob, nil
}

// ===== Executable =====

//nolint:funlen // one write per field, in format order
func writeExecutable(w *stream.Writer, exe *Executable) {
	res := &exe.Resources
	w.WriteInt(res.Version)
	w.WriteUint8(uint8(res.Stages))
	w.WriteBool(res.Separable)

	for _, n := range res.ComputeLocalSize {
		w.WriteInt(n)
	}
	w.WriteInt(res.NumViews)
	w.WriteBool(res.EarlyFragmentTests)
	w.WriteUint32(uint32(res.SpecConstUsage))
	w.WriteUint8(uint8(res.Geometry.Input))
	w.WriteUint8(uint8(res.Geometry.Output))
	w.WriteInt(res.Geometry.MaxVertices)
	w.WriteInt(res.Geometry.Invocations)

	writeVariables(w, res.Attributes)
	w.WriteUint64(uint64(res.ActiveAttributes))
	w.WriteUint64(uint64(res.AttributesTypeMask))
	w.WriteInt(res.MaxActiveAttribLocation)

	writeUniforms(w, res.Uniforms)
	writeLocations(w, res.UniformLocations)
	w.WriteLen(len(res.UnusedUniforms))
	for _, u := range res.UnusedUniforms {
		w.WriteString(u.Name)
		w.WriteBool(u.IsSampler)
		w.WriteBool(u.IsImage)
		w.WriteBool(u.IsAtomicCounter)
	}

	writeBlocks(w, res.UniformBlocks)
	writeUniforms(w, res.BlockUniforms)
	writeBlocks(w, res.StorageBlocks)
	w.WriteLen(len(res.BufferVariables))
	for i := range res.BufferVariables {
		b := &res.BufferVariables[i]
		writeVariable(w, &b.Variable)
		w.WriteInt(b.BufferIndex)
		writeMemberInfo(w, b.BlockInfo)
		w.WriteUint32(b.TopLevelArraySize)
		w.WriteUint8(uint8(b.Stages))
	}
	w.WriteLen(len(res.AtomicCounterBuffers))
	for i := range res.AtomicCounterBuffers {
		a := &res.AtomicCounterBuffers[i]
		w.WriteInt(a.Binding)
		w.WriteUint32(a.DataSize)
		writeUint32s(w, a.MemberIndexes)
		w.WriteUint8(uint8(a.Stages))
	}

	w.WriteLen(len(res.TransformFeedbackVaryings))
	for _, x := range res.TransformFeedbackVaryings {
		w.WriteString(x.Name)
		w.WriteUint32(uint32(x.Type))
		w.WriteInt(x.ArrayIndex)
		w.WriteInt(x.Components)
	}
	w.WriteUint8(uint8(res.TransformFeedbackMode))
	w.WriteInts(res.TransformFeedbackStrides)

	writeVariables(w, res.Outputs)
	writeLocations(w, res.OutputLocations)
	writeLocations(w, res.SecondaryOutputLocations)
	w.WriteLen(len(res.OutputVariableTypes))
	for _, t := range res.OutputVariableTypes {
		w.WriteUint32(uint32(t))
	}
	w.WriteUint64(uint64(res.DrawBufferTypeMask))
	w.WriteUint64(uint64(res.ActiveOutputs))
	w.WriteBool(res.YUVOutput)

	writeRange(w, res.DefaultRange)
	writeRange(w, res.SamplerRange)
	w.WriteLen(len(res.SamplerBindings))
	for _, b := range res.SamplerBindings {
		w.WriteUint8(uint8(b.TextureType))
		w.WriteUint8(uint8(b.Format))
		w.WriteInts(b.BoundUnits)
		w.WriteBool(b.Unreferenced)
	}
	writeRange(w, res.ImageRange)
	w.WriteLen(len(res.ImageBindings))
	for _, b := range res.ImageBindings {
		w.WriteUint8(uint8(b.TextureType))
		w.WriteInts(b.BoundUnits)
	}
	writeRange(w, res.AtomicCounterRange)
	w.WriteInt(res.CombinedImageUniforms)

	w.WriteInt(exe.DrawIDLocation)
	w.WriteInt(exe.BaseVertexLocation)
	w.WriteInt(exe.BaseInstanceLocation)
}

//nolint:funlen // mirrors writeExecutable
func readExecutable(r *stream.Reader) *Executable {
	exe := &Executable{}
	res := &exe.Resources
	res.Version = r.ReadInt()
	res.Stages = shader.StageMask(r.ReadUint8())
	res.Separable = r.ReadBool()

	for i := range res.ComputeLocalSize {
		res.ComputeLocalSize[i] = r.ReadInt()
	}
	res.NumViews = r.ReadInt()
	res.EarlyFragmentTests = r.ReadBool()
	res.SpecConstUsage = shader.SpecConstUsage(r.ReadUint32())
	res.Geometry.Input = shader.Primitive(r.ReadUint8())
	res.Geometry.Output = shader.Primitive(r.ReadUint8())
	res.Geometry.MaxVertices = r.ReadInt()
	res.Geometry.Invocations = r.ReadInt()

	res.Attributes = readVariables(r, 0)
	res.ActiveAttributes = link.LocationMask(r.ReadUint64())
	res.AttributesTypeMask = link.ComponentTypeMask(r.ReadUint64())
	res.MaxActiveAttribLocation = r.ReadInt()

	res.Uniforms = readUniforms(r)
	res.UniformLocations = readLocations(r)
	if n := r.ReadLen(7); n > 0 {
		res.UnusedUniforms = make([]link.UnusedUniform, n)
		for i := range res.UnusedUniforms {
			u := &res.UnusedUniforms[i]
			u.Name = r.ReadString()
			u.IsSampler = r.ReadBool()
			u.IsImage = r.ReadBool()
			u.IsAtomicCounter = r.ReadBool()
		}
	}

	res.UniformBlocks = readBlocks(r)
	res.BlockUniforms = readUniforms(r)
	res.StorageBlocks = readBlocks(r)
	if n := r.ReadLen(4); n > 0 {
		res.BufferVariables = make([]link.BufferVariable, n)
		for i := range res.BufferVariables {
			b := &res.BufferVariables[i]
			b.Variable = readVariable(r, 0)
			b.BufferIndex = r.ReadInt()
			b.BlockInfo = readMemberInfo(r)
			b.TopLevelArraySize = r.ReadUint32()
			b.Stages = shader.StageMask(r.ReadUint8())
		}
	}
	if n := r.ReadLen(13); n > 0 {
		res.AtomicCounterBuffers = make([]link.AtomicCounterBuffer, n)
		for i := range res.AtomicCounterBuffers {
			a := &res.AtomicCounterBuffers[i]
			a.Binding = r.ReadInt()
			a.DataSize = r.ReadUint32()
			a.MemberIndexes = readUint32s(r)
			a.Stages = shader.StageMask(r.ReadUint8())
		}
	}

	if n := r.ReadLen(16); n > 0 {
		res.TransformFeedbackVaryings = make([]link.XfbVarying, n)
		for i := range res.TransformFeedbackVaryings {
			x := &res.TransformFeedbackVaryings[i]
			x.Name = r.ReadString()
			x.Type = shader.GLType(r.ReadUint32())
			x.ArrayIndex = r.ReadInt()
			x.Components = r.ReadInt()
		}
	}
	res.TransformFeedbackMode = link.XfbMode(r.ReadUint8())
	res.TransformFeedbackStrides = r.ReadInts()

	res.Outputs = readVariables(r, 0)
	res.OutputLocations = readLocations(r)
	res.SecondaryOutputLocations = readLocations(r)
	if n := r.ReadLen(4); n > 0 {
		res.OutputVariableTypes = make([]shader.GLType, n)
		for i := range res.OutputVariableTypes {
			res.OutputVariableTypes[i] = shader.GLType(r.ReadUint32())
		}
	}
	res.DrawBufferTypeMask = link.ComponentTypeMask(r.ReadUint64())
	res.ActiveOutputs = link.LocationMask(r.ReadUint64())
	res.YUVOutput = r.ReadBool()

	res.DefaultRange = readRange(r)
	res.SamplerRange = readRange(r)
	if n := r.ReadLen(7); n > 0 {
		res.SamplerBindings = make([]link.SamplerBinding, n)
		for i := range res.SamplerBindings {
			b := &res.SamplerBindings[i]
			b.TextureType = shader.TextureType(r.ReadUint8())
			b.Format = shader.SamplerFormat(r.ReadUint8())
			b.BoundUnits = r.ReadInts()
			b.Unreferenced = r.ReadBool()
		}
	}
	res.ImageRange = readRange(r)
	if n := r.ReadLen(5); n > 0 {
		res.ImageBindings = make([]link.ImageBinding, n)
		for i := range res.ImageBindings {
			b := &res.ImageBindings[i]
			b.TextureType = shader.TextureType(r.ReadUint8())
			b.BoundUnits = r.ReadInts()
		}
	}
	res.AtomicCounterRange = readRange(r)
	res.CombinedImageUniforms = r.ReadInt()

	exe.DrawIDLocation = r.ReadInt()
	exe.BaseVertexLocation = r.ReadInt()
	exe.BaseInstanceLocation = r.ReadInt()
	return exe
}

// ===== Variables =====

func writeVariables(w *stream.Writer, vs []shader.Variable) {
	w.WriteLen(len(vs))
	for i := range vs {
		writeVariable(w, &vs[i])
	}
}

func readVariables(r *stream.Reader, depth int) []shader.Variable {
	n := r.ReadLen(4)
	if n == 0 {
		return nil
	}
	out := make([]shader.Variable, n)
	for i := range out {
		out[i] = readVariable(r, depth)
		if r.Err() != nil {
			return nil
		}
	}
	return out
}

func writeVariable(w *stream.Writer, v *shader.Variable) {
	w.WriteUint32(uint32(v.Type))
	w.WriteUint8(uint8(v.Precision))
	w.WriteString(v.Name)
	w.WriteString(v.MappedName)
	writeUint32s(w, v.ArraySizes)
	w.WriteBool(v.StaticUse)
	w.WriteBool(v.Active)
	w.WriteInt(v.Location)
	w.WriteInt(v.Binding)
	w.WriteInt(v.Offset)
	w.WriteInt(v.Index)
	w.WriteInt(v.ParentArrayIndex)
	w.WriteUint32(uint32(v.ImageFormat))
	w.WriteBool(v.ReadOnly)
	w.WriteBool(v.WriteOnly)
	writeVariables(w, v.Fields)
	w.WriteString(v.StructName)
	w.WriteString(v.MappedStructName)
	w.WriteUint8(uint8(v.Interpolation))
	w.WriteBool(v.Invariant)
	w.WriteBool(v.IsRowMajor)
	w.WriteBool(v.YUV)
	w.WriteBool(v.TexelFetchStaticUse)
}

func readVariable(r *stream.Reader, depth int) shader.Variable {
	var v shader.Variable
	v.Type = shader.GLType(r.ReadUint32())
	v.Precision = shader.Precision(r.ReadUint8())
	v.Name = r.ReadString()
	v.MappedName = r.ReadString()
	v.ArraySizes = readUint32s(r)
	v.StaticUse = r.ReadBool()
	v.Active = r.ReadBool()
	v.Location = r.ReadInt()
	v.Binding = r.ReadInt()
	v.Offset = r.ReadInt()
	v.Index = r.ReadInt()
	v.ParentArrayIndex = r.ReadInt()
	v.ImageFormat = gputypes.TextureFormat(r.ReadUint32())
	v.ReadOnly = r.ReadBool()
	v.WriteOnly = r.ReadBool()
	if depth < maxFieldDepth {
		v.Fields = readVariables(r, depth+1)
	} else if n := r.ReadLen(4); n > 0 {
		r.Fail(fmt.Errorf("%w: struct nesting deeper than %d", stream.ErrCorrupt, maxFieldDepth))
	}
	v.StructName = r.ReadString()
	v.MappedStructName = r.ReadString()
	v.Interpolation = shader.Interpolation(r.ReadUint8())
	v.Invariant = r.ReadBool()
	v.IsRowMajor = r.ReadBool()
	v.YUV = r.ReadBool()
	v.TexelFetchStaticUse = r.ReadBool()
	return v
}

// ===== Uniforms and blocks =====

func writeUniforms(w *stream.Writer, us []link.LinkedUniform) {
	w.WriteLen(len(us))
	for i := range us {
		u := &us[i]
		writeVariable(w, &u.Variable)
		w.WriteUint8(uint8(u.Stages))
		w.WriteInt(u.BufferIndex)
		writeMemberInfo(w, u.BlockInfo)
		writeUint32s(w, u.OuterArraySizes)
		w.WriteUint32(u.OuterArrayOffset)
	}
}

func readUniforms(r *stream.Reader) []link.LinkedUniform {
	n := r.ReadLen(4)
	if n == 0 {
		return nil
	}
	out := make([]link.LinkedUniform, n)
	for i := range out {
		u := &out[i]
		u.Variable = readVariable(r, 0)
		u.Stages = shader.StageMask(r.ReadUint8())
		u.BufferIndex = r.ReadInt()
		u.BlockInfo = readMemberInfo(r)
		u.OuterArraySizes = readUint32s(r)
		u.OuterArrayOffset = r.ReadUint32()
		if r.Err() != nil {
			return nil
		}
	}
	return out
}

func writeBlocks(w *stream.Writer, bs []link.InterfaceBlock) {
	w.WriteLen(len(bs))
	for i := range bs {
		b := &bs[i]
		w.WriteString(b.Name)
		w.WriteString(b.MappedName)
		w.WriteBool(b.IsArray)
		w.WriteUint32(b.ArrayElement)
		w.WriteUint32(b.FirstFieldArraySize)
		w.WriteInt(b.Binding)
		w.WriteUint32(b.DataSize)
		w.WriteUint8(uint8(b.BlockType))
		w.WriteUint8(uint8(b.Layout))
		writeUint32s(w, b.MemberIndexes)
		w.WriteUint8(uint8(b.Stages))
	}
}

func readBlocks(r *stream.Reader) []link.InterfaceBlock {
	n := r.ReadLen(4)
	if n == 0 {
		return nil
	}
	out := make([]link.InterfaceBlock, n)
	for i := range out {
		b := &out[i]
		b.Name = r.ReadString()
		b.MappedName = r.ReadString()
		b.IsArray = r.ReadBool()
		b.ArrayElement = r.ReadUint32()
		b.FirstFieldArraySize = r.ReadUint32()
		b.Binding = r.ReadInt()
		b.DataSize = r.ReadUint32()
		b.BlockType = shader.BlockType(r.ReadUint8())
		b.Layout = shader.BlockLayout(r.ReadUint8())
		b.MemberIndexes = readUint32s(r)
		b.Stages = shader.StageMask(r.ReadUint8())
	}
	return out
}

func writeMemberInfo(w *stream.Writer, info link.BlockMemberInfo) {
	w.WriteInt(info.Offset)
	w.WriteInt(info.ArrayStride)
	w.WriteInt(info.MatrixStride)
	w.WriteBool(info.IsRowMajor)
	w.WriteInt(info.TopLevelArrayStride)
}

func readMemberInfo(r *stream.Reader) link.BlockMemberInfo {
	return link.BlockMemberInfo{
		Offset:              r.ReadInt(),
		ArrayStride:         r.ReadInt(),
		MatrixStride:        r.ReadInt(),
		IsRowMajor:          r.ReadBool(),
		TopLevelArrayStride: r.ReadInt(),
	}
}

// ===== Locations and ranges =====

// writeLocations writes (array index, index, ignored) triples.
func writeLocations(w *stream.Writer, ls []link.VariableLocation) {
	w.WriteLen(len(ls))
	for _, l := range ls {
		w.WriteUint32(l.ArrayIndex)
		w.WriteUint32(l.Index)
		w.WriteBool(l.Ignored)
	}
}

func readLocations(r *stream.Reader) []link.VariableLocation {
	n := r.ReadLen(9)
	if n == 0 {
		return nil
	}
	out := make([]link.VariableLocation, n)
	for i := range out {
		out[i] = link.VariableLocation{ArrayIndex: r.ReadUint32(), Index: r.ReadUint32(), Ignored: r.ReadBool()}
	}
	return out
}

func writeRange(w *stream.Writer, rg link.Range) {
	w.WriteUint32(rg.Low)
	w.WriteUint32(rg.High)
}

func readRange(r *stream.Reader) link.Range {
	rg := link.Range{Low: r.ReadUint32(), High: r.ReadUint32()}
	if rg.High < rg.Low {
		r.Fail(fmt.Errorf("%w: range [%d, %d)", stream.ErrCorrupt, rg.Low, rg.High))
		return link.Range{}
	}
	return rg
}

func writeUint32s(w *stream.Writer, vs []uint32) {
	w.WriteLen(len(vs))
	for _, v := range vs {
		w.WriteUint32(v)
	}
}

func readUint32s(r *stream.Reader) []uint32 {
	n := r.ReadLen(4)
	if n == 0 {
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = r.ReadUint32()
	}
	return out
}
