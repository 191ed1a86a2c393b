package program

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gogpu/glesvk/backend"
	"github.com/gogpu/glesvk/cache"
	"github.com/gogpu/glesvk/internal/logging"
	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
)

var (
	// ErrLinkFailed is returned when linking or loading a binary fails.
	// The info log has the details.
	ErrLinkFailed = errors.New("program: link failed")
	// ErrLinkPending is returned by mutators while the backend is still
	// building the program.
	ErrLinkPending = errors.New("program: link in progress")
	// ErrNotLinked is returned by operations that need a linked program.
	ErrNotLinked = errors.New("program: not linked")
	// ErrReservedName is returned when binding a name with the gl_ prefix.
	ErrReservedName = errors.New("program: reserved name")
	// ErrValidation is returned by Validate.
	ErrValidation = errors.New("program: validation failed")
)

type options struct {
	cache       cache.BlobCache
	caps        link.Caps
	major       int
	minor       int
	fingerprint Fingerprint
	webgl       bool
	limitations link.Limitations
}

// Option configures a Program.
type Option func(*options)

// WithCache enables the program binary cache.
func WithCache(c cache.BlobCache) Option {
	return func(o *options) { o.cache = c }
}

// WithCaps sets the device limits the linker checks against.
func WithCaps(caps link.Caps) Option {
	return func(o *options) { o.caps = caps }
}

// WithClientVersion sets the client API version recorded in binaries.
func WithClientVersion(major, minor int) Option {
	return func(o *options) { o.major, o.minor = major, minor }
}

// WithFingerprint sets the build fingerprint recorded in binaries.
func WithFingerprint(f Fingerprint) Option {
	return func(o *options) { o.fingerprint = f }
}

// WithWebGL enables WebGL link rules.
func WithWebGL(enabled bool) Option {
	return func(o *options) { o.webgl = enabled }
}

// WithLimitations sets implementation restrictions applied at link time.
func WithLimitations(l link.Limitations) Option {
	return func(o *options) { o.limitations = l }
}

// linking is one link or binary load waiting for the backend.
type linking struct {
	event backend.LinkEvent
	exe   *Executable
	impl  backend.Program
	// in is nil for programs loaded with LoadBinary.
	in         *link.Input
	key        cache.Key
	cacheable  bool
	fromBinary bool
}

// Program is a GLES program object: attached shaders, binding requests
// and the executable of the last successful link.
//
// Mutators and Link are serialized by an internal mutex. Executable may
// be called from any goroutine.
type Program struct {
	factory backend.Factory
	opts    options

	mu                sync.Mutex
	shaders           [shader.StageCount]*shader.Compiled
	attributeBindings link.Bindings
	uniformBindings   link.AliasedBindings
	outputLocations   link.AliasedBindings
	outputIndexes     link.AliasedBindings
	xfbVaryings       []string
	xfbMode           link.XfbMode
	separable         bool
	retrievable       bool

	state        State
	log          link.InfoLog
	pending      *linking
	impl         backend.Program
	samplerUnits [][]int

	exe atomic.Pointer[Executable]
}

// New returns an unlinked program whose backend programs come from
// factory. The defaults are DefaultCaps, client version 3.1 and
// DefaultFingerprint, with no cache.
func New(factory backend.Factory, opts ...Option) *Program {
	o := options{
		caps:        link.DefaultCaps(),
		major:       3,
		minor:       1,
		fingerprint: DefaultFingerprint(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Program{factory: factory, opts: o}
}

// ===== Mutators =====

// mutable returns ErrLinkPending while the backend is building.
func (p *Program) mutable() error {
	if p.pending != nil && p.pending.event.IsLinking() {
		return ErrLinkPending
	}
	return nil
}

// AttachShader attaches c in place of nothing. Attaching a second shader
// of the same stage is an error.
func (p *Program) AttachShader(c *shader.Compiled) error {
	if c == nil {
		return errors.New("program: nil shader")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mutable(); err != nil {
		return err
	}
	if prev := p.shaders[c.Stage]; prev != nil && prev != c {
		return fmt.Errorf("program: a %s shader is already attached", c.Stage)
	}
	p.shaders[c.Stage] = c
	return nil
}

// DetachShader detaches the shader of stage.
func (p *Program) DetachShader(stage shader.Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mutable(); err != nil {
		return err
	}
	if p.shaders[stage] == nil {
		return fmt.Errorf("program: no %s shader attached", stage)
	}
	p.shaders[stage] = nil
	return nil
}

// AttachedShader returns the shader attached for stage, or nil.
func (p *Program) AttachedShader(stage shader.Stage) *shader.Compiled {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shaders[stage]
}

func checkName(name string) error {
	if strings.HasPrefix(name, "gl_") {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

// BindAttributeLocation requests location for the named attribute at
// the next link.
func (p *Program) BindAttributeLocation(name string, location int) error {
	if err := checkName(name); err != nil {
		return err
	}
	if location < 0 || location >= p.opts.caps.MaxVertexAttributes {
		return fmt.Errorf("program: attribute location %d out of range", location)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mutable(); err != nil {
		return err
	}
	p.attributeBindings.Bind(name, location)
	return nil
}

// BindUniformLocation requests location for the named uniform at the
// next link.
func (p *Program) BindUniformLocation(name string, location int) error {
	if err := checkName(name); err != nil {
		return err
	}
	if location < 0 || location >= p.opts.caps.MaxUniformLocations {
		return fmt.Errorf("program: uniform location %d out of range", location)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mutable(); err != nil {
		return err
	}
	p.uniformBindings.Bind(name, location)
	return nil
}

// BindFragmentOutputLocation requests location for the named output.
func (p *Program) BindFragmentOutputLocation(name string, location int) error {
	if err := checkName(name); err != nil {
		return err
	}
	if location < 0 {
		return fmt.Errorf("program: output location %d out of range", location)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mutable(); err != nil {
		return err
	}
	p.outputLocations.Bind(name, location)
	return nil
}

// BindFragmentOutputIndex requests blend source index 0 or 1 for the
// named output.
func (p *Program) BindFragmentOutputIndex(name string, index int) error {
	if err := checkName(name); err != nil {
		return err
	}
	if index != 0 && index != 1 {
		return fmt.Errorf("program: output index %d, want 0 or 1", index)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mutable(); err != nil {
		return err
	}
	p.outputIndexes.Bind(name, index)
	return nil
}

// SetTransformFeedbackVaryings sets the varyings captured by the next
// link.
func (p *Program) SetTransformFeedbackVaryings(names []string, mode link.XfbMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mutable(); err != nil {
		return err
	}
	p.xfbVaryings = append([]string(nil), names...)
	p.xfbMode = mode
	return nil
}

// SetSeparable marks the program for use in a program pipeline.
// Separable programs are never cached.
func (p *Program) SetSeparable(separable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mutable(); err != nil {
		return err
	}
	p.separable = separable
	return nil
}

// SetBinaryRetrievableHint records that SaveBinary will be called.
func (p *Program) SetBinaryRetrievableHint(retrievable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retrievable = retrievable
}

// BinaryRetrievableHint returns the value set by SetBinaryRetrievableHint.
func (p *Program) BinaryRetrievableHint() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retrievable
}

// ===== Linking =====

func (p *Program) input() *link.Input {
	in := &link.Input{
		Shaders:                   p.shaders,
		Separable:                 p.separable,
		WebGL:                     p.opts.webgl,
		Caps:                      p.opts.caps,
		Limitations:               p.opts.limitations,
		AttributeBindings:         p.attributeBindings.Clone(),
		UniformLocationBindings:   p.uniformBindings.Clone(),
		FragmentOutputLocations:   p.outputLocations.Clone(),
		FragmentOutputIndexes:     p.outputIndexes.Clone(),
		TransformFeedbackVaryings: append([]string(nil), p.xfbVaryings...),
		TransformFeedbackMode:     p.xfbMode,
	}
	return in
}

// abandonPending drops the pending link. Its backend program is
// released once the work finishes.
func (p *Program) abandonPending() {
	old := p.pending
	if old == nil {
		return
	}
	p.pending = nil
	backend.Then(old.event, func(error) error {
		old.impl.Release()
		return nil
	})
	logging.Logger().Debug("glesvk: pending link abandoned")
}

// fail records a failed link. The published executable is kept.
func (p *Program) fail(err error) error {
	p.state = Failed
	logging.Logger().Info("glesvk: program link failed", "err", err)
	return err
}

// Link links the attached shaders. On success the state becomes
// LinkPending; ResolveLink finishes the link. On failure the info log
// explains why and the previous Executable stays published.
func (p *Program) Link(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.abandonPending()
	p.log.Reset()
	in := p.input()
	if in.AttachedStages() == 0 {
		p.log.Printf("No shaders are attached to the program.")
		return p.fail(ErrLinkFailed)
	}

	key := cacheKey(p.opts.fingerprint, p.opts.major, p.opts.minor, in)
	cacheable := p.opts.cache != nil && !in.Separable
	if cacheable {
		p.state = CheckingCache
		if p.loadFromCache(ctx, in, key) {
			return nil
		}
	}
	return p.linkFromSource(ctx, in, key, cacheable)
}

func (p *Program) linkFromSource(ctx context.Context, in *link.Input, key cache.Key, cacheable bool) error {
	p.state = Linking
	res, err := link.Link(in, &p.log)
	if err != nil {
		return p.fail(fmt.Errorf("%w: %w", ErrLinkFailed, err))
	}
	exe := newExecutable(res)
	impl := p.factory.NewProgram()
	ev := impl.Link(ctx, in, &exe.Resources, &p.log)
	p.pending = &linking{event: ev, exe: exe, impl: impl, in: in, key: key, cacheable: cacheable}
	p.state = LinkPending
	logging.Logger().Debug("glesvk: program linked, waiting for backend", "stages", res.Stages.String())
	return nil
}

// loadFromCache starts loading the cached binary for key. A missing or
// unusable entry is a miss.
func (p *Program) loadFromCache(ctx context.Context, in *link.Input, key cache.Key) bool {
	blob, ok := p.opts.cache.Get(key)
	if !ok {
		logging.Logger().Debug("glesvk: program cache miss", "key", key.String())
		return false
	}
	exe, implBlob, err := decodeBinary(blob, p.opts.fingerprint, p.opts.major, p.opts.minor, locationBound(&p.opts.caps))
	if err != nil {
		logging.Logger().Warn("glesvk: ignoring unusable cached program", "key", key.String(), "err", err)
		return false
	}
	impl := p.factory.NewProgram()
	ev, err := impl.Load(ctx, &exe.Resources, implBlob)
	if err != nil {
		impl.Release()
		logging.Logger().Warn("glesvk: backend rejected cached program", "key", key.String(), "err", err)
		return false
	}
	p.pending = &linking{event: ev, exe: exe, impl: impl, in: in, key: key, cacheable: true, fromBinary: true}
	p.state = LinkPending
	logging.Logger().Info("glesvk: program loaded from cache", "key", key.String())
	return true
}

// IsLinking reports whether the backend is still building the program.
func (p *Program) IsLinking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil && p.pending.event.IsLinking()
}

// ResolveLink waits for a pending link and publishes its executable.
// Cancelling ctx abandons only the wait: the link stays pending. It
// returns ErrLinkFailed (wrapping the backend error) when the link
// failed, and nil when nothing is pending and the program is linked or
// unlinked.
func (p *Program) ResolveLink(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolve(ctx)
}

func (p *Program) resolve(ctx context.Context) error {
	pl := p.pending
	if pl == nil {
		if p.state == Failed {
			return ErrLinkFailed
		}
		return nil
	}
	err := pl.event.Wait(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	p.pending = nil

	if err != nil {
		pl.impl.Release()
		if pl.fromBinary && pl.in != nil && !backend.IsDeviceLost(err) {
			logging.Logger().Warn("glesvk: cached program failed to load, relinking", "err", err)
			if err := p.linkFromSource(ctx, pl.in, pl.key, pl.cacheable); err != nil {
				return err
			}
			return p.resolve(ctx)
		}
		p.log.Printf("%v", err)
		return p.fail(fmt.Errorf("%w: %w", ErrLinkFailed, err))
	}

	exe := pl.exe
	if !pl.fromBinary {
		exe.resolveSpecialLocations()
		pl.impl.MarkUnusedUniformLocations(&exe.Resources)
		exe.ApplySamplerBindingQualifiers()
	}
	p.publish(exe, pl.impl)
	if pl.cacheable && !pl.fromBinary {
		p.store(pl.key, exe)
	}
	return nil
}

// publish makes exe current and releases the previous backend program.
func (p *Program) publish(exe *Executable, impl backend.Program) {
	old := p.impl
	p.impl = impl
	p.exe.Store(exe)
	if old != nil && old != impl {
		old.Release()
	}
	p.samplerUnits = make([][]int, len(exe.SamplerBindings))
	for i, b := range exe.SamplerBindings {
		p.samplerUnits[i] = append([]int(nil), b.BoundUnits...)
	}
	p.state = Linked
	logging.Logger().Info("glesvk: program linked",
		"stages", exe.Stages.String(), "uniforms", len(exe.Uniforms), "blocks", len(exe.UniformBlocks))
}

// store puts the binary of exe into the cache. Failures are logged.
func (p *Program) store(key cache.Key, exe *Executable) {
	blob, err := p.encode(exe)
	if err != nil {
		logging.Logger().Warn("glesvk: cannot serialize program for the cache", "err", err)
		return
	}
	if err := p.opts.cache.Put(key, blob); err != nil {
		logging.Logger().Warn("glesvk: failed to save linked program to the cache", "key", key.String(), "err", err)
	}
}

func (p *Program) encode(exe *Executable) ([]byte, error) {
	implBlob, err := p.impl.Save()
	if err != nil {
		return nil, fmt.Errorf("program: save backend state: %w", err)
	}
	return encodeBinary(p.opts.fingerprint, p.opts.major, p.opts.minor, exe, implBlob)
}

// ===== State =====

// State returns the link state without waiting for the backend.
func (p *Program) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsLinked resolves a pending link and reports whether the program is
// linked.
func (p *Program) IsLinked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.resolve(context.Background())
	return p.state == Linked
}

// InfoLog returns the messages of the last link, binary load or
// validation.
func (p *Program) InfoLog() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.String()
}

// Executable resolves a pending link and returns the executable of the
// last successful link, or nil.
func (p *Program) Executable() *Executable {
	p.mu.Lock()
	if p.pending != nil {
		_ = p.resolve(context.Background())
	}
	p.mu.Unlock()
	return p.exe.Load()
}

// Release frees the backend programs. The program must not be used
// afterwards.
func (p *Program) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandonPending()
	if p.impl != nil {
		p.impl.Release()
		p.impl = nil
	}
}

// ===== Binaries =====

// SaveBinary serializes the linked program.
func (p *Program) SaveBinary() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.resolve(context.Background())
	exe := p.exe.Load()
	if p.state != Linked || exe == nil {
		return nil, ErrNotLinked
	}
	return p.encode(exe)
}

// LoadBinary replaces the program with a binary written by SaveBinary.
// A binary from another build or client version fails with
// ErrBinaryMismatch; the previous Executable stays published.
func (p *Program) LoadBinary(ctx context.Context, blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.abandonPending()
	p.log.Reset()
	exe, implBlob, err := decodeBinary(blob, p.opts.fingerprint, p.opts.major, p.opts.minor, locationBound(&p.opts.caps))
	if err != nil {
		p.log.Printf("Program binary is not usable: %v", err)
		return p.fail(fmt.Errorf("%w: %w", ErrLinkFailed, err))
	}
	impl := p.factory.NewProgram()
	ev, err := impl.Load(ctx, &exe.Resources, implBlob)
	if err != nil {
		impl.Release()
		p.log.Printf("Program binary is not usable: %v", err)
		return p.fail(fmt.Errorf("%w: %w", ErrLinkFailed, err))
	}
	p.pending = &linking{event: ev, exe: exe, impl: impl, fromBinary: true}
	p.state = LinkPending
	return nil
}

// ===== Queries =====

// AttributeLocation returns the location of the named attribute, or -1.
func (p *Program) AttributeLocation(name string) int {
	if exe := p.Executable(); exe != nil {
		return exe.AttributeLocation(name)
	}
	return -1
}

// ActiveAttributeCount returns the number of active attributes.
func (p *Program) ActiveAttributeCount() int {
	if exe := p.Executable(); exe != nil {
		return exe.ActiveAttributeCount()
	}
	return 0
}

// ActiveUniformCount returns the number of active uniforms.
func (p *Program) ActiveUniformCount() int {
	if exe := p.Executable(); exe != nil {
		return exe.ActiveUniformCount()
	}
	return 0
}

// UniformLocation returns the location of the named uniform, or -1.
func (p *Program) UniformLocation(name string) int {
	if exe := p.Executable(); exe != nil {
		return exe.UniformLocation(name)
	}
	return -1
}

// UniformIndex returns the index of the named uniform.
func (p *Program) UniformIndex(name string) (uint32, bool) {
	if exe := p.Executable(); exe != nil {
		return exe.UniformIndex(name)
	}
	return link.Unused, false
}

// UniformBlockIndex returns the index of the named uniform block.
func (p *Program) UniformBlockIndex(name string) (uint32, bool) {
	if exe := p.Executable(); exe != nil {
		return exe.UniformBlockIndex(name)
	}
	return link.Unused, false
}

// ShaderStorageBlockIndex returns the index of the named storage block.
func (p *Program) ShaderStorageBlockIndex(name string) (uint32, bool) {
	if exe := p.Executable(); exe != nil {
		return exe.StorageBlockIndex(name)
	}
	return link.Unused, false
}

// FragDataLocation returns the location of the named output, or -1.
func (p *Program) FragDataLocation(name string) int {
	if exe := p.Executable(); exe != nil {
		return exe.FragDataLocation(name)
	}
	return -1
}

// FragDataIndex returns the blend index of the named output, or -1.
func (p *Program) FragDataIndex(name string) int {
	if exe := p.Executable(); exe != nil {
		return exe.FragDataIndex(name)
	}
	return -1
}
