package backend

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gogpu/glesvk/link"
)

// Null is a backend that links synchronously and creates no device
// objects.
type Null struct{}

// NewProgram returns a new null program.
func (Null) NewProgram() Program {
	return &nullProgram{}
}

type nullProgram struct {
	uniforms *uniformStore
}

type nullBlob struct {
	Backend string `msgpack:"backend"`
}

const nullBackendName = "null"

func (p *nullProgram) Link(_ context.Context, _ *link.Input, res *link.Resources, _ *link.InfoLog) LinkEvent {
	p.uniforms = newUniformStore(res)
	return Done(nil)
}

func (p *nullProgram) Load(_ context.Context, res *link.Resources, blob []byte) (LinkEvent, error) {
	var b nullBlob
	if err := msgpack.Unmarshal(blob, &b); err != nil {
		return nil, fmt.Errorf("backend: decode null program: %w", err)
	}
	if b.Backend != nullBackendName {
		return nil, fmt.Errorf("backend: blob from %q backend", b.Backend)
	}
	p.uniforms = newUniformStore(res)
	return Done(nil), nil
}

func (p *nullProgram) Save() ([]byte, error) {
	return msgpack.Marshal(nullBlob{Backend: nullBackendName})
}

func (p *nullProgram) MarkUnusedUniformLocations(*link.Resources) {}

func (p *nullProgram) SetUniform(index, arrayIndex uint32, values []uint32) error {
	if p.uniforms == nil {
		return ErrNoUniform
	}
	return p.uniforms.set(index, arrayIndex, values)
}

func (p *nullProgram) Uniform(index, arrayIndex uint32, dst []uint32) error {
	if p.uniforms == nil {
		return ErrNoUniform
	}
	return p.uniforms.get(index, arrayIndex, dst)
}

func (p *nullProgram) Release() {
	p.uniforms = nil
}
