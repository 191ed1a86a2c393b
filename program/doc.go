// Package program links translated shaders into an executable program.
//
// A Program collects attached shaders and binding requests, runs the
// linker, hands the result to a backend and publishes the outcome as an
// immutable Executable:
//
//	p := program.New(backend.Null{}, program.WithCache(cache.NewMemory(64<<20)))
//	_ = p.AttachShader(vs)
//	_ = p.AttachShader(fs)
//	if err := p.Link(ctx); err != nil {
//	    log.Print(p.InfoLog())
//	}
//	if err := p.ResolveLink(ctx); err != nil {
//	    ...
//	}
//	exe := p.Executable()
//
// Link is split in two because the backend may build the program
// asynchronously. Link returns once the front-end work is done; the
// state is then LinkPending until ResolveLink (or any accessor) waits
// for the backend. A failed link or binary load leaves the previously
// published Executable in place.
//
// Linked programs are serialized with SaveBinary. When a cache is
// configured, Link looks the program up by a SHA-256 key over its
// shaders and bindings and loads the cached binary instead of linking.
package program
