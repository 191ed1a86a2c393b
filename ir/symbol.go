package ir

import (
	"fmt"

	"github.com/gogpu/glesvk/shader"
)

// SymbolID uniquely identifies a symbol within one compile.
type SymbolID uint32

// SymbolType says where a symbol's name comes from.
type SymbolType uint8

const (
	// SymbolUserDefined names come from shader source and are mapped on output.
	SymbolUserDefined SymbolType = iota
	// SymbolBuiltIn names are GLSL built-ins and are emitted verbatim.
	SymbolBuiltIn
	// SymbolInternal names are introduced by the translator and emitted verbatim.
	SymbolInternal
	// SymbolEmpty symbols have no name, e.g. instanceless block declarations.
	SymbolEmpty
)

// String returns the symbol type name.
func (s SymbolType) String() string {
	switch s {
	case SymbolUserDefined:
		return "user-defined"
	case SymbolBuiltIn:
		return "built-in"
	case SymbolInternal:
		return "internal"
	default:
		return "empty"
	}
}

// Variable is a declared variable. Nodes refer to variables by pointer;
// the SymbolTable owns them.
//
// Block is set for members of an instanceless interface block: such
// variables are declared by the block and referenced by bare name.
type Variable struct {
	ID         SymbolID
	Name       string
	Type       Type
	SymbolType SymbolType
	Block      *InterfaceBlock
}

// Function is a declared function.
type Function struct {
	ID         SymbolID
	Name       string
	ReturnType Type
	Params     []*Variable
	SymbolType SymbolType
}

// SymbolTable tracks the symbols of one shader. Scopes nest; the global
// scope is at index 0 and is never popped.
type SymbolTable struct {
	stage     shader.Stage
	version   int
	scopes    []map[string]*Variable
	functions map[string]*Function
	builtins  map[string]*Variable
	nextID    SymbolID
}

// NewSymbolTable returns a table with the built-ins visible to stage at
// the given shader version.
func NewSymbolTable(stage shader.Stage, version int, res Resources) *SymbolTable {
	s := &SymbolTable{
		stage:     stage,
		version:   version,
		scopes:    []map[string]*Variable{{}},
		functions: make(map[string]*Function),
		builtins:  make(map[string]*Variable),
		nextID:    1,
	}
	for _, b := range builtinTable(res) {
		if !b.visible(stage, version) {
			continue
		}
		v := &Variable{ID: s.allocID(), Name: b.name, Type: b.typ, SymbolType: SymbolBuiltIn}
		s.builtins[b.name] = v
	}
	return s
}

// Stage returns the shader stage the table was built for.
func (s *SymbolTable) Stage() shader.Stage { return s.stage }

// Version returns the shader version the table was built for.
func (s *SymbolTable) Version() int { return s.version }

func (s *SymbolTable) allocID() SymbolID {
	id := s.nextID
	s.nextID++
	return id
}

// Push opens a nested scope.
func (s *SymbolTable) Push() {
	s.scopes = append(s.scopes, map[string]*Variable{})
}

// Pop closes the innermost scope. The global scope cannot be popped.
func (s *SymbolTable) Pop() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// AtGlobalScope reports whether no nested scope is open.
func (s *SymbolTable) AtGlobalScope() bool {
	return len(s.scopes) == 1
}

// Declare adds v to the innermost scope and assigns its ID. Declaring a
// name twice in the same scope is an error. Empty symbols are never
// entered into a scope.
func (s *SymbolTable) Declare(v *Variable) error {
	v.ID = s.allocID()
	if v.SymbolType == SymbolEmpty || v.Name == "" {
		return nil
	}
	scope := s.scopes[len(s.scopes)-1]
	if _, exists := scope[v.Name]; exists {
		return fmt.Errorf("redefinition of %q", v.Name)
	}
	scope[v.Name] = v
	return nil
}

// DeclareGlobal adds v to the global scope regardless of nesting.
func (s *SymbolTable) DeclareGlobal(v *Variable) error {
	v.ID = s.allocID()
	if v.Name == "" {
		return nil
	}
	if _, exists := s.scopes[0][v.Name]; exists {
		return fmt.Errorf("redefinition of %q", v.Name)
	}
	s.scopes[0][v.Name] = v
	return nil
}

// DeclareFunction registers f and assigns its ID.
func (s *SymbolTable) DeclareFunction(f *Function) error {
	if _, exists := s.functions[f.Name]; exists {
		return fmt.Errorf("redefinition of function %q", f.Name)
	}
	f.ID = s.allocID()
	s.functions[f.Name] = f
	return nil
}

// Lookup finds a variable by name, innermost scope first, then built-ins.
func (s *SymbolTable) Lookup(name string) *Variable {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i][name]; ok {
			return v
		}
	}
	return s.builtins[name]
}

// LookupFunction finds a user or internal function by name.
func (s *SymbolTable) LookupFunction(name string) *Function {
	return s.functions[name]
}

// FindBuiltIn returns the named built-in if it is visible to this stage
// and version.
func (s *SymbolTable) FindBuiltIn(name string) *Variable {
	return s.builtins[name]
}

// NewInternalVariable creates and declares a translator-internal global.
func (s *SymbolTable) NewInternalVariable(name string, t Type) (*Variable, error) {
	v := &Variable{Name: name, Type: t, SymbolType: SymbolInternal}
	if err := s.DeclareGlobal(v); err != nil {
		return nil, err
	}
	return v, nil
}

// NewTemporary creates an internal variable that is not entered in any
// scope. Temporaries are local to the code that created them.
func (s *SymbolTable) NewTemporary(name string, t Type) *Variable {
	return &Variable{ID: s.allocID(), Name: name, Type: t.WithQualifier(QualTemporary), SymbolType: SymbolInternal}
}

// NewInternalFunction creates and declares a translator-internal function.
func (s *SymbolTable) NewInternalFunction(name string, ret Type, params ...*Variable) (*Function, error) {
	f := &Function{Name: name, ReturnType: ret, Params: params, SymbolType: SymbolInternal}
	if err := s.DeclareFunction(f); err != nil {
		return nil, err
	}
	for _, p := range params {
		if p.ID == 0 {
			p.ID = s.allocID()
		}
	}
	return f, nil
}

// Globals returns the variables in the global scope.
func (s *SymbolTable) Globals() map[string]*Variable {
	return s.scopes[0]
}
