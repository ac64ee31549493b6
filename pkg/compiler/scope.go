package compiler

// Binding is one name visible to expressions: where it lives in the
// emitted procedure, its logical type, and which step introduced it.
type Binding struct {
	SQLName string
	Type    Type
	Origin  string
}

// Scope is a stack of frames. Foreach bodies run in a child frame:
// they see parent bindings, but bindings created inside are discarded
// when the frame pops and never leak to siblings.
type Scope struct {
	frames []map[string]Binding
}

// NewScope creates a scope with a single root frame.
func NewScope() *Scope {
	return &Scope{frames: []map[string]Binding{{}}}
}

// Push opens a child frame.
func (s *Scope) Push() {
	s.frames = append(s.frames, map[string]Binding{})
}

// Pop discards the innermost frame. The root frame is never popped.
func (s *Scope) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Bind declares a name in the innermost frame, shadowing any outer
// binding of the same name.
func (s *Scope) Bind(name string, b Binding) {
	s.frames[len(s.frames)-1][name] = b
}

// Lookup resolves a name against the innermost frame first (lexical
// nesting).
func (s *Scope) Lookup(name string) (Binding, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if b, ok := s.frames[i][name]; ok {
			return b, true
		}
	}
	return Binding{}, false
}

// Depth returns the number of open frames. Mostly useful in tests.
func (s *Scope) Depth() int {
	return len(s.frames)
}
