package memory

// Fork is a Memory overlay. Reads check the fork's own values first and fall
// back to the base; writes and deletes only touch the fork. A fork is never
// merged back into its base.
type Fork struct {
	base  Memory
	local *State
}

// NewFork creates an empty overlay on top of base.
func NewFork(base Memory) *Fork {
	return &Fork{base: base, local: NewState()}
}

// Base returns the memory the fork reads through to.
func (f *Fork) Base() Memory {
	return f.base
}

// Get returns the local value at path, or the base value when the fork has none.
func (f *Fork) Get(path string) (any, bool) {
	if v, ok := f.local.Get(path); ok {
		return v, true
	}
	if f.base == nil {
		return nil, false
	}
	return f.base.Get(path)
}

// Has reports whether path is visible through the fork.
func (f *Fork) Has(path string) bool {
	_, ok := f.Get(path)
	return ok
}

// Set writes value to the overlay.
func (f *Fork) Set(path string, value any) error {
	return f.local.Set(path, value)
}

// Delete removes the overlay value at path. A base value with the same path
// becomes visible again.
func (f *Fork) Delete(path string) error {
	return f.local.Delete(path)
}
