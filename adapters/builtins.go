package adapters

type BuiltInContentType = string

const (
	MemoryContentType BuiltInContentType = "memory"
)

// RegisterBuiltins registers all built-in content backends on r by default
// or only the specific ones if keys are provided
func RegisterBuiltins(r *Registry, types ...BuiltInContentType) {
	if len(types) == 0 {
		// Include all built-in backends here when adding implementations
		types = append(types, MemoryContentType)
	}

	for _, key := range types {
		switch key {
		case MemoryContentType:
			RegisterMemory(r)
		}
	}
}

// NewBuiltinRegistry returns a registry holding every built-in backend.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}
