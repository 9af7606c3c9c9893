package steps

// RegisterDefaults registers all built-in handlers.
func RegisterDefaults(reg *Registry) {
	RegisterSPARQLHandlers(reg)
	RegisterGraphHandlers(reg)
	RegisterAssertHandlers(reg)
	RegisterObjectstoreHandlers(reg)
	RegisterMiscHandlers(reg)
}

// DefaultRegistry returns a registry with all built-in handlers.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	RegisterDefaults(reg)
	return reg
}
