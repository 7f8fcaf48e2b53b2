package definition

import "sync"

// Registry maps workflow names to loaded definitions. Multiple versions
// of the same workflow can be registered; the most recently registered
// version serves new executions while in-flight executions resume on
// the version they were started with. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	versions map[string]map[string]*Workflow
	latest   map[string]*Workflow
}

// NewRegistry creates an empty workflow registry.
func NewRegistry() *Registry {
	return &Registry{
		versions: make(map[string]map[string]*Workflow),
		latest:   make(map[string]*Workflow),
	}
}

// Register adds a validated workflow. Registering the same name and
// version again replaces the previous definition.
func (r *Registry) Register(w *Workflow) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byVersion, ok := r.versions[w.Name]
	if !ok {
		byVersion = make(map[string]*Workflow)
		r.versions[w.Name] = byVersion
	}
	byVersion[w.Version] = w
	r.latest[w.Name] = w
}

// Get returns the latest registered version for the given workflow name.
func (r *Registry) Get(name string) (*Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.latest[name]
	return w, ok
}

// GetVersion returns a specific version of a workflow. An empty version
// behaves like Get.
func (r *Registry) GetVersion(name, version string) (*Workflow, bool) {
	if version == "" {
		return r.Get(name)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.versions[name][version]
	return w, ok
}

// Names returns all registered workflow names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.latest))
	for name := range r.latest {
		names = append(names, name)
	}
	return names
}
