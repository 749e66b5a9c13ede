package target

import (
	"fmt"
	"sort"
)

// Registry holds the backend and runtime plugins available to a run.
// original_source's PluginRegistry additionally discovers plugins via
// Python entry points and dotted module specs (importlib); Go has no
// runtime module-loading equivalent to `importlib.import_module`, so
// this registry is populated purely by explicit Register* calls made at
// process startup (cmd/qsol wires the builtin bundle this way) rather
// than by dynamic discovery.
type Registry struct {
	backends map[string]BackendPlugin
	runtimes map[string]RuntimePlugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: map[string]BackendPlugin{}, runtimes: map[string]RuntimePlugin{}}
}

// RegisterBundle registers every plugin a Bundle contributes.
func (r *Registry) RegisterBundle(b Bundle) error {
	for _, backend := range b.Backends {
		if err := r.RegisterBackend(backend); err != nil {
			return err
		}
	}
	for _, runtime := range b.Runtimes {
		if err := r.RegisterRuntime(runtime); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) RegisterBackend(p BackendPlugin) error {
	id := p.PluginID()
	if _, exists := r.backends[id]; exists {
		return fmt.Errorf("duplicate backend plugin id: %s", id)
	}
	r.backends[id] = p
	return nil
}

func (r *Registry) RegisterRuntime(p RuntimePlugin) error {
	id := p.PluginID()
	if _, exists := r.runtimes[id]; exists {
		return fmt.Errorf("duplicate runtime plugin id: %s", id)
	}
	r.runtimes[id] = p
	return nil
}

func (r *Registry) Backend(id string) (BackendPlugin, bool) {
	p, ok := r.backends[id]
	return p, ok
}

func (r *Registry) Runtime(id string) (RuntimePlugin, bool) {
	p, ok := r.runtimes[id]
	return p, ok
}

func (r *Registry) RequireBackend(id string) (BackendPlugin, error) {
	p, ok := r.backends[id]
	if !ok {
		return nil, fmt.Errorf("unknown backend plugin id: %s", id)
	}
	return p, nil
}

func (r *Registry) RequireRuntime(id string) (RuntimePlugin, error) {
	p, ok := r.runtimes[id]
	if !ok {
		return nil, fmt.Errorf("unknown runtime plugin id: %s", id)
	}
	return p, nil
}

func (r *Registry) ListBackends() []BackendPlugin {
	out := make([]BackendPlugin, 0, len(r.backends))
	for _, id := range sortedKeys(r.backends) {
		out = append(out, r.backends[id])
	}
	return out
}

func (r *Registry) ListRuntimes() []RuntimePlugin {
	out := make([]RuntimePlugin, 0, len(r.runtimes))
	for _, id := range sortedKeysRuntime(r.runtimes) {
		out = append(out, r.runtimes[id])
	}
	return out
}

func sortedKeys(m map[string]BackendPlugin) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysRuntime(m map[string]RuntimePlugin) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
