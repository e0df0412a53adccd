package provider

import (
	"fmt"
	"sort"

	"hubd/internal/config"
)

// Registry maps provider identifiers to constructed providers. Built once at
// startup from validated configuration; lookups are read-only afterwards, so
// no locking is needed on the hot path.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry constructs providers from their enumerated kinds. aiProvider
// names the entry serving `infer` mode; it receives full observations.
// devices supplies the in-process implementations referenced by local
// provider configs.
func NewRegistry(cfgs map[string]config.ProviderConfig, aiProvider string, devices map[string]Device) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(cfgs))}
	for name, cfg := range cfgs {
		switch cfg.Kind {
		case config.ProviderRemote:
			wantFrames := name == aiProvider
			r.providers[name] = NewRemote(name, cfg.Address, cfg.Timeout(), cfg.Token, wantFrames)
		case config.ProviderLocal:
			dev, ok := devices[cfg.Device]
			if !ok {
				return nil, fmt.Errorf("provider %s: no registered device %q", name, cfg.Device)
			}
			r.providers[name] = NewLocal(name, dev)
		case config.ProviderIdle:
			r.providers[name] = NewIdle(name, nil)
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", name, cfg.Kind)
		}
	}
	return r, nil
}

// NewRegistryFromProviders wraps pre-built providers, used by tests and by
// binaries that assemble providers manually.
func NewRegistryFromProviders(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered identifiers, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
