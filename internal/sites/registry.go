package sites

import (
	"go.uber.org/zap"

	"github.com/skillmap/harvester/internal/config"
	"github.com/skillmap/harvester/internal/harvest"
)

// Registry maps site names to adapters.
type Registry struct {
	adapters map[string]harvest.SourceAdapter
}

// NewRegistry builds adapters for the configured sites on top of the
// built-in defaults. Config entries override defaults per field group, so
// a selector change on a board does not need a new build.
func NewRegistry(overrides map[string]config.SiteConfig, logger *zap.Logger) *Registry {
	merged := Defaults()
	for name, cfg := range overrides {
		merged[name] = cfg
	}

	adapters := make(map[string]harvest.SourceAdapter, len(merged))
	for name, cfg := range merged {
		adapters[name] = NewAdapter(name, cfg, logger)
	}
	return &Registry{adapters: adapters}
}

// Lookup returns the adapter for a site name.
func (r *Registry) Lookup(site string) (harvest.SourceAdapter, bool) {
	adapter, ok := r.adapters[site]
	return adapter, ok
}

// Names lists the registered site names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// SalaryScales extracts the per-site salary unit conventions.
func (r *Registry) SalaryScales(overrides map[string]config.SiteConfig) map[string]int64 {
	merged := Defaults()
	for name, cfg := range overrides {
		merged[name] = cfg
	}
	scales := make(map[string]int64, len(merged))
	for name, cfg := range merged {
		if cfg.SalaryScale > 0 {
			scales[name] = cfg.SalaryScale
		}
	}
	return scales
}
