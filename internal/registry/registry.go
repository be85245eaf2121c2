// Package registry holds the static catalog of source descriptors.
package registry

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eventradar/radar/internal/models"
)

type file struct {
	Defaults struct {
		Active      *bool  `yaml:"active"`
		DefaultCity string `yaml:"default_city"`
		DefaultTime string `yaml:"default_time"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"defaults"`
	Sources []sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	models.SourceDescriptor `yaml:",inline"`
	Active                  *bool `yaml:"active"`
}

// Registry is a read-only, name-indexed set of source descriptors.
type Registry struct {
	byName map[string]models.SourceDescriptor
	order  []string
}

// Load reads a YAML registry file from path.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source registry: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML registry document. Entries inherit the top-level
// defaults and are active unless stated otherwise.
func Parse(raw []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse source registry: %w", err)
	}

	descs := make([]models.SourceDescriptor, 0, len(f.Sources))
	for _, entry := range f.Sources {
		d := entry.SourceDescriptor
		d.Active = true
		if f.Defaults.Active != nil {
			d.Active = *f.Defaults.Active
		}
		if entry.Active != nil {
			d.Active = *entry.Active
		}
		if d.DefaultCity == "" {
			d.DefaultCity = f.Defaults.DefaultCity
		}
		if d.DefaultTime == "" {
			d.DefaultTime = f.Defaults.DefaultTime
		}
		if d.Timezone == "" {
			d.Timezone = f.Defaults.Timezone
		}
		descs = append(descs, d)
	}

	return New(descs)
}

// New builds a registry from descriptors, rejecting invalid or duplicate entries.
func New(descs []models.SourceDescriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]models.SourceDescriptor, len(descs))}
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate source name %q", d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (models.SourceDescriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns every descriptor in file order.
func (r *Registry) All() []models.SourceDescriptor {
	out := make([]models.SourceDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Active returns the enabled descriptors in file order.
func (r *Registry) Active() []models.SourceDescriptor {
	var out []models.SourceDescriptor
	for _, name := range r.order {
		if d := r.byName[name]; d.Active {
			out = append(out, d)
		}
	}
	return out
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Len reports the number of registered sources.
func (r *Registry) Len() int { return len(r.order) }

// Zones maps source names to their configured time zone. Sources without a
// zone are omitted.
func (r *Registry) Zones() map[string]*time.Location {
	zones := make(map[string]*time.Location)
	for _, name := range r.order {
		tz := r.byName[name].Timezone
		if tz == "" {
			continue
		}
		// Validated on load.
		if loc, err := time.LoadLocation(tz); err == nil {
			zones[name] = loc
		}
	}
	return zones
}
