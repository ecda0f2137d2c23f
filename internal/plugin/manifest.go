package plugin

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Manifest is an optional on-disk description of plugin dependency
// ordering, supplementing the original's compile-time `.depends`
// struct-literal arrays (plugins/dbus.c, plugins/pidfile.c) with data
// an operator can edit without a rebuild.
type Manifest struct {
	Plugins []ManifestEntry `yaml:"plugins"`
}

// ManifestEntry overrides one built-in plugin's dependency list, and
// can disable it entirely.
type ManifestEntry struct {
	Name     string   `yaml:"name"`
	Depends  []string `yaml:"depends"`
	Disabled bool     `yaml:"disabled"`
}

// LoadManifest reads and parses a plugin manifest from path.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return m, err
	}
	return m, nil
}

// Apply overrides each named plugin's Depends (and drops disabled
// entries) before registration. Names in the manifest that don't
// match a built-in are ignored — the manifest only tunes the
// supervisor's own compiled-in modules, it can't load arbitrary code.
func (m Manifest) Apply(builtins []*Plugin) []*Plugin {
	overrides := make(map[string]ManifestEntry, len(m.Plugins))
	for _, e := range m.Plugins {
		overrides[e.Name] = e
	}

	out := make([]*Plugin, 0, len(builtins))
	for _, p := range builtins {
		e, ok := overrides[p.Name]
		if ok && e.Disabled {
			continue
		}
		if ok && e.Depends != nil {
			p.Depends = e.Depends
		}
		out = append(out, p)
	}
	return out
}
