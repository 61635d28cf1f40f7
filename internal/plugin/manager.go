package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/verovision/pkg/logger"
)

// ManifestFile is the manifest name inside each plugin directory.
const ManifestFile = "plugin.json"

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrWrongKind is returned when a plugin is used for something its
	// manifest does not declare.
	ErrWrongKind = errors.New("plugin has the wrong kind")
)

// Manager indexes the plugins under one directory.
type Manager struct {
	pluginDir string
	log       logger.Logger

	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager creates a Manager for pluginDir. Nothing is read until Discover.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
		log:       logger.Named("plugin"),
	}
}

// Discover rescans the plugin directory. Every subdirectory holding a valid
// manifest becomes a plugin; invalid ones are logged and skipped. A missing
// directory means no plugins.
func (m *Manager) Discover() error {
	entries, err := os.ReadDir(m.pluginDir)
	if errors.Is(err, os.ErrNotExist) {
		m.replace(map[string]*Plugin{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan plugins: %w", err)
	}

	ctx := context.Background()
	found := make(map[string]*Plugin)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.pluginDir, entry.Name())
		p, err := load(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			m.log.Warn(ctx, "skipping plugin", logger.String("dir", entry.Name()), logger.Error(err))
			continue
		}
		if prev, dup := found[p.Manifest.Name]; dup {
			m.log.Warn(ctx, "duplicate plugin name, keeping the first",
				logger.String("plugin", p.Manifest.Name),
				logger.String("kept", prev.Path), logger.String("skipped", dir))
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.replace(found)
	m.log.Info(ctx, "plugins discovered", logger.Int("count", len(found)))
	return nil
}

func (m *Manager) replace(plugins map[string]*Plugin) {
	m.mu.Lock()
	m.plugins = plugins
	m.mu.Unlock()
}

// load reads and validates the manifest in dir.
func load(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns a plugin by name, or ErrPluginNotFound.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// GetKind returns the named plugin if it has the given kind.
func (m *Manager) GetKind(name string, kind Kind) (*Plugin, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	if p.Manifest.Kind != kind {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrWrongKind, name, p.Manifest.Kind, kind)
	}
	return p, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		plugins = append(plugins, p)
	}
	m.mu.RUnlock()

	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the scanned directory.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
