package config

import (
	"context"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager owns the active configuration. Replacement is atomic: a rejected
// document leaves the previous configuration in effect, and sessions that
// already captured a snapshot are never affected by later swaps.
type Manager struct {
	mu      sync.RWMutex
	config  *Config
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

func NewManager(initial *Config) *Manager {
	if initial == nil {
		initial = DefaultConfig()
	}
	return &Manager{config: initial}
}

// Snapshot returns an independent copy of the active configuration.
func (m *Manager) Snapshot() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Clone()
}

// UpdateJSON parses, validates, and atomically installs a replacement
// document. On any error the previous configuration remains in effect.
func (m *Manager) UpdateJSON(doc []byte) error {
	cfg, err := ParseJSON(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	log.Printf("config manager: configuration replaced (provider=%s)", cfg.Provider)
	return nil
}

// Set installs an already-validated configuration.
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// StartWatching reloads the daemon's config file on change.
func (m *Manager) StartWatching(ctx context.Context) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return m.WatchFile(ctx, configPath)
}

// WatchFile reloads the given config file whenever it is written.
func (m *Manager) WatchFile(ctx context.Context, configPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	m.watcher = watcher

	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return err
	}

	m.wg.Add(1)
	go m.watchLoop(ctx, configPath)

	log.Printf("config manager: watching %s for changes", configPath)
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context, configPath string) {
	defer m.wg.Done()
	configFileName := filepath.Base(configPath)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != configFileName {
				continue
			}

			// Only react to Write and Create events (ignore Chmod, Remove, etc.)
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				log.Printf("config manager: file change detected: %s, reloading", event.Name)
				m.reload(configPath)
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher error: %v", err)

		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reload(configPath string) {
	newConfig, err := LoadFile(configPath)
	if err != nil {
		log.Printf("config manager: reload rejected, keeping previous configuration: %v", err)
		return
	}

	m.Set(newConfig)
	log.Printf("config manager: configuration successfully reloaded")
}
