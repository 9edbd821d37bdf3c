package profile

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/fsnotify.v1"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Registry manages a collection of form profiles.
type Registry interface {
	// Register adds a profile to the registry
	Register(profile *FormProfile) error

	// Unregister removes a profile from the registry
	Unregister(profileID string) error

	// Get returns a profile by its ID
	Get(profileID string) (*FormProfile, bool)

	// List returns all registered profiles ordered by ID
	List() []*FormProfile

	// Reload reloads the built-in profiles and the configured directory
	Reload() error

	// Watch starts watching the profile directory for changes
	Watch() error

	// StopWatch stops watching the profile directory
	StopWatch()

	// LoadDirectory loads all profiles from a directory
	LoadDirectory(dir string) error

	// LoadFile loads a single profile file
	LoadFile(path string) error
}

// ChangeFunc is called after the watcher applies a change. The profile is
// nil for removals.
type ChangeFunc func(event string, profile *FormProfile)

// DefaultRegistry is the default implementation of Registry.
type DefaultRegistry struct {
	mu       sync.RWMutex
	profiles map[string]*FormProfile
	builtins bool
	dir      string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange ChangeFunc
}

// RegistryOption customizes a DefaultRegistry.
type RegistryOption func(*DefaultRegistry)

// WithLogger sets the logger used to report watcher activity.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *DefaultRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty profile registry.
func NewRegistry(opts ...RegistryOption) *DefaultRegistry {
	r := &DefaultRegistry{
		profiles: make(map[string]*FormProfile),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry creates a registry holding the built-in profiles plus
// any profiles found in dir. An empty dir loads only the built-ins.
func NewDefaultRegistry(dir string, opts ...RegistryOption) (*DefaultRegistry, error) {
	r := NewRegistry(opts...)
	if err := r.LoadBuiltins(); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := r.LoadDirectory(dir); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a profile to the registry. A profile may replace an existing
// one with the same ID when the versions differ, when it is reloaded from
// the same file, or when the existing one is built in.
func (r *DefaultRegistry) Register(profile *FormProfile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}

	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	if !profile.IsCompiled() {
		if err := profile.Compile(); err != nil {
			return fmt.Errorf("compiling profile %q: %w", profile.ProfileID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.profiles[profile.ProfileID]; ok && !replaceable(existing, profile) {
		return fmt.Errorf("profile %q version %s already registered", profile.ProfileID, profile.Version)
	}

	r.profiles[profile.ProfileID] = profile
	return nil
}

func replaceable(existing, incoming *FormProfile) bool {
	switch {
	case existing.Version != incoming.Version:
		return true
	case existing.source == builtinSource:
		return true
	case existing.source != "" && existing.source == incoming.source:
		return true
	default:
		return false
	}
}

// Unregister removes a profile from the registry.
func (r *DefaultRegistry) Unregister(profileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profileID]; !ok {
		return fmt.Errorf("profile %q not found", profileID)
	}

	delete(r.profiles, profileID)
	return nil
}

// Get returns a profile by its ID.
func (r *DefaultRegistry) Get(profileID string) (*FormProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[profileID]
	return profile, ok
}

// List returns all registered profiles ordered by ID.
func (r *DefaultRegistry) List() []*FormProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]*FormProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ProfileID < profiles[j].ProfileID
	})
	return profiles
}

// Count returns the number of registered profiles.
func (r *DefaultRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Dir returns the configured profile directory.
func (r *DefaultRegistry) Dir() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dir
}

// builtinSource marks profiles loaded from the embedded set.
const builtinSource = "builtin:"

// LoadBuiltins registers the profiles shipped with the binary.
func (r *DefaultRegistry) LoadBuiltins() error {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return fmt.Errorf("reading built-in profiles: %w", err)
	}

	for _, entry := range entries {
		name := path.Join("builtin", entry.Name())
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if err := r.loadBytes(data, builtinSource); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	r.mu.Lock()
	r.builtins = true
	r.mu.Unlock()
	return nil
}

// LoadDirectory loads all YAML profile files from a directory. A missing
// directory is not an error.
func (r *DefaultRegistry) LoadDirectory(dir string) error {
	r.mu.Lock()
	r.dir = dir
	r.mu.Unlock()

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		if err := r.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", entry.Name(), err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading profiles: %s", strings.Join(loadErrors, "; "))
	}

	return nil
}

// LoadFile loads a single profile file.
func (r *DefaultRegistry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	return r.loadBytes(data, path)
}

func (r *DefaultRegistry) loadBytes(data []byte, source string) error {
	profile, err := Parse(data)
	if err != nil {
		return err
	}
	profile.source = source

	if err := r.Register(profile); err != nil {
		return fmt.Errorf("registering profile: %w", err)
	}
	return nil
}

// Parse decodes a profile from YAML without registering it.
func Parse(data []byte) (*FormProfile, error) {
	var profile FormProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &profile, nil
}

// Reload clears the registry and loads the built-in profiles (if they were
// loaded before) and the configured directory again.
func (r *DefaultRegistry) Reload() error {
	r.mu.Lock()
	dir, builtins := r.dir, r.builtins
	r.profiles = make(map[string]*FormProfile)
	r.mu.Unlock()

	if dir == "" && !builtins {
		return fmt.Errorf("no directory configured for reload")
	}

	if builtins {
		if err := r.LoadBuiltins(); err != nil {
			return err
		}
	}
	if dir != "" {
		return r.LoadDirectory(dir)
	}
	return nil
}

// SetOnChange sets a callback function that is called when profiles change.
func (r *DefaultRegistry) SetOnChange(fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Watch starts watching the profile directory for changes.
func (r *DefaultRegistry) Watch() error {
	dir := r.Dir()
	if dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})
	go r.watchLoop(watcher, r.stopChan)

	r.logger.Info("watching profile directory", "dir", dir)
	return nil
}

// watchLoop handles file system events.
func (r *DefaultRegistry) watchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if !isYAML(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				r.handleFileChange(event.Name, "create")

			case event.Op&fsnotify.Write == fsnotify.Write:
				r.handleFileChange(event.Name, "modify")

			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				r.handleFileRemove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("profile watcher error", "error", err)
		}
	}
}

// handleFileChange handles file creation or modification.
func (r *DefaultRegistry) handleFileChange(path string, eventType string) {
	if err := r.LoadFile(path); err != nil {
		r.logger.Warn("profile not reloaded", "file", path, "event", eventType, "error", err)
		return
	}

	profile, ok := r.profileBySource(path)
	if !ok {
		return
	}
	r.logger.Info("profile loaded", "file", path, "event", eventType, "profile", profile.ProfileID)
	r.notify(eventType, profile)
}

// handleFileRemove drops the profiles that came from path.
func (r *DefaultRegistry) handleFileRemove(path string) {
	r.mu.Lock()
	var removed []string
	for id, p := range r.profiles {
		if p.source == path {
			delete(r.profiles, id)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	r.logger.Info("profile removed", "file", path, "profiles", removed)
	r.notify("remove", nil)
}

func (r *DefaultRegistry) notify(event string, profile *FormProfile) {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()

	if fn != nil {
		fn(event, profile)
	}
}

// profileBySource finds the profile loaded from the given file.
func (r *DefaultRegistry) profileBySource(path string) (*FormProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.source == path {
			return p, true
		}
	}
	return nil, false
}

// StopWatch stops watching the profile directory.
func (r *DefaultRegistry) StopWatch() {
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

// Clear removes all profiles from the registry.
func (r *DefaultRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = make(map[string]*FormProfile)
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
