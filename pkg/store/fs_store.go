package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FSStore implements Store using the local file system.
// NOTE: writes are individually atomic (temp file + rename) but there is no
// consistency across the settings document and the preferences file.
// Layout:
//
//	<claudeDir>/settings.json
//	<dataDir>/preferences.yaml
type FSStore struct {
	settingsPath string
	prefsPath    string
	mu           sync.RWMutex
	log          *slog.Logger
}

func NewFSStore(claudeDir, dataDir string, log *slog.Logger) *FSStore {
	if log == nil {
		log = slog.Default()
	}
	return &FSStore{
		settingsPath: filepath.Join(claudeDir, "settings.json"),
		prefsPath:    filepath.Join(dataDir, "preferences.yaml"),
		log:          log,
	}
}

// SettingsPath returns the location of the Claude settings document.
func (s *FSStore) SettingsPath() string {
	return s.settingsPath
}

// --- Preferences ---

func (s *FSStore) GetSetting(ctx context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, err := s.readPrefsLocked()
	if err != nil {
		s.log.Warn("failed to read preferences", "path", s.prefsPath, "error", err)
		return "", false
	}
	v, ok := prefs[key]
	return v, ok
}

func (s *FSStore) SaveSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.readPrefsLocked()
	if err != nil {
		// A corrupt file is replaced rather than blocking every later write.
		s.log.Warn("discarding unreadable preferences", "path", s.prefsPath, "error", err)
		prefs = make(map[string]string)
	}
	prefs[key] = value

	data, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := s.atomicWrite(s.prefsPath, data); err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) readPrefsLocked() (map[string]string, error) {
	data, err := os.ReadFile(s.prefsPath)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}

	prefs := make(map[string]string)
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("parse preferences: %w", err)
	}
	return prefs, nil
}

// --- Settings document ---

func (s *FSStore) GetClaudeSettings(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.settingsPath)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return data, nil
}

func (s *FSStore) SaveClaudeSettings(ctx context.Context, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.atomicWrite(s.settingsPath, doc); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (s *FSStore) atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	tmpPath := path + ".tmp"

	// 1. Write to temp
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}

	// 2. Sync to disk requires opening the file and calling Sync
	f, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	f.Close()

	// 3. Rename
	return os.Rename(tmpPath, path)
}
