// Package states saves business-plan states as YAML files so work can be
// resumed later. Saved files use the same format as profiles, so they can
// be passed straight to generate.
package states

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"bizplan/internal/core"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	// Ext is the extension of saved states.
	Ext = ".yaml"

	backupMarker  = "_backup_"
	timeLayout    = "20060102_150405"
	defaultPrefix = "business_plan"
)

var (
	// ErrNotFound is returned for a name with no saved state.
	ErrNotFound = errors.New("saved state not found")
	// ErrInvalidName is returned for names that would escape the directory.
	ErrInvalidName = errors.New("invalid state name")

	slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Info describes a saved state without loading the whole profile.
type Info struct {
	Name        string    `json:"name"`
	CompanyName string    `json:"company_name"`
	Modified    time.Time `json:"modified"`
	Size        int64     `json:"size"`
	Backup      bool      `json:"backup"`
	HasResearch bool      `json:"has_research"`
}

// Store keeps states in a directory.
type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithFs replaces the filesystem (tests use afero.NewMemMapFs).
func WithFs(fs afero.Fs) Option {
	return func(s *Store) { s.fs = fs }
}

// WithClock injects the time source used for generated names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{fs: afero.NewOsFs(), dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// Save writes state under name and returns the name used. An empty name is
// derived from the company name and the current time.
func (s *Store) Save(state core.SectionState, name string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("%s_%s", slug(state.CompanyName), s.now().Format(timeLayout))
	}
	path, err := s.path(name)
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	// Write then rename so a crash never leaves a truncated state.
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write state %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("failed to write state %s: %w", name, err)
	}
	return strings.TrimSuffix(filepath.Base(path), Ext), nil
}

// Backup saves a timestamped copy of state marked as a backup.
func (s *Store) Backup(state core.SectionState) (string, error) {
	return s.Save(state, slug(state.CompanyName)+backupMarker+s.now().Format(timeLayout))
}

// Load reads a saved state and applies defaults.
func (s *Store) Load(name string) (core.SectionState, error) {
	path, err := s.path(name)
	if err != nil {
		return core.SectionState{}, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return core.SectionState{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return core.SectionState{}, fmt.Errorf("failed to read state %s: %w", name, err)
	}

	var state core.SectionState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return core.SectionState{}, fmt.Errorf("failed to parse state %s: %w", name, err)
	}
	state.ApplyDefaults()
	return state, nil
}

// List returns saved states, most recently modified first. Unreadable
// files are skipped.
func (s *Store) List() ([]Info, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), Ext)
		state, err := s.Load(name)
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:        name,
			CompanyName: state.CompanyName,
			Modified:    e.ModTime(),
			Size:        e.Size(),
			Backup:      strings.Contains(name, backupMarker),
			HasResearch: !state.PerplexityResults.IsEmpty(),
		})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Modified.Equal(infos[j].Modified) {
			return infos[i].Name > infos[j].Name
		}
		return infos[i].Modified.After(infos[j].Modified)
	})
	return infos, nil
}

// Delete removes a saved state.
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete state %s: %w", name, err)
	}
	return nil
}

func (s *Store) path(name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), Ext)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name+Ext), nil
}

func slug(companyName string) string {
	s := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(companyName), "_"), "_")
	if s == "" {
		return defaultPrefix
	}
	return s
}
