// Package settings reads GuardConfig from a YAML file and reports when the file changes.
package settings

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/ports"
)

// FileStore loads GuardConfig from a YAML document, either at the top level or under a
// "guard:" key.
type FileStore struct {
	path string
}

var _ ports.GuardConfigStore = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file the store reads.
func (f *FileStore) Path() string { return f.path }

// LoadGuardConfig reads and decodes the file on every call; caching belongs to the guard.
func (f *FileStore) LoadGuardConfig(_ context.Context) (domain.GuardConfig, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return domain.GuardConfig{}, fmt.Errorf("read guard settings: %w", err)
	}
	return ParseGuardConfig(raw)
}

// ParseGuardConfig decodes a GuardConfig document. Unknown keys are rejected so a typo in a
// limit name does not silently lift the limit.
func ParseGuardConfig(raw []byte) (domain.GuardConfig, error) {
	var wrapped struct {
		Guard *domain.GuardConfig `yaml:"guard"`
	}
	if err := yaml.Unmarshal(raw, &wrapped); err == nil && wrapped.Guard != nil {
		return clean(*wrapped.Guard), nil
	}

	var cfg domain.GuardConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return domain.GuardConfig{}, fmt.Errorf("decode guard settings: %w", err)
	}
	return clean(cfg), nil
}

func clean(cfg domain.GuardConfig) domain.GuardConfig {
	regions := cfg.EnabledRegions[:0:0]
	for _, r := range cfg.EnabledRegions {
		if r = strings.TrimSpace(r); r != "" {
			regions = append(regions, r)
		}
	}
	cfg.EnabledRegions = regions
	return cfg
}
