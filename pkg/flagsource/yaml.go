package flagsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/flaggate/pkg/feature"
)

// YAML is a read-only source backed by a seed file:
//
//	flags:
//	  - key: new_checkout
//	    enabled: true
//	    rollout_percentage: 25
//	    targeting_rules:
//	      - type: country
//	        operator: in
//	        value: [US, CA]
//	overrides:
//	  - key: new_checkout
//	    users: [user-1, user-2]
//
// Flag fields use the same names as the JSON API. The file is read on every
// LoadAll and Get.
type YAML struct {
	path string
	read func(string) ([]byte, error)
}

type seedFile struct {
	Flags     []map[string]any `yaml:"flags"`
	Overrides []struct {
		Key   string   `yaml:"key"`
		Users []string `yaml:"users"`
	} `yaml:"overrides"`
}

// Seed is a decoded seed document.
type Seed struct {
	Flags []*feature.Flag
	// Overrides maps flag keys to users with an enabling override.
	Overrides map[string][]string
}

// NewYAML reads flags from path.
func NewYAML(path string) *YAML {
	return &YAML{path: path, read: os.ReadFile}
}

func (y *YAML) LoadAll(_ context.Context) ([]*feature.Flag, error) {
	s, err := y.load()
	if err != nil {
		return nil, err
	}
	return s.Flags, nil
}

func (y *YAML) Get(_ context.Context, key string) (*feature.Flag, error) {
	s, err := y.load()
	if err != nil {
		return nil, err
	}
	for _, f := range s.Flags {
		if f.Key == key {
			return f, nil
		}
	}
	return nil, feature.ErrFlagNotFound
}

func (y *YAML) UserOverride(_ context.Context, key, userID string) (bool, error) {
	s, err := y.load()
	if err != nil {
		return false, err
	}
	return slices.Contains(s.Overrides[key], userID), nil
}

func (y *YAML) load() (*Seed, error) {
	data, err := y.read(y.path)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a seed document. Each flag entry goes through the flag's
// JSON decoding, so malformed dates and targeting rules degrade the same way
// they do for other sources. Rules may be given as a YAML list or as a string
// holding JSON.
func ParseYAML(data []byte) (*Seed, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Join(ErrInvalidSeed, err)
	}

	s := &Seed{
		Flags:     make([]*feature.Flag, 0, len(file.Flags)),
		Overrides: make(map[string][]string, len(file.Overrides)),
	}
	seen := make(map[string]struct{}, len(file.Flags))
	for i, raw := range file.Flags {
		payload, err := json.Marshal(raw)
		if err != nil {
			return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("flags[%d]: %w", i, err))
		}
		var f feature.Flag
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("flags[%d]: %w", i, err))
		}
		if f.Key == "" {
			return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("flags[%d]: missing key", i))
		}
		if _, dup := seen[f.Key]; dup {
			return nil, errors.Join(ErrDuplicateSeed, fmt.Errorf("flags[%d]: %s", i, f.Key))
		}
		seen[f.Key] = struct{}{}
		if f.Version == 0 {
			f.Version = 1
		}
		s.Flags = append(s.Flags, &f)
	}
	for _, o := range file.Overrides {
		s.Overrides[o.Key] = append(s.Overrides[o.Key], o.Users...)
	}
	return s, nil
}
