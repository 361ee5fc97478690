package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/David-Botos/column-janitor/pkg/model"
)

// Profile is a named set of cleaning options stored as YAML:
//
//	case_type: snake
//	strip_underscores: both
//	remove_special: true
//	strip_accents: true
//	truncate_limit: 63
type Profile struct {
	model.CleaningConfig `yaml:",inline"`
}

// LoadCleaningProfile reads a YAML profile and applies it on top of base.
// Keys missing from the file keep the value from base.
func LoadCleaningProfile(path string, base model.CleaningConfig) (model.CleaningConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read cleaning profile %s: %w", path, err)
	}

	profile := Profile{CleaningConfig: base}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&profile); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("failed to parse cleaning profile %s: %w", path, err)
	}

	cfg := profile.CleaningConfig.Normalized()
	if err := cfg.Validate(); err != nil {
		return base, fmt.Errorf("cleaning profile %s: %w", path, err)
	}
	return cfg, nil
}
