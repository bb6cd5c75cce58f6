package flagwars

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/archslayer/flagbase111-sub000/inter"
)

// LoadRules reads a rules file. The format follows the extension: .yaml/.yml,
// .toml or .json. Fields missing from the file keep the value of base, so a
// file only needs to list what it changes. Unknown fields are rejected.
func LoadRules(path string, base Rules) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, err
	}
	r, err := DecodeRules(data, filepath.Ext(path), base)
	if err != nil {
		return Rules{}, fmt.Errorf("%s: %w", path, err)
	}
	if r.Name == base.Name {
		r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return r, nil
}

// DecodeRules decodes rules encoded in the format named by ext over a copy of
// base, and validates the result.
func DecodeRules(data []byte, ext string, base Rules) (Rules, error) {
	r := base.Copy()
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&r)
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&r)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&r)
	default:
		return Rules{}, fmt.Errorf("%w: unsupported rules format %q", inter.ErrInvalidRules, ext)
	}
	if err != nil {
		return Rules{}, fmt.Errorf("%w: %v", inter.ErrInvalidRules, err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}
