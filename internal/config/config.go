package config

import (
	"encoding/json"
	"fmt"
)

// ParseJSON decodes a configuration document. A syntax error and a
// semantically incomplete document are both rejected; the caller keeps
// whatever configuration was previously in effect.
func ParseJSON(doc []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("parse config document: %w", err)
	}

	cfg.applyRecordingDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MarshalJSON-ready form of the active document, used by the daemon status
// output. Credentials are not redacted; this never crosses a trust boundary.
func (c *Config) EncodeJSON() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
