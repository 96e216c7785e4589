package fbgraph

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
)

// maxConfigSize bounds the size of a configuration file.
const maxConfigSize = 1 << 20

// LoadConfig reads a YAML configuration file. ${VAR} and $VAR references are
// expanded from the environment before parsing, so secrets can stay out of
// the file:
//
//	access_token: ${FB_ACCESS_TOKEN}
//	app_secret: ${FB_APP_SECRET}
//	use_appsecret_proof: true
//	api_version: v21.0
//	rate_limit:
//	  requests_per_minute: 120
//	  usage_backoff: 2m
//
// Unknown keys are rejected. Defaults are applied by NewClient, not here.
func LoadConfig(path string) (*Config, error) {
	b, err := readConfigFile(path)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "path", Message: err.Error()}
	}
	return ParseConfig(b)
}

// ParseConfig parses YAML configuration text; see LoadConfig.
func ParseConfig(b []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(b))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var config Config
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, &pkgerrs.ConfigError{Message: fmt.Sprintf("invalid configuration: %v", err)}
	}
	return &config, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxConfigSize {
		return nil, fmt.Errorf("configuration file %s exceeds %d bytes", path, maxConfigSize)
	}
	return b, nil
}
