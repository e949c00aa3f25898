package core

import (
	"bytes"
	"fmt"
	iofs "io/fs"
	"os"

	rlspconfig "github.com/uber/rlsp/src/rlsp/config"
	uber_config "go.uber.org/config"
	"go.uber.org/fx"
)

const (
	_envConfigDir = "RLSP_CONFIG_DIR"
	_metaFile     = "meta.yaml"
)

var ConfigModule = fx.Options(
	fx.Provide(NewConfig),
)

type Config struct {
	provider uber_config.Provider
}

func (c Config) Get(path string) uber_config.Value {
	return c.provider.Get(path)
}

func (c Config) Name() string {
	return "config"
}

// NewConfig loads the files listed in meta.yaml from RLSP_CONFIG_DIR, or from the embedded defaults.
func NewConfig() (uber_config.Provider, error) {
	return newConfigFromFS(configFS())
}

func newConfigFromFS(dir iofs.FS) (uber_config.Provider, error) {
	// First, load meta.yaml to get the list of configuration files
	meta, err := iofs.ReadFile(dir, _metaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta configuration: %w", err)
	}
	metaProvider, err := uber_config.NewYAML(
		uber_config.Source(bytes.NewReader(meta)),
		uber_config.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta configuration: %w", err)
	}

	var configFiles []string
	if err := metaProvider.Get("files").Populate(&configFiles); err != nil {
		return nil, fmt.Errorf("failed to read files list from %s: %w", _metaFile, err)
	}

	// Later files override earlier ones, missing files are skipped.
	var options []uber_config.YAMLOption
	for _, file := range configFiles {
		contents, err := iofs.ReadFile(dir, file)
		if err != nil {
			continue
		}
		options = append(options, uber_config.Source(bytes.NewReader(contents)))
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("no configuration files found, listed %v", configFiles)
	}
	options = append(options, uber_config.Expand(os.LookupEnv))

	provider, err := uber_config.NewYAML(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return Config{provider: provider}, nil
}

// configFS returns the configuration directory
func configFS() iofs.FS {
	if configDir := os.Getenv(_envConfigDir); configDir != "" {
		return os.DirFS(configDir)
	}
	return rlspconfig.Files
}
