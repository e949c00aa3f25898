package core

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("embedded defaults", func(t *testing.T) {
		t.Setenv(_envConfigDir, "")
		provider, err := NewConfig()
		require.NoError(t, err)

		assert.Equal(t, "config", provider.Name())
		assert.Equal(t, "tcp", provider.Get("jsonrpc.mode").String())
		assert.Equal(t, "scp", provider.Get("virtualPath.scheme").String())
		assert.Equal(t, "pyright", provider.Get("session.backend").String())

		var delay string
		require.NoError(t, provider.Get("reconnect.delay").Populate(&delay))
		assert.Equal(t, "20s", delay)
	})

	t.Run("environment variables seed the session", func(t *testing.T) {
		t.Setenv(_envConfigDir, "")
		t.Setenv("RLSP_HOST", "devbox")
		t.Setenv("RLSP_AUTO_INSTALL", "true")
		t.Setenv("RLSP_JSONRPC_MODE", "stdio")

		provider, err := NewConfig()
		require.NoError(t, err)

		var session struct {
			Host          string `yaml:"host"`
			Environment   string `yaml:"environment"`
			WorkspaceRoot string `yaml:"workspaceRoot"`
			Backend       string `yaml:"backend"`
			AutoInstall   bool   `yaml:"autoInstall"`
			NotifyOnStart bool   `yaml:"notifyOnStart"`
			AllowPrompt   bool   `yaml:"allowPrompt"`
		}
		require.NoError(t, provider.Get("session").Populate(&session))
		assert.Equal(t, "devbox", session.Host)
		assert.Empty(t, session.Environment)
		assert.Equal(t, "pyright", session.Backend)
		assert.True(t, session.AutoInstall)
		assert.False(t, session.NotifyOnStart)
		assert.True(t, session.AllowPrompt)
		assert.Equal(t, "stdio", provider.Get("jsonrpc.mode").String())
	})

	t.Run("config directory", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(_envConfigDir, dir)
		_, err := NewConfig()
		assert.ErrorContains(t, err, "failed to load meta configuration")
	})
}

func TestConfigFilePriority(t *testing.T) {
	dir := fstest.MapFS{
		"meta.yaml":  {Data: []byte("files:\n  - base.yaml\n  - development.yaml\n  - local.yaml\n")},
		"base.yaml":  {Data: []byte("service:\n  name: base-service\nlogging:\n  level: info\n")},
		"local.yaml": {Data: []byte("logging:\n  level: warn\n")},
	}

	provider, err := newConfigFromFS(dir)
	require.NoError(t, err)

	assert.Equal(t, "base-service", provider.Get("service.name").String())
	// Later files override earlier ones, development.yaml is missing.
	assert.Equal(t, "warn", provider.Get("logging.level").String())
}

func TestNewConfigFromFSErrors(t *testing.T) {
	malformed := fstest.MapFS{
		"meta.yaml": {Data: []byte("files:\n  - base.yaml\n")},
		"base.yaml": {Data: []byte("logging: [")},
	}
	tests := []struct {
		name    string
		dir     fstest.MapFS
		wantErr string
	}{
		{
			name:    "no meta",
			dir:     fstest.MapFS{},
			wantErr: "failed to load meta configuration",
		},
		{
			name:    "malformed meta",
			dir:     fstest.MapFS{"meta.yaml": {Data: []byte("files: [")}},
			wantErr: "failed to load meta configuration",
		},
		{
			name:    "files not a list",
			dir:     fstest.MapFS{"meta.yaml": {Data: []byte("files:\n  a: b\n")}},
			wantErr: "failed to read files list",
		},
		{
			name:    "no listed file exists",
			dir:     fstest.MapFS{"meta.yaml": {Data: []byte("files:\n  - base.yaml\n")}},
			wantErr: "no configuration files found",
		},
		{
			name:    "malformed file",
			dir:     malformed,
			wantErr: "failed to load configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newConfigFromFS(tt.dir)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
