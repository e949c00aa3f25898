package rlspdaemon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/tidwall/gjson"
	sessionconfig "github.com/uber/rlsp/src/rlsp/controller/session-config"
	"github.com/uber/rlsp/src/rlsp/internal/errors"
	"github.com/uber/rlsp/src/rlsp/internal/remotepath"
	"github.com/uber/rlsp/src/rlsp/mapper"
	"github.com/uber/rlsp/src/rlsp/repository/identity"
	"go.lsp.dev/protocol"
)

// Commands handled by the daemon itself. Any other command goes to the remote server.
const (
	CommandRestart           = "rlsp.restart"
	CommandStop              = "rlsp.stop"
	CommandStatus            = "rlsp.status"
	CommandSetHost           = "rlsp.setHost"
	CommandSetEnvironment    = "rlsp.setEnvironment"
	CommandSetBackend        = "rlsp.setBackend"
	CommandSetWorkspaceRoot  = "rlsp.setWorkspaceRoot"
	CommandSetAutoInstall    = "rlsp.setAutoInstall"
	CommandListEnvironments  = "rlsp.listEnvironments"
	CommandForgetEnvironment = "rlsp.forgetEnvironment"
	CommandForgetHost        = "rlsp.forgetHost"
	CommandForgetValidation  = "rlsp.forgetValidation"
)

// _settingsSection is the key of the daemon's own block in workspace/didChangeConfiguration settings.
const _settingsSection = "rlsp"

// Commands lists every command the daemon handles.
var Commands = []string{
	CommandRestart,
	CommandStop,
	CommandStatus,
	CommandSetHost,
	CommandSetEnvironment,
	CommandSetBackend,
	CommandSetWorkspaceRoot,
	CommandSetAutoInstall,
	CommandListEnvironments,
	CommandForgetEnvironment,
	CommandForgetHost,
	CommandForgetValidation,
}

// IsCommand reports whether the daemon handles the command itself.
func IsCommand(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return false
}

// EnvironmentList is the result of rlsp.listEnvironments.
type EnvironmentList struct {
	Host         string   `json:"host"`
	Current      string   `json:"current"`
	Environments []string `json:"environments"`
}

// DidChangeConfiguration applies the rlsp section of the new settings, then forwards the notification.
func (c *controller) DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	if section := gjson.GetBytes(raw, "settings."+_settingsSection); section.IsObject() {
		opts, err := sessionconfig.ParseInitializationOptions(json.RawMessage(section.Raw))
		if err != nil {
			return err
		}
		err = c.onLoop(ctx, func() error {
			cfg, err := c.lifecycle.Config(id)
			if err != nil {
				return err
			}
			restart, err := cfg.Apply(opts)
			if err != nil || !restart {
				return err
			}
			return c.lifecycle.SettingsChanged(id)
		})
		if err != nil {
			return fmt.Errorf("applying %s settings: %w", _settingsSection, err)
		}
	}

	return c.ForwardNotification(ctx, protocol.MethodWorkspaceDidChangeConfiguration, raw)
}

// ExecuteCommand runs one of the daemon's own commands.
func (c *controller) ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}

	var result interface{}
	err = c.onLoop(ctx, func() error {
		var cmdErr error
		result, cmdErr = c.command(id, params)
		return cmdErr
	})
	if err != nil {
		return nil, err
	}
	c.logger.Infow("command executed", "session", id, "command", params.Command)
	return result, nil
}

// command runs on the event loop.
func (c *controller) command(id uuid.UUID, params *protocol.ExecuteCommandParams) (interface{}, error) {
	cfg, err := c.lifecycle.Config(id)
	if err != nil {
		return nil, err
	}

	switch params.Command {
	case CommandRestart:
		return nil, c.lifecycle.Restart(id)

	case CommandStop:
		return nil, c.lifecycle.Stop(id)

	case CommandStatus:
		return c.lifecycle.Status(id)

	case CommandSetHost:
		var host string
		if err := mapper.CommandArgument(params, 0, &host); err != nil {
			return nil, err
		}
		cfg.SetHost(host)
		return nil, c.lifecycle.SettingsChanged(id)

	case CommandSetEnvironment:
		var env string
		if err := mapper.CommandArgument(params, 0, &env); err != nil {
			return nil, err
		}
		if strings.TrimSpace(env) == "" {
			cfg.ClearEnvironment()
		} else if err := cfg.SetEnvironment(env); err != nil {
			return nil, err
		}
		return nil, c.lifecycle.SettingsChanged(id)

	case CommandSetBackend:
		var name string
		if err := mapper.CommandArgument(params, 0, &name); err != nil {
			return nil, err
		}
		if err := cfg.SetBackend(name); err != nil {
			return nil, err
		}
		return nil, c.lifecycle.SettingsChanged(id)

	case CommandSetWorkspaceRoot:
		var root string
		if err := mapper.CommandArgument(params, 0, &root); err != nil {
			return nil, err
		}
		if err := cfg.SetWorkspaceRoot(root); err != nil {
			return nil, err
		}
		return nil, c.lifecycle.SettingsChanged(id)

	case CommandSetAutoInstall:
		var v bool
		if err := mapper.CommandArgument(params, 0, &v); err != nil {
			return nil, err
		}
		cfg.SetAutoInstall(v)
		return nil, nil

	case CommandListEnvironments:
		host, err := hostArgument(params, cfg)
		if err != nil {
			return nil, err
		}
		list := EnvironmentList{Host: host, Environments: c.identity.Environments(host)}
		if host == cfg.Settings().Host {
			list.Current = cfg.Settings().Environment
		}
		return list, nil

	case CommandForgetEnvironment:
		var env string
		if err := mapper.CommandArgument(params, 0, &env); err != nil {
			return nil, err
		}
		host := cfg.Settings().Host
		if host == "" {
			return nil, errors.NoHostConfiguredError
		}
		c.identity.Forget(host, env)
		if normalized, ok := remotepath.NormalizeEnvironmentPath(env); ok && normalized == cfg.Settings().Environment {
			cfg.Cache().Reset()
		}
		return nil, nil

	case CommandForgetHost:
		host, err := hostArgument(params, cfg)
		if err != nil {
			return nil, err
		}
		c.identity.Forget(host, "")
		if host == cfg.Settings().Host {
			cfg.Cache().Reset()
		}
		return nil, nil

	case CommandForgetValidation:
		settings := cfg.Settings()
		if settings.Host == "" {
			return nil, errors.NoHostConfiguredError
		}
		c.identity.ForgetValidation(identity.ValidationKey(settings.Backend, settings.Host))
		cfg.Cache().Reset()
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown command %q", params.Command)
	}
}

// hostArgument returns the optional host argument, defaulting to the session's host.
func hostArgument(params *protocol.ExecuteCommandParams, cfg *sessionconfig.Config) (string, error) {
	host := cfg.Settings().Host
	if len(params.Arguments) > 0 {
		if err := mapper.CommandArgument(params, 0, &host); err != nil {
			return "", err
		}
	}
	if host = strings.TrimSpace(host); host == "" {
		return "", errors.NoHostConfiguredError
	}
	return host, nil
}
