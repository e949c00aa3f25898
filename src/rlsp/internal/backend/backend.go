// Package backend describes how each supported language server is detected, installed and launched on a remote host.
package backend

import (
	"fmt"
	"strings"

	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/internal/errors"
)

// DefaultInterpreter is used when no environment is configured.
const DefaultInterpreter = "python3"

// Spec is the data that distinguishes one backend from another.
type Spec struct {
	Name entity.Backend
	// Package is the name passed to pip install.
	Package string
	// Binary is the executable looked up under the environment's bin directory and on PATH.
	Binary string
	// ServerArgs start the binary as a language server on stdio.
	ServerArgs []string
	// Module is run with "python -m" when no binary is found.
	Module string
	// ImportName is the importable package used to confirm the install.
	ImportName string
}

var (
	_pyright = Spec{
		Name:       entity.BackendPyright,
		Package:    "pyright",
		Binary:     "pyright-langserver",
		ServerArgs: []string{"--stdio"},
		Module:     "pyright.langserver",
		ImportName: "pyright",
	}
	_ty = Spec{
		Name:       entity.BackendTy,
		Package:    "ty",
		Binary:     "ty",
		ServerArgs: []string{"server"},
		Module:     "ty",
		ImportName: "ty",
	}
	_pylsp = Spec{
		Name:       entity.BackendPylsp,
		Package:    "python-lsp-server",
		Binary:     "pylsp",
		Module:     "pylsp",
		ImportName: "pylsp",
	}
)

// For returns the Spec of b.
func For(b entity.Backend) (Spec, error) {
	switch b {
	case entity.BackendPyright:
		return _pyright, nil
	case entity.BackendTy:
		return _ty, nil
	case entity.BackendPylsp:
		return _pylsp, nil
	default:
		return Spec{}, &errors.UnknownBackendError{Name: string(b)}
	}
}

// InterpreterPath returns the python interpreter inside environment.
func InterpreterPath(environment string) string {
	if environment == "" {
		return DefaultInterpreter
	}
	return strings.TrimSuffix(environment, "/") + "/bin/python"
}

// ExecutableProbe exits zero when python is an executable file, or a command on PATH for bare names.
func ExecutableProbe(python string) string {
	if !strings.Contains(python, "/") {
		return fmt.Sprintf("command -v %s >/dev/null 2>&1", Quote(python))
	}
	return fmt.Sprintf("test -x %s", Quote(python))
}

// VersionProbe runs python with its version flag.
// It is the fallback for hosts that misreport executable bits.
func VersionProbe(python string) string {
	return fmt.Sprintf("%s --version", Quote(python))
}

// DetectScript exits zero when the backend is available to python.
// It checks the environment's bin directory, then PATH, then the importable package.
func (s Spec) DetectScript(python string, environment string) string {
	lines := []string{
		"PY=" + Quote(python),
		`"$PY" -c 'import sys' >/dev/null 2>&1 || exit 2`,
	}
	if environment != "" {
		lines = append(lines, fmt.Sprintf("[ -x %s ] && exit 0", Quote(venvBinary(environment, s.Binary))))
	}
	lines = append(lines,
		fmt.Sprintf("command -v %s >/dev/null 2>&1 && exit 0", Quote(s.Binary)),
		fmt.Sprintf(`"$PY" -c %s >/dev/null 2>&1 && exit 0`, Quote("import "+s.ImportName)),
		"exit 1",
	)
	return strings.Join(lines, "\n")
}

// InstallScript installs the backend package with python's pip.
func (s Spec) InstallScript(python string) string {
	lines := []string{
		"PY=" + Quote(python),
		`"$PY" -c 'import sys' >/dev/null 2>&1 || { echo "interpreter $PY is not runnable" >&2; exit 2; }`,
		fmt.Sprintf(`"$PY" -m pip install --upgrade %s`, Quote(s.Package)),
	}
	return strings.Join(lines, "\n")
}

// LaunchScript starts the language server on stdio from workspaceRoot.
// The environment's binary is preferred, then PATH, then "python -m".
func (s Spec) LaunchScript(python string, environment string, workspaceRoot string) string {
	args := quoteAll(s.ServerArgs)
	var lines []string
	if workspaceRoot != "" {
		lines = append(lines, fmt.Sprintf("cd %s 2>/dev/null || true", Quote(workspaceRoot)))
	}
	if environment != "" {
		bin := Quote(venvBinary(environment, s.Binary))
		lines = append(lines, fmt.Sprintf("if [ -x %s ]; then exec %s; fi", bin, join(bin, args)))
	}
	bin := Quote(s.Binary)
	lines = append(lines,
		fmt.Sprintf("if command -v %s >/dev/null 2>&1; then exec %s; fi", bin, join(bin, args)),
		fmt.Sprintf("exec %s", join(Quote(python)+" -m "+Quote(s.Module), args)),
	)
	return strings.Join(lines, "\n")
}

// Quote single quotes v for a POSIX shell.
func Quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `'"'"'`) + "'"
}

func quoteAll(vs []string) []string {
	quoted := make([]string, 0, len(vs))
	for _, v := range vs {
		quoted = append(quoted, Quote(v))
	}
	return quoted
}

func join(cmd string, args []string) string {
	if len(args) == 0 {
		return cmd
	}
	return cmd + " " + strings.Join(args, " ")
}

func venvBinary(environment string, binary string) string {
	return strings.TrimSuffix(environment, "/") + "/bin/" + binary
}
