package buildsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

// DefaultExecHandler starts real processes. Running children get an interrupt when the
// context is cancelled and are killed two seconds later.
var DefaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

// Runner executes build steps one command at a time
type Runner struct {
	// Env overrides variables of the host environment for every command.
	Env map[string]string
	// Exec starts the commands. Defaults to DefaultExecHandler.
	Exec   interp.ExecHandlerFunc
	Stdout io.Writer
	Stderr io.Writer
	// DryRun only logs the commands.
	DryRun bool

	pathDirs []string
}

// NewRunner returns a runner which forwards the output of all commands to this process' stdout/stderr
func NewRunner() *Runner {
	return &Runner{
		Env:    make(map[string]string),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// PrependPath puts dir in front of PATH for all following commands. Adding the same dir twice is a no-op.
func (r *Runner) PrependPath(dir string) {
	for _, item := range r.pathDirs {
		if item == dir {
			return
		}
	}

	r.pathDirs = append([]string{dir}, r.pathDirs...)
}

// PathDirs returns the directories added with PrependPath, first one first
func (r *Runner) PathDirs() []string {
	return append([]string(nil), r.pathDirs...)
}

func envKey(name string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(name)
	}
	return name
}

func (r *Runner) environ(cmd Cmd) []string {
	overrides := make(map[string]string, len(r.Env)+len(cmd.Env)+1)
	for k, v := range r.Env {
		overrides[envKey(k)] = v
	}
	for k, v := range cmd.Env {
		overrides[envKey(k)] = v
	}

	if len(r.pathDirs) > 0 {
		path, ok := overrides["PATH"]
		if !ok {
			path = os.Getenv("PATH")
		}

		parts := append([]string{}, r.pathDirs...)
		if path != "" {
			parts = append(parts, path)
		}
		overrides[envKey("PATH")] = strings.Join(parts, string(os.PathListSeparator))
	}

	osEnv := os.Environ()
	env := make([]string, 0, len(osEnv)+len(overrides))
	for _, item := range osEnv {
		parts := strings.SplitN(item, "=", 2)

		// skip overriden entries to avoid conflicts
		if _, present := overrides[envKey(parts[0])]; !present {
			env = append(env, item)
		}
	}

	for k, v := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	return env
}

func allExist(paths []string) (bool, error) {
	if len(paths) == 0 {
		return false, nil
	}

	for _, item := range paths {
		_, err := os.Stat(item)
		if err != nil {
			if eris.Is(err, os.ErrNotExist) {
				return false, nil
			}
			return false, eris.Wrapf(err, "Failed to check %s", item)
		}
	}

	return true, nil
}

// RunStep executes all commands of the given step in order and stops at the first failure
func (r *Runner) RunStep(ctx context.Context, step Step) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	skip, err := allExist(step.SkipIfExists)
	if err != nil {
		return err
	}

	if skip {
		Log(ctx).Info().
			Str("step", step.Name).
			Msg("skipped because all skip files exist")
		return nil
	}

	if step.Desc != "" {
		Log(ctx).Info().Str("step", step.Name).Msg(step.Desc)
	}

	for _, cmd := range step.Cmds {
		if cmd.Dir == "" {
			cmd.Dir = step.Dir
		}

		err = r.run(ctx, step.Name, cmd)
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}

// Run executes the passed commands as an anonymous step
func (r *Runner) Run(ctx context.Context, cmds ...Cmd) error {
	return r.RunStep(ctx, Step{Cmds: cmds})
}

func (r *Runner) run(ctx context.Context, stepName string, cmd Cmd) error {
	if len(cmd.Args) == 0 {
		return eris.Errorf("empty command in step %s", stepName)
	}

	printed := cmd.String()
	Log(ctx).Info().
		Str("step", stepName).
		Bool("command", true).
		Msg(printed)

	if r.DryRun {
		return nil
	}

	dir := cmd.Dir
	if dir != "" {
		var err error
		dir, err = filepath.Abs(dir)
		if err != nil {
			return eris.Wrapf(err, "Failed to resolve %s", cmd.Dir)
		}
	}

	execHandler := r.Exec
	if execHandler == nil {
		execHandler = DefaultExecHandler
	}

	stdout, stderr := r.Stdout, r.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(r.environ(cmd)...)),
		interp.ExecHandler(execHandler),
		interp.StdIO(nil, stdout, stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	err = runner.Run(ctx, cmd.stmt())
	if err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return &DelegatedBuildFailure{
				Step:     stepName,
				Cmd:      printed,
				Dir:      runner.Dir,
				ExitCode: int(status),
			}
		}

		return eris.Wrapf(err, "Failed to run %s", printed)
	}

	return nil
}
