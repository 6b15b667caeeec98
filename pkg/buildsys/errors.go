package buildsys

import "fmt"

var _ error = &DelegatedBuildFailure{}

// DelegatedBuildFailure is returned when an external build command exits with a non-zero status.
// The command's own output has already been forwarded to the runner's stdout/stderr.
type DelegatedBuildFailure struct {
	Step     string
	Cmd      string
	Dir      string
	ExitCode int
}

func (e *DelegatedBuildFailure) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("command `%s` in %s exited with status %d", e.Cmd, e.Dir, e.ExitCode)
	}

	return fmt.Sprintf("step %s: command `%s` in %s exited with status %d", e.Step, e.Cmd, e.Dir, e.ExitCode)
}

func (e *DelegatedBuildFailure) Is(target error) bool {
	_, ok := target.(*DelegatedBuildFailure)
	return ok
}
