package angle

import (
	"debug/macho"
	"fmt"
)

var (
	_ error = &MissingArtifactError{}
	_ error = &ArchMismatchError{}
)

// MissingArtifactError means that an output the build should have produced isn't there
type MissingArtifactError struct {
	Target string
	Path   string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing artifact for %s: expected %s", e.Target, e.Path)
}

func (e *MissingArtifactError) Is(target error) bool {
	_, ok := target.(*MissingArtifactError)
	return ok
}

// ArchMismatchError is returned when an input of a universal merge isn't a thin Mach-O binary
// for the architecture of the target it belongs to
type ArchMismatchError struct {
	Target   string
	Path     string
	Expected macho.Cpu
	// Actual is zero if the file couldn't be parsed
	Actual macho.Cpu
	Err    error
}

func (e *ArchMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s is not a thin %s Mach-O binary: %v", e.Target, e.Path, e.Expected, e.Err)
	}
	return fmt.Sprintf("%s: %s is built for %s, expected %s", e.Target, e.Path, e.Actual, e.Expected)
}

func (e *ArchMismatchError) Unwrap() error {
	return e.Err
}

func (e *ArchMismatchError) Is(target error) bool {
	_, ok := target.(*ArchMismatchError)
	return ok
}
