package angle

import (
	"debug/macho"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kivy/angle-builder/pkg/targets"
)

// Libraries are the ninja targets built for every configuration
var Libraries = []string{"libEGL", "libGLESv2"}

// Artifact is a library produced by the build: a dylib file or a (xc)framework bundle
type Artifact struct {
	Lib  string
	Path string
}

// Name is the file name the artifact gets inside the archive
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// Binary returns the Mach-O file of the artifact
func (a Artifact) Binary() string {
	if strings.HasSuffix(a.Path, ".framework") {
		return filepath.Join(a.Path, a.Lib)
	}
	return a.Path
}

// Artifacts lists the outputs the given build leaves in its out directory
func (c *Checkout) Artifacts(t targets.Target) []Artifact {
	result := make([]Artifact, len(Libraries))
	for idx, lib := range Libraries {
		result[idx] = Artifact{
			Lib:  lib,
			Path: filepath.Join(c.OutDir(t.Name), lib+"."+t.LibExt()),
		}
	}

	return result
}

func checkExists(target, path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if eris.Is(err, os.ErrNotExist) {
		return &MissingArtifactError{Target: target, Path: path}
	}
	return eris.Wrapf(err, "Failed to check %s", path)
}

// CheckArtifacts verifies that every output of t exists
func (c *Checkout) CheckArtifacts(t targets.Target) ([]Artifact, error) {
	artifacts := c.Artifacts(t)
	for _, a := range artifacts {
		if err := checkExists(t.Name, a.Path); err != nil {
			return nil, err
		}
	}

	return artifacts, nil
}

var cpuTypes = map[targets.Arch]macho.Cpu{
	targets.X64:   macho.CpuAmd64,
	targets.ARM64: macho.CpuArm64,
}

// validateArch checks that the binary at path is a thin Mach-O file for t's architecture
func validateArch(t targets.Target, path string) error {
	want, ok := cpuTypes[t.Arch]
	if !ok {
		return eris.Errorf("target %s has no single CPU architecture", t.Name)
	}

	f, err := macho.Open(path)
	if err != nil {
		return &ArchMismatchError{Target: t.Name, Path: path, Expected: want, Err: err}
	}
	defer f.Close()

	if f.Cpu != want {
		return &ArchMismatchError{Target: t.Name, Path: path, Expected: want, Actual: f.Cpu}
	}

	return nil
}
