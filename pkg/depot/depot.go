// Package depot provides Chromium's depot_tools (gclient, gn, autoninja) to the build.
package depot

import (
	"context"

	"github.com/kivy/angle-builder/pkg/buildsys"
	"github.com/kivy/angle-builder/pkg/storage"
)

// RepoURL is where depot_tools is cloned from
const RepoURL = "https://chromium.googlesource.com/chromium/tools/depot_tools.git"

// Tools is the depot_tools checkout inside the storage folder
type Tools struct {
	Path string
}

// New returns the depot_tools location inside the given storage folder
func New(folder *storage.Folder) *Tools {
	return &Tools{Path: folder.Join("depot_tools")}
}

// Ensure clones depot_tools if it's missing and puts it in front of the runner's PATH
func (d *Tools) Ensure(ctx context.Context, runner *buildsys.Runner) error {
	err := runner.RunStep(ctx, buildsys.Step{
		Name:         "depot_tools",
		Desc:         "Ensuring depot_tools is available and in PATH",
		SkipIfExists: []string{d.Path},
		Cmds: []buildsys.Cmd{
			buildsys.Command("git", "clone", RepoURL, d.Path),
		},
	})
	if err != nil {
		return err
	}

	runner.PrependPath(d.Path)
	return nil
}
