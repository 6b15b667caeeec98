package angle

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kivy/angle-builder/pkg/buildsys"
	"github.com/kivy/angle-builder/pkg/storage"
)

const (
	// RepoURL is the upstream ANGLE repository
	RepoURL       = "https://github.com/google/angle"
	DefaultBranch = "chromium/6261"
)

// Checkout is an ANGLE working tree for one branch inside the storage folder
type Checkout struct {
	Branch string
	// Revision is checked out after cloning if set
	Revision string
	Path     string

	storage *storage.Folder
}

// UnderlinedBranch turns a branch name into something usable as a directory name
func UnderlinedBranch(branch string) string {
	return strings.ReplaceAll(strings.ReplaceAll(branch, ".", "_"), "/", "__")
}

func NewCheckout(folder *storage.Folder, branch, revision string) *Checkout {
	if branch == "" {
		branch = DefaultBranch
	}

	return &Checkout{
		Branch:   branch,
		Revision: revision,
		Path:     folder.Join("angle-" + UnderlinedBranch(branch)),
		storage:  folder,
	}
}

// OutDir returns GN's output directory for the named build
func (c *Checkout) OutDir(name string) string {
	return filepath.Join(c.Path, "out", name)
}

// Prepare clones ANGLE if necessary. Unless sync is false, it then checks out the configured
// revision, bootstraps the tree and fetches the dependencies with gclient.
func (c *Checkout) Prepare(ctx context.Context, runner *buildsys.Runner, sync bool) error {
	if err := c.storage.Ensure(ctx); err != nil {
		return err
	}

	err := runner.RunStep(ctx, buildsys.Step{
		Name:         "clone",
		Desc:         "Cloning (if needed) ANGLE repository for branch " + c.Branch,
		Dir:          c.storage.Path,
		SkipIfExists: []string{c.Path},
		Cmds: []buildsys.Cmd{
			buildsys.Command("git", "clone", "--branch", c.Branch, "--single-branch", RepoURL, c.Path),
		},
	})
	if err != nil {
		return err
	}

	if !sync {
		buildsys.Log(ctx).Info().Str("step", "sync").Msg("skipping checkout, bootstrap and sync")
		return nil
	}

	steps := []buildsys.Step{
		{
			Name: "bootstrap",
			Desc: "Bootstrapping ANGLE repository for branch " + c.Branch,
			Dir:  c.Path,
			Cmds: []buildsys.Cmd{buildsys.Command("python", "scripts/bootstrap.py")},
		},
		{
			Name: "sync",
			Desc: "Syncing ANGLE repository for branch " + c.Branch,
			Dir:  c.Path,
			Cmds: []buildsys.Cmd{buildsys.Command("gclient", "sync")},
		},
	}
	if c.Revision != "" {
		steps = append([]buildsys.Step{{
			Name: "checkout",
			Desc: "Checking out revision " + c.Revision,
			Dir:  c.Path,
			Cmds: []buildsys.Cmd{buildsys.Command("git", "checkout", c.Revision)},
		}}, steps...)
	}

	for _, step := range steps {
		if err = runner.RunStep(ctx, step); err != nil {
			return err
		}
	}

	return nil
}
