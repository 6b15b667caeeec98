// Package angle drives ANGLE's GN/Ninja build for one target and packs the results.
package angle

import (
	"context"
	"path/filepath"

	"github.com/kivy/angle-builder/pkg/archive"
	"github.com/kivy/angle-builder/pkg/buildsys"
	"github.com/kivy/angle-builder/pkg/depot"
	"github.com/kivy/angle-builder/pkg/targets"
)

// Options control a single invocation
type Options struct {
	// OutputFolder receives the archive. It's only created once there's something to put there.
	OutputFolder string
	Format       archive.Format
	// GNArgs are appended to the arguments of every gn gen call.
	GNArgs []string
	// WithDeps builds the constituents of universal targets before merging them.
	WithDeps bool
	// SkipSync skips revision checkout, bootstrap and gclient sync.
	SkipSync bool
}

// Builder turns a target configuration into an artifact archive
type Builder struct {
	Checkout *Checkout
	Depot    *depot.Tools
	Runner   *buildsys.Runner
	Options  Options
}

// Prepare makes sure depot_tools and the ANGLE tree are ready
func (b *Builder) Prepare(ctx context.Context) error {
	if err := b.Checkout.storage.Ensure(ctx); err != nil {
		return err
	}

	if err := b.Depot.Ensure(ctx, b.Runner); err != nil {
		return err
	}

	return b.Checkout.Prepare(ctx, b.Runner, !b.Options.SkipSync)
}

// builds returns the single-arch builds that have to be compiled for cfg in this invocation
func (b *Builder) builds(cfg *targets.Config) []targets.Target {
	if cfg.Target.Universal() && !b.Options.WithDeps {
		return nil
	}
	return cfg.Builds()
}

func (b *Builder) generate(ctx context.Context, cfg *targets.Config, build targets.Target) error {
	out := filepath.Join("out", build.Name)
	return b.Runner.RunStep(ctx, buildsys.Step{
		Name: "gn-gen",
		Desc: "Running gn gen for " + build.Name,
		Dir:  b.Checkout.Path,
		Cmds: []buildsys.Cmd{
			buildsys.Command("gn", "gen", out, "--args="+cfg.GNArgs(build, b.Options.GNArgs...)),
		},
	})
}

func (b *Builder) compile(ctx context.Context, build targets.Target) error {
	out := filepath.Join("out", build.Name)
	step := buildsys.Step{
		Name: "autoninja",
		Desc: "Running autoninja for " + build.Name,
		Dir:  b.Checkout.Path,
		Cmds: []buildsys.Cmd{
			buildsys.Command(append([]string{"autoninja", "-C", out}, Libraries...)...),
		},
	}

	// App Store validation rejects frameworks without CFBundleShortVersionString
	if build.LibExt() == "framework" {
		for _, a := range b.Checkout.Artifacts(build) {
			step.Cmds = append(step.Cmds, buildsys.Command(
				"plutil", "-replace", "CFBundleShortVersionString", "-string", "1.0",
				filepath.Join(a.Path, "Info.plist"),
			))
		}
	}

	if err := b.Runner.RunStep(ctx, step); err != nil {
		return err
	}

	if b.Runner.DryRun {
		return nil
	}
	_, err := b.Checkout.CheckArtifacts(build)
	return err
}

func (b *Builder) archiveEntries(cfg *targets.Config) ([]archive.Entry, error) {
	var entries []archive.Entry
	for _, a := range b.Checkout.Artifacts(cfg.Target) {
		entries = append(entries, archive.Entry{Name: a.Name(), Source: a.Path})
	}
	entries = append(entries,
		archive.Entry{Name: "include", Source: filepath.Join(b.Checkout.Path, "include")},
		archive.Entry{Name: "LICENSE", Source: filepath.Join(b.Checkout.Path, "LICENSE")},
	)

	for _, entry := range entries {
		if err := checkExists(cfg.Name(), entry.Source); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

// Build compiles (or merges) cfg and writes the archive. It returns the path of the archive.
func (b *Builder) Build(ctx context.Context, cfg *targets.Config) (string, error) {
	log := buildsys.Log(ctx)

	// Fail early instead of after a complete rebuild of the tree
	if cfg.Target.Universal() && !b.Options.WithDeps && !b.Runner.DryRun {
		for _, req := range cfg.Required() {
			if _, err := b.Checkout.CheckArtifacts(req); err != nil {
				return "", err
			}
		}
	}

	if err := b.Prepare(ctx); err != nil {
		return "", err
	}

	builds := b.builds(cfg)
	for _, build := range builds {
		if err := b.generate(ctx, cfg, build); err != nil {
			return "", err
		}
	}
	for _, build := range builds {
		if err := b.compile(ctx, build); err != nil {
			return "", err
		}
	}

	if cfg.Target.Universal() {
		if err := b.merge(ctx, cfg); err != nil {
			return "", err
		}
	}

	format := b.Options.Format
	if format == "" {
		format = archive.TarGz
	}
	dest := filepath.Join(b.Options.OutputFolder, cfg.ArchiveName(format.Ext()))

	if b.Runner.DryRun {
		log.Info().Str("step", "archive").Msgf("would write %s", dest)
		return dest, nil
	}

	if _, err := b.Checkout.CheckArtifacts(cfg.Target); err != nil {
		return "", err
	}
	entries, err := b.archiveEntries(cfg)
	if err != nil {
		return "", err
	}

	log.Info().Str("step", "archive").Msgf("Creating archive %s", dest)
	if err = archive.Write(ctx, dest, format, entries); err != nil {
		return "", err
	}

	return dest, nil
}
