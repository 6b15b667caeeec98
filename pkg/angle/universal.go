package angle

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/kivy/angle-builder/pkg/buildsys"
	"github.com/kivy/angle-builder/pkg/targets"
)

// simulatorUniversal holds the fat simulator frameworks that go into the iphoneall xcframeworks
const simulatorUniversal = "iphonesimulator-universal"

// checkMergeInputs makes sure that every constituent of a universal target has been built for
// the right architecture
func (b *Builder) checkMergeInputs(cfg *targets.Config) (map[string][]Artifact, error) {
	inputs := make(map[string][]Artifact)
	for _, req := range cfg.Required() {
		artifacts, err := b.Checkout.CheckArtifacts(req)
		if err != nil {
			return nil, err
		}
		inputs[req.Name] = artifacts
	}

	for _, req := range cfg.Required() {
		for _, a := range inputs[req.Name] {
			if err := validateArch(req, a.Binary()); err != nil {
				return nil, err
			}
		}
	}

	return inputs, nil
}

func (b *Builder) merge(ctx context.Context, cfg *targets.Config) error {
	var inputs map[string][]Artifact
	if !b.Runner.DryRun {
		var err error
		inputs, err = b.checkMergeInputs(cfg)
		if err != nil {
			return err
		}
	} else {
		inputs = make(map[string][]Artifact)
		for _, req := range cfg.Required() {
			inputs[req.Name] = b.Checkout.Artifacts(req)
		}
	}

	switch cfg.Target.OS {
	case targets.MacOS:
		return b.mergeDylibs(ctx, cfg, inputs)
	case targets.IPhoneAll:
		return b.mergeXCFrameworks(ctx, cfg, inputs)
	}

	return eris.Errorf("don't know how to merge %s targets", cfg.Target.OS)
}

func (b *Builder) recreate(dir string) error {
	if b.Runner.DryRun {
		return nil
	}
	return recreateDir(dir)
}

// mergeDylibs lipos the thin dylibs together and points their install names at @rpath
func (b *Builder) mergeDylibs(ctx context.Context, cfg *targets.Config, inputs map[string][]Artifact) error {
	outDir := b.Checkout.OutDir(cfg.Name())
	if err := b.recreate(outDir); err != nil {
		return err
	}

	for idx, out := range b.Checkout.Artifacts(cfg.Target) {
		lipo := []string{"lipo", "-create"}
		for _, req := range cfg.Required() {
			lipo = append(lipo, inputs[req.Name][idx].Path)
		}
		lipo = append(lipo, "-output", out.Path)

		err := b.Runner.RunStep(ctx, buildsys.Step{
			Name: "lipo",
			Desc: "Lipo-ing " + out.Name() + " for " + cfg.Name(),
			Dir:  b.Checkout.Path,
			Cmds: []buildsys.Cmd{
				buildsys.Command(lipo...),
				buildsys.Command("install_name_tool", "-id", "@rpath/"+out.Name(), out.Path),
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// mergeXCFrameworks combines the simulator frameworks into fat frameworks and wraps them together
// with the device frameworks into xcframeworks
func (b *Builder) mergeXCFrameworks(ctx context.Context, cfg *targets.Config, inputs map[string][]Artifact) error {
	var device []targets.Target
	var simulators []targets.Target
	for _, req := range cfg.Required() {
		if req.OS == targets.IPhoneSimulator {
			simulators = append(simulators, req)
		} else {
			device = append(device, req)
		}
	}
	if len(device) != 1 || len(simulators) == 0 {
		return eris.Errorf("%s needs exactly one device and at least one simulator target", cfg.Name())
	}

	simDir := b.Checkout.OutDir(simulatorUniversal)
	outDir := b.Checkout.OutDir(cfg.Name())
	for _, dir := range []string{simDir, outDir} {
		if err := b.recreate(dir); err != nil {
			return err
		}
	}

	for idx, out := range b.Checkout.Artifacts(cfg.Target) {
		template := inputs[simulators[0].Name][idx]
		simFramework := Artifact{Lib: template.Lib, Path: filepath.Join(simDir, template.Name())}

		// the binary is replaced by the lipo output below
		if !b.Runner.DryRun {
			if err := copyTree(template.Path, simFramework.Path, template.Lib); err != nil {
				return err
			}
		}

		lipo := []string{"lipo", "-create"}
		for _, sim := range simulators {
			lipo = append(lipo, inputs[sim.Name][idx].Binary())
		}
		lipo = append(lipo, "-output", simFramework.Binary())

		err := b.Runner.RunStep(ctx, buildsys.Step{
			Name: "xcframework",
			Desc: "Creating " + out.Name() + " for " + cfg.Name(),
			Dir:  b.Checkout.Path,
			Cmds: []buildsys.Cmd{
				buildsys.Command(lipo...),
				buildsys.Command(
					"xcodebuild", "-create-xcframework",
					"-framework", inputs[device[0].Name][idx].Path,
					"-framework", simFramework.Path,
					"-output", out.Path,
				),
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}
