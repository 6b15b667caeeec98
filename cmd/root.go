package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/interp"

	"github.com/kivy/angle-builder/pkg"
	"github.com/kivy/angle-builder/pkg/angle"
	"github.com/kivy/angle-builder/pkg/buildsys"
	"github.com/kivy/angle-builder/pkg/config"
	"github.com/kivy/angle-builder/pkg/depot"
	"github.com/kivy/angle-builder/pkg/storage"
	"github.com/kivy/angle-builder/pkg/targets"
)

// version is overwritten at link time
var version = "dev"

// app holds the state shared by all commands of one invocation
type app struct {
	// exec replaces the process launcher of the build runner, nil starts real processes
	exec   interp.ExecHandlerFunc
	stdout io.Writer
	stderr io.Writer

	cfg *config.Config
	log zerolog.Logger
}

func newApp() *app {
	return &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		log:    zerolog.New(NewConsoleWriter(os.Stderr)),
	}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "angle-builder <target>",
		Short: "Builds ANGLE for macOS and iOS",
		Long: `Clones ANGLE, runs its GN/Ninja build for the given target and packs libEGL, libGLESv2,
the headers and the license into <artifact-output-folder>/angle-<target>.tar.gz.

Run "angle-builder targets" for the list of supported targets.`,
		Version:           version,
		Args:              cobra.ExactArgs(1),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.runBuild,
	}

	persistent := cmd.PersistentFlags()
	persistent.CountP("verbose", "v", "increase log verbosity (-v for debug, -vv for trace)")
	persistent.Bool("log-json", false, "log JSON lines instead of pretty console messages")
	persistent.String("config", config.DefaultFile, "configuration file")
	persistent.String("artifact-output-folder", "", "folder that receives the artifacts (default ./angle-artifacts)")
	persistent.String("storage-folder", "", "parent folder of the .angle-builder storage folder (default $HOME)")

	flags := cmd.Flags()
	flags.String("branch", "", "ANGLE branch to build (default "+angle.DefaultBranch+")")
	flags.String("revision", "", "ANGLE revision to check out")
	flags.String("format", "", "archive format: tar.gz, tar.xz or tar.br (default tar.gz)")
	flags.StringArray("gn-arg", nil, "additional GN argument (key=value), can be repeated")
	flags.Bool("with-deps", false, "build the constituents of universal targets first")
	flags.Bool("skip-sync", false, "don't check out, bootstrap or sync an existing ANGLE tree")
	flags.BoolP("dry-run", "n", false, "only print the commands, don't execute anything")

	cmd.AddCommand(a.targetsCmd(), a.releaseCmd(), a.cleanCmd(), a.inspectCmd())
	return cmd
}

// stringFlags maps flags to the config fields they override
func stringFlags(cfg *config.Config) map[string]*string {
	return map[string]*string{
		"artifact-output-folder": &cfg.OutputFolder,
		"storage-folder":         &cfg.StorageFolder,
		"branch":                 &cfg.Branch,
		"revision":               &cfg.Revision,
		"format":                 &cfg.Format,
	}
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, loader := config.Loader(file)
	if err = loader.Load(); err != nil {
		return nil, eris.Wrap(err, "Failed to load configuration")
	}

	// explicitly passed flags win over the environment and the config file
	for name, field := range stringFlags(cfg) {
		flag := cmd.Flags().Lookup(name)
		if flag != nil && flag.Changed {
			*field = flag.Value.String()
		}
	}

	if cmd.Flags().Changed("gn-arg") {
		cfg.GNArgs, err = cmd.Flags().GetStringArray("gn-arg")
		if err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("log-json") {
		cfg.LogJSON, err = cmd.Flags().GetBool("log-json")
		if err != nil {
			return nil, err
		}
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	a.cfg = cfg

	verbosity, err := cmd.Flags().GetCount("verbose")
	if err != nil {
		return err
	}

	runID, err := gonanoid.New(10)
	if err != nil {
		return eris.Wrap(err, "Failed to generate run id")
	}

	var out io.Writer
	if cfg.LogJSON {
		out = a.stderr
		zerolog.ErrorMarshalFunc = func(err error) interface{} {
			return eris.ToJSON(err, cfg.Debug)
		}
	} else {
		writer := NewConsoleWriter(a.stderr)
		writer.Debug = cfg.Debug && verbosity > 1
		out = writer
		zerolog.ErrorMarshalFunc = func(err error) interface{} {
			return eris.ToString(err, cfg.Debug)
		}
	}

	a.log = zerolog.New(out).Level(cfg.Level(verbosity)).With().Timestamp().Str("run", runID).Logger()
	cmd.SetContext(buildsys.WithLogger(cmd.Context(), &a.log))
	return nil
}

// outputFolder resolves the configured artifact folder relative to the working directory
func (a *app) outputFolder() (string, error) {
	folder, err := storage.ExpandPath(a.cfg.OutputFolder)
	if err != nil {
		return "", err
	}

	folder, err = filepath.Abs(folder)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to resolve %s", a.cfg.OutputFolder)
	}
	return folder, nil
}

func (a *app) runner(dryRun bool) *buildsys.Runner {
	runner := buildsys.NewRunner()
	runner.Exec = a.exec
	runner.Stdout = a.stdout
	runner.Stderr = a.stderr
	runner.DryRun = dryRun
	return runner
}

func (a *app) runBuild(cmd *cobra.Command, args []string) error {
	// resolve first so that a typo doesn't touch the disk
	target, err := targets.Resolve(args[0])
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	withDeps, err := flags.GetBool("with-deps")
	if err != nil {
		return err
	}
	skipSync, err := flags.GetBool("skip-sync")
	if err != nil {
		return err
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return err
	}

	folder, err := storage.New(a.cfg.StorageFolder)
	if err != nil {
		return err
	}
	output, err := a.outputFolder()
	if err != nil {
		return err
	}

	logger := a.log.With().Str("target", target.Name()).Logger()
	ctx := buildsys.WithLogger(cmd.Context(), &logger)

	builder := &angle.Builder{
		Checkout: angle.NewCheckout(folder, a.cfg.Branch, a.cfg.Revision),
		Depot:    depot.New(folder),
		Runner:   a.runner(dryRun),
		Options: angle.Options{
			OutputFolder: output,
			Format:       a.cfg.ArchiveFormat(),
			GNArgs:       a.cfg.GNArgs,
			WithDeps:     withDeps,
			SkipSync:     skipSync,
		},
	}

	pkg.PrintTask("Building " + target.Name() + " from " + builder.Checkout.Branch)
	dest, err := builder.Build(ctx, target)
	if err != nil {
		pkg.PrintError("Build of " + target.Name() + " failed")
		return err
	}

	if dryRun {
		pkg.PrintSubtask("Dry run finished, would have written " + dest)
	} else {
		pkg.PrintSubtask("Wrote " + dest)
	}
	return nil
}

func (a *app) execute(ctx context.Context, args []string) error {
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	return cmd.ExecuteContext(ctx)
}

// Execute runs the CLI and exits with a non-zero status on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	if err := a.execute(ctx, os.Args[1:]); err != nil {
		a.log.Error().Err(err).Msg("angle-builder failed")
		stop()
		os.Exit(1)
	}
}
