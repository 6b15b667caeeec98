package angle

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/interp"

	"github.com/kivy/angle-builder/pkg/archive"
	"github.com/kivy/angle-builder/pkg/buildsys"
	"github.com/kivy/angle-builder/pkg/buildsys/buildsystest"
	"github.com/kivy/angle-builder/pkg/depot"
	"github.com/kivy/angle-builder/pkg/storage"
	"github.com/kivy/angle-builder/pkg/targets"
)

// machoHeader returns the header of an empty thin 64-bit Mach-O dylib for cpu
func machoHeader(cpu macho.Cpu) []byte {
	var buf bytes.Buffer
	fields := []uint32{macho.Magic64, uint32(cpu), 0, uint32(macho.TypeDylib), 0, 0, 0, 0}
	for _, field := range fields {
		binary.Write(&buf, binary.LittleEndian, field)
	}
	return buf.Bytes()
}

// fakeFat stands in for lipo output, it's never parsed
var fakeFat = []byte{0xca, 0xfe, 0xba, 0xbe}

func outputFlag(args []string) string {
	for idx, arg := range args {
		if arg == "-output" && idx+1 < len(args) {
			return args[idx+1]
		}
	}
	return ""
}

// newFakeBuild wires up a fake git/autoninja/lipo/xcodebuild that produce the files the real tools would
func newFakeBuild(t *testing.T) *buildsystest.Fake {
	t.Helper()
	fake := buildsystest.New()

	fake.Handle("git", func(hc interp.HandlerContext, args []string) error {
		if args[1] != "clone" {
			return nil
		}
		dest := args[len(args)-1]
		if err := buildsystest.WriteFile(hc, filepath.Join(dest, "LICENSE"), []byte("BSD")); err != nil {
			return err
		}
		return buildsystest.WriteFile(hc, filepath.Join(dest, "include", "EGL", "egl.h"), []byte("// egl"))
	})

	fake.Handle("autoninja", func(hc interp.HandlerContext, args []string) error {
		outDir := args[2]
		cfg, err := targets.Resolve(filepath.Base(outDir))
		if err != nil {
			return err
		}

		header := machoHeader(cpuTypes[cfg.Target.Arch])
		for _, lib := range Libraries {
			if cfg.Target.OS == targets.MacOS {
				err = buildsystest.WriteFile(hc, filepath.Join(outDir, lib+".dylib"), header)
			} else {
				fw := filepath.Join(outDir, lib+".framework")
				err = buildsystest.WriteFile(hc, filepath.Join(fw, "Info.plist"), []byte("<plist/>"))
				if err == nil {
					err = buildsystest.WriteFile(hc, filepath.Join(fw, lib), header)
				}
			}
			if err != nil {
				return err
			}
		}
		return nil
	})

	fake.Handle("lipo", func(hc interp.HandlerContext, args []string) error {
		return buildsystest.WriteFile(hc, outputFlag(args), fakeFat)
	})

	fake.Handle("xcodebuild", func(hc interp.HandlerContext, args []string) error {
		return buildsystest.WriteFile(hc, filepath.Join(outputFlag(args), "Info.plist"), []byte("<plist/>"))
	})

	return fake
}

type testEnv struct {
	builder *Builder
	fake    *buildsystest.Fake
	output  string
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	t.Setenv("CI", "true")

	root := t.TempDir()
	folder, err := storage.New(filepath.Join(root, "storage"))
	if err != nil {
		t.Fatal(err)
	}

	fake := newFakeBuild(t)
	runner := buildsys.NewRunner()
	runner.Exec = fake.Exec
	runner.Stdout = nil
	runner.Stderr = nil

	if opts.OutputFolder == "" {
		opts.OutputFolder = filepath.Join(root, "out")
	}
	if opts.Format == "" {
		opts.Format = archive.TarGz
	}

	return &testEnv{
		builder: &Builder{
			Checkout: NewCheckout(folder, "", ""),
			Depot:    depot.New(folder),
			Runner:   runner,
			Options:  opts,
		},
		fake:   fake,
		output: opts.OutputFolder,
	}
}

func (e *testEnv) outputFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.output)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return nil
		}
		t.Fatal(err)
	}

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func resolve(t *testing.T, name string) *targets.Config {
	t.Helper()
	cfg, err := targets.Resolve(name)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}
