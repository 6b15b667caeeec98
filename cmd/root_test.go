package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"mvdan.cc/sh/v3/interp"

	"github.com/kivy/angle-builder/pkg"
	"github.com/kivy/angle-builder/pkg/archive"
	"github.com/kivy/angle-builder/pkg/buildsys"
	"github.com/kivy/angle-builder/pkg/buildsys/buildsystest"
	"github.com/kivy/angle-builder/pkg/targets"
)

// fakeTools produces the outputs of a successful macOS build
func fakeTools() *buildsystest.Fake {
	fake := buildsystest.New()
	fake.Handle("git", func(hc interp.HandlerContext, args []string) error {
		if args[1] != "clone" {
			return nil
		}
		dest := args[len(args)-1]
		if err := buildsystest.WriteFile(hc, filepath.Join(dest, "LICENSE"), []byte("BSD")); err != nil {
			return err
		}
		return buildsystest.WriteFile(hc, filepath.Join(dest, "include", "GLES2", "gl2.h"), []byte("// gles"))
	})
	fake.Handle("autoninja", func(hc interp.HandlerContext, args []string) error {
		for _, lib := range args[3:] {
			if err := buildsystest.WriteFile(hc, filepath.Join(args[2], lib+".dylib"), []byte(lib)); err != nil {
				return err
			}
		}
		return nil
	})
	return fake
}

type cliResult struct {
	err    error
	stdout string
	stderr string
}

func runCLI(t *testing.T, fake *buildsystest.Fake, args ...string) cliResult {
	t.Helper()
	t.Setenv("CI", "true")

	var stdout, stderr bytes.Buffer
	a := newApp()
	a.stdout = &stdout
	a.stderr = &stderr
	if fake != nil {
		a.exec = fake.Exec
	}

	prevOutput := pkg.Output
	pkg.Output = &stdout
	defer func() { pkg.Output = prevOutput }()

	args = append(args, "--config", filepath.Join(t.TempDir(), "missing.toml"))
	err := a.execute(context.Background(), args)
	return cliResult{err: err, stdout: stdout.String(), stderr: stderr.String()}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
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

func TestBogusTarget(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	fake := fakeTools()

	res := runCLI(t, fake, "bogus-target", "--artifact-output-folder", out, "--storage-folder", root)

	var unknown *targets.UnknownTargetError
	if !errors.As(res.err, &unknown) {
		t.Fatalf("expected UnknownTargetError, got %v", res.err)
	}
	if files := listDir(t, out); len(files) != 0 {
		t.Errorf("expected no files, got %v", files)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("no command should run for an unknown target, got %v", fake.Calls)
	}
	if _, err := os.Stat(filepath.Join(root, ".angle-builder")); !os.IsNotExist(err) {
		t.Errorf("the storage folder should not be created")
	}
}

func TestBuildMacOSX64(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")

	res := runCLI(t, fakeTools(), "macos-x64", "--artifact-output-folder", out, "--storage-folder", root)
	if res.err != nil {
		t.Fatalf("unexpected error: %v\n%s", res.err, res.stderr)
	}

	if diff := cmp.Diff([]string{"angle-macos-x64.tar.gz"}, listDir(t, out)); diff != "" {
		t.Errorf("Mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(res.stdout, "angle-macos-x64.tar.gz") {
		t.Errorf("the archive path should be printed, got %q", res.stdout)
	}
	if !strings.Contains(res.stderr, "autoninja -C out/macos-x64 libEGL libGLESv2") {
		t.Errorf("delegated commands should be logged, got %q", res.stderr)
	}
}

func TestOutputFolderFromEnvironment(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "from-env")
	t.Setenv("ANGLE_BUILDER_OUTPUT_FOLDER", out)

	res := runCLI(t, fakeTools(), "macos-arm64", "--storage-folder", root, "--format", "tar.xz")
	if res.err != nil {
		t.Fatalf("unexpected error: %v\n%s", res.err, res.stderr)
	}

	if diff := cmp.Diff([]string{"angle-macos-arm64.tar.xz"}, listDir(t, out)); diff != "" {
		t.Errorf("Mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFailure(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	fake := fakeTools()
	fake.Handle("autoninja", buildsystest.Fail(1))

	res := runCLI(t, fake, "macos-x64", "--artifact-output-folder", out, "--storage-folder", root)

	var failure *buildsys.DelegatedBuildFailure
	if !errors.As(res.err, &failure) {
		t.Fatalf("expected DelegatedBuildFailure, got %v", res.err)
	}
	if files := listDir(t, out); len(files) != 0 {
		t.Errorf("expected no files, got %v", files)
	}
}

func TestInvalidFormat(t *testing.T) {
	root := t.TempDir()
	res := runCLI(t, fakeTools(), "macos-x64", "--storage-folder", root, "--format", "zip")
	if res.err == nil {
		t.Fatal("expected an error")
	}
}

func TestMissingTargetArgument(t *testing.T) {
	res := runCLI(t, nil)
	if res.err == nil {
		t.Fatal("expected an error")
	}
}

func TestTargetsCommand(t *testing.T) {
	res := runCLI(t, nil, "targets")
	if res.err != nil {
		t.Fatal(res.err)
	}

	for _, name := range targets.Names() {
		if !strings.Contains(res.stdout, name) {
			t.Errorf("%s missing from %q", name, res.stdout)
		}
	}
	if !strings.Contains(res.stdout, "requires macos-arm64, macos-x64") {
		t.Errorf("requirements missing from %q", res.stdout)
	}
}

func TestInspectCommand(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "LICENSE"), []byte("BSD"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "angle-macos-x64.tar.br")
	if err := archive.Write(context.Background(), dest, archive.TarBr, []archive.Entry{{Name: "LICENSE", Source: filepath.Join(src, "LICENSE")}}); err != nil {
		t.Fatal(err)
	}

	res := runCLI(t, nil, "inspect", dest)
	if res.err != nil {
		t.Fatal(res.err)
	}
	if strings.TrimSpace(res.stdout) != "LICENSE" {
		t.Errorf("unexpected output %q", res.stdout)
	}
}

func TestCleanCommand(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".angle-builder", "depot_tools"), 0o770); err != nil {
		t.Fatal(err)
	}

	res := runCLI(t, nil, "clean", "--storage-folder", root)
	if res.err != nil {
		t.Fatal(res.err)
	}
	if _, err := os.Stat(filepath.Join(root, ".angle-builder")); !os.IsNotExist(err) {
		t.Errorf("storage folder still exists")
	}
}

func TestReleaseRequiresTag(t *testing.T) {
	res := runCLI(t, nil, "release", "--repo", "kivy/angle-builder")
	if res.err == nil || !strings.Contains(res.err.Error(), "--tag") {
		t.Fatalf("expected a missing tag error, got %v", res.err)
	}
}
