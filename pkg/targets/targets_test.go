package targets

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var supported = []string{
	"macos-x64",
	"macos-arm64",
	"macos-universal",
	"iphoneos-arm64",
	"iphonesimulator-x64",
	"iphonesimulator-arm64",
	"iphoneall-universal",
}

func TestTableIsValid(t *testing.T) {
	if _, err := load(); err != nil {
		t.Fatalf("embedded target table is invalid: %v", err)
	}

	if diff := cmp.Diff(supported, Names()); diff != "" {
		t.Errorf("Mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveSupported(t *testing.T) {
	for _, name := range supported {
		t.Run(name, func(t *testing.T) {
			cfg, err := Resolve(name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Name() != name {
				t.Errorf("expected %s, got %s", name, cfg.Name())
			}
			if cfg.Target.OS == "" || cfg.Target.Arch == "" {
				t.Errorf("target %s has an empty OS or arch: %+v", name, cfg.Target)
			}
			if len(cfg.Builds()) == 0 {
				t.Errorf("target %s expands to no builds", name)
			}
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	for _, name := range []string{"", "bogus-target", "macos", "MACOS-X64", "iphoneos-x64", " macos-x64"} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Resolve(name)
			if cfg != nil {
				t.Errorf("expected no config, got %+v", cfg)
			}

			var unknown *UnknownTargetError
			if !errors.As(err, &unknown) {
				t.Fatalf("expected UnknownTargetError, got %v", err)
			}
			if unknown.Name != name {
				t.Errorf("expected name %q, got %q", name, unknown.Name)
			}
			if !strings.Contains(err.Error(), "macos-x64") {
				t.Errorf("error should list the supported targets: %s", err)
			}
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	a, err := Resolve("iphonesimulator-arm64")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Resolve("iphonesimulator-arm64")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(a.GNArgs(a.Target), b.GNArgs(b.Target)); diff != "" {
		t.Errorf("Mismatch (-want +got):\n%s", diff)
	}
}

func buildNames(cfg *Config) []string {
	var names []string
	for _, build := range cfg.Builds() {
		names = append(names, build.Name)
	}
	return names
}

func TestUniversalBuilds(t *testing.T) {
	tests := []struct {
		name     string
		expected []string
	}{
		{"macos-x64", []string{"macos-x64"}},
		{"macos-arm64", []string{"macos-arm64"}},
		{"macos-universal", []string{"macos-arm64", "macos-x64"}},
		{"iphoneos-arm64", []string{"iphoneos-arm64"}},
		{"iphoneall-universal", []string{"iphoneos-arm64", "iphonesimulator-x64", "iphonesimulator-arm64"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Resolve(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.expected, buildNames(cfg)); diff != "" {
				t.Errorf("Mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGNArgs(t *testing.T) {
	tests := []struct {
		name     string
		extra    []string
		expected string
	}{
		{"macos-x64", nil, `is_component_build=false is_debug=false angle_enable_wgpu=false mac_deployment_target="10.15" target_cpu="x64" target_os="mac"`},
		{"iphoneos-arm64", nil, `is_component_build=false is_debug=false angle_enable_wgpu=false mac_deployment_target="10.15" target_cpu="arm64" target_os="ios" ios_enable_code_signing=false`},
		{"iphonesimulator-x64", []string{"symbol_level=0"}, `is_component_build=false is_debug=false angle_enable_wgpu=false mac_deployment_target="10.15" target_cpu="x64" target_os="ios" target_environment="simulator" ios_enable_code_signing=false symbol_level=0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Resolve(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.expected, cfg.GNArgs(cfg.Target, tt.extra...)); diff != "" {
				t.Errorf("Mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestArchiveNameAndLibExt(t *testing.T) {
	tests := []struct {
		name    string
		archive string
		libExt  string
	}{
		{"macos-x64", "angle-macos-x64.tar.gz", "dylib"},
		{"macos-universal", "angle-macos-universal.tar.gz", "dylib"},
		{"iphonesimulator-arm64", "angle-iphonesimulator-arm64.tar.gz", "framework"},
		{"iphoneall-universal", "angle-iphoneall-universal.tar.gz", "xcframework"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Resolve(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if got := cfg.ArchiveName(".tar.gz"); got != tt.archive {
				t.Errorf("expected %s, got %s", tt.archive, got)
			}
			if got := cfg.Target.LibExt(); got != tt.libExt {
				t.Errorf("expected %s, got %s", tt.libExt, got)
			}
		})
	}
}

func TestParseTableRejectsBrokenRequirements(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown-requirement", `
targets:
  - {name: a-universal, os: macos, arch: universal, requires: [missing]}
`},
		{"single-arch-with-requirements", `
targets:
  - {name: a, os: macos, arch: x64}
  - {name: b, os: macos, arch: arm64, requires: [a]}
`},
		{"universal-without-requirements", `
targets:
  - {name: u, os: macos, arch: universal}
`},
		{"duplicate", `
targets:
  - {name: a, os: macos, arch: x64}
  - {name: a, os: macos, arch: x64}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseTable([]byte(tt.data)); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
