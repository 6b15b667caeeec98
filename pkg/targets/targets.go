// Package targets maps the target identifiers accepted on the command line to the build
// configuration passed to ANGLE's GN build.
package targets

import (
	_ "embed"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed targets.yml
var tableData []byte

// OS is the platform a target is built for
type OS string

const (
	MacOS           OS = "macos"
	IPhoneOS        OS = "iphoneos"
	IPhoneSimulator OS = "iphonesimulator"
	// IPhoneAll is device and simulator combined into one xcframework
	IPhoneAll OS = "iphoneall"
)

// Arch is the CPU architecture of a target
type Arch string

const (
	X64   Arch = "x64"
	ARM64 Arch = "arm64"
	// Universal targets merge the outputs of several single-arch targets
	Universal Arch = "universal"
)

// Target is one entry of the target table
type Target struct {
	Name     string   `yaml:"name"`
	OS       OS       `yaml:"os"`
	Arch     Arch     `yaml:"arch"`
	GN       []string `yaml:"gn,omitempty"`
	Requires []string `yaml:"requires,omitempty"`
}

// Universal reports whether t is assembled from other targets instead of being compiled
func (t Target) Universal() bool {
	return t.Arch == Universal
}

// LibExt returns the extension of the libraries produced for t
func (t Target) LibExt() string {
	switch t.OS {
	case MacOS:
		return "dylib"
	case IPhoneAll:
		return "xcframework"
	default:
		return "framework"
	}
}

type table struct {
	Common  []string `yaml:"common"`
	Targets []Target `yaml:"targets"`
}

var (
	loadOnce sync.Once
	loaded   *table
	loadErr  error
)

func parseTable(data []byte) (*table, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "Failed to parse target table")
	}

	byName := make(map[string]Target, len(t.Targets))
	for _, target := range t.Targets {
		if target.Name == "" || target.OS == "" || target.Arch == "" {
			return nil, eris.Errorf("incomplete target entry %+v", target)
		}
		if _, dup := byName[target.Name]; dup {
			return nil, eris.Errorf("target %s is defined twice", target.Name)
		}
		byName[target.Name] = target
	}

	for _, target := range t.Targets {
		if target.Universal() != (len(target.Requires) > 0) {
			return nil, eris.Errorf("target %s: only universal targets can (and must) list requirements", target.Name)
		}

		for _, dep := range target.Requires {
			req, ok := byName[dep]
			if !ok {
				return nil, eris.Errorf("target %s requires unknown target %s", target.Name, dep)
			}
			if req.Universal() {
				return nil, eris.Errorf("target %s requires universal target %s", target.Name, dep)
			}
		}
	}

	return &t, nil
}

func load() (*table, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parseTable(tableData)
	})

	return loaded, loadErr
}

// List returns all supported targets in declaration order
func List() []Target {
	t, err := load()
	if err != nil {
		return nil
	}

	return append([]Target(nil), t.Targets...)
}

// Names returns the identifiers of all supported targets
func Names() []string {
	list := List()
	names := make([]string, len(list))
	for idx, target := range list {
		names[idx] = target.Name
	}

	return names
}

// Config is the resolved build configuration for one invocation
type Config struct {
	Target Target

	common   []string
	required []Target
}

// Resolve looks up the target called name. Unsupported names fail with *UnknownTargetError.
func Resolve(name string) (*Config, error) {
	t, err := load()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Target, len(t.Targets))
	for _, target := range t.Targets {
		byName[target.Name] = target
	}

	target, ok := byName[name]
	if !ok {
		return nil, &UnknownTargetError{Name: name, Known: Names()}
	}

	cfg := &Config{
		Target: target,
		common: append([]string(nil), t.Common...),
	}
	for _, dep := range target.Requires {
		cfg.required = append(cfg.required, byName[dep])
	}

	return cfg, nil
}

// Name returns the target identifier
func (c *Config) Name() string {
	return c.Target.Name
}

// Required returns the single-arch targets a universal target is merged from
func (c *Config) Required() []Target {
	return append([]Target(nil), c.required...)
}

// Builds returns the single-arch builds that make up this target: the target itself, or
// its requirements for universal targets.
func (c *Config) Builds() []Target {
	if c.Target.Universal() {
		return c.Required()
	}

	return []Target{c.Target}
}

// GNArgs renders the value for `gn gen --args=` for the given single-arch build.
// extra is appended after the table's arguments so that it can override them.
func (c *Config) GNArgs(build Target, extra ...string) string {
	args := make([]string, 0, len(c.common)+len(build.GN)+len(extra))
	args = append(args, c.common...)
	args = append(args, build.GN...)
	args = append(args, extra...)

	return strings.Join(args, " ")
}

// ArchiveName returns the file name of the collected artifact for the given archive extension
func (c *Config) ArchiveName(ext string) string {
	return "angle-" + c.Target.Name + "." + strings.TrimPrefix(ext, ".")
}

var _ error = &UnknownTargetError{}

// UnknownTargetError is returned by Resolve for identifiers outside the supported set
type UnknownTargetError struct {
	Name  string
	Known []string
}

func (e *UnknownTargetError) Error() string {
	known := append([]string(nil), e.Known...)
	sort.Strings(known)
	return "unknown target '" + e.Name + "' (supported: " + strings.Join(known, ", ") + ")"
}

func (e *UnknownTargetError) Is(target error) bool {
	_, ok := target.(*UnknownTargetError)
	return ok
}
