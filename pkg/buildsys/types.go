package buildsys

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Cmd is a single invocation of an external tool
type Cmd struct {
	// Args is the argv of the command, Args[0] is looked up in PATH.
	Args []string
	// Dir overrides the step's working directory if set.
	Dir string
	// Env contains additional environment variables for this command only.
	Env map[string]string
}

// Command is a shorthand for a Cmd without directory or environment overrides
func Command(args ...string) Cmd {
	return Cmd{Args: args}
}

// In returns a copy of c that runs inside dir
func (c Cmd) In(dir string) Cmd {
	c.Dir = dir
	return c
}

// Step groups the commands that make up one logical stage of a build (e.g. "gn gen macos-x64")
type Step struct {
	Name string
	Desc string
	// Dir is the working directory of all commands that don't set their own.
	Dir string
	// SkipIfExists lists paths; if all of them exist, the step is skipped.
	SkipIfExists []string
	Cmds         []Cmd
}

const shellSpecialChars = " \t\n$'\"`*?[]\\|&;<>(){}~#"

func (c Cmd) callExpr() *syntax.CallExpr {
	call := new(syntax.CallExpr)
	call.Args = make([]*syntax.Word, len(c.Args))

	for idx, arg := range c.Args {
		var part syntax.WordPart

		if arg == "" || strings.ContainsAny(arg, shellSpecialChars) {
			node := new(syntax.SglQuoted)
			node.Value = arg
			part = node
		} else {
			node := new(syntax.Lit)
			node.Value = arg
			part = node
		}

		call.Args[idx] = &syntax.Word{Parts: []syntax.WordPart{part}}
	}

	return call
}

func (c Cmd) stmt() *syntax.Stmt {
	return &syntax.Stmt{Cmd: c.callExpr()}
}

// String returns the command the way a shell user would type it
func (c Cmd) String() string {
	var buf strings.Builder
	printer := syntax.NewPrinter(syntax.Minify(true))
	if err := printer.Print(&buf, c.stmt()); err != nil {
		return strings.Join(c.Args, " ")
	}

	return strings.TrimSpace(buf.String())
}
