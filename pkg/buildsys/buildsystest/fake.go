// Package buildsystest provides a scriptable stand-in for the external build tools.
package buildsystest

import (
	"context"
	"os"
	"path/filepath"

	"mvdan.cc/sh/v3/interp"
)

// Handler implements one fake tool. args[0] is the tool name.
type Handler func(hc interp.HandlerContext, args []string) error

// Call records a single command executed through the fake
type Call struct {
	Args []string
	Dir  string
}

// Fake records every command and dispatches it to the handler registered for its name.
// Commands without a handler succeed without doing anything.
type Fake struct {
	Calls    []Call
	handlers map[string]Handler
}

// New returns an empty Fake
func New() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

// Handle registers h for the tool called name
func (f *Fake) Handle(name string, h Handler) {
	f.handlers[name] = h
}

// Exec is an interp.ExecHandlerFunc
func (f *Fake) Exec(ctx context.Context, args []string) error {
	hc := interp.HandlerCtx(ctx)
	f.Calls = append(f.Calls, Call{Args: append([]string(nil), args...), Dir: hc.Dir})

	h, ok := f.handlers[args[0]]
	if !ok {
		return nil
	}

	return h(hc, args)
}

// Called returns the recorded calls of the named tool
func (f *Fake) Called(name string) []Call {
	var result []Call
	for _, call := range f.Calls {
		if call.Args[0] == name {
			result = append(result, call)
		}
	}

	return result
}

// Fail returns a handler that exits with the given status
func Fail(status uint8) Handler {
	return func(interp.HandlerContext, []string) error {
		return interp.NewExitStatus(status)
	}
}

// WriteFile creates path (relative to the command's directory) with the passed content,
// creating parent directories as needed.
func WriteFile(hc interp.HandlerContext, path string, content []byte) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(hc.Dir, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return err
	}

	return os.WriteFile(path, content, 0o660)
}
