// Package buildsys runs the commands of the delegated build system (git, gclient, gn,
// autoninja, lipo, xcodebuild, ...) through the mvdan.cc/sh interpreter.
// Commands are built as shell syntax trees instead of strings so that arguments never need
// to be re-quoted, and the exec handler can be swapped out to fake the external tools.
package buildsys
