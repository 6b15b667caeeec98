package main

import "github.com/kivy/angle-builder/cmd"

func main() {
	cmd.Execute()
}
