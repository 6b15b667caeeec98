package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kivy/angle-builder/pkg/targets"
)

func (a *app) targetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "Lists the supported targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := targets.List()

			maxNameLen := 0
			for _, target := range list {
				if len(target.Name) > maxNameLen {
					maxNameLen = len(target.Name)
				}
			}

			lineFmt := fmt.Sprintf(" * %%-%ds %%-16s %%-10s %%s\n", maxNameLen+1)
			for _, target := range list {
				requires := ""
				if len(target.Requires) > 0 {
					requires = "requires " + strings.Join(target.Requires, ", ")
				}
				fmt.Fprintf(cmd.OutOrStdout(), lineFmt, target.Name, target.OS, target.Arch, requires)
			}

			return nil
		},
	}
}
