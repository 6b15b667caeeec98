package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kivy/angle-builder/pkg/archive"
)

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Lists the contents of an artifact archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := archive.List(args[0])
			if err != nil {
				return err
			}

			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
