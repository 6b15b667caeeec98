package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kivy/angle-builder/pkg"
	"github.com/kivy/angle-builder/pkg/storage"
)

func (a *app) cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Deletes the storage folder with depot_tools and all ANGLE checkouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := storage.New(a.cfg.StorageFolder)
			if err != nil {
				return err
			}

			pkg.PrintTask("Deleting " + folder.Path)
			return folder.Delete(cmd.Context())
		},
	}
}
