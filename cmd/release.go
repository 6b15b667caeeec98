package cmd

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kivy/angle-builder/pkg"
	"github.com/kivy/angle-builder/pkg/release"
)

func (a *app) releaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Attaches all artifacts to a draft GitHub release",
		Long: `Uploads every file in the artifact output folder, as-is, to the draft release for --tag.
The draft is created if it doesn't exist yet and assets with the same name are replaced.

The token is read from ANGLE_BUILDER_GITHUB_TOKEN or GITHUB_TOKEN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := cmd.Flags().GetString("tag")
			if err != nil {
				return err
			}
			if tag == "" {
				return eris.New("--tag is required")
			}

			repo, err := cmd.Flags().GetString("repo")
			if err != nil {
				return err
			}
			if repo == "" {
				repo = a.cfg.GitHubRepo
			}
			if repo == "" {
				repo = os.Getenv("GITHUB_REPOSITORY")
			}

			token := a.cfg.GitHubToken
			if token == "" {
				token = os.Getenv("GITHUB_TOKEN")
			}

			folder, err := a.outputFolder()
			if err != nil {
				return err
			}

			publisher, err := release.NewPublisher(cmd.Context(), token, repo)
			if err != nil {
				return err
			}

			pkg.PrintTask("Publishing " + folder + " to " + repo + "@" + tag)
			uploaded, err := publisher.Publish(cmd.Context(), tag, folder)
			for _, name := range uploaded {
				pkg.PrintSubtask(name)
			}
			return err
		},
	}

	cmd.Flags().String("tag", "", "release tag")
	cmd.Flags().String("repo", "", "owner/name of the repository (default $GITHUB_REPOSITORY)")
	return cmd
}
