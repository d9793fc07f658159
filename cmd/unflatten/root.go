package main

import "github.com/spf13/cobra"

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	root := &cobra.Command{
		Use:   "unflatten",
		Short: "Restore a flattened document dump to its original folder layout",
		Long: `unflatten fingerprints the PDFs of a flattened dump and of the original
tree, matches them by page count, text and rendered pages, and can copy each
matched file back to its original relative path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}
	root.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(
		newRunCommand(ctx),
		newRunsCommand(ctx),
		newCacheCommand(ctx),
		newMappingCommand(),
		newConfigCommand(ctx),
		newDoctorCommand(ctx),
	)
	return root
}
