package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/stackexchange-crawler/internal/harvest"
)

func newSitesCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "List every site known to the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			settings, err := appInstance.HarvestSettings()
			if err != nil {
				return err
			}
			h, err := harvest.Build(settings)
			if err != nil {
				return fmt.Errorf("build harvester: %w", err)
			}
			dir := h.Directory()
			if refresh {
				if err := dir.Refresh(); err != nil {
					return err
				}
			}

			all := dir.Ordered(cmd.Context())
			if len(all) == 0 {
				return fmt.Errorf("site directory is empty")
			}
			out := cmd.OutOrStdout()
			for _, s := range all {
				fmt.Fprintf(out, "*** %s:\nName: %s, Type: %s, URL: %s, State: %s\n",
					s.APIName, s.Name, s.Type, s.URL, s.State)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached site list and fetch it again")
	return cmd
}
