package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/stackexchange-crawler/internal/harvest"
	"github.com/JakeFAU/stackexchange-crawler/internal/sink"
)

func newQuestionCmd() *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "question ID",
		Short: "Fetch one question and print its normalized record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid question id %q: %w", args[0], err)
			}
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
			rec, err := h.Question(cmd.Context(), site, id)
			if err != nil {
				return err
			}
			data, err := sink.Encode(rec)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&site, "site", "s", "meta", "site API name")
	return cmd
}
