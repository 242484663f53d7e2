package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/pkordes/itinerary/internal/app"
)

func scanGmailCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "scan-gmail",
		Short: "scan the configured mailbox once",
		Long:  `scan-gmail lists recent mail from allowed senders in the configured Gmail account and ingests messages not processed before.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			a, err := app.New(e.cfg, e.pool, e.log)
			if err != nil {
				return err
			}
			scanner, err := a.MailScanner(cmd.Context(), days)
			if err != nil {
				return err
			}

			res, err := scanner.Scan(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "how many days back to look (default 30)")
	return cmd
}
