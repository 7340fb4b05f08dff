package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentfloor/audit"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect a badger audit store",
	}
	cmd.AddCommand(newAuditVerifyCmd())
	return cmd
}

func newAuditVerifyCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "verify [session]",
		Short: "Check the content hash of every record of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := audit.OpenBadger(audit.BadgerConfig{Path: path})
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			bad := 0
			for _, rec := range records {
				if err := audit.Verify(rec); err != nil {
					bad++
					fmt.Fprintf(out, "turn %d %s %s: %v\n", rec.Turn, rec.Kind, rec.ID, err)
				}
			}
			fmt.Fprintf(out, "%d records, %d invalid\n", len(records), bad)
			if bad > 0 {
				return fmt.Errorf("%d audit records failed verification", bad)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "audit database directory")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}
