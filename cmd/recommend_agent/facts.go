package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var importFile string

var importFactsCmd = &cobra.Command{
	Use:   "import-facts",
	Short: "Validate a facts document and store it in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(importFile)
		if err != nil {
			return fmt.Errorf("failed to read facts file: %w", err)
		}
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			raw, err := a.db.Facts().Put(ctx, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored facts for %s (%d repositories)\n", raw.SubjectID, len(raw.Repositories))
			return nil
		})
	},
}

func init() {
	importFactsCmd.Flags().StringVarP(&importFile, "file", "f", "", "Facts JSON document")
	if err := importFactsCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}
	rootCmd.AddCommand(importFactsCmd)
}
