package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stored blobs that no document references",
	Long:  "Delete stored blobs that no document references. Blobs written in the last hour are kept, since an upload may still be recording them.",
	Run: func(cmd *cobra.Command, _ []string) {
		_, a, err := loadApp(cmd.Context())
		exitOnError(err)
		defer a.Close()

		removed, err := a.Documents.CleanupOrphans(cmd.Context())
		exitOnError(err)
		out := cmd.OutOrStdout()
		for _, key := range removed {
			fmt.Fprintf(out, "  removed %s\n", key)
		}
		fmt.Fprintf(out, "%d orphaned blobs removed\n", len(removed))
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
