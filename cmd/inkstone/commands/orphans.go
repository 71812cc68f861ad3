package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkstone-dev/inkstone/pkg/cli"
)

var orphansCleanup bool

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find (and optionally delete) unreferenced attachments",
	Long: `Scan every document for attachment references and list attachments
nobody links to. With --cleanup the orphans are deleted.

The scan is best-effort: an edit in flight on another client can
re-reference an attachment between the scan and the cleanup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		if orphansCleanup {
			removed, err := w.CleanupOrphans(cmd.Context())
			if err != nil {
				return err
			}
			if formatOutput == "json" {
				return printJSON(removed)
			}
			if len(removed) == 0 {
				fmt.Println("No orphaned attachments.")
				return nil
			}
			for _, att := range removed {
				cli.PrintSuccess("Deleted %s (%s)", att.ID, att.OriginalFilename)
			}
			return nil
		}

		orphans, err := w.FindAllOrphans(cmd.Context())
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(orphans)
		}
		if len(orphans) == 0 {
			fmt.Println("No orphaned attachments.")
			return nil
		}
		tw := newTabWriter()
		fmt.Fprintln(tw, "ID\tFILENAME\tSIZE")
		for _, att := range orphans {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", att.ID, att.OriginalFilename, att.Size)
		}
		tw.Flush()
		fmt.Println("Delete them with: inkstone orphans --cleanup")
		return nil
	},
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansCleanup, "cleanup", false, "delete the orphans")
	rootCmd.AddCommand(orphansCmd)
}
