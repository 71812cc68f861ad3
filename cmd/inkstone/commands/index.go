package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the aggregated page index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the page index from a live store listing",
	Long: `Rebuild meta/pages.json by listing and heading every document.
Use this after out-of-band changes to the bucket or if the index has
drifted from the actual document set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		pages, err := w.RebuildIndex(cmd.Context())
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(pages)
		}
		fmt.Printf("Rebuilt index with %d documents.\n", len(pages))
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	rootCmd.AddCommand(indexCmd)
}
