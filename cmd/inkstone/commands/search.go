package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Ranked search across titles, paths, tags, and content",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		results, err := w.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(results)
		}
		if len(results) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		tw := newTabWriter()
		fmt.Fprintln(tw, "MATCH\tPATH\tTITLE")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Match, r.Page.Path, r.Page.Title)
		}
		tw.Flush()
		fmt.Printf("(%d matches)\n", len(results))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
