package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkstone-dev/inkstone/pkg/cli"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the folder/page hierarchy",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		root, err := w.Tree(cmd.Context())
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(root)
		}
		if len(root.Children) == 0 {
			fmt.Println("No documents.")
			return nil
		}
		fmt.Print(cli.RenderTree(root, cli.NewTreeStyles(cli.DefaultTheme)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
