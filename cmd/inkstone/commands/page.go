package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkstone-dev/inkstone/pkg/cli"
	"github.com/inkstone-dev/inkstone/pkg/wiki"
)

var (
	pageFile    string
	pageTags    []string
	pageToken   string
	deleteForce bool
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Create, read, update, and delete documents",
	Long: `Work with markdown documents.

Content is read from --file, or from stdin when --file is omitted.

Examples:
  inkstone page create guides/setup.md -f setup.md --tag howto
  inkstone page get guides/setup.md
  cat new.md | inkstone page update guides/setup.md --token <token>
  inkstone page delete guides/setup.md
  inkstone page list`,
}

func readContent() (string, error) {
	if pageFile != "" {
		data, err := os.ReadFile(pageFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

var pageCreateCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create a new document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		content, err := readContent()
		if err != nil {
			return err
		}
		doc, err := w.Create(cmd.Context(), args[0], content, pageTags...)
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(doc)
		}
		fmt.Printf("Created %s (version %d, token %s)\n", doc.Path, doc.Meta.Version, doc.VersionToken)
		return nil
	},
}

var pageGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Show a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		doc, err := w.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(doc)
		}
		fmt.Printf("# %s\npath: %s\nversion: %d\ntoken: %s\nauthor: %s\nupdated: %s\n\n%s\n",
			doc.Title, doc.Path, doc.Meta.Version, doc.VersionToken,
			doc.Meta.Author, doc.Meta.UpdatedAt, doc.Content)
		return nil
	},
}

var pageUpdateCmd = &cobra.Command{
	Use:   "update <path>",
	Short: "Update a document with optimistic locking",
	Long: `Update a document. The write is conditional on --token matching the
committed version; when the token is omitted, the current one is fetched
first (safe only when nobody else is editing).

A conflicting concurrent edit fails the update and prints the winning
version so you can merge and retry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		content, err := readContent()
		if err != nil {
			return err
		}
		token := pageToken
		if token == "" {
			printVerbose("no token given, fetching current version")
			doc, err := w.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			token = doc.VersionToken
		}
		doc, err := w.Update(cmd.Context(), args[0], content, token)
		if err != nil {
			if conflict, ok := wiki.AsConflict(err); ok && conflict.Current != nil {
				return fmt.Errorf("edit conflict: %s is now at version %d (token %s); merge and retry",
					args[0], conflict.Current.Meta.Version, conflict.Current.VersionToken)
			}
			return err
		}
		if formatOutput == "json" {
			return printJSON(doc)
		}
		fmt.Printf("Updated %s (version %d, token %s)\n", doc.Path, doc.Meta.Version, doc.VersionToken)
		return nil
	},
}

var pageDeleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete a document",
	Long: `Delete a document. When the deletion orphans attachments, they are
listed and kept; remove them with "inkstone orphans --cleanup" (or pass
--force to clean them up immediately).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		res, err := w.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if res.ConfirmationRequired && deleteForce {
			if _, err := w.CleanupOrphans(cmd.Context()); err != nil {
				return err
			}
			res.OrphanedFiles = nil
			res.ConfirmationRequired = false
		}
		if formatOutput == "json" {
			return printJSON(res)
		}
		fmt.Printf("Deleted %s\n", res.Path)
		if res.ConfirmationRequired {
			cli.PrintWarning("Orphaned attachments (kept):")
			for _, name := range res.OrphanedFiles {
				fmt.Printf("  %s\n", name)
			}
			fmt.Println("Remove them with: inkstone orphans --cleanup")
		}
		return nil
	},
}

var pageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		pages, err := w.Pages(cmd.Context())
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(pages)
		}
		if len(pages) == 0 {
			fmt.Println("No documents.")
			return nil
		}
		tw := newTabWriter()
		fmt.Fprintln(tw, "PATH\tTITLE\tAUTHOR\tUPDATED")
		for _, p := range pages {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Path, p.Title, p.Author, p.UpdatedAt)
		}
		tw.Flush()
		fmt.Printf("(%d documents)\n", len(pages))
		return nil
	},
}

func init() {
	pageCreateCmd.Flags().StringVarP(&pageFile, "file", "f", "", "read content from file (default: stdin)")
	pageCreateCmd.Flags().StringArrayVar(&pageTags, "tag", nil, "tag to attach (repeatable)")
	pageUpdateCmd.Flags().StringVarP(&pageFile, "file", "f", "", "read content from file (default: stdin)")
	pageUpdateCmd.Flags().StringVar(&pageToken, "token", "", "expected version token")
	pageDeleteCmd.Flags().BoolVar(&deleteForce, "force", false, "also delete orphaned attachments")

	pageCmd.AddCommand(pageCreateCmd)
	pageCmd.AddCommand(pageGetCmd)
	pageCmd.AddCommand(pageUpdateCmd)
	pageCmd.AddCommand(pageDeleteCmd)
	pageCmd.AddCommand(pageListCmd)

	rootCmd.AddCommand(pageCmd)
}
