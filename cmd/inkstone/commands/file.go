package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inkstone-dev/inkstone/pkg/cli"
)

var (
	fileContentType string
	fileOutput      string
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Upload and manage binary attachments",
	Long: `Work with binary attachments (images, archives, etc.).

Examples:
  inkstone file upload ./diagram.png
  inkstone file list
  inkstone file get 1700000000000-diagram.png -o diagram.png
  inkstone file delete 1700000000000-diagram.png`,
}

var fileUploadCmd = &cobra.Command{
	Use:   "upload <local-path>",
	Short: "Upload an attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		att, err := w.Upload(cmd.Context(), filepath.Base(args[0]), data, fileContentType)
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(att)
		}
		cli.PrintSuccess("Uploaded %s as %s (%d bytes)", att.OriginalFilename, att.ID, att.Size)
		if att.URL != "" {
			fmt.Println(att.URL)
		}
		return nil
	},
}

var fileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all attachments",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		atts, err := w.Attachments(cmd.Context())
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(atts)
		}
		if len(atts) == 0 {
			fmt.Println("No attachments.")
			return nil
		}
		tw := newTabWriter()
		fmt.Fprintln(tw, "ID\tFILENAME\tSIZE\tUPLOADED")
		for _, att := range atts {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", att.ID, att.OriginalFilename, att.Size, att.UploadedAt)
		}
		tw.Flush()
		fmt.Printf("(%d attachments)\n", len(atts))
		return nil
	},
}

var fileGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Download an attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		data, err := w.OpenAttachment(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if fileOutput == "" {
			return cli.Output(data, cli.OutputOptions{Format: cli.FormatRaw})
		}
		if err := cli.OutputBytes(data, fileOutput); err != nil {
			return err
		}
		cli.PrintSuccess("Wrote %s (%d bytes)", fileOutput, len(data))
		return nil
	},
}

var fileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		if err := w.DeleteAttachment(cmd.Context(), args[0]); err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(map[string]any{"id": args[0], "status": "deleted"})
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	fileUploadCmd.Flags().StringVar(&fileContentType, "content-type", "", "content type (default: sniffed from extension)")
	fileGetCmd.Flags().StringVarP(&fileOutput, "output", "o", "", "write to file instead of stdout")

	fileCmd.AddCommand(fileUploadCmd)
	fileCmd.AddCommand(fileListCmd)
	fileCmd.AddCommand(fileGetCmd)
	fileCmd.AddCommand(fileDeleteCmd)

	rootCmd.AddCommand(fileCmd)
}
