package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write the shared wiki configuration",
	Long: `Manage the wiki-level configuration stored in the bucket itself
(config/wiki.json). It is shared by every client of the wiki, unlike
"ctx" which is local to this machine.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the shared wiki configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		rc, err := w.LoadRemoteConfig(cmd.Context())
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(rc)
		}
		fmt.Printf("title:               %s\n", rc.Title)
		fmt.Printf("description:         %s\n", rc.Description)
		fmt.Printf("max_attachment_size: %d\n", rc.MaxAttachmentSize)
		fmt.Printf("public_base_url:     %s\n", rc.PublicBaseURL)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one shared configuration key",
	Long: `Set a key on the shared configuration. Keys:
  title                wiki display title
  description          wiki description
  max_attachment_size  upload ceiling in bytes
  public_base_url      base URL for resolved attachment links`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWiki(cmd.Context())
		if err != nil {
			return err
		}
		rc, err := w.LoadRemoteConfig(cmd.Context())
		if err != nil {
			return err
		}
		key, value := args[0], args[1]
		switch key {
		case "title":
			rc.Title = value
		case "description":
			rc.Description = value
		case "max_attachment_size":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("max_attachment_size must be an integer: %w", err)
			}
			rc.MaxAttachmentSize = n
		case "public_base_url":
			rc.PublicBaseURL = value
		default:
			return fmt.Errorf("unknown config key %q", key)
		}
		if err := w.SaveRemoteConfig(cmd.Context(), rc); err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(rc)
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
