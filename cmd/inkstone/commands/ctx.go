package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkstone-dev/inkstone/pkg/cli"
)

var ctxAddFlags cli.Context

var ctxCmd = &cobra.Command{
	Use:   "ctx",
	Short: "Connection context management",
	Long: `Manage named wiki connections.

A context names a bucket plus the credentials to reach it. Switching
contexts switches wikis.

Examples:
  inkstone ctx add dev --bucket wiki-dev --endpoint http://localhost:9000 --path-style
  inkstone ctx use dev
  inkstone ctx list`,
}

var ctxAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		cc := ctxAddFlags
		if err := cfg.AddContext(args[0], &cc); err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(map[string]any{"name": args[0], "status": "created"})
		}
		fmt.Printf("Context %q created.\n", args[0])
		return nil
	},
}

var ctxRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(map[string]any{"name": args[0], "status": "removed"})
		}
		fmt.Printf("Context %q removed.\n", args[0])
		return nil
	},
}

var ctxUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(map[string]any{"name": args[0], "status": "active"})
		}
		fmt.Printf("Switched to context %q.\n", args[0])
		return nil
	},
}

var ctxCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current context name",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			return printJSON(map[string]any{"current": cfg.CurrentContext})
		}
		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var ctxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if formatOutput == "json" {
			return printJSON(names)
		}
		if len(names) == 0 {
			fmt.Println("No contexts configured.")
			fmt.Println("Create one with: inkstone ctx add <name> --bucket <bucket>")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return nil
	},
}

var ctxShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show context details",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		cc, err := cfg.ResolveContext(name)
		if err != nil {
			return err
		}
		if formatOutput == "json" {
			masked := *cc
			masked.SecretKey = cli.MaskSecret(masked.SecretKey)
			return printJSON(masked)
		}
		fmt.Printf("Context: %s\n", cc.Name)
		fmt.Printf("  bucket:     %s\n", valueOrEmpty(cc.Bucket))
		fmt.Printf("  prefix:     %s\n", valueOrEmpty(cc.Prefix))
		fmt.Printf("  region:     %s\n", valueOrEmpty(cc.Region))
		fmt.Printf("  endpoint:   %s\n", valueOrEmpty(cc.Endpoint))
		fmt.Printf("  access_key: %s\n", valueOrEmpty(cc.AccessKey))
		fmt.Printf("  secret_key: %s\n", valueOrEmpty(cli.MaskSecret(cc.SecretKey)))
		fmt.Printf("  author:     %s\n", valueOrEmpty(cc.Author))
		return nil
	},
}

func init() {
	ctxAddCmd.Flags().StringVar(&ctxAddFlags.Bucket, "bucket", "", "object store bucket")
	ctxAddCmd.Flags().StringVar(&ctxAddFlags.Prefix, "prefix", "", "key prefix inside the bucket")
	ctxAddCmd.Flags().StringVar(&ctxAddFlags.Region, "region", "", "bucket region")
	ctxAddCmd.Flags().StringVar(&ctxAddFlags.Endpoint, "endpoint", "", "custom S3 endpoint")
	ctxAddCmd.Flags().BoolVar(&ctxAddFlags.UsePathStyle, "path-style", false, "use path-style addressing")
	ctxAddCmd.Flags().StringVar(&ctxAddFlags.AccessKey, "access-key", "", "static access key")
	ctxAddCmd.Flags().StringVar(&ctxAddFlags.SecretKey, "secret-key", "", "static secret key")
	ctxAddCmd.Flags().StringVar(&ctxAddFlags.Author, "author", "", "author identity recorded on writes")

	ctxCmd.AddCommand(ctxAddCmd)
	ctxCmd.AddCommand(ctxRemoveCmd)
	ctxCmd.AddCommand(ctxUseCmd)
	ctxCmd.AddCommand(ctxCurrentCmd)
	ctxCmd.AddCommand(ctxListCmd)
	ctxCmd.AddCommand(ctxShowCmd)

	rootCmd.AddCommand(ctxCmd)
}

func valueOrEmpty(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
