package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/inkstone-dev/inkstone/pkg/blob"
	"github.com/inkstone-dev/inkstone/pkg/cli"
	"github.com/inkstone-dev/inkstone/pkg/wiki"
)

var (
	verbose      bool
	formatOutput string
	contextName  string
)

var rootCmd = &cobra.Command{
	Use:   "inkstone",
	Short: "Serverless markdown wiki on an object store",
	Long: `inkstone keeps a markdown wiki directly in an S3-compatible bucket.
There is no server: every client reads and writes the bucket, and
concurrent edits are resolved with optimistic version tokens.

Commands:
  ctx       Connection context management
  page      Create, read, update, and delete documents
  file      Upload and manage binary attachments
  tree      Show the folder/page hierarchy
  search    Ranked search across titles, paths, tags, and content
  orphans   Find (and optionally delete) unreferenced attachments
  index     Maintain the aggregated page index
  config    Read and write the shared wiki configuration
  version   Version information

Examples:
  inkstone ctx add dev --bucket wiki-dev --endpoint http://localhost:9000
  inkstone page create guides/setup.md -f setup.md --tag howto
  inkstone page get guides/setup.md
  inkstone tree
  inkstone search deploy
  inkstone orphans --cleanup`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "plain", "output format: plain, json")
	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "connection context (default: current)")
}

// testWikiOverride is set during tests to bypass context resolution and
// run commands against an in-memory store.
var testWikiOverride *wiki.Wiki

func loadLocalConfig() (*cli.Config, error) {
	if path := os.Getenv("INKSTONE_CONFIG"); path != "" {
		return cli.LoadConfigWithPath(path)
	}
	return cli.LoadConfig()
}

// openWiki builds a wiki client for the selected context.
func openWiki(ctx context.Context) (*wiki.Wiki, error) {
	if testWikiOverride != nil {
		return testWikiOverride, nil
	}
	cfg, err := loadLocalConfig()
	if err != nil {
		return nil, err
	}
	cc, err := cfg.ResolveContext(contextName)
	if err != nil {
		return nil, err
	}
	if cc.Bucket == "" {
		return nil, fmt.Errorf("context %q has no bucket configured", cc.Name)
	}

	sopts := s3.Options{Region: cc.Region}
	if sopts.Region == "" {
		sopts.Region = "us-east-1"
	}
	if cc.Endpoint != "" {
		sopts.BaseEndpoint = aws.String(cc.Endpoint)
	}
	sopts.UsePathStyle = cc.UsePathStyle
	if cc.AccessKey != "" {
		ak, sk := cc.AccessKey, cc.SecretKey
		sopts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: ak, SecretAccessKey: sk}, nil
		})
	}
	store := blob.NewS3(s3.New(sopts), cc.Bucket, cc.Prefix)

	wopts := []wiki.Option{}
	if cc.Author != "" {
		wopts = append(wopts, wiki.WithAuthor(cc.Author))
	}
	if verbose {
		wopts = append(wopts, wiki.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	}
	w := wiki.New(store, wopts...)
	if _, err := w.LoadRemoteConfig(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func printJSON(v any) error {
	return cli.Output(v, cli.OutputOptions{Format: cli.FormatJSON})
}

func printVerbose(format string, args ...any) {
	cli.PrintVerbose(verbose, format, args...)
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}
