package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/storage"
)

var (
	exportOut     string
	exportPublish bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the published site into static files",
	Long: `export renders the home page, every post page, the sitemap, the feed and
robots.txt into the output directory. With --publish the result is uploaded
to the S3-compatible bucket from the s3 config section.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if exportOut == "" || exportOut == "." || exportOut == "/" {
			return fmt.Errorf("refusing to export into %q", exportOut)
		}
		if err := os.RemoveAll(exportOut); err != nil {
			return fmt.Errorf("clean %s: %w", exportOut, err)
		}
		app := spacetraveling.New(cfg.Site)
		files, err := app.Export(ctx, exportOut)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d files to %s\n", len(files), exportOut)

		if !exportPublish {
			return nil
		}
		pub, err := storage.NewS3Publisher(ctx, cfg.S3)
		if err != nil {
			return err
		}
		if err := pub.Publish(ctx, exportOut, files); err != nil {
			return err
		}
		fmt.Printf("Published to s3://%s/%s\n", cfg.S3.Bucket, pub.Key(""))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "dist", "output directory")
	exportCmd.Flags().BoolVar(&exportPublish, "publish", false, "upload the export to the configured bucket")
}
