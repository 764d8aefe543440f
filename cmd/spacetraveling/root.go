package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/logger"
	"github.com/eringen/spacetraveling/storage"
)

// config is everything the commands read from config.yaml and the
// SPACETRAVELING_* environment.
type config struct {
	Site spacetraveling.SiteConfig `mapstructure:",squash"`
	S3   storage.S3Config          `mapstructure:"s3"`
}

// configKeys lists every key so environment variables are picked up even
// when the config file does not mention them.
var configKeys = []string{
	"name", "url", "description", "author", "locale", "time_zone", "env",
	"addr", "database_path",
	"cms_endpoint", "cms_access_token", "content_dir",
	"page_size", "revalidate", "blocking_fallback", "prebuild_count",
	"session_secret", "cookie_secure", "webhook_secret",
	"utterances_repo", "sentry_dsn",
	"s3.region", "s3.bucket", "s3.access_key", "s3.secret_key", "s3.endpoint", "s3.prefix",
}

var (
	cfgFile string
	cfg     config
)

var rootCmd = &cobra.Command{
	Use:   "spacetraveling",
	Short: "Blog front-end over a headless content repository",
	Long: `spacetraveling renders a blog from a hosted content repository, or from
markdown files when no repository is configured. It can serve the site with
periodic regeneration or export it as static files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		logger.Init(cfg.Site.IsDevelopment() || cfg.Site.Env == "", cfg.Site.SentryDSN)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Flush()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("content-dir", "", "markdown content directory used without a CMS endpoint")

	rootCmd.AddCommand(serveCmd, exportCmd, versionCmd)
}

func loadConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SPACETRAVELING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	if err := v.BindPFlag("content_dir", cmd.Root().PersistentFlags().Lookup("content-dir")); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}
