package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/HariharPal/LC-Fetch/pkg/collector"
	"github.com/HariharPal/LC-Fetch/pkg/leetcode"
	"github.com/HariharPal/LC-Fetch/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lcfetch",
	Short: "LC-Fetch - bulk collection of LeetCode contest rankings and profiles",
	Long: `LC-Fetch (lcfetch) collects paginated contest rankings and user profiles
from LeetCode with bounded concurrency, retries and rate limiting, and
writes the merged result as CSV, TSV or JSON.

Failed pages and users are counted in the run summary and skipped; a run
always produces a table.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s := loadSettings()
		if _, err := logging.ParseLevel(s.LogLevel); err != nil {
			return err
		}
		logger := logging.Setup(logging.Config{
			Level:  logging.LogLevel(s.LogLevel),
			Pretty: s.Pretty,
			Output: os.Stderr,
		})
		// Every line of one invocation carries the same run id.
		log.Logger = logger.With().Str("run_id", uuid.NewString()).Logger()
		return nil
	},
}

// ExecuteContext adds all child commands to the root command and runs it
// with ctx, which is cancelled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := collector.DefaultConfig()

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lcfetch.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human readable log output")
	rootCmd.PersistentFlags().Bool("quiet", false, "disable the progress bar")
	rootCmd.PersistentFlags().String("base-url", leetcode.DefaultBaseURL, "LeetCode base URL")
	rootCmd.PersistentFlags().String("cookie", "", "Cookie header sent with every request")
	rootCmd.PersistentFlags().String("csrf-token", "", "x-csrftoken header sent with every request")
	rootCmd.PersistentFlags().Int("workers", defaults.Workers, "concurrent user lookups")
	rootCmd.PersistentFlags().Int("max-attempts", defaults.MaxAttempts, "attempts per page or user, first try included")
	rootCmd.PersistentFlags().Duration("backoff", defaults.BackoffBase, "base backoff, multiplied by the attempt number")
	rootCmd.PersistentFlags().Duration("rate-interval", defaults.RateLimitInterval, "minimum spacing between requests (0 disables)")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "timeout per request attempt")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for the response cache and shared cooldowns")
	rootCmd.PersistentFlags().Duration("cache-ttl", time.Hour, "response cache TTL (with --redis)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run")

	// Bind flags to viper
	for _, name := range []string{
		"log-level", "pretty", "quiet", "base-url", "cookie", "csrf-token",
		"workers", "max-attempts", "backoff", "rate-interval", "timeout",
		"redis", "cache-ttl", "metrics-addr",
	} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".lcfetch")
	}

	viper.SetEnvPrefix("LCFETCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// settings are the global options after flags, config file and
// environment have been merged.
type settings struct {
	LogLevel     string
	Pretty       bool
	Quiet        bool
	BaseURL      string
	Cookie       string
	CSRFToken    string
	Workers      int
	MaxAttempts  int
	Backoff      time.Duration
	RateInterval time.Duration
	Timeout      time.Duration
	RedisAddr    string
	CacheTTL     time.Duration
	MetricsAddr  string
}

func loadSettings() settings {
	return settings{
		LogLevel:     viper.GetString("log-level"),
		Pretty:       viper.GetBool("pretty"),
		Quiet:        viper.GetBool("quiet"),
		BaseURL:      strings.TrimRight(viper.GetString("base-url"), "/"),
		Cookie:       viper.GetString("cookie"),
		CSRFToken:    viper.GetString("csrf-token"),
		Workers:      viper.GetInt("workers"),
		MaxAttempts:  viper.GetInt("max-attempts"),
		Backoff:      viper.GetDuration("backoff"),
		RateInterval: viper.GetDuration("rate-interval"),
		Timeout:      viper.GetDuration("timeout"),
		RedisAddr:    viper.GetString("redis"),
		CacheTTL:     viper.GetDuration("cache-ttl"),
		MetricsAddr:  viper.GetString("metrics-addr"),
	}
}

// engineConfig derives the collector configuration shared by all commands.
func (s settings) engineConfig() collector.Config {
	cfg := collector.DefaultConfig()
	cfg.Workers = s.Workers
	cfg.MaxAttempts = s.MaxAttempts
	cfg.BackoffBase = s.Backoff
	cfg.RateLimitInterval = s.RateInterval
	return cfg
}
