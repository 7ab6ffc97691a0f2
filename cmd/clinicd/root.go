package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clinicd/internal/config"
	"clinicd/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// newRootCmd builds the command tree. Flags and CLINICD_* environment
// variables are layered over the config file through one viper instance.
func newRootCmd() *cobra.Command { return buildRootCmdWith(newViper()) }

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CLINICD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// buildRootCmdWith constructs the command tree bound to v.
func buildRootCmdWith(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "clinicd",
		Short:         "Clinical text analysis service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (.yaml, .json or .toml); env CLINICD_CONFIG")
	pf.String("log-level", "", "Log level: trace|debug|info|warn|error|off")
	pf.String("log-format", "", "Log format: json|console")
	pf.String("models-dir", "", "Models root directory")
	pf.String("device", "", "Force a device for every category: cuda|mps|cpu")
	bindFlags(v, root, map[string]string{
		"config":     "config",
		"log-level":  "log.level",
		"log-format": "log.format",
		"models-dir": "models.dir",
		"device":     "models.device",
	})

	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP server",
		Example: "  clinicd serve --config /etc/clinicd.yaml --addr :8080",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return serveHTTP(cmd.Context(), cfg)
		},
	}
	sf := serve.Flags()
	sf.String("addr", "", "HTTP listen address, e.g. :8080")
	sf.String("redis-url", "", "Redis URL for shared rate limit counters")
	sf.Bool("warmup", false, "Load every model before accepting traffic")
	sf.Bool("no-rate-limit", false, "Disable admission control")
	bindFlags(v, serve, map[string]string{
		"addr":      "server.addr",
		"redis-url": "rate_limit.redis_url",
		"warmup":    "models.warmup",
	})
	_ = v.BindPFlag("no_rate_limit", sf.Lookup("no-rate-limit"))

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate config, device placement and model artifacts without loading",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			report, err := sanityCheck(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.OK {
				return fmt.Errorf("sanity check failed")
			}
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	root.AddCommand(serve, check, versionCmd)
	return root
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		f := cmd.PersistentFlags().Lookup(flag)
		if f == nil {
			f = cmd.Flags().Lookup(flag)
		}
		_ = v.BindPFlag(key, f)
	}
}

// loadConfig reads the optional config file and applies flag and
// environment overrides on top.
func loadConfig(v *viper.Viper) (config.Config, error) {
	cfg := config.Default()
	if p := v.GetString("config"); p != "" {
		var err error
		if cfg, err = config.Load(p); err != nil {
			return cfg, err
		}
	}
	applyOverrides(v, &cfg)
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyOverrides(v *viper.Viper, cfg *config.Config) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	str("server.addr", &cfg.Server.Addr)
	str("log.level", &cfg.Log.Level)
	str("log.format", &cfg.Log.Format)
	str("models.dir", &cfg.Models.Dir)
	str("models.device", &cfg.Models.Device)
	boolean("models.warmup", &cfg.Models.Warmup)
	str("models.summarizer.api_key", &cfg.Models.Summarizer.APIKey)
	str("models.generator.api_key", &cfg.Models.Generator.APIKey)
	str("rate_limit.redis_url", &cfg.RateLimit.RedisURL)
	boolean("rate_limit.enabled", &cfg.RateLimit.Enabled)
	if v.GetBool("no_rate_limit") {
		cfg.RateLimit.Enabled = false
	}
	str("auth.jwt_secret", &cfg.Auth.JWTSecret)
}
