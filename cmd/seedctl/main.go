package main

import (
	"fmt"

	"github.com/danmuck/entropyctl/internal/config"
	"github.com/danmuck/entropyctl/internal/observability"
	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "seedctl",
	Short:         "Acquire, serve and schedule seed material from configured entropy sources",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.InitLogger("seedctl")
	},
}

var flagConfig string

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagConfig, "config", "c", "", "path to config.toml (defaults plus ENTROPYCTL_* env when empty)")

	rootCmd.AddCommand(generateCmd, checkCmd, serveCmd, reseedCmd, initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("seedctl failed")
	}
}

func loadSources() (config.Config, *config.Sources, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, nil, err
	}
	built, err := cfg.Build()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build sources: %w", err)
	}
	log.Debug().Str("config", flagConfig).Int("sources", built.Registry.Len()).Str("default", built.DefaultName).Msg("sources ready")
	return cfg, built, nil
}

// pick resolves name, or the default source when name is empty.
func pick(built *config.Sources, name string) (string, seed.Source, error) {
	if name == "" {
		return built.DefaultName, built.Default, nil
	}
	src, ok := built.Registry.Resolve(name)
	if !ok {
		return "", nil, fmt.Errorf("unknown source %q (have %v)", name, built.Registry.Names())
	}
	return name, src, nil
}
