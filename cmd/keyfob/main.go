package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/keyfob/keyfob/internal/config"
	"github.com/keyfob/keyfob/internal/log"
)

const version = "0.1.0-dev"

// cfg is loaded once in Before and read by the commands.
var cfg config.Config

func main() {
	app := &cli.App{
		Name:    "keyfob",
		Usage:   "manage two-factor authentication secrets and codes",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the config file",
			},
			&cli.StringFlag{
				Name:  "vault",
				Usage: "Path to the vault file (overrides config)",
			},
			&cli.IntFlag{
				Name:  "digits",
				Usage: "Code length (overrides config)",
			},
			&cli.IntFlag{
				Name:  "period",
				Usage: "Code validity window in seconds (overrides config)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose output",
			},
		},
		Before: func(c *cli.Context) error {
			loaded, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded

			if c.IsSet("vault") {
				cfg.Vault = c.String("vault")
			}
			if c.IsSet("digits") {
				cfg.Digits = c.Int("digits")
			}
			if c.IsSet("period") {
				cfg.Period = c.Int("period")
			}

			level, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				level = zerolog.WarnLevel
			}
			if c.Bool("verbose") {
				level = zerolog.DebugLevel
			}
			log.SetLevel(level)

			log.Debug().Str("vault", cfg.Vault).Int("digits", cfg.Digits).Int("period", cfg.Period).Msg("keyfob started")
			return nil
		},
		Commands: []*cli.Command{
			listCmd,
			addCmd,
			removeCmd,
			copyCmd,
			verifyCmd,
			watchCmd,
			exportCmd,
			importCmd,
			clearCmd,
			configCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
