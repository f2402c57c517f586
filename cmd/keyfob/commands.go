package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/keyfob/keyfob/internal/config"
	"github.com/keyfob/keyfob/internal/log"
	"github.com/keyfob/keyfob/internal/refresh"
	"github.com/keyfob/keyfob/internal/totp"
	"github.com/keyfob/keyfob/internal/vault"
)

// openStore opens the vault at the configured path.
func openStore() (*vault.Store, error) {
	store, err := vault.Open(cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault '%s': %w", cfg.Vault, err)
	}
	log.Debug().Str("vault", cfg.Vault).Int("records", store.Len()).Msg("vault opened")
	return store, nil
}

// remind prints the cleartext-storage notice unless the user opted out.
func remind() {
	if cfg.NoRemind {
		return
	}
	fmt.Fprintf(os.Stderr, "note: secrets are stored in cleartext at %s (silence this with 'keyfob config set-no-remind true')\n", cfg.Vault)
}

// recordAt resolves a 1-based display index to a record.
func recordAt(store *vault.Store, arg string) (vault.Record, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return vault.Record{}, fmt.Errorf("'%s' is not an index", arg)
	}
	return store.Get(n - 1)
}

// confirm asks a yes/no question on the terminal. Non-interactive runs
// must pass --force instead.
func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "list accounts with their current codes",
	Action: func(c *cli.Context) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		records := store.Records()
		if len(records) == 0 {
			fmt.Println("No accounts yet. Add one with 'keyfob add <name>'.")
			return nil
		}

		now := time.Now()
		remaining := totp.SecondsRemaining(cfg.Period, now)
		for i, rec := range records {
			code, err := totp.GenerateAt(rec.Secret, cfg.Digits, cfg.Period, now)
			if err != nil {
				log.Error().Err(err).Str("name", rec.Name).Msg("code generation failed")
				fmt.Printf("%3d  %-24s <invalid secret>\n", i+1, rec.Name)
				continue
			}
			fmt.Printf("%3d  %-24s %s  (%ds left)\n", i+1, rec.Name, code, remaining)
		}
		return nil
	},
}

var addCmd = &cli.Command{
	Name:      "add",
	Usage:     "add an account: add <name> [secret]",
	ArgsUsage: "<name> [secret]",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 || c.NArg() > 2 {
			return cli.Exit("Usage: add <name> [secret]", 1)
		}
		name := c.Args().First()

		secret := c.Args().Get(1)
		if secret == "" {
			var err error
			secret, err = promptSecret()
			if err != nil {
				return err
			}
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		rec, err := store.Add(name, secret)
		if err != nil {
			return fmt.Errorf("failed to add '%s': %w", name, err)
		}

		fmt.Printf("Added %s (%d accounts)\n", rec.Name, store.Len())
		remind()
		return nil
	},
}

// promptSecret reads the secret without echo when stdin is a terminal,
// and as a plain line otherwise (pipes, scripts).
func promptSecret() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Secret: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var removeCmd = &cli.Command{
	Name:      "remove",
	Aliases:   []string{"rm"},
	Usage:     "remove the account at the given list position",
	ArgsUsage: "<index>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("Usage: remove <index>", 1)
		}

		store, err := openStore()
		if err != nil {
			return err
		}

		// Resolve the position to the record's ID first so the delete
		// targets exactly what the user saw in 'list'.
		rec, err := recordAt(store, c.Args().First())
		if err != nil {
			return err
		}
		if err := store.RemoveByID(rec.ID); err != nil {
			return err
		}

		fmt.Printf("Removed %s (%d accounts)\n", rec.Name, store.Len())
		return nil
	},
}

var copyCmd = &cli.Command{
	Name:      "copy",
	Usage:     "copy the current code to the clipboard",
	ArgsUsage: "[index]",
	Action: func(c *cli.Context) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		arg := c.Args().First()
		if arg == "" {
			arg = "1"
		}
		rec, err := recordAt(store, arg)
		if err != nil {
			return err
		}

		now := time.Now()
		code, err := totp.GenerateAt(rec.Secret, cfg.Digits, cfg.Period, now)
		if err != nil {
			return fmt.Errorf("failed to generate code for '%s': %w", rec.Name, err)
		}
		if err := clipboard.WriteAll(code); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}

		fmt.Printf("Copied code for %s (%ds left)\n", rec.Name, totp.SecondsRemaining(cfg.Period, now))
		return nil
	},
}

var verifyCmd = &cli.Command{
	Name:      "verify",
	Usage:     "check a code against an account",
	ArgsUsage: "<index> <code>",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "skew",
			Usage: "Accepted clock drift in windows",
			Value: 1,
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.Exit("Usage: verify <index> <code>", 1)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		rec, err := recordAt(store, c.Args().First())
		if err != nil {
			return err
		}

		ok, err := totp.Verify(rec.Secret, c.Args().Get(1), cfg.Digits, cfg.Period, time.Now(), c.Int("skew"))
		if err != nil {
			return err
		}
		if !ok {
			return cli.Exit("code does not match", 1)
		}
		fmt.Printf("Code matches %s\n", rec.Name)
		return nil
	},
}

var watchCmd = &cli.Command{
	Name:  "watch",
	Usage: "live view of all codes, refreshed every second",
	Action: func(c *cli.Context) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if store.Len() == 0 {
			fmt.Println("No accounts yet. Add one with 'keyfob add <name>'.")
			return nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		signalCh := make(chan os.Signal, 1)
		signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-signalCh
			log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
			cancel()
		}()

		scheduler := &refresh.Scheduler{
			Digits: cfg.Digits,
			Period: cfg.Period,
			Entries: func() []refresh.Entry {
				records := store.Records()
				entries := make([]refresh.Entry, len(records))
				for i, rec := range records {
					entries[i] = refresh.Entry{Name: rec.Name, Secret: rec.Secret}
				}
				return entries
			},
		}

		err = scheduler.Run(ctx, func(frames []refresh.Frame, remaining int) {
			fmt.Print("\033[H\033[2J")
			fmt.Printf("keyfob — %d accounts, next refresh in %ds (Ctrl-C to quit)\n\n", len(frames), remaining)
			for i, f := range frames {
				if f.Err != nil {
					fmt.Printf("%3d  %-24s <invalid secret>\n", i+1, f.Name)
					continue
				}
				fmt.Printf("%3d  %-24s %s\n", i+1, f.Name, f.Code)
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var exportCmd = &cli.Command{
	Name:      "export",
	Usage:     "write all accounts as JSON to a file ('-' for stdout)",
	ArgsUsage: "<file>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("Usage: export <file>", 1)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		if store.Len() == 0 {
			return cli.Exit("nothing to export", 1)
		}

		target := c.Args().First()
		var w io.Writer = os.Stdout
		if target != "-" {
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
			if err != nil {
				return fmt.Errorf("failed to create '%s': %w", target, err)
			}
			defer f.Close()
			w = f
		}

		if err := store.Export(w); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %d accounts\n", store.Len())
		remind()
		return nil
	},
}

var importCmd = &cli.Command{
	Name:      "import",
	Usage:     "replace all accounts with JSON from a file ('-' for stdin)",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Skip the confirmation prompt",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("Usage: import <file>", 1)
		}

		source := c.Args().First()
		var data []byte
		var err error
		if source == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(source)
		}
		if err != nil {
			return fmt.Errorf("failed to read '%s': %w", source, err)
		}

		records, err := vault.DecodeRecords(data)
		if err != nil {
			return fmt.Errorf("%w: %w", vault.ErrImportValidation, err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}

		if store.Len() > 0 && !c.Bool("force") {
			prompt := fmt.Sprintf("Import %d accounts, replacing the existing %d?", len(records), store.Len())
			if !confirm(prompt) {
				return cli.Exit("import aborted", 1)
			}
		}

		if err := store.ReplaceAll(records); err != nil {
			return err
		}
		fmt.Printf("Imported %d accounts\n", store.Len())
		remind()
		return nil
	},
}

var clearCmd = &cli.Command{
	Name:  "clear",
	Usage: "remove all accounts",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Skip the confirmation prompt",
		},
	},
	Action: func(c *cli.Context) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		if store.Len() > 0 && !c.Bool("force") {
			prompt := fmt.Sprintf("Remove all %d accounts? This cannot be undone.", store.Len())
			if !confirm(prompt) {
				return cli.Exit("clear aborted", 1)
			}
		}

		if err := store.Clear(); err != nil {
			if errors.Is(err, vault.ErrEmpty) {
				fmt.Println("Nothing to clear.")
				return nil
			}
			return err
		}
		fmt.Println("All accounts removed.")
		return nil
	},
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "inspect and change keyfob settings",
	Subcommands: []*cli.Command{
		{
			Name:  "path",
			Usage: "print the config file location",
			Action: func(c *cli.Context) error {
				path := c.String("config")
				if path == "" {
					var err error
					path, err = config.Path()
					if err != nil {
						return err
					}
				}
				fmt.Println(path)
				return nil
			},
		},
		{
			Name:      "set-no-remind",
			Usage:     "enable or disable the cleartext-storage reminder",
			ArgsUsage: "<true|false>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.Exit("Usage: config set-no-remind <true|false>", 1)
				}
				value, err := strconv.ParseBool(c.Args().First())
				if err != nil {
					return fmt.Errorf("'%s' is not a boolean", c.Args().First())
				}

				cfg.NoRemind = value
				if err := config.Save(cfg, c.String("config")); err != nil {
					return err
				}
				if value {
					fmt.Println("Reminder disabled.")
				} else {
					fmt.Println("Reminder enabled.")
				}
				return nil
			},
		},
	},
}
