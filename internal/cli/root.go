// Package cli implements the modmemo checkpoint tool.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/modmemo/checkpoint"
	"github.com/jonwraymond/modmemo/observe"
	"github.com/jonwraymond/modmemo/secret"
)

// Environment variables read when the matching flag is not given.
const (
	EnvStore      = "MODMEMO_STORE"
	EnvSigningKey = "MODMEMO_SIGNING_KEY"
	EnvLogLevel   = "MODMEMO_LOG_LEVEL"
	EnvFile       = "MODMEMO_ENV_FILE"
)

// DefaultStore is used when neither --store nor MODMEMO_STORE is set.
const DefaultStore = "file:checkpoints"

type app struct {
	stdout io.Writer
	stderr io.Writer

	storeURI string
	key      string
	format   string
	logLevel string

	logger observe.Logger
}

// NewRootCmd builds the command tree writing results to stdout and logs to
// stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "modmemo",
		Short:         "Inspect, verify and move memoization checkpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.storeURI, "store", "s", "", "Checkpoint store: file:DIR, badger:DIR or sqlite:PATH (default: $"+EnvStore+" or "+DefaultStore+")")
	flags.StringVarP(&a.key, "key", "k", "", "Signing key or secretref (default: $"+EnvSigningKey+")")
	flags.StringVarP(&a.format, "format", "f", "yaml", "Output format: yaml or json")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (default: $"+EnvLogLevel+" or warn)")

	root.AddCommand(
		a.listCmd(),
		a.inspectCmd(),
		a.verifyCmd(),
		a.pruneCmd(),
		a.convertCmd(),
		a.healthCmd(),
	)

	wrapErrors(root, stderr)
	return root
}

// wrapErrors prints command errors once, since usage and error output are
// silenced on the root.
func wrapErrors(cmd *cobra.Command, stderr io.Writer) {
	for _, c := range cmd.Commands() {
		if c.RunE == nil {
			continue
		}
		run := c.RunE
		c.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil {
				fmt.Fprintf(stderr, "error: %v\n", err)
			}
			return err
		}
	}
}

func (a *app) init(cmd *cobra.Command) error {
	envFile := os.Getenv(EnvFile)
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	if a.storeURI == "" {
		a.storeURI = os.Getenv(EnvStore)
	}
	if a.storeURI == "" {
		a.storeURI = DefaultStore
	}
	if !cmd.Flags().Changed("key") {
		a.key = os.Getenv(EnvSigningKey)
	}
	if a.logLevel == "" {
		a.logLevel = os.Getenv(EnvLogLevel)
	}
	if a.logLevel == "" {
		a.logLevel = "warn"
	}
	a.logger = observe.NewLoggerWithWriter(a.logLevel, a.stderr)

	switch a.format {
	case "yaml", "json":
	default:
		return fmt.Errorf("unknown format %q", a.format)
	}
	return nil
}

// checkpointOptions returns the options every read and write uses.
func (a *app) checkpointOptions(cmd *cobra.Command) ([]checkpoint.Option, error) {
	key, err := secret.DefaultResolver().ResolveKey(cmd.Context(), a.key)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	if len(key) == 0 {
		return nil, nil
	}
	return []checkpoint.Option{checkpoint.WithSigningKey(key)}, nil
}

func (a *app) print(v any) error {
	switch a.format {
	case "json":
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}
