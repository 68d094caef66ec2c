package cli

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
	"github.com/jonwraymond/modmemo/checkpoint"
)

// ErrVerifyFailed is returned by verify when entries could not be restored.
var ErrVerifyFailed = errors.New("checkpoint has entries that cannot be restored")

type manifestView struct {
	Name      string    `json:"name" yaml:"name"`
	ID        string    `json:"id" yaml:"id"`
	Version   int       `json:"version" yaml:"version"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Entries   int       `json:"entries" yaml:"entries"`
	Checksum  string    `json:"checksum" yaml:"checksum"`
	Signed    bool      `json:"signed" yaml:"signed"`
	Graph     string    `json:"graph,omitempty" yaml:"graph,omitempty"`
}

func viewOf(name string, m *checkpoint.Manifest, withGraph bool) manifestView {
	v := manifestView{
		Name:      name,
		ID:        m.ID,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		Entries:   m.Count,
		Checksum:  m.Checksum,
		Signed:    m.Signed,
	}
	if withGraph {
		v.Graph = string(m.Graph)
	}
	return v
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List checkpoints, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			names, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	}
}

// resolveName maps "latest" or an empty argument to the newest checkpoint.
func resolveName(cmd *cobra.Command, s checkpoint.Store, args []string) (string, error) {
	if len(args) == 0 || args[0] == "latest" {
		return checkpoint.Latest(cmd.Context(), s)
	}
	return args[0], nil
}

func (a *app) inspectCmd() *cobra.Command {
	var withGraph bool
	cmd := &cobra.Command{
		Use:   "inspect [name|latest]",
		Short: "Verify a checkpoint stream and print its manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.checkpointOptions(cmd)
			if err != nil {
				return err
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			name, err := resolveName(cmd, s, args)
			if err != nil {
				return err
			}
			data, err := s.Get(cmd.Context(), name)
			if err != nil {
				return err
			}
			m, err := checkpoint.Inspect(cmd.Context(), bytes.NewReader(data), opts...)
			if err != nil {
				return err
			}
			return a.print(viewOf(name, m, withGraph))
		},
	}
	cmd.Flags().BoolVar(&withGraph, "graph", false, "Include the module graph configuration")
	return cmd
}

type verifyView struct {
	Name     string   `json:"name" yaml:"name"`
	Entries  int      `json:"entries" yaml:"entries"`
	Restored int      `json:"restored" yaml:"restored"`
	Failures []string `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [name|latest]",
		Short: "Decode every entry of a checkpoint",
		Long: "Verify restores a checkpoint into a scratch cache. Only built-in value types\n" +
			"can be decoded; entries of other types are reported as failures.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.checkpointOptions(cmd)
			if err != nil {
				return err
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			name, err := resolveName(cmd, s, args)
			if err != nil {
				return err
			}
			opts = append(opts,
				checkpoint.WithRegistry(anyvalue.NewRegistry()),
				checkpoint.WithCachePolicy(cache.DefaultPolicy()),
			)
			_, report, err := checkpoint.Load(cmd.Context(), s, name, opts...)
			if err != nil {
				return err
			}
			v := verifyView{Name: name, Entries: report.Manifest.Count, Restored: report.Restored}
			for _, f := range report.Failures {
				v.Failures = append(v.Failures, f.Error())
			}
			if err := a.print(v); err != nil {
				return err
			}
			if len(report.Failures) > 0 {
				return fmt.Errorf("%w: %d of %d", ErrVerifyFailed, len(report.Failures), report.Manifest.Count)
			}
			return nil
		},
	}
}

func (a *app) pruneCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1, got %d", keep)
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := checkpoint.Prune(cmd.Context(), s, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "deleted %d checkpoints\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 5, "Number of checkpoints to keep")
	return cmd
}
