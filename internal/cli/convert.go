package cli

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/modmemo/checkpoint"
	"github.com/jonwraymond/modmemo/observe"
)

func (a *app) convertCmd() *cobra.Command {
	var (
		to          string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "convert --to STORE [name...]",
		Short: "Copy checkpoints into another store",
		Long: "Convert verifies each checkpoint and writes it unchanged to the destination\n" +
			"store. Without names every checkpoint is copied.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				return fmt.Errorf("--to is required")
			}
			opts, err := a.checkpointOptions(cmd)
			if err != nil {
				return err
			}
			src, err := a.open()
			if err != nil {
				return err
			}
			defer src.Close()
			dst, err := openStore(to, a.logger)
			if err != nil {
				return err
			}
			defer dst.Close()

			names := args
			if len(names) == 0 {
				if names, err = src.List(cmd.Context()); err != nil {
					return err
				}
			}

			var copied atomic.Int64
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(concurrency, 1))
			for _, name := range names {
				g.Go(func() error {
					data, err := src.Get(ctx, name)
					if err != nil {
						return err
					}
					m, err := checkpoint.Inspect(ctx, bytes.NewReader(data), opts...)
					if err != nil {
						return fmt.Errorf("%s: %w", name, err)
					}
					if err := dst.Put(ctx, name, data); err != nil {
						return err
					}
					copied.Add(1)
					a.logger.Debug(ctx, "checkpoint copied",
						observe.Field{Key: "checkpoint.name", Value: name},
						observe.Field{Key: "checkpoint.entries", Value: m.Count},
					)
					return nil
				})
			}
			err = g.Wait()
			fmt.Fprintf(a.stdout, "copied %d of %d checkpoints\n", copied.Load(), len(names))
			return err
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Destination store: file:DIR, badger:DIR or sqlite:PATH")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Checkpoints copied at once")
	return cmd
}
