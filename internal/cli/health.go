package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/modmemo/checkpoint"
	"github.com/jonwraymond/modmemo/health"
)

func (a *app) healthCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the checkpoint store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			agg := health.NewAggregator(health.AggregatorConfig{Timeout: timeout})
			agg.Register(checkpoint.HealthChecker("store", s))
			agg.Register(health.NewCheckerFunc("checkpoints", func(ctx context.Context) health.Result {
				names, err := s.List(ctx)
				if err != nil {
					return health.Unhealthy("cannot list checkpoints", err)
				}
				if len(names) == 0 {
					return health.Degraded("store holds no checkpoints")
				}
				return health.Healthy(fmt.Sprintf("%d checkpoints", len(names))).
					WithDetails(map[string]any{"latest": names[len(names)-1]})
			}))

			report := agg.Report(cmd.Context())
			if err := a.print(report); err != nil {
				return err
			}
			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("store %s is unhealthy", a.storeURI)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Timeout for each check")
	return cmd
}
