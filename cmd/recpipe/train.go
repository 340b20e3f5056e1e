package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/pipeline"
	"github.com/rushteam/recpipe/pkg/logging"
	"github.com/rushteam/recpipe/pkg/metrics"
	"github.com/rushteam/recpipe/store"
)

var (
	skipSync    bool
	metricsFile string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the full training pipeline and publish artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		textfile := firstNonEmpty(metricsFile, cfg.Metrics.Textfile)
		if textfile != "" {
			defer func() {
				if werr := metrics.WriteTextfile(textfile); werr != nil {
					logging.Warn().Err(werr).Str("path", textfile).Msg("write metrics textfile")
				}
			}()
		}

		var opts pipeline.Options
		if !skipSync && cfg.RemoteBackend() != "" {
			syncer, objects, err := openSyncer(ctx, cfg, "")
			if err != nil {
				return err
			}
			defer objects.Close()
			opts.Notifier = syncer
		}
		if cfg.Redis.Addr != "" {
			rs, err := openRedis(ctx)
			if err != nil {
				return err
			}
			defer rs.Close()
			opts.FactorStore = rs
		}

		p, err := pipeline.Default(cfg, opts)
		if err != nil {
			return err
		}
		run := pipeline.NewRun()
		if err := p.Execute(ctx, run); err != nil {
			if core.IsSchemaDrift(err) || core.IsDataQuality(err) {
				return fmt.Errorf("run %s: input data rejected: %w", run.ID, err)
			}
			return fmt.Errorf("run %s: %w", run.ID, err)
		}

		best := run.CF.Best
		fmt.Fprintf(cmd.OutOrStdout(), "run %s succeeded\n", run.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "  cf:  %s cv_rmse=%.4f test_rmse=%.4f\n", best.Point, best.MeanRMSE, run.CFTestRMSE)
		fmt.Fprintf(cmd.OutOrStdout(), "  cbf: features=%d test_rmse=%.4f\n", run.CBF.NumFeatures(), run.CBFTestRMSE)
		fmt.Fprintf(cmd.OutOrStdout(), "  artifacts: %s\n", cfg.Artifacts.Root)
		return nil
	},
}

func init() {
	trainCmd.Flags().BoolVar(&skipSync, "skip-sync", false, "Do not upload artifacts to remote storage")
	trainCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile (overrides metrics.textfile)")
	rootCmd.AddCommand(trainCmd)
}

func openRedis(ctx context.Context) (*store.RedisStore, error) {
	return store.NewRedisStore(ctx, store.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
