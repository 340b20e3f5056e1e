package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rushteam/recpipe/artifact"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := artifact.NewStore(cfg.Artifacts.Root)
		if !s.Exists(artifact.RegistryFile) {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded under", cfg.Artifacts.Root)
			return nil
		}
		reg, err := artifact.OpenRegistry(s.Path(artifact.RegistryFile))
		if err != nil {
			return err
		}
		defer reg.Close()

		runs, err := reg.List(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tSTATUS\tTRAIN\tTEST\tCF\tRMSE")
		for _, r := range runs {
			rmse := "-"
			if r.CFRMSE != nil {
				rmse = fmt.Sprintf("%.4f", *r.CFRMSE)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
				r.Status, r.RowsTrain, r.RowsTest, r.CFParams, rmse)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list (0 for all)")
	rootCmd.AddCommand(runsCmd)
}
