package main

import (
	"fmt"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rushteam/recpipe/artifact"
	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/model"
	"github.com/rushteam/recpipe/recall"
)

var (
	recUser   string
	recModel  string
	recTop    int
	recAsJSON bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend products for a user from published artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if recModel == "cf-store" {
			if cfg.Redis.Addr == "" {
				return core.NewConfigError("--model cf-store needs redis.addr")
			}
			rs, err := openRedis(ctx)
			if err != nil {
				return err
			}
			defer rs.Close()
			res, err := recall.NewStoreMFAdapter(rs, cfg.Redis.KeyPrefix).Recommend(ctx, recUser, recTop)
			if err != nil {
				return err
			}
			return printRecommendations(cmd, res)
		}

		s := artifact.NewStore(cfg.Artifacts.Root)
		table, err := s.OpenTable(artifact.FinalTable)
		if err != nil {
			return err
		}

		var res *recall.Result
		switch recModel {
		case "cf":
			var svd model.SVD
			if err := s.Load(artifact.BestCF, &svd); err != nil {
				return err
			}
			seen := make(map[string]struct{})
			var products []string
			for i := range table.Rows {
				pid := table.Rows[i].ProductID
				if _, ok := seen[pid]; !ok {
					seen[pid] = struct{}{}
					products = append(products, pid)
				}
			}
			res, err = (&recall.CFRecommender{Model: &svd}).Recommend(ctx, recUser, products, recTop)
		case "cbf":
			var cbf model.ContentModel
			if err := s.Load(artifact.BestCBF, &cbf); err != nil {
				return err
			}
			res, err = (&recall.ContentRecommender{Model: &cbf}).Recommend(ctx, recUser, table, recTop)
		default:
			return fmt.Errorf("unknown model %q (want cf, cf-store or cbf)", recModel)
		}
		if err != nil {
			return err
		}
		return printRecommendations(cmd, res)
	},
}

func printRecommendations(cmd *cobra.Command, res *recall.Result) error {
	out := cmd.OutOrStdout()
	if recAsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if len(res.Items) == 0 {
		fmt.Fprintf(out, "no recommendations for %s (%d products skipped)\n", recUser, len(res.Errors))
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPRODUCT\tSCORE")
	for i, it := range res.Items {
		fmt.Fprintf(w, "%d\t%s\t%.4f\n", i+1, it.ID, it.Score)
	}
	return w.Flush()
}

func init() {
	recommendCmd.Flags().StringVar(&recUser, "user", "", "User ID to recommend for")
	recommendCmd.Flags().StringVar(&recModel, "model", "cf", "Model to use: cf, cbf, or cf-store (factors published to redis)")
	recommendCmd.Flags().IntVar(&recTop, "top", recall.DefaultTopN, "Number of products to return")
	recommendCmd.Flags().BoolVar(&recAsJSON, "json", false, "Print the result as JSON")
	_ = recommendCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(recommendCmd)
}
