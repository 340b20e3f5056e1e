package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/recpipe/remote"
)

var syncBackend string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload or download the artifact directory",
}

var syncUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload every artifact file to remote storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, objects, err := openSyncer(cmd.Context(), cfg, syncBackend)
		if err != nil {
			return err
		}
		defer objects.Close()

		report, err := syncer.Upload(cmd.Context(), cfg.Artifacts.Root)
		if err != nil {
			return err
		}
		return printReport(cmd, "uploaded", report)
	},
}

var syncDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Restore the artifact directory from remote storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, objects, err := openSyncer(cmd.Context(), cfg, syncBackend)
		if err != nil {
			return err
		}
		defer objects.Close()

		report, err := syncer.Download(cmd.Context(), cfg.Artifacts.Root)
		if err != nil {
			return err
		}
		return printReport(cmd, "downloaded", report)
	},
}

func printReport(cmd *cobra.Command, verb string, report *remote.SyncReport) error {
	out := cmd.OutOrStdout()
	for _, t := range report.Transferred {
		fmt.Fprintf(out, "%s %s\n", verb, t)
	}
	for _, f := range report.Failed {
		fmt.Fprintf(out, "FAILED %s\n", f.Error())
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d files failed", len(report.Failed), len(report.Failed)+len(report.Transferred))
	}
	return nil
}

func init() {
	syncCmd.PersistentFlags().StringVar(&syncBackend, "backend", "", "Remote backend: s3 or gcs (default from config)")
	syncCmd.AddCommand(syncUploadCmd, syncDownloadCmd)
	rootCmd.AddCommand(syncCmd)
}
