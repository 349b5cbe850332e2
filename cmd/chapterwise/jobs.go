package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mkaplan/chapterwise/internal/checkpoint"
)

var (
	jobsStatus string
	jobsType   string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage translation jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List translation jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, _, err := openStore(ctx, cfgManager.Get())
		if err != nil {
			return err
		}
		defer store.Close()

		filter := &checkpoint.ListFilter{Limit: jobsLimit}
		if jobsStatus != "" {
			st := checkpoint.JobStatus(jobsStatus)
			filter.Status = &st
		}
		if jobsType != "" {
			filter.FileType = &jobsType
		}

		list, err := checkpoint.NewJobRepo(store).ListJobs(ctx, filter)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			printf("no jobs\n")
			return nil
		}
		printf("%-38s %-12s %-6s %8s  %s\n", "ID", "STATUS", "TYPE", "PROGRESS", "FILE")
		for _, j := range list {
			printf("%-38s %-12s %-6s %7.1f%%  %s\n",
				j.TranslationID, j.Status, j.FileType, j.Progress.Percent(), j.FileName)
		}
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <translation-id>",
	Short: "Show one job's status and progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, _, err := openStore(ctx, cfgManager.Get())
		if err != nil {
			return err
		}
		defer store.Close()

		j, err := checkpoint.NewJobRepo(store).GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		printf("id:       %s\n", j.TranslationID)
		printf("status:   %s\n", j.Status)
		printf("file:     %s (%s)\n", j.FileName, j.FileType)
		printf("progress: %d/%d chunks (%.1f%%), %d failed\n",
			j.Progress.CurrentChunkIndex, j.Progress.TotalChunks,
			j.Progress.Percent(), j.Progress.FailedChunks)
		printf("created:  %s\n", j.CreatedAt.Format("2006-01-02 15:04:05"))
		printf("updated:  %s\n", j.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <translation-id>",
	Short: "Delete a job, its checkpoints, and its preserved upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, uploadDir, err := openStore(ctx, cfgManager.Get())
		if err != nil {
			return err
		}
		defer store.Close()

		cp := checkpoint.NewManager(store, uploadDir, logger)
		if err := cp.DeleteJob(ctx, args[0]); err != nil {
			return err
		}
		printf("deleted %s\n", args[0])
		return nil
	},
}

var jobsExportCmd = &cobra.Command{
	Use:   "export <translation-id> <output-file>",
	Short: "Export a job's current output, completed or not",
	Long: `Write the job's document as translated so far, with all markup restored.
Chunks without a completed translation contribute their original text, so
the export is always a whole document with every placeholder resolved.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, uploadDir, err := openStore(ctx, cfgManager.Get())
		if err != nil {
			return err
		}
		defer store.Close()

		cp := checkpoint.NewManager(store, uploadDir, logger)
		out, err := cp.BuildTranslatedOutput(ctx, args[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], []byte(out), 0o644); err != nil {
			return err
		}
		printf("wrote %s\n", args[1])
		return nil
	},
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (running, paused, interrupted, error, completed)")
	jobsListCmd.Flags().StringVar(&jobsType, "type", "", "filter by file type (xhtml, txt, srt)")
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 0, "maximum number of jobs to show")

	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsDeleteCmd, jobsExportCmd)
	rootCmd.AddCommand(jobsCmd)
}
