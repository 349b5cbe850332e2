package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mkaplan/chapterwise/internal/checkpoint"
	"github.com/mkaplan/chapterwise/internal/document"
	"github.com/mkaplan/chapterwise/internal/state"
)

var (
	resumeOutput string
	resumeDryRun bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume <translation-id>",
	Short: "Resume an interrupted translation job",
	Long: `Resume a paused, interrupted, or errored job from its last checkpoint.

Already-translated chunks are never redone; the job continues from the
chunk after the last persisted one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		translationID := args[0]
		cfg := cfgManager.Get()

		// The placeholder format lives in the persisted snapshot; the
		// translator validates against it, so read it before wiring.
		store, _, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		job, err := checkpoint.NewJobRepo(store).GetJob(ctx, translationID)
		if err != nil {
			store.Close()
			return err
		}
		snapshot, err := state.Unmarshal(job.Config)
		store.Close()
		if err != nil {
			return err
		}

		s, err := newStack(ctx, cfg, snapshot.Format, resumeDryRun)
		if err != nil {
			return err
		}
		defer s.Close()
		s.watchProgress()

		res, err := s.jobs.ResumeJob(ctx, translationID)
		if err != nil {
			return err
		}
		if res.Status != checkpoint.StatusCompleted {
			return nil
		}

		fileType := document.FileType(job.FileType)
		original, readErr := os.ReadFile(job.FileName)
		if readErr != nil {
			// The original temp upload may be cleaned up; the per-job copy
			// made at job creation takes over.
			if preserved := s.cp.PreservedUploadPath(translationID, job.FileName); preserved != "" {
				original, readErr = os.ReadFile(preserved)
			}
		}
		if readErr != nil {
			original = nil
		}
		return writeOutput(job.FileName, resumeOutput, fileType, original, res.Output)
	},
}

func init() {
	resumeCmd.Flags().StringVarP(&resumeOutput, "output", "o", "", "output file (default: <name>.translated.<ext>)")
	resumeCmd.Flags().BoolVar(&resumeDryRun, "dry-run", false, "run the pipeline without calling the model")

	rootCmd.AddCommand(resumeCmd)
}
