package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkaplan/chapterwise/internal/checkpoint"
	"github.com/mkaplan/chapterwise/internal/document"
	"github.com/mkaplan/chapterwise/internal/placeholder"
	"github.com/mkaplan/chapterwise/internal/translator"
)

var (
	translateSource string
	translateTarget string
	translateModel  string
	translateOutput string
	translateDryRun bool
)

var translateCmd = &cobra.Command{
	Use:   "translate <file>",
	Short: "Translate a document, checkpointing after every chunk",
	Long: `Translate an XHTML, text, Markdown, or SRT file.

The job checkpoints to SQLite after every chunk. Ctrl+C stops it cleanly
at a chunk boundary; continue later with "chapterwise resume <id>".

Examples:
  chapterwise translate book.xhtml --target French
  chapterwise translate notes.md --source German --target English -o notes.en.md
  chapterwise translate film.srt --target Spanish`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fileType, chapters, err := document.Load(path, content)
		if err != nil {
			return err
		}

		cfg := cfgManager.Get()
		stateCfg := cfg.StateConfig()
		// Flags accept BCP 47 codes or display names; the prompt gets the
		// display name either way.
		if translateSource != "" {
			stateCfg.SourceLanguage = translator.LanguageName(translateSource)
		}
		if translateTarget != "" {
			stateCfg.TargetLanguage = translator.LanguageName(translateTarget)
		}
		if translateModel != "" {
			stateCfg.ModelName = translateModel
			cfg.Translation.Model = translateModel
		}

		format := placeholder.DetectFormat(string(content))
		s, err := newStack(ctx, cfg, format, translateDryRun)
		if err != nil {
			return err
		}
		defer s.Close()
		s.watchProgress()

		res, err := s.jobs.StartJob(ctx, path, string(fileType), stateCfg, chapters)
		if err != nil {
			return err
		}
		if res.Status != checkpoint.StatusCompleted {
			return nil
		}
		return writeOutput(path, translateOutput, fileType, content, res.Output)
	},
}

// writeOutput writes the assembled translation. SRT files are rebuilt
// cue by cue when the translation kept the cue structure; otherwise the
// raw assembled text is written.
func writeOutput(inputPath, outputPath string, fileType document.FileType, original []byte, translated string) error {
	if outputPath == "" {
		outputPath = defaultOutputPath(inputPath)
	}

	if fileType == document.TypeSRT {
		if rebuilt, ok := rebuildSRT(string(original), translated); ok {
			translated = rebuilt
		}
	}
	if err := os.WriteFile(outputPath, []byte(translated), 0o644); err != nil {
		return err
	}
	printf("wrote %s\n", outputPath)
	return nil
}

func rebuildSRT(original, translated string) (string, bool) {
	cues, err := document.ParseSRT(original)
	if err != nil {
		return "", false
	}
	texts := strings.Split(strings.TrimSpace(translated), "\n\n")
	updated, err := document.ApplyTranslations(cues, texts)
	if err != nil {
		return "", false
	}
	return document.BuildSRT(updated), true
}

func defaultOutputPath(inputPath string) string {
	if i := strings.LastIndex(inputPath, "."); i > 0 {
		return fmt.Sprintf("%s.translated%s", inputPath[:i], inputPath[i:])
	}
	return inputPath + ".translated"
}

func init() {
	translateCmd.Flags().StringVar(&translateSource, "source", "", "source language (default from config)")
	translateCmd.Flags().StringVar(&translateTarget, "target", "", "target language (default from config)")
	translateCmd.Flags().StringVar(&translateModel, "model", "", "model name (default from config)")
	translateCmd.Flags().StringVarP(&translateOutput, "output", "o", "", "output file (default: <name>.translated.<ext>)")
	translateCmd.Flags().BoolVar(&translateDryRun, "dry-run", false, "run the pipeline without calling the model")

	rootCmd.AddCommand(translateCmd)
}
