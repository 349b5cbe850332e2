package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mkaplan/chapterwise/internal/checkpoint"
	"github.com/mkaplan/chapterwise/internal/config"
	"github.com/mkaplan/chapterwise/internal/home"
	"github.com/mkaplan/chapterwise/internal/jobs"
	"github.com/mkaplan/chapterwise/internal/pipeline"
	"github.com/mkaplan/chapterwise/internal/placeholder"
	"github.com/mkaplan/chapterwise/internal/translator"
)

// stack is the wired application: checkpoint store, pipeline, and job
// manager sharing one config and logger.
type stack struct {
	store    *checkpoint.Store
	cp       *checkpoint.Manager
	pipeline *pipeline.Pipeline
	jobs     *jobs.Manager
}

// newStack opens the checkpoint database and wires the pipeline for the
// given placeholder format. dryRun swaps the OpenAI translator for an
// identity mock.
func newStack(ctx context.Context, cfg *config.Config, format placeholder.Format, dryRun bool) (*stack, error) {
	dbPath, uploadDir, err := storagePaths(cfg)
	if err != nil {
		return nil, err
	}
	store, err := checkpoint.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	cp := checkpoint.NewManager(store, uploadDir, logger)

	var tr translator.Translator
	if dryRun {
		tr = translator.NewMock()
	} else {
		tr = translator.NewOpenAITranslator(cfg.TranslatorConfig(), format, logger)
	}

	chunkCfg, err := cfg.ChunkerConfig()
	if err != nil {
		store.Close()
		return nil, err
	}
	p := pipeline.New(chunkCfg, tr, nil, logger)

	return &stack{
		store:    store,
		cp:       cp,
		pipeline: p,
		jobs:     jobs.NewManager(p, cp, logger),
	}, nil
}

func (s *stack) Close() error { return s.store.Close() }

// openStore opens the checkpoint store for read-only commands and returns
// the upload directory alongside it.
func openStore(ctx context.Context, cfg *config.Config) (*checkpoint.Store, string, error) {
	dbPath, uploadDir, err := storagePaths(cfg)
	if err != nil {
		return nil, "", err
	}
	store, err := checkpoint.Open(ctx, dbPath)
	if err != nil {
		return nil, "", err
	}
	return store, uploadDir, nil
}

// storagePaths resolves the checkpoint database and upload locations.
// The --home flag takes precedence over config paths.
func storagePaths(cfg *config.Config) (dbPath, uploadDir string, err error) {
	if homeDir != "" {
		h, err := home.New(homeDir)
		if err != nil {
			return "", "", err
		}
		if err := h.EnsureExists(); err != nil {
			return "", "", err
		}
		return h.DBPath(), h.UploadsPath(), nil
	}
	dbPath = cfg.DBPath()
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", err
		}
	}
	return dbPath, cfg.UploadDir(), nil
}

// watchProgress prints chunk-level progress to stdout.
func (s *stack) watchProgress() {
	s.pipeline.Events().Subscribe(func(ev pipeline.Event) {
		switch ev.Type {
		case pipeline.EventJobStarted:
			printf("job %s started (%d chunks)\n", ev.TranslationID, ev.TotalChunks)
		case pipeline.EventChunkCompleted:
			printf("  chunk %d/%d done\n", ev.ChunkIndex+1, ev.TotalChunks)
		case pipeline.EventChunkFailed:
			printf("  chunk %d/%d failed, keeping original text: %s\n", ev.ChunkIndex+1, ev.TotalChunks, ev.Error)
		case pipeline.EventJobCompleted:
			printf("job %s completed\n", ev.TranslationID)
		case pipeline.EventJobInterrupted:
			printf("job %s interrupted at chunk %d, resume with: chapterwise resume %s\n",
				ev.TranslationID, ev.ChunkIndex, ev.TranslationID)
		}
	})
}
