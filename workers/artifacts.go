package workers

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"ktm_scrooper/models"
	"ktm_scrooper/storage"
)

const artifactMaxAttempts = 3

// ArtifactWorker drains the artifact queue: per-capture HTML and screenshots,
// the run trace archive, and the CSV ledger all go to S3-compatible storage.
type ArtifactWorker struct {
	store     *storage.SQLiteStore
	uploader  Uploader
	triggerCh chan struct{}
	logFunc   LogFunc
}

// Uploader interface for S3-compatible storage
type Uploader interface {
	UploadFile(ctx context.Context, key, localPath string) error
}

func NewArtifactWorker(store *storage.SQLiteStore, uploader Uploader) *ArtifactWorker {
	return &ArtifactWorker{
		store:     store,
		uploader:  uploader,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *ArtifactWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *ArtifactWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the artifact worker loop
func (w *ArtifactWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Artifact worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("Artifact worker triggered manually")
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *ArtifactWorker) processBatch(ctx context.Context, batchSize int) {
	artifacts, err := w.store.ClaimPendingArtifacts(batchSize, artifactMaxAttempts)
	if err != nil {
		log.Printf("Artifact worker: query error: %v", err)
		return
	}

	if len(artifacts) == 0 {
		return
	}

	log.Printf("Artifact worker: uploading %d files", len(artifacts))

	var uploaded, failed int
	for i := range artifacts {
		a := &artifacts[i]

		key := artifactKey(a)
		if err := w.uploader.UploadFile(ctx, key, a.LocalPath); err != nil {
			log.Printf("Artifact worker: failed %s: %v", a.LocalPath, err)
			failed++
			// claim already bumped attempts; give up for good once they run out
			if a.Attempts+1 >= artifactMaxAttempts {
				w.store.MarkArtifactFailed(a.ID)
			}
			continue
		}

		if err := w.store.MarkArtifactUploaded(a.ID, key); err != nil {
			log.Printf("Artifact worker: failed to record %s: %v", key, err)
			failed++
			continue
		}

		uploaded++

		// Light pacing between uploads
		time.Sleep(100 * time.Millisecond)
	}

	if uploaded > 0 || failed > 0 {
		log.Printf("Artifact worker: uploaded %d, failed %d", uploaded, failed)
		w.logFunc(models.LogLevelInfo, "artifacts", fmt.Sprintf("Uploaded %d artifacts, %d failed", uploaded, failed))
	}
}

// artifactKey lays out the bucket: artifacts/{kind}/{date}/{filename}.
func artifactKey(a *models.Artifact) string {
	name := path.Base(strings.ReplaceAll(a.LocalPath, "\\", "/"))
	day := a.CreatedAt.Format("2006-01-02")
	return fmt.Sprintf("artifacts/%s/%s/%s", a.Kind, day, name)
}

// NoOpUploader skips the actual upload, for runs without S3 configured.
type NoOpUploader struct{}

func (u *NoOpUploader) UploadFile(ctx context.Context, key, localPath string) error {
	return nil
}

func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}
