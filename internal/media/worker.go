package media

import (
	"context"
	"errors"
	"image"
	"time"

	"trekmap/internal/domain/reviewimages"
	"trekmap/internal/metrics"

	"go.uber.org/zap"
)

type ImageCompressor interface {
	Compress(buf []byte) ([]byte, error)
}

type Uploader interface {
	Upload(ctx context.Context, buf []byte, folder, preset string) (reviewimages.Asset, error)
}

type WorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	Lease       time.Duration
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	Folder      string
	Preset      string
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Interval:    5 * time.Second,
		BatchSize:   10,
		Lease:       5 * time.Minute,
		MaxAttempts: 5,
		Backoff:     10 * time.Second,
		MaxBackoff:  10 * time.Minute,
		Folder:      "reviews",
	}
}

// Worker drains the review image outbox.
type Worker struct {
	jobs       reviewimages.JobStore
	compressor ImageCompressor
	uploader   Uploader
	cfg        WorkerConfig
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger
}

func NewWorker(jobs reviewimages.JobStore, c ImageCompressor, u Uploader, cfg WorkerConfig, m *metrics.Metrics, logger *zap.SugaredLogger) *Worker {
	d := DefaultWorkerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.Lease <= 0 {
		cfg.Lease = d.Lease
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = d.Backoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = d.MaxBackoff
	}
	if cfg.Folder == "" {
		cfg.Folder = d.Folder
	}
	return &Worker{jobs: jobs, compressor: c, uploader: u, cfg: cfg, metrics: m, logger: logger}
}

// Run processes batches every Interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Infow("review image worker started", "interval", w.cfg.Interval, "batch", w.cfg.BatchSize)
	for {
		// drain everything runnable before sleeping
		for {
			n, err := w.ProcessBatch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Errorw("claim review image jobs", "error", err)
				}
				break
			}
			if n < w.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			w.logger.Infow("review image worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessBatch claims and handles one batch. It returns how many jobs were claimed.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	jobs, err := w.jobs.Claim(ctx, w.cfg.BatchSize, w.cfg.Lease, w.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			// claimed jobs come back after the lease expires
			return len(jobs), ctx.Err()
		}
		w.process(ctx, job)
	}
	return len(jobs), nil
}

func (w *Worker) process(ctx context.Context, job reviewimages.Job) {
	start := time.Now()

	err := w.handle(ctx, job)
	if err == nil {
		w.metrics.RecordImageJob("done", time.Since(start).Seconds())
		return
	}

	if errors.Is(err, reviewimages.ErrJobLost) {
		w.metrics.RecordImageJob("lost", time.Since(start).Seconds())
		return
	}

	maxAttempts, outcome := w.cfg.MaxAttempts, "retry"
	if permanent(err) {
		maxAttempts = job.Attempts
	}
	if job.Attempts >= maxAttempts {
		outcome = "failed"
	}
	w.metrics.RecordImageJob(outcome, time.Since(start).Seconds())
	w.logger.Warnw("review image job failed",
		"job_id", job.ID,
		"review_id", job.ReviewID,
		"attempt", job.Attempts,
		"outcome", outcome,
		"error", err,
	)

	if ferr := w.jobs.Fail(ctx, job, err, maxAttempts, w.backoff(job.Attempts)); ferr != nil {
		w.logger.Errorw("mark review image job failed", "job_id", job.ID, "error", ferr)
	}
}

func (w *Worker) handle(ctx context.Context, job reviewimages.Job) error {
	compressed, err := w.compressor.Compress(job.Payload)
	if err != nil {
		return err
	}
	asset, err := w.uploader.Upload(ctx, compressed, w.cfg.Folder, w.cfg.Preset)
	if err != nil {
		return err
	}
	img, err := w.jobs.Complete(ctx, job, asset)
	if err != nil {
		if errors.Is(err, reviewimages.ErrJobLost) {
			w.logger.Warnw("review image job reclaimed elsewhere, upload left unattached",
				"job_id", job.ID, "review_id", job.ReviewID, "attempt", job.Attempts, "public_id", asset.PublicID)
		}
		return err
	}
	w.logger.Infow("review image stored", "job_id", job.ID, "review_id", job.ReviewID, "review_image_id", img.ID, "url", asset.URL)
	return nil
}

// permanent errors park the job on the first attempt.
func permanent(err error) bool {
	return errors.Is(err, ErrImageTooLarge) || errors.Is(err, image.ErrFormat)
}

// backoff doubles per attempt, capped at MaxBackoff.
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	return d
}
