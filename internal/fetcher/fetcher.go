// Package fetcher implements the model download pipeline that feeds the
// progress tracker.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modelwatch/modelwatch/internal/progress"
	"github.com/modelwatch/modelwatch/internal/telemetry"
)

// Config controls Pool behavior.
type Config struct {
	// Workers is the number of concurrent download goroutines.
	Workers int
	// DestDir is the directory downloaded files land in.
	DestDir string
	// UserAgent is sent with every request.
	UserAgent string
	// Timeout bounds a single file download; zero means no deadline.
	Timeout time.Duration
}

// Pool consumes download jobs from a queue and reports progress through the
// tracker. Retry policy is deliberately absent: a failed job is marked as an
// error and the caller decides whether to resubmit.
type Pool struct {
	queue   *Queue
	tracker *progress.Tracker
	client  *http.Client
	cfg     Config
	logger  *zap.Logger
}

// NewPool constructs a Pool.
func NewPool(queue *Queue, tracker *progress.Tracker, cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "modelwatch/0.1"
	}
	return &Pool{
		queue:   queue,
		tracker: tracker,
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		logger:  logger,
	}
}

// Run blocks, consuming jobs until the context finishes. Workers share the
// queue; each job is processed by exactly one worker.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			logger := p.logger.With(zap.Int("worker", idx))
			for {
				job, err := p.queue.Dequeue(ctx)
				if err != nil {
					if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
						return
					}
					logger.Error("queue dequeue failed", zap.Error(err))
					return
				}
				p.processJob(ctx, job, logger)
			}
		}(i)
	}
	wg.Wait()
}

func (p *Pool) processJob(ctx context.Context, job Job, logger *zap.Logger) {
	logger.Info("download job started",
		zap.String("job_id", job.ID),
		zap.String("model", job.ModelName),
		zap.Int("files", len(job.URLs)),
	)
	// Seed the record so an early failure still has something to mark.
	p.tracker.Update(job.ModelName, 0, 0, "")

	for _, rawURL := range job.URLs {
		dest, err := p.fetchFile(ctx, job.ModelName, rawURL)
		if err != nil {
			p.tracker.MarkError(job.ModelName, err.Error())
			telemetry.ObserveDownloadJob("error")
			logger.Error("download job failed",
				zap.String("job_id", job.ID),
				zap.String("model", job.ModelName),
				zap.String("url", rawURL),
				zap.Error(err),
			)
			return
		}
		if isArchive(dest) {
			if err := p.extract(ctx, job.ModelName, dest); err != nil {
				p.tracker.MarkError(job.ModelName, err.Error())
				telemetry.ObserveDownloadJob("error")
				logger.Error("archive extraction failed",
					zap.String("job_id", job.ID),
					zap.String("model", job.ModelName),
					zap.String("archive", dest),
					zap.Error(err),
				)
				return
			}
		}
	}

	p.tracker.MarkComplete(job.ModelName)
	telemetry.ObserveDownloadJob("complete")
	logger.Info("download job complete",
		zap.String("job_id", job.ID),
		zap.String("model", job.ModelName),
	)
}

// fetchFile streams one URL to the destination directory, forwarding byte
// counts through the tracker callback. It returns the path of the written
// file.
func (p *Pool) fetchFile(ctx context.Context, modelName, rawURL string) (string, error) {
	filename, err := filenameFromURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", filename, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", filename, resp.StatusCode)
	}

	if err := os.MkdirAll(p.cfg.DestDir, 0o755); err != nil {
		return "", fmt.Errorf("create dest dir: %w", err)
	}
	dest := filepath.Join(p.cfg.DestDir, filename)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	report := p.tracker.Callback(modelName, filename)
	report(progress.Sample{Current: 0, Total: total, Filename: filename})

	counter := &countingWriter{report: func(n int64) {
		report(progress.Sample{Current: n, Total: total, Filename: filename})
	}}
	written, err := io.Copy(io.MultiWriter(out, counter), resp.Body)
	telemetry.ObserveDownloadBytes(written)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	return dest, nil
}

// countingWriter reports the cumulative byte count after every chunk.
type countingWriter struct {
	n      int64
	report func(int64)
}

func (c *countingWriter) Write(b []byte) (int, error) {
	c.n += int64(len(b))
	c.report(c.n)
	return len(b), nil
}

func filenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("url %q has no usable filename", rawURL)
	}
	return name, nil
}

func isArchive(dest string) bool {
	return strings.HasSuffix(dest, ".tar.gz") || strings.HasSuffix(dest, ".tgz")
}
