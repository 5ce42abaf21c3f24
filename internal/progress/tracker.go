package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modelwatch/modelwatch/internal/telemetry"
)

const defaultChannelBuffer = 10

// Config controls Tracker behavior.
//   - ChannelBuffer: capacity of each subscriber channel (default 10).
//   - HeartbeatInterval: idle wait before a subscription emits a heartbeat
//     (default 1s).
type Config struct {
	ChannelBuffer     int
	HeartbeatInterval time.Duration
}

// Tracker is the progress registry for model downloads. It keeps the latest
// Record per model name and fans every mutation out to the subscribers of
// that name. It is safe for concurrent use by producers and subscribers and
// never blocks a producer on subscriber consumption.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]Record

	hub       *hub
	heartbeat time.Duration
	logger    *zap.Logger
}

// New constructs a Tracker. Callers own the instance and pass it to both the
// reporting and the request-handling side; there is no package-level default.
func New(cfg Config, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = time.Second
	}
	return &Tracker{
		records:   make(map[string]Record),
		hub:       newHub(cfg.ChannelBuffer, logger),
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Update reports download progress for name, overwriting any previous record.
// A non-positive total means the expected size is unknown and leaves the
// percentage at 0.
func (t *Tracker) Update(name string, current, total int64, filename string) {
	t.Set(name, current, total, filename, StatusDownloading)
}

// Set is Update with an explicit status. Status transitions are not
// validated; the tracker stores whatever the producer reports.
func (t *Tracker) Set(name string, current, total int64, filename string, status Status) {
	rec := Record{
		Name:      name,
		Current:   current,
		Total:     total,
		Percent:   percentOf(current, total),
		Filename:  filename,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	}
	t.mu.Lock()
	t.records[name] = rec
	t.mu.Unlock()

	telemetry.ObserveUpdate(string(status))
	t.logger.Debug("progress updated",
		zap.String("model", name),
		zap.Float64("percent", rec.Percent),
		zap.String("filename", filename),
		zap.String("status", string(status)),
	)
	t.hub.notify(name, rec)
}

// Get returns a copy of the latest record for name.
func (t *Tracker) Get(name string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[name]
	return rec, ok
}

// ListActive returns copies of every record whose download is still in
// flight (status downloading or extracting). Order is unspecified.
func (t *Tracker) ListActive() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	active := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		if rec.Status.Active() {
			active = append(active, rec)
		}
	}
	return active
}

// MarkComplete marks the download for name as finished and forces the
// percentage to 100. Unknown names are ignored.
func (t *Tracker) MarkComplete(name string) {
	t.mu.Lock()
	rec, ok := t.records[name]
	if ok {
		rec.Status = StatusComplete
		rec.Percent = 100
		rec.UpdatedAt = time.Now().UTC()
		t.records[name] = rec
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	telemetry.ObserveUpdate(string(StatusComplete))
	t.logger.Info("download complete", zap.String("model", name))
	t.hub.notify(name, rec)
}

// MarkError marks the download for name as failed and attaches the failure
// reason. Unknown names are ignored.
func (t *Tracker) MarkError(name, message string) {
	t.mu.Lock()
	rec, ok := t.records[name]
	if ok {
		rec.Status = StatusError
		rec.Error = message
		rec.UpdatedAt = time.Now().UTC()
		t.records[name] = rec
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	telemetry.ObserveUpdate(string(StatusError))
	t.logger.Error("download failed",
		zap.String("model", name),
		zap.String("reason", message),
	)
	t.hub.notify(name, rec)
}

// ListenerCount reports the number of live subscribers for name.
func (t *Tracker) ListenerCount(name string) int {
	return t.hub.listenerCount(name)
}
