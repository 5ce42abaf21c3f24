package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modelwatch/modelwatch/internal/fetcher"
)

const enqueueTimeout = 5 * time.Second

type downloadRequest struct {
	ModelName string   `json:"model_name"`
	URLs      []string `json:"urls"`
}

// submitDownload handles POST /v1/downloads. It validates the request,
// enqueues a job, and answers 202 with the job ID.
func (s *Server) submitDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateDownloadRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job := fetcher.Job{
		ID:        uuid.NewString(),
		ModelName: req.ModelName,
		URLs:      req.URLs,
	}
	ctx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	if err := s.queue.Enqueue(ctx, job); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("enqueue download failed",
			zap.String("model", req.ModelName),
			zap.Error(err),
		)
		writeError(w, status, "failed to enqueue download")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// listActiveDownloads handles GET /v1/downloads/active. It returns snapshot
// copies of every record still downloading or extracting.
func (s *Server) listActiveDownloads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"downloads": s.tracker.ListActive(),
	})
}

// getModelProgress handles GET /v1/models/{model_name}/progress. It returns
// the latest record for the model or 404 when nothing was ever reported.
func (s *Server) getModelProgress(w http.ResponseWriter, r *http.Request) {
	name, err := parseModelName(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, ok := s.tracker.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "no progress for model")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func parseModelName(r *http.Request) (string, error) {
	name := strings.TrimSpace(chi.URLParam(r, "model_name"))
	if name == "" {
		return "", errors.New("model_name is required")
	}
	return name, nil
}

func validateDownloadRequest(req downloadRequest) error {
	if strings.TrimSpace(req.ModelName) == "" {
		return errors.New("model_name is required")
	}
	if len(req.URLs) == 0 {
		return errors.New("at least one URL required")
	}
	for _, u := range req.URLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return errors.New("urls must be http or https")
		}
	}
	return nil
}
