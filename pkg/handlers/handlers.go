// Package handlers implements the HTTP API of the drawdown service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kacperjurak/hyqcore/internal/processing"
	"github.com/kacperjurak/hyqcore/internal/utils"
	"github.com/kacperjurak/hyqcore/pkg/logging"
	"github.com/kacperjurak/hyqcore/pkg/models"
	"github.com/kacperjurak/hyqcore/pkg/store"
)

// RunStore is the part of the run store the handlers use.
type RunStore interface {
	Save(ctx context.Context, r *models.ScenarioResult) error
	Get(ctx context.Context, id string) (*models.ScenarioResult, error)
	List(ctx context.Context, opts store.ListOptions) ([]models.RunSummary, error)
}

// Submitter queues batch scenarios.
type Submitter interface {
	Submit(ctx context.Context, job models.WorkItem) error
}

type Handler struct {
	processor *processing.ScenarioProcessor
	store     RunStore
	pool      Submitter

	// DefaultCallbackURL is used for batches that carry no callback URL.
	DefaultCallbackURL string
	// MaxBodyBytes limits request bodies; zero means unlimited.
	MaxBodyBytes int64
}

func New(p *processing.ScenarioProcessor, s RunStore, pool Submitter) *Handler {
	return &Handler{processor: p, store: s, pool: pool}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/scenarios", h.RunScenario)
	r.Post("/scenarios/batch", h.SubmitBatch)
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)
	r.Post("/fit", h.Fit)
}

// RunScenario evaluates one scenario synchronously, stores and returns it.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	var req models.ScenarioRequest
	if err := decode(w, r, h.MaxBodyBytes, &req); err != nil {
		writeErr(w, err)
		return
	}

	res, err := h.processor.Process(&req)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.store.Save(r.Context(), res); err != nil {
		writeErr(w, fmt.Errorf("store run: %w", err))
		return
	}
	logging.Info().
		Str("run_id", res.ID).
		Str("scenario", res.Name).
		Int("wells", res.Wells).
		Float64("runtime_ms", res.RuntimeMs).
		Msg("scenario run")
	writeJSON(w, http.StatusCreated, res)
}

// SubmitBatch queues every scenario of a batch and answers 202 with the
// run ids in request order. When queueing fails partway the error response
// carries the ids of the scenarios already queued.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var batch models.BatchRequest
	if err := decode(w, r, h.MaxBodyBytes, &batch); err != nil {
		writeErr(w, err)
		return
	}
	if batch.BatchID == "" {
		batch.BatchID = utils.GenerateID()
	}

	accepted := models.BatchAccepted{BatchID: batch.BatchID, RunIDs: make([]string, 0, len(batch.Scenarios))}
	now := time.Now().UTC()
	for i, sc := range batch.Scenarios {
		job := models.WorkItem{
			RunID:       utils.GenerateID(),
			BatchID:     batch.BatchID,
			Index:       i,
			Scenario:    sc,
			CallbackURL: firstNonEmpty(sc.CallbackURL, batch.CallbackURL, h.DefaultCallbackURL),
			QueuedAt:    now,
		}
		if err := h.pool.Submit(r.Context(), job); err != nil {
			logging.Warn().Err(err).Str("batch_id", batch.BatchID).Int("queued", i).Msg("batch partially queued")
			status, resp := errorResponse(err)
			if i > 0 {
				resp.BatchID = accepted.BatchID
				resp.RunIDs = accepted.RunIDs
			}
			writeJSON(w, status, resp)
			return
		}
		accepted.RunIDs = append(accepted.RunIDs, job.RunID)
	}

	logging.Info().Str("batch_id", batch.BatchID).Int("scenarios", len(batch.Scenarios)).Msg("batch queued")
	writeJSON(w, http.StatusAccepted, accepted)
}

// ListRuns answers GET /runs?batch_id=&limit=&offset=.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{BatchID: q.Get("batch_id")}
	var err error
	if opts.Limit, err = intParam(q.Get("limit"), 1000); err != nil {
		writeError(w, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	if opts.Offset, err = intParam(q.Get("offset"), -1); err != nil {
		writeError(w, http.StatusBadRequest, "offset "+err.Error())
		return
	}

	runs, err := h.store.List(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !utils.ValidID(id) {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	res, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Fit estimates transmissivity and storativity from pumping test data.
func (h *Handler) Fit(w http.ResponseWriter, r *http.Request) {
	var req models.FitRequest
	if err := decode(w, r, h.MaxBodyBytes, &req); err != nil {
		writeErr(w, err)
		return
	}
	res, err := h.processor.Fit(&req)
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// intParam parses a non-negative query value; max < 0 means unbounded.
func intParam(s string, max int) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	if max >= 0 && n > max {
		return 0, fmt.Errorf("must not exceed %d", max)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
