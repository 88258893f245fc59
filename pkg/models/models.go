package models

import (
	"time"
)

// GridSpec is the wire form of a hyqcore grid descriptor.
type GridSpec struct {
	XMin float64 `json:"x_min"`
	YMax float64 `json:"y_max"`
	LenX float64 `json:"len_x" validate:"gt=0"`
	LenY float64 `json:"len_y" validate:"gt=0"`
	ResX float64 `json:"res_x" validate:"gt=0"`
	ResY float64 `json:"res_y" validate:"gt=0"`
	CRS  string  `json:"crs,omitempty"`
}

// AquiferSpec carries uniform aquifer properties. T in m²/s, S dimensionless.
type AquiferSpec struct {
	H0       float64 `json:"h0"`
	T        float64 `json:"transmissivity" validate:"gt=0"`
	S        float64 `json:"storativity" validate:"gt=0"`
	M        float64 `json:"thickness" validate:"gte=0"`
	Confined bool    `json:"confined"`
}

// WellSpec is a pumping well; Q in m³/s, positive for extraction.
type WellSpec struct {
	ID string  `json:"id" validate:"required"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Q  float64 `json:"q"`
}

// PointSpec names a location whose head is reported for every timestep.
type PointSpec struct {
	ID string  `json:"id" validate:"required"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// ScenarioRequest describes one forward run.
type ScenarioRequest struct {
	Name      string      `json:"name,omitempty"`
	Grid      GridSpec    `json:"grid" validate:"required"`
	Aquifer   AquiferSpec `json:"aquifer" validate:"required"`
	Wells     []WellSpec  `json:"wells" validate:"dive"`
	Timesteps []float64   `json:"timesteps" validate:"required,min=1,dive,gt=0"`
	Points    []PointSpec `json:"observation_points,omitempty" validate:"dive"`

	// Terms overrides the W(u) series length.
	Terms int `json:"terms,omitempty" validate:"omitempty,gte=1,lte=200"`
	// IncludeHeads adds the full head rasters to the result.
	IncludeHeads bool   `json:"include_heads,omitempty"`
	CallbackURL  string `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// SnapshotResult summarizes the head field at one timestep.
type SnapshotResult struct {
	Time        float64     `json:"time"`
	Label       string      `json:"label"`
	MinHead     float64     `json:"min_head"`
	MeanHead    float64     `json:"mean_head"`
	MaxDrawdown float64     `json:"max_drawdown"`
	Head        [][]float64 `json:"head,omitempty"`
}

type Hydrograph struct {
	ID   string    `json:"id"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Head []float64 `json:"head"`
}

// ScenarioResult is what a run produces and what the store persists.
type ScenarioResult struct {
	ID          string           `json:"id"`
	BatchID     string           `json:"batch_id,omitempty"`
	Name        string           `json:"name,omitempty"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	Rows        int              `json:"rows"`
	Cols        int              `json:"cols"`
	Transform   [6]float64       `json:"transform"`
	CRS         string           `json:"crs,omitempty"`
	H0          float64          `json:"h0"`
	Confined    bool             `json:"confined"`
	Wells       int              `json:"wells"`
	Snapshots   []SnapshotResult `json:"snapshots"`
	Hydrographs []Hydrograph     `json:"hydrographs,omitempty"`
	RuntimeMs   float64          `json:"runtime_ms"`
	CreatedAt   time.Time        `json:"created_at"`
}

const (
	StatusQueued = "queued"
	StatusOK     = "ok"
	StatusError  = "error"
)

// RunSummary is a list entry of stored runs.
type RunSummary struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Wells     int       `json:"wells"`
	Timesteps int       `json:"timesteps"`
	CreatedAt time.Time `json:"created_at"`
}

// BatchRequest queues several scenarios; results are stored and, when a
// callback URL is given, announced by webhook.
type BatchRequest struct {
	BatchID     string            `json:"batch_id,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty" validate:"omitempty,url"`
	Scenarios   []ScenarioRequest `json:"scenarios" validate:"required,min=1,max=256,dive"`
}

type BatchAccepted struct {
	BatchID string   `json:"batch_id"`
	RunIDs  []string `json:"run_ids"`
}

// ObservationSpec is one measured drawdown s at distance r and time t.
type ObservationSpec struct {
	R        float64 `json:"r" validate:"gte=0"`
	Time     float64 `json:"t" validate:"gt=0"`
	Drawdown float64 `json:"s"`
}

// FitRequest estimates T and S from a constant-rate pumping test.
type FitRequest struct {
	Q             float64           `json:"q" validate:"ne=0"`
	Observations  []ObservationSpec `json:"observations" validate:"required,min=2,dive"`
	Method        string            `json:"method,omitempty" validate:"omitempty,oneof=nelder-mead lbfgs lm"`
	InitialT      float64           `json:"initial_t,omitempty" validate:"omitempty,gt=0"`
	InitialS      float64           `json:"initial_s,omitempty" validate:"omitempty,gt=0"`
	Relative      bool              `json:"relative,omitempty"`
	MaxIterations int               `json:"max_iterations,omitempty" validate:"omitempty,gte=1"`
}

type FitResponse struct {
	Transmissivity float64 `json:"transmissivity"`
	Storativity    float64 `json:"storativity"`
	RMSE           float64 `json:"rmse"`
	Method         string  `json:"method"`
	Status         string  `json:"status"`
	Iterations     int     `json:"iterations"`
	FuncEvals      int     `json:"func_evals"`
	RuntimeMs      float64 `json:"runtime_ms"`
}

// WorkItem is one queued batch scenario.
type WorkItem struct {
	RunID       string
	BatchID     string
	Index       int
	Scenario    ScenarioRequest
	CallbackURL string
	QueuedAt    time.Time
}

// WorkResult is produced by a worker for every WorkItem.
type WorkResult struct {
	RunID          string
	BatchID        string
	Index          int
	Result         *ScenarioResult
	Err            error
	ProcessingTime time.Duration
}

// WebhookItem is a queued notification.
type WebhookItem struct {
	URL     string
	Payload WebhookPayload
}

// WebhookPayload is posted to callback URLs after a batch scenario finishes.
type WebhookPayload struct {
	Event       string    `json:"event"`
	RunID       string    `json:"run_id"`
	BatchID     string    `json:"batch_id,omitempty"`
	Index       int       `json:"index"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Timesteps   []float64 `json:"timesteps,omitempty"`
	MaxDrawdown []float64 `json:"max_drawdown,omitempty"`
	RuntimeMs   float64   `json:"runtime_ms"`
	Time        time.Time `json:"time"`
}

const EventScenarioCompleted = "scenario.completed"
