// Package workflow drives the scan upload and tabular prediction flows:
// a single-submission state machine over the shared API client, with the
// history refresh and user notifications that follow a completed run.
package workflow

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/renalscan/renalscan-go/internal/apiclient"
	"github.com/renalscan/renalscan-go/internal/detection"
	"github.com/renalscan/renalscan-go/internal/logging"
	"github.com/renalscan/renalscan-go/internal/notification"
	"github.com/renalscan/renalscan-go/internal/observability"
)

// Status is the upload task's lifecycle state.
type Status string

const (
	// StatusIdle means no submission is staged or running.
	StatusIdle Status = "idle"
	// StatusUploading means a submission is in flight.
	StatusUploading Status = "uploading"
	// StatusSucceeded means the last submission produced a prediction.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the last submission failed; the staged file is
	// kept so the user can retry without reselecting it.
	StatusFailed Status = "failed"
)

// Uploader is the collaborator surface the workflow drives. Satisfied by
// *apiclient.Client.
type Uploader interface {
	UploadScan(ctx context.Context, filename string, content io.Reader) apiclient.Result[apiclient.UploadOutcome]
	PredictTabular(ctx context.Context, measurements map[string]string) apiclient.Result[detection.Prediction]
	SavePrediction(ctx context.Context, measurements map[string]string, pred *detection.Prediction) apiclient.Result[struct{}]
}

// Refresher triggers a history refetch after a successful submission.
// Satisfied by *history.Service.
type Refresher interface {
	Refresh(ctx context.Context) ([]detection.Record, error)
}

// Notifier is the subset of the notification center the workflow uses.
type Notifier interface {
	SendToast(message string, tt notification.ToastType, component string) error
}

// Snapshot is the read-only task view rendered by the upload page.
type Snapshot struct {
	Status     Status                `json:"status"`
	Filename   string                `json:"filename,omitempty"`
	Prediction *detection.Prediction `json:"prediction,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// UploadTask is the scan submission state machine. One task exists per
// process; its methods are safe for concurrent use and a second Submit
// while one is in flight is a no-op.
type UploadTask struct {
	uploader  Uploader
	refresher Refresher
	notifier  Notifier
	metrics   *observability.Metrics
	log       *slog.Logger

	mu         sync.Mutex
	status     Status
	filename   string
	content    []byte
	prediction *detection.Prediction
	errMsg     string
}

// NewUploadTask creates the task in the idle state. refresher, notifier
// and metrics may be nil.
func NewUploadTask(uploader Uploader, refresher Refresher, notifier Notifier, metrics *observability.Metrics) *UploadTask {
	return &UploadTask{
		uploader:  uploader,
		refresher: refresher,
		notifier:  notifier,
		metrics:   metrics,
		status:    StatusIdle,
		log:       logging.ForService("workflow"),
	}
}

// SelectFile stages a scan for submission. Selecting replaces any
// previously staged file and clears the result of the prior run, so stale
// outcomes never show next to a fresh selection. Ignored while a
// submission is in flight.
func (t *UploadTask) SelectFile(filename string, content []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusUploading {
		return false
	}
	t.filename = filename
	t.content = content
	t.prediction = nil
	t.errMsg = ""
	t.status = StatusIdle
	return true
}

// Submit runs the staged scan through the detection collaborator. It is a
// no-op without a staged file or while another submission is in flight.
// On success the staged file is cleared and the history is refreshed
// exactly once; on failure the file is kept and no refresh happens.
func (t *UploadTask) Submit(ctx context.Context) Snapshot {
	t.mu.Lock()
	if t.status == StatusUploading || len(t.content) == 0 {
		snap := t.snapshotLocked()
		t.mu.Unlock()
		return snap
	}
	t.status = StatusUploading
	t.prediction = nil
	t.errMsg = ""
	filename := t.filename
	content := t.content
	t.mu.Unlock()

	res := t.uploader.UploadScan(ctx, filename, bytes.NewReader(content))

	failMsg := ""
	switch {
	case !res.OK():
		failMsg = res.Error
	case !res.Data.Succeeded():
		failMsg = "Scan analysis failed"
	}

	// record the outcome, then release the lock before the history
	// refresh and notifications so Snapshot and SelectFile stay
	// responsive while they run
	t.mu.Lock()
	if failMsg != "" {
		t.status = StatusFailed
		t.errMsg = failMsg
		snap := t.snapshotLocked()
		t.mu.Unlock()

		t.observe("failed")
		t.toast(failMsg, notification.ToastTypeError)
		return snap
	}
	t.status = StatusSucceeded
	t.prediction = res.Data.Prediction
	t.filename = ""
	t.content = nil
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.observe("succeeded")
	t.toast("Scan analyzed successfully!", notification.ToastTypeSuccess)
	t.refreshOnce(ctx)
	return snap
}

// SubmitTabular runs the measurement form through the inference
// collaborator, persists the prediction so it appears in history, and
// refreshes the history view. Persistence failure is surfaced as a
// warning but does not void the prediction the user already got.
func (t *UploadTask) SubmitTabular(ctx context.Context, measurements map[string]string) (*detection.Prediction, string) {
	res := t.uploader.PredictTabular(ctx, measurements)
	if !res.OK() {
		t.observe("failed")
		t.toast(res.Error, notification.ToastTypeError)
		return nil, res.Error
	}

	pred := res.Data
	if save := t.uploader.SavePrediction(ctx, measurements, pred); !save.OK() {
		t.log.Warn("saving tabular prediction", "error", save.Error)
		t.toast("Prediction could not be saved to history", notification.ToastTypeWarning)
	} else {
		t.refreshOnce(ctx)
	}

	t.observe("succeeded")
	t.toast("Prediction complete!", notification.ToastTypeSuccess)
	return pred, ""
}

// Snapshot returns the current task view.
func (t *UploadTask) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Reset returns the task to idle, dropping any staged file and result.
func (t *UploadTask) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusUploading {
		return
	}
	t.filename = ""
	t.content = nil
	t.prediction = nil
	t.errMsg = ""
	t.status = StatusIdle
}

func (t *UploadTask) snapshotLocked() Snapshot {
	return Snapshot{
		Status:     t.status,
		Filename:   t.filename,
		Prediction: t.prediction,
		Error:      t.errMsg,
	}
}

func (t *UploadTask) refreshOnce(ctx context.Context) {
	if t.refresher == nil {
		return
	}
	if _, err := t.refresher.Refresh(ctx); err != nil {
		t.log.Warn("refreshing history after submission", "error", err)
	}
}

func (t *UploadTask) toast(message string, tt notification.ToastType) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.SendToast(message, tt, "workflow"); err != nil {
		t.log.Warn("sending toast", "error", err)
	}
}

func (t *UploadTask) observe(outcome string) {
	if t.metrics == nil {
		return
	}
	t.metrics.UploadOutcomes.WithLabelValues(outcome).Inc()
}
