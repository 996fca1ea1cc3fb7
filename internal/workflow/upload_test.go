package workflow

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalscan/renalscan-go/internal/apiclient"
	"github.com/renalscan/renalscan-go/internal/detection"
	"github.com/renalscan/renalscan-go/internal/notification"
)

type fakeUploader struct {
	uploadCalls atomic.Int32
	uploadRes   apiclient.Result[apiclient.UploadOutcome]

	predictRes apiclient.Result[detection.Prediction]
	saveRes    apiclient.Result[struct{}]
	savedForm  map[string]string

	block chan struct{} // when set, UploadScan waits until closed
}

func (f *fakeUploader) UploadScan(_ context.Context, _ string, content io.Reader) apiclient.Result[apiclient.UploadOutcome] {
	f.uploadCalls.Add(1)
	_, _ = io.ReadAll(content)
	if f.block != nil {
		<-f.block
	}
	return f.uploadRes
}

func (f *fakeUploader) PredictTabular(context.Context, map[string]string) apiclient.Result[detection.Prediction] {
	return f.predictRes
}

func (f *fakeUploader) SavePrediction(_ context.Context, form map[string]string, _ *detection.Prediction) apiclient.Result[struct{}] {
	f.savedForm = form
	return f.saveRes
}

type fakeRefresher struct {
	calls atomic.Int32
}

func (f *fakeRefresher) Refresh(context.Context) ([]detection.Record, error) {
	f.calls.Add(1)
	return nil, nil
}

type fakeNotifier struct {
	messages []string
	types    []notification.ToastType
}

func (f *fakeNotifier) SendToast(message string, tt notification.ToastType, _ string) error {
	f.messages = append(f.messages, message)
	f.types = append(f.types, tt)
	return nil
}

func successOutcome() apiclient.Result[apiclient.UploadOutcome] {
	return apiclient.Result[apiclient.UploadOutcome]{Data: &apiclient.UploadOutcome{
		Status: apiclient.UploadStatusSuccess,
		Prediction: &detection.Prediction{
			Label:         "Tumor",
			Confidence:    0.92,
			Probabilities: map[string]float64{"Tumor": 0.92, "Normal": 0.08},
		},
	}}
}

func TestSubmitWithoutFileIsNoOp(t *testing.T) {
	up := &fakeUploader{uploadRes: successOutcome()}
	task := NewUploadTask(up, nil, nil, nil)

	snap := task.Submit(context.Background())
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Zero(t, up.uploadCalls.Load())
}

func TestSubmitSuccessClearsFileAndRefreshesOnce(t *testing.T) {
	up := &fakeUploader{uploadRes: successOutcome()}
	ref := &fakeRefresher{}
	not := &fakeNotifier{}
	task := NewUploadTask(up, ref, not, nil)

	require.True(t, task.SelectFile("scan.png", []byte("fakepng")))
	snap := task.Submit(context.Background())

	assert.Equal(t, StatusSucceeded, snap.Status)
	require.NotNil(t, snap.Prediction)
	assert.Equal(t, "Tumor", snap.Prediction.Label)
	assert.InDelta(t, 0.92, snap.Prediction.Confidence, 1e-9)
	assert.Empty(t, snap.Filename)

	assert.Equal(t, int32(1), ref.calls.Load())
	require.NotEmpty(t, not.types)
	assert.Equal(t, notification.ToastTypeSuccess, not.types[0])

	// no staged file anymore, resubmission is a no-op
	task.Submit(context.Background())
	assert.Equal(t, int32(1), up.uploadCalls.Load())
}

func TestSubmitFailureKeepsFileAndSkipsRefresh(t *testing.T) {
	up := &fakeUploader{uploadRes: apiclient.Result[apiclient.UploadOutcome]{Error: "Upload failed"}}
	ref := &fakeRefresher{}
	not := &fakeNotifier{}
	task := NewUploadTask(up, ref, not, nil)

	require.True(t, task.SelectFile("scan.png", []byte("fakepng")))
	snap := task.Submit(context.Background())

	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "Upload failed", snap.Error)
	assert.Equal(t, "scan.png", snap.Filename)
	assert.Zero(t, ref.calls.Load())
	require.NotEmpty(t, not.types)
	assert.Equal(t, notification.ToastTypeError, not.types[0])

	// staged file survives, a retry reaches the collaborator again
	task.Submit(context.Background())
	assert.Equal(t, int32(2), up.uploadCalls.Load())
}

func TestSubmitApplicationFailure(t *testing.T) {
	up := &fakeUploader{uploadRes: apiclient.Result[apiclient.UploadOutcome]{
		Data: &apiclient.UploadOutcome{Status: "error"},
	}}
	ref := &fakeRefresher{}
	task := NewUploadTask(up, ref, nil, nil)

	require.True(t, task.SelectFile("scan.png", []byte("x")))
	snap := task.Submit(context.Background())

	assert.Equal(t, StatusFailed, snap.Status)
	assert.Zero(t, ref.calls.Load())
}

func TestSelectFileClearsPriorResult(t *testing.T) {
	up := &fakeUploader{uploadRes: successOutcome()}
	task := NewUploadTask(up, nil, nil, nil)

	require.True(t, task.SelectFile("a.png", []byte("a")))
	task.Submit(context.Background())
	require.Equal(t, StatusSucceeded, task.Snapshot().Status)

	require.True(t, task.SelectFile("b.png", []byte("b")))
	snap := task.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Prediction)
	assert.Equal(t, "b.png", snap.Filename)
}

func TestConcurrentSubmitCollapses(t *testing.T) {
	up := &fakeUploader{uploadRes: successOutcome(), block: make(chan struct{})}
	task := NewUploadTask(up, nil, nil, nil)
	require.True(t, task.SelectFile("scan.png", []byte("x")))

	done := make(chan Snapshot, 1)
	go func() { done <- task.Submit(context.Background()) }()

	// wait for the first submission to take the uploading state
	for task.Snapshot().Status != StatusUploading {
		time.Sleep(time.Millisecond)
	}

	// second submit while in flight is a no-op
	snap := task.Submit(context.Background())
	assert.Equal(t, StatusUploading, snap.Status)
	assert.False(t, task.SelectFile("other.png", []byte("y")))

	close(up.block)
	final := <-done
	assert.Equal(t, StatusSucceeded, final.Status)
	assert.Equal(t, int32(1), up.uploadCalls.Load())
}

type blockingRefresher struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRefresher) Refresh(context.Context) ([]detection.Record, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

// TestSnapshotNotBlockedDuringRefresh: the post-success history refresh
// must not hold the task lock, or every Snapshot and SelectFile would
// stall behind the collaborator round trip.
func TestSnapshotNotBlockedDuringRefresh(t *testing.T) {
	up := &fakeUploader{uploadRes: successOutcome()}
	ref := &blockingRefresher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	task := NewUploadTask(up, ref, nil, nil)
	require.True(t, task.SelectFile("scan.png", []byte("x")))

	done := make(chan Snapshot, 1)
	go func() { done <- task.Submit(context.Background()) }()
	<-ref.entered

	got := make(chan Snapshot, 1)
	go func() { got <- task.Snapshot() }()
	select {
	case snap := <-got:
		assert.Equal(t, StatusSucceeded, snap.Status)
	case <-time.After(time.Second):
		t.Fatal("Snapshot blocked during history refresh")
	}

	// staging the next scan must not wait for the refresh either
	assert.True(t, task.SelectFile("next.png", []byte("y")))

	close(ref.release)
	final := <-done
	assert.Equal(t, StatusSucceeded, final.Status)
}

func TestSubmitTabularSavesAndRefreshes(t *testing.T) {
	pred := detection.Prediction{Label: "ckd", Confidence: 0.87}
	up := &fakeUploader{
		predictRes: apiclient.Result[detection.Prediction]{Data: &pred},
		saveRes:    apiclient.Result[struct{}]{Data: &struct{}{}},
	}
	ref := &fakeRefresher{}
	task := NewUploadTask(up, ref, nil, nil)

	form := map[string]string{"age": "48", "bp": "80"}
	got, errMsg := task.SubmitTabular(context.Background(), form)
	require.Empty(t, errMsg)
	require.NotNil(t, got)
	assert.Equal(t, "ckd", got.Label)
	assert.Equal(t, form, up.savedForm)
	assert.Equal(t, int32(1), ref.calls.Load())
}

func TestSubmitTabularPredictionFailure(t *testing.T) {
	up := &fakeUploader{
		predictRes: apiclient.Result[detection.Prediction]{Error: "Prediction failed"},
	}
	ref := &fakeRefresher{}
	task := NewUploadTask(up, ref, nil, nil)

	got, errMsg := task.SubmitTabular(context.Background(), nil)
	assert.Nil(t, got)
	assert.Equal(t, "Prediction failed", errMsg)
	assert.Zero(t, ref.calls.Load())
}

func TestSubmitTabularSaveFailureKeepsPrediction(t *testing.T) {
	pred := detection.Prediction{Label: "ckd"}
	up := &fakeUploader{
		predictRes: apiclient.Result[detection.Prediction]{Data: &pred},
		saveRes:    apiclient.Result[struct{}]{Error: "Failed to save prediction"},
	}
	ref := &fakeRefresher{}
	task := NewUploadTask(up, ref, nil, nil)

	got, errMsg := task.SubmitTabular(context.Background(), nil)
	require.Empty(t, errMsg)
	require.NotNil(t, got)
	assert.Zero(t, ref.calls.Load())
}
