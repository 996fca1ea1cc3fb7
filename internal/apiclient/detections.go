package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/renalscan/renalscan-go/internal/detection"
)

// UploadStatusSuccess is the success sentinel in the upload response
// payload. Any other value means the analysis failed even when the HTTP
// status was 2xx.
const UploadStatusSuccess = "success"

// UploadOutcome is the decoded upload-detection response: the payload
// status field plus the structured prediction on success.
type UploadOutcome struct {
	Status     string                `json:"status"`
	Prediction *detection.Prediction `json:"prediction,omitempty"`
}

// Succeeded reports whether the payload carries the success sentinel.
func (u *UploadOutcome) Succeeded() bool {
	return u.Status == UploadStatusSuccess
}

type uploadEnvelope struct {
	remoteEnvelope
	Data struct {
		Prediction *detection.Prediction `json:"prediction"`
	} `json:"data"`
}

type detectionsEnvelope struct {
	remoteEnvelope
	Data struct {
		Detections []detection.Record `json:"detections"`
	} `json:"data"`
}

// UploadScan submits a scan image as a multipart payload under the "image"
// field. The collaborator runs inference and persists the result in one
// call.
func (c *Client) UploadScan(ctx context.Context, filename string, content io.Reader) Result[UploadOutcome] {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return failure[UploadOutcome]("Upload failed")
	}
	if _, err := io.Copy(part, content); err != nil {
		return failure[UploadOutcome]("Upload failed")
	}
	if err := mw.Close(); err != nil {
		return failure[UploadOutcome]("Upload failed")
	}

	status, data, doErr := c.do(ctx, epUpload, http.MethodPost, c.cfg.DetectionBaseURL+"/detection", buf.Bytes(), mw.FormDataContentType())
	if doErr != nil {
		return failure[UploadOutcome]("Upload failed")
	}
	if !is2xx(status) {
		return failure[UploadOutcome](remoteMessage(data, "Upload failed"))
	}

	var env uploadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("malformed upload response")
		return failure[UploadOutcome]("Upload failed")
	}
	return success(&UploadOutcome{Status: env.Status, Prediction: env.Data.Prediction})
}

// ListDetections retrieves the caller's full detection history.
func (c *Client) ListDetections(ctx context.Context) Result[[]detection.Record] {
	status, data, err := c.do(ctx, epList, http.MethodGet, c.cfg.DetectionBaseURL+"/detection/get-detections", nil, "")
	if err != nil {
		return failure[[]detection.Record]("Failed to fetch detections")
	}
	if !is2xx(status) {
		return failure[[]detection.Record](remoteMessage(data, "Failed to fetch detections"))
	}
	var env detectionsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("malformed detections response")
		return failure[[]detection.Record]("Failed to fetch detections")
	}
	records := env.Data.Detections
	return success(&records)
}

// PredictTabular submits the measurement form to the inference
// collaborator and returns the raw prediction.
func (c *Client) PredictTabular(ctx context.Context, measurements map[string]string) Result[detection.Prediction] {
	body, err := json.Marshal(measurements)
	if err != nil {
		return failure[detection.Prediction]("Prediction failed")
	}
	status, data, doErr := c.do(ctx, epPredict, http.MethodPost, c.cfg.InferenceBaseURL+"/predict", body, "application/json")
	if doErr != nil {
		return failure[detection.Prediction]("Prediction failed")
	}
	if !is2xx(status) {
		return failure[detection.Prediction](remoteMessage(data, "Prediction failed"))
	}
	var pred detection.Prediction
	if err := json.Unmarshal(data, &pred); err != nil || pred.Label == "" {
		c.log.Warn("malformed prediction response")
		return failure[detection.Prediction]("Prediction failed")
	}
	return success(&pred)
}

// savePredictionRequest pairs the submitted measurements with the
// prediction they produced, matching the persistence collaborator's shape.
type savePredictionRequest struct {
	FormData map[string]string `json:"formData"`
	detection.Prediction
}

// SavePrediction persists a tabular prediction so it appears in history.
func (c *Client) SavePrediction(ctx context.Context, measurements map[string]string, pred *detection.Prediction) Result[struct{}] {
	if pred == nil {
		return failure[struct{}]("Failed to save prediction")
	}
	body, err := json.Marshal(savePredictionRequest{FormData: measurements, Prediction: *pred})
	if err != nil {
		return failure[struct{}]("Failed to save prediction")
	}
	status, data, doErr := c.do(ctx, epSave, http.MethodPost, c.cfg.DetectionBaseURL+"/detection/save-prediction", body, "application/json")
	if doErr != nil {
		return failure[struct{}]("Failed to save prediction")
	}
	if !is2xx(status) {
		return failure[struct{}](remoteMessage(data, "Failed to save prediction"))
	}
	return success(&struct{}{})
}
