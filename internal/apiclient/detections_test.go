package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalscan/renalscan-go/internal/detection"
)

var mustPrediction = detection.Prediction{Label: "ckd", Confidence: 0.87}

func TestUploadScanSuccess(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testDetectionBase+"/detection",
		func(req *http.Request) (*http.Response, error) {
			mediaType := req.Header.Get("Content-Type")
			require.True(t, strings.HasPrefix(mediaType, "multipart/form-data"), mediaType)

			require.NoError(t, req.ParseMultipartForm(1<<20))
			file, header, err := req.FormFile("image")
			require.NoError(t, err)
			defer func() { _ = file.Close() }()
			assert.Equal(t, "scan.png", header.Filename)
			content, err := io.ReadAll(file)
			require.NoError(t, err)
			assert.Equal(t, "fakepng", string(content))

			return httpmock.NewStringResponse(http.StatusOK,
				`{"status":"success","data":{"prediction":{"prediction":"Tumor","confidence":0.92,"probabilities":{"Tumor":0.92,"Normal":0.08}}}}`), nil
		})

	res := c.UploadScan(context.Background(), "scan.png", strings.NewReader("fakepng"))
	require.True(t, res.OK(), res.Error)
	require.True(t, res.Data.Succeeded())
	require.NotNil(t, res.Data.Prediction)
	assert.Equal(t, "Tumor", res.Data.Prediction.Label)
	assert.InDelta(t, 0.92, res.Data.Prediction.Confidence, 1e-9)
}

func TestUploadScanApplicationFailure(t *testing.T) {
	c := newTestClient(t)

	// HTTP 200 with a non-success payload status is still a failure at the
	// workflow level; the client surfaces the payload untouched.
	httpmock.RegisterResponder(http.MethodPost, testDetectionBase+"/detection",
		httpmock.NewStringResponder(http.StatusOK, `{"status":"error"}`))

	res := c.UploadScan(context.Background(), "scan.png", strings.NewReader("x"))
	require.True(t, res.OK())
	assert.False(t, res.Data.Succeeded())
	assert.Nil(t, res.Data.Prediction)
}

func TestUploadScanTransportFailure(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testDetectionBase+"/detection",
		httpmock.NewErrorResponder(assert.AnError))

	res := c.UploadScan(context.Background(), "scan.png", strings.NewReader("x"))
	assert.False(t, res.OK())
	assert.Equal(t, "Upload failed", res.Error)
}

func TestListDetections(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testDetectionBase+"/detection/get-detections",
		httpmock.NewStringResponder(http.StatusOK,
			`{"data":{"detections":[
				{"_id":"img1","image":"`+"/9j/4AA="+`","prediction":{"prediction":"Tumor","confidence":0.9}},
				{"_id":"tab1","prediction":{"prediction":"ckd"}}
			]}}`))

	res := c.ListDetections(context.Background())
	require.True(t, res.OK(), res.Error)
	records := *res.Data
	require.Len(t, records, 2)
	assert.True(t, records[0].IsImageBased())
	assert.False(t, records[1].IsImageBased())
}

func TestPredictTabular(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testInferenceBase+"/predict",
		func(req *http.Request) (*http.Response, error) {
			var got map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			assert.Equal(t, "48", got["age"])
			return httpmock.NewStringResponse(http.StatusOK,
				`{"prediction":"ckd","confidence":0.87,"probabilities":{"ckd":0.87,"notckd":0.13}}`), nil
		})

	res := c.PredictTabular(context.Background(), map[string]string{"age": "48", "bp": "80"})
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, "ckd", res.Data.Label)
}

func TestPredictTabularMalformed(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testInferenceBase+"/predict",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	res := c.PredictTabular(context.Background(), nil)
	assert.False(t, res.OK())
}

func TestSavePrediction(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testDetectionBase+"/detection/save-prediction",
		func(req *http.Request) (*http.Response, error) {
			var got map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			assert.Equal(t, "ckd", got["prediction"])
			form, ok := got["formData"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "48", form["age"])
			return httpmock.NewStringResponse(http.StatusCreated, `{"status":"success"}`), nil
		})

	res := c.SavePrediction(context.Background(),
		map[string]string{"age": "48"},
		&mustPrediction)
	assert.True(t, res.OK(), res.Error)
}

func TestSavePredictionNilGuard(t *testing.T) {
	c := newTestClient(t)

	res := c.SavePrediction(context.Background(), nil, nil)
	assert.False(t, res.OK())
}
