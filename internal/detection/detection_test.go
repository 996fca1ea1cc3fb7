package detection

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	t.Parallel()

	records := []Record{
		{ID: "a", Image: []byte{0xFF, 0xD8, 0xFF}},
		{ID: "b"},
	}

	imageBased, tabularBased := Partition(records)

	require.Len(t, imageBased, 1)
	require.Len(t, tabularBased, 1)
	assert.Equal(t, "a", imageBased[0].ID)
	assert.Equal(t, "b", tabularBased[0].ID)
	assert.Equal(t, KindImage, imageBased[0].Kind())
	assert.Equal(t, KindTabular, tabularBased[0].Kind())
}

func TestPartitionEmptyImageIsTabular(t *testing.T) {
	t.Parallel()

	// A present-but-empty payload carries no scan; it must not land in the
	// image group.
	records := []Record{{ID: "x", Image: []byte{}}}
	imageBased, tabularBased := Partition(records)
	assert.Empty(t, imageBased)
	assert.Len(t, tabularBased, 1)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	records := []Record{
		{ID: "1", Prediction: &Prediction{Label: "Normal"}},
		{ID: "2", Prediction: &Prediction{Label: "Tumor"}},
		{ID: "3", Prediction: &Prediction{Label: "notckd"}},
		{ID: "4"}, // no prediction, counts toward total only
	}

	o := Summarize(records)
	assert.Equal(t, Overview{Total: 4, Normal: 2, Abnormal: 1}, o)
}

func TestRecordJSONToleratesAbsentFields(t *testing.T) {
	t.Parallel()

	// The service may omit confidence, probabilities and the evaluation
	// metrics entirely; decoding must not fail and accessors must be nil-safe.
	payload := `{"_id":"abc","createdAt":"2026-08-01T10:00:00Z","prediction":{"prediction":"ckd"}}`

	var r Record
	require.NoError(t, json.Unmarshal([]byte(payload), &r))
	assert.Equal(t, "abc", r.ID)
	assert.Equal(t, "ckd", r.Label())
	assert.False(t, r.IsImageBased())
	assert.Nil(t, r.Prediction.Probabilities)
	assert.Nil(t, r.Prediction.Precision)
	assert.Equal(t, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), r.CreatedAt)

	var empty Record
	assert.Empty(t, empty.Label())
}

func TestThumbnailDataURI(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ThumbnailDataURI(nil))
	assert.Empty(t, ThumbnailDataURI([]byte{}))

	png := []byte("\x89PNG\r\n\x1a\n00000000")
	uri := ThumbnailDataURI(png)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"), uri)

	// Unrecognized bytes fall back to jpeg rather than failing.
	uri = ThumbnailDataURI([]byte{0x01, 0x02, 0x03})
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"), uri)
}
