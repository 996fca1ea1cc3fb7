// Package detection defines the detection record model shared by the
// history service, the upload workflow and the local datastore.
package detection

import "time"

// Kind partitions detection records by their source material.
type Kind string

const (
	// KindImage marks records produced from an uploaded scan image.
	KindImage Kind = "image"
	// KindTabular marks records produced from tabular measurements.
	KindTabular Kind = "tabular"
)

// Prediction is the structured model output attached to a record.
// All fields except the label may be absent depending on which model
// produced the result.
type Prediction struct {
	Label           string             `json:"prediction"`
	Confidence      float64            `json:"confidence,omitempty"`
	Probabilities   map[string]float64 `json:"probabilities,omitempty"`
	Precision       *float64           `json:"precision,omitempty"`
	Recall          *float64           `json:"recall,omitempty"`
	ConfusionMatrix [][]int            `json:"confusion_matrix,omitempty"`
}

// Record is one persisted detection, as returned by the detection service.
// Records are read-only on this side; they are never mutated locally.
type Record struct {
	ID         string      `json:"_id"`
	CreatedAt  time.Time   `json:"createdAt"`
	Image      []byte      `json:"image,omitempty"`
	Prediction *Prediction `json:"prediction,omitempty"`
}

// IsImageBased reports whether the record carries a scan image. The image
// payload being present is the sole partition key: records without one are
// tabular-based.
func (r *Record) IsImageBased() bool {
	return len(r.Image) > 0
}

// Kind returns the partition kind for the record.
func (r *Record) Kind() Kind {
	if r.IsImageBased() {
		return KindImage
	}
	return KindTabular
}

// Label returns the prediction label, or empty when no prediction is
// attached.
func (r *Record) Label() string {
	if r.Prediction == nil {
		return ""
	}
	return r.Prediction.Label
}
