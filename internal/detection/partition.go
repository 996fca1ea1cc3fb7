package detection

// Partition splits records into image-based and tabular-based groups,
// preserving input order within each group.
func Partition(records []Record) (imageBased, tabularBased []Record) {
	for i := range records {
		if records[i].IsImageBased() {
			imageBased = append(imageBased, records[i])
		} else {
			tabularBased = append(tabularBased, records[i])
		}
	}
	return imageBased, tabularBased
}

// Overview summarizes a detection list for the dashboard landing view.
type Overview struct {
	Total    int `json:"total"`
	Normal   int `json:"normal"`
	Abnormal int `json:"abnormal"`
}

// normalLabels are prediction labels counted as a normal result.
var normalLabels = map[string]struct{}{
	"Normal": {},
	"normal": {},
	"notckd": {},
}

// Summarize counts records by outcome. Records without a prediction count
// toward the total only.
func Summarize(records []Record) Overview {
	o := Overview{Total: len(records)}
	for i := range records {
		label := records[i].Label()
		if label == "" {
			continue
		}
		if _, ok := normalLabels[label]; ok {
			o.Normal++
		} else {
			o.Abnormal++
		}
	}
	return o
}
