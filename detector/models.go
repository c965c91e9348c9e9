package detector

import (
	"encoding/json"
	"fmt"
	"time"
)

// Match is one potential infringement found by the similarity detector.
type Match struct {
	Type             string    `json:"type"`
	URL              string    `json:"url"`
	Source           string    `json:"source"`
	Similarity       float64   `json:"similarity"`
	DetectedAt       time.Time `json:"detected_at"`
	ExceedsThreshold bool      `json:"exceeds_threshold"`
}

// Report is the detector output attached to a dispute at creation. The
// dispute core stores the encoded report verbatim and never interprets it,
// so the JSON shape here is the wire contract.
type Report struct {
	AssetPath             string  `json:"asset_path"`
	AssetType             string  `json:"asset_type"`
	Threshold             float64 `json:"threshold"`
	PotentialInfringement []Match `json:"potential_infringements"`
	CheckCompleted        bool    `json:"check_completed"`
}

// Encode renders the report as the opaque payload the dispute core stores.
func (r Report) Encode() (json.RawMessage, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("detector: encode report: %w", err)
	}
	return b, nil
}

// Flagged returns the matches at or above the report threshold.
func (r Report) Flagged() []Match {
	out := make([]Match, 0, len(r.PotentialInfringement))
	for _, m := range r.PotentialInfringement {
		if m.ExceedsThreshold {
			out = append(out, m)
		}
	}
	return out
}
