package detector

import (
	"encoding/json"
	"testing"
	"time"
)

func TestReport_EncodeShape(t *testing.T) {
	report := Report{
		AssetPath: "/assets/sunset.png",
		AssetType: "image",
		Threshold: 0.75,
		PotentialInfringement: []Match{{
			Type:             "image",
			URL:              "https://example.com/copy.png",
			Source:           "web",
			Similarity:       0.91,
			DetectedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			ExceedsThreshold: true,
		}},
		CheckCompleted: true,
	}

	raw, err := report.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if doc["check_completed"] != true {
		t.Fatalf("expected check_completed, got %+v", doc)
	}
	matches, ok := doc["potential_infringements"].([]any)
	if !ok || len(matches) != 1 {
		t.Fatalf("expected potential_infringements key, got %+v", doc)
	}
}

func TestReport_Flagged(t *testing.T) {
	report := Report{
		Threshold: 0.75,
		PotentialInfringement: []Match{
			{URL: "a", Similarity: 0.9, ExceedsThreshold: true},
			{URL: "b", Similarity: 0.4, ExceedsThreshold: false},
			{URL: "c", Similarity: 0.8, ExceedsThreshold: true},
		},
	}

	flagged := report.Flagged()
	if len(flagged) != 2 {
		t.Fatalf("expected 2 flagged matches, got %d", len(flagged))
	}
	if flagged[0].URL != "a" || flagged[1].URL != "c" {
		t.Fatalf("unexpected flagged set: %+v", flagged)
	}
}
