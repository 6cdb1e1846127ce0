package models

import (
	"encoding/json"
	"testing"
)

// TestParseConfidenceLevel verifies tier parsing, including the medium default.
func TestParseConfidenceLevel(t *testing.T) {
	cases := []struct {
		input   string
		want    ConfidenceLevel
		wantErr bool
	}{
		{"high", ConfidenceHigh, false},
		{"Medium", ConfidenceMedium, false},
		{" LOW ", ConfidenceLow, false},
		{"", ConfidenceMedium, false},
		{"certain", "", true},
	}
	for _, tc := range cases {
		got, err := ParseConfidenceLevel(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseConfidenceLevel(%q) err = %v, wantErr %v", tc.input, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseConfidenceLevel(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// TestConfidenceCountsAdd verifies nil tiers are tallied as unmatched.
func TestConfidenceCountsAdd(t *testing.T) {
	high, low := ConfidenceHigh, ConfidenceLow
	var c ConfidenceCounts
	c.Add(&high)
	c.Add(&high)
	c.Add(&low)
	c.Add(nil)

	if c.High != 2 || c.Medium != 0 || c.Low != 1 || c.Unmatched != 1 {
		t.Errorf("counts = %+v", c)
	}
	if c.Total() != 4 {
		t.Errorf("Total = %d, want 4", c.Total())
	}
}

// TestConfidenceCountsJSONKeys verifies the persisted key names of the audit record.
func TestConfidenceCountsJSONKeys(t *testing.T) {
	data, err := json.Marshal(ConfidenceCounts{High: 1, Unmatched: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"high_confidence":1,"medium_confidence":0,"low_confidence":0,"unmatched":2}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
