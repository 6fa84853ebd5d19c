package services

import (
	"errors"
	"math"
	"testing"

	"github.com/camden-git/mediaidentity/models"
)

// vec returns a descriptor that is x along the first axis and 0 elsewhere,
// so the distance between vec(a) and vec(b) is |a-b|.
func vec(x float32) models.Descriptor {
	var d models.Descriptor
	d[0] = x
	return d
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Descriptor
		want float64
	}{
		{"identical", vec(0.5), vec(0.5), 1},
		{"quarter apart", vec(0), vec(0.25), 0.875},
		{"one apart", vec(0), vec(1), 0.5},
		{"exactly scale apart", vec(0), vec(2), 0},
		{"clamped beyond scale", vec(-2), vec(2), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity() = %v, want %v", got, tt.want)
			}
			if back := Similarity(tt.b, tt.a); back != got {
				t.Errorf("Similarity is not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestBestSimilarity(t *testing.T) {
	corpus := []models.Descriptor{vec(1), vec(0.25), vec(3)}
	if got := BestSimilarity(vec(0), corpus); got != 0.875 {
		t.Errorf("BestSimilarity() = %v, want 0.875", got)
	}
	if got := BestSimilarity(vec(0), nil); got != 0 {
		t.Errorf("BestSimilarity(empty) = %v, want 0", got)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score  float64
		want   Confidence
		wantOK bool
	}{
		{1.0, ConfidenceHigh, true},
		{0.85, ConfidenceHigh, true},
		{0.8499, ConfidenceMedium, true},
		{0.80, ConfidenceMedium, true},
		{0.75, ConfidenceMedium, true},
		{0.70, ConfidenceLow, true},
		{0.65, ConfidenceLow, true},
		{0.6499, "", false},
		{0.50, "", false},
		{0, "", false},
	}
	for _, tt := range tests {
		got, ok := TierFor(tt.score)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("TierFor(%v) = (%q, %v), want (%q, %v)", tt.score, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in      string
		want    Confidence
		wantErr bool
	}{
		{"low", ConfidenceLow, false},
		{"Medium", ConfidenceMedium, false},
		{" HIGH ", ConfidenceHigh, false},
		{"", "", true},
		{"certain", "", true},
	}
	for _, tt := range tests {
		got, err := ParseConfidence(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidConfidence) {
				t.Errorf("ParseConfidence(%q) error = %v, want ErrInvalidConfidence", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseConfidence(%q) = (%q, %v), want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestFilterByConfidence(t *testing.T) {
	matches := []Match{
		{FaceIndex: 0, Confidence: ConfidenceHigh},
		{FaceIndex: 1, Confidence: ConfidenceLow},
		{FaceIndex: 2, Confidence: ConfidenceMedium},
	}
	tests := []struct {
		min  Confidence
		want []int
	}{
		{ConfidenceLow, []int{0, 1, 2}},
		{ConfidenceMedium, []int{0, 2}},
		{ConfidenceHigh, []int{0}},
	}
	for _, tt := range tests {
		t.Run(string(tt.min), func(t *testing.T) {
			got := FilterByConfidence(matches, tt.min)
			if len(got) != len(tt.want) {
				t.Fatalf("FilterByConfidence(%s) kept %d matches, want %d", tt.min, len(got), len(tt.want))
			}
			for i, m := range got {
				if m.FaceIndex != tt.want[i] {
					t.Errorf("match %d has face %d, want %d", i, m.FaceIndex, tt.want[i])
				}
			}
		})
	}
}
