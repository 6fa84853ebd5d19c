package services

import (
	"math"

	"github.com/camden-git/mediaidentity/models"
)

// distanceScale is the euclidean distance treated as "completely unrelated".
const distanceScale = 2.0

// Similarity maps the euclidean distance between two descriptors onto
// [0, 1], where 1 means identical.
func Similarity(a, b models.Descriptor) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Max(0, 1-math.Sqrt(sum)/distanceScale)
}

// BestSimilarity returns the highest similarity between d and any
// descriptor of corpus, or 0 for an empty corpus.
func BestSimilarity(d models.Descriptor, corpus []models.Descriptor) float64 {
	best := 0.0
	for i := range corpus {
		if s := Similarity(d, corpus[i]); s > best {
			best = s
		}
	}
	return best
}
