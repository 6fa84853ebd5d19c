package services

import (
	"sort"

	"github.com/camden-git/mediaidentity/models"
)

// Match is a proposed identity for one face of a photo.
type Match struct {
	FaceIndex  int        `json:"face_index"`
	PersonID   string     `json:"person_id"`
	PersonName string     `json:"person_name"`
	Similarity float64    `json:"similarity"`
	Confidence Confidence `json:"confidence"`
}

type knownPerson struct {
	id     string
	name   string
	corpus []models.Descriptor
}

func knownPeople(people []models.Person) []knownPerson {
	out := make([]knownPerson, 0, len(people))
	for i := range people {
		corpus := people[i].DescriptorVectors()
		if len(corpus) == 0 {
			continue
		}
		out = append(out, knownPerson{id: people[i].ID, name: people[i].Name, corpus: corpus})
	}
	return out
}

// RecognizeFaces proposes the best known person for every face carrying a
// valid descriptor. A person's score is their best-matching descriptor;
// the first person reaching the top score wins. Faces whose best score is
// under the low floor produce no match. Nothing is mutated.
func RecognizeFaces(faces []models.Face, people []models.Person) []Match {
	known := knownPeople(people)
	matches := make([]Match, 0, len(faces))
	if len(known) == 0 {
		return matches
	}

	for i := range faces {
		d, ok := faces[i].Descriptor()
		if !ok {
			continue
		}

		best := -1
		bestScore := 0.0
		for j := range known {
			score := BestSimilarity(d, known[j].corpus)
			if best < 0 || score > bestScore {
				best, bestScore = j, score
			}
		}

		tier, ok := TierFor(bestScore)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			FaceIndex:  faces[i].FaceIndex,
			PersonID:   known[best].id,
			PersonName: known[best].name,
			Similarity: bestScore,
			Confidence: tier,
		})
	}
	return matches
}

// Suggestion is a candidate person for a descriptor.
type Suggestion struct {
	PersonID   string  `json:"person_id"`
	PersonName string  `json:"person_name"`
	Avatar     *string `json:"avatar,omitempty"`
	Similarity float64 `json:"similarity"`
}

// RankPeople scores every person with descriptors against d and returns
// those at or above threshold, best first, at most limit entries.
func RankPeople(d models.Descriptor, people []models.Person, threshold float64, limit int) []Suggestion {
	out := make([]Suggestion, 0)
	for i := range people {
		corpus := people[i].DescriptorVectors()
		if len(corpus) == 0 {
			continue
		}
		score := BestSimilarity(d, corpus)
		if score < threshold {
			continue
		}
		out = append(out, Suggestion{
			PersonID:   people[i].ID,
			PersonName: people[i].Name,
			Avatar:     people[i].Avatar,
			Similarity: score,
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Similarity > out[b].Similarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
