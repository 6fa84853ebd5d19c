package services

import (
	"testing"

	"github.com/camden-git/mediaidentity/models"
)

func person(id, name string, corpus ...models.Descriptor) models.Person {
	p := models.Person{ID: id, Name: name}
	for _, d := range corpus {
		p.Descriptors = append(p.Descriptors, models.PersonDescriptor{PersonID: id, Data: models.EncodeDescriptor(d)})
	}
	return p
}

func face(index int, d *models.Descriptor) models.Face {
	f := models.Face{FaceIndex: index}
	if d != nil {
		f.SetDescriptor(*d)
	}
	return f
}

func ptr(d models.Descriptor) *models.Descriptor { return &d }

func TestRecognizeFaces(t *testing.T) {
	alice := person("a", "Alice", vec(0))
	bob := person("b", "Bob", vec(10), vec(5.2))

	faces := []models.Face{
		face(0, ptr(vec(0.25))), // alice, high
		face(1, ptr(vec(0.4))),  // alice, medium
		face(2, ptr(vec(5))),    // bob via his second descriptor, 0.9
		face(3, ptr(vec(2.5))),  // nobody above the floor
		face(4, nil),
	}
	got := RecognizeFaces(faces, []models.Person{alice, bob})

	want := []struct {
		face   int
		person string
		tier   Confidence
	}{
		{0, "a", ConfidenceHigh},
		{1, "a", ConfidenceMedium},
		{2, "b", ConfidenceHigh},
	}
	if len(got) != len(want) {
		t.Fatalf("RecognizeFaces() returned %d matches, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].FaceIndex != w.face || got[i].PersonID != w.person || got[i].Confidence != w.tier {
			t.Errorf("match %d = %+v, want face %d -> %s (%s)", i, got[i], w.face, w.person, w.tier)
		}
	}
}

func TestRecognizeFacesTieGoesToFirstPerson(t *testing.T) {
	first := person("first", "First", vec(0))
	second := person("second", "Second", vec(0))

	got := RecognizeFaces([]models.Face{face(0, ptr(vec(0.25)))}, []models.Person{first, second})
	if len(got) != 1 || got[0].PersonID != "first" {
		t.Fatalf("RecognizeFaces() = %+v, want a single match for first", got)
	}
}

func TestRecognizeFacesSkipsMalformedData(t *testing.T) {
	broken := person("x", "Broken")
	broken.Descriptors = []models.PersonDescriptor{{PersonID: "x", Data: []byte{1, 2, 3}}}
	alice := person("a", "Alice", vec(0))

	bad := models.Face{FaceIndex: 0, DescriptorData: []byte{9, 9}}
	good := face(1, ptr(vec(0.25)))

	got := RecognizeFaces([]models.Face{bad, good}, []models.Person{broken, alice})
	if len(got) != 1 || got[0].FaceIndex != 1 || got[0].PersonID != "a" {
		t.Fatalf("RecognizeFaces() = %+v, want only face 1 -> a", got)
	}
}

func TestRecognizeFacesNoPeople(t *testing.T) {
	got := RecognizeFaces([]models.Face{face(0, ptr(vec(0)))}, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("RecognizeFaces() = %#v, want empty non-nil slice", got)
	}
}

func TestRankPeople(t *testing.T) {
	people := []models.Person{
		person("far", "Far", vec(1)),       // 0.5
		person("near", "Near", vec(0.25)),  // 0.875
		person("mid", "Mid", vec(0.5)),     // 0.75
		person("empty", "Empty"),           // no corpus
		person("close", "Close", vec(0.4)), // 0.8
	}

	got := RankPeople(vec(0), people, 0.6, 2)
	if len(got) != 2 {
		t.Fatalf("RankPeople() returned %d suggestions, want 2", len(got))
	}
	if got[0].PersonID != "near" || got[1].PersonID != "close" {
		t.Errorf("RankPeople() order = %s, %s, want near, close", got[0].PersonID, got[1].PersonID)
	}

	all := RankPeople(vec(0), people, 0.6, 0)
	if len(all) != 3 {
		t.Errorf("RankPeople(no limit) returned %d suggestions, want 3", len(all))
	}
}
