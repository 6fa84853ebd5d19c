package models

import (
	"errors"
	"math"
	"testing"
)

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestNewDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		wantErr bool
	}{
		{"exact length", filled(DescriptorLength, 0.25), false},
		{"too short", filled(127, 0.1), true},
		{"too long", filled(129, 0.1), true},
		{"empty", nil, true},
		{"nan component", append(filled(127, 0), math.NaN()), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDescriptor(tt.values)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDescriptor) {
					t.Errorf("NewDescriptor() error = %v, want ErrInvalidDescriptor", err)
				}
				return
			}
			if err != nil {
				t.Errorf("NewDescriptor() unexpected error: %v", err)
			}
		})
	}
}

func TestDecodeDescriptorRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 4, 511, 513} {
		if _, err := DecodeDescriptor(make([]byte, n)); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("DecodeDescriptor(%d bytes) error = %v, want ErrInvalidDescriptor", n, err)
		}
	}
}

func TestFaceDescriptor(t *testing.T) {
	d, err := NewDescriptor(filled(DescriptorLength, -0.5))
	if err != nil {
		t.Fatal(err)
	}
	var f Face
	if _, ok := f.Descriptor(); ok {
		t.Fatal("empty face reported a descriptor")
	}
	f.SetDescriptor(d)
	got, ok := f.Descriptor()
	if !ok || got != d {
		t.Errorf("Descriptor() = %v, %v; want stored value", got[0], ok)
	}

	f.DescriptorData = f.DescriptorData[:100]
	if _, ok := f.Descriptor(); ok {
		t.Error("truncated blob should not decode")
	}
}

func TestPersonDescriptorVectorsSkipsMalformed(t *testing.T) {
	d, _ := NewDescriptor(filled(DescriptorLength, 1))
	p := Person{Descriptors: []PersonDescriptor{
		{Data: EncodeDescriptor(d)},
		{Data: []byte{1, 2, 3}},
		{Data: EncodeDescriptor(d)},
	}}
	if got := len(p.DescriptorVectors()); got != 2 {
		t.Errorf("DescriptorVectors() len = %d, want 2", got)
	}
}
