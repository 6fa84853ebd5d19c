package models

import (
	"errors"
	"fmt"
	"math"
)

// DescriptorLength is the fixed dimensionality of a face descriptor.
const DescriptorLength = 128

// ErrInvalidDescriptor is returned when a descriptor does not have exactly
// DescriptorLength components.
var ErrInvalidDescriptor = errors.New("invalid face descriptor")

// Descriptor is a face embedding produced by an external detector.
// Two descriptors of the same person lie close in Euclidean space.
type Descriptor [DescriptorLength]float32

// NewDescriptor validates the raw detector output and converts it.
func NewDescriptor(values []float64) (Descriptor, error) {
	var d Descriptor
	if len(values) != DescriptorLength {
		return d, fmt.Errorf("%w: got %d components, want %d", ErrInvalidDescriptor, len(values), DescriptorLength)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return d, fmt.Errorf("%w: component %d is not finite", ErrInvalidDescriptor, i)
		}
		d[i] = float32(v)
	}
	return d, nil
}

// Values returns the descriptor as float64 components, for JSON output.
func (d Descriptor) Values() []float64 {
	out := make([]float64, DescriptorLength)
	for i, v := range d {
		out[i] = float64(v)
	}
	return out
}

// EncodeDescriptor packs the descriptor as little endian float32 bits.
func EncodeDescriptor(d Descriptor) []byte {
	data := make([]byte, DescriptorLength*4)
	for i, val := range d {
		offset := i * 4
		bits := math.Float32bits(val)
		data[offset] = byte(bits)
		data[offset+1] = byte(bits >> 8)
		data[offset+2] = byte(bits >> 16)
		data[offset+3] = byte(bits >> 24)
	}
	return data
}

// DecodeDescriptor is the inverse of EncodeDescriptor. Blobs of any other
// length are rejected.
func DecodeDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	if len(data) != DescriptorLength*4 {
		return d, fmt.Errorf("%w: blob is %d bytes, want %d", ErrInvalidDescriptor, len(data), DescriptorLength*4)
	}
	for i := range d {
		offset := i * 4
		bits := uint32(data[offset]) |
			uint32(data[offset+1])<<8 |
			uint32(data[offset+2])<<16 |
			uint32(data[offset+3])<<24
		d[i] = math.Float32frombits(bits)
	}
	return d, nil
}
