// Package drawff trains feed-forward networks from the
// drawnet package with drawsgd.
package drawff

import (
	"fmt"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/drawnet/drawsgd"
)

// A Sample is a training sample for a feed-forward neural
// network.
// It indicates the network's input and the target output.
type Sample struct {
	Input  anyvec.Vector
	Output anyvec.Vector
}

// A SampleList is a drawsgd.SampleList that produces
// feed-forward samples.
type SampleList interface {
	drawsgd.SampleList

	GetSample(idx int) (*Sample, error)
}

// A PackedSampleList lazily produces samples from packed
// input and output arrays.
//
// Swapping and slicing only touch an index permutation,
// so the packed arrays are shared and never modified.
type PackedSampleList struct {
	Creator anyvec.Creator

	Inputs  []float32
	Outputs []float32
	InSize  int
	OutSize int

	// Indices maps list positions to rows of the packed
	// arrays.
	Indices []int
}

// NewPackedSampleList creates a PackedSampleList covering
// every row of the packed arrays, in order.
func NewPackedSampleList(c anyvec.Creator, ins, outs []float32,
	inSize, outSize int) (*PackedSampleList, error) {
	if inSize <= 0 || outSize <= 0 {
		return nil, fmt.Errorf("packed samples: invalid sizes %d and %d", inSize, outSize)
	}
	if len(ins)%inSize != 0 {
		return nil, fmt.Errorf("packed samples: input length %d not divisible by %d",
			len(ins), inSize)
	}
	if len(outs)%outSize != 0 {
		return nil, fmt.Errorf("packed samples: output length %d not divisible by %d",
			len(outs), outSize)
	}
	if len(ins)/inSize != len(outs)/outSize {
		return nil, fmt.Errorf("packed samples: %d inputs but %d outputs",
			len(ins)/inSize, len(outs)/outSize)
	}
	indices := make([]int, len(ins)/inSize)
	for i := range indices {
		indices[i] = i
	}
	return &PackedSampleList{
		Creator: c,
		Inputs:  ins,
		Outputs: outs,
		InSize:  inSize,
		OutSize: outSize,
		Indices: indices,
	}, nil
}

// Len returns the number of samples.
func (p *PackedSampleList) Len() int {
	return len(p.Indices)
}

// Swap swaps two samples.
func (p *PackedSampleList) Swap(i, j int) {
	p.Indices[i], p.Indices[j] = p.Indices[j], p.Indices[i]
}

// Slice copies a sub-slice of the list.
// The packed arrays are shared with the result.
func (p *PackedSampleList) Slice(i, j int) drawsgd.SampleList {
	res := *p
	res.Indices = append([]int{}, p.Indices[i:j]...)
	return &res
}

// GetSample creates vectors for the sample at the index.
func (p *PackedSampleList) GetSample(idx int) (*Sample, error) {
	row := p.Indices[idx]
	return &Sample{
		Input:  p.makeVector(p.Inputs[row*p.InSize : (row+1)*p.InSize]),
		Output: p.makeVector(p.Outputs[row*p.OutSize : (row+1)*p.OutSize]),
	}, nil
}

func (p *PackedSampleList) makeVector(data []float32) anyvec.Vector {
	list := make([]float64, len(data))
	for i, x := range data {
		list[i] = float64(x)
	}
	return p.Creator.MakeVectorData(p.Creator.MakeNumericList(list))
}
