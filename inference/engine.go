// Package inference - Inference engine interface and host tensor outputs.
package inference

import (
	"context"
	"fmt"

	"gorgonia.org/tensor"
)

// Output is a raw engine output tensor.
//
// The backing memory belongs to the engine. The pipeline copies everything it
// needs out of Data and then calls Destroy exactly once.
type Output interface {
	// Shape returns the tensor dimensions.
	Shape() []int64
	// Data returns the flat row-major float32 contents.
	Data() []float32
	// Destroy releases the tensor memory.
	Destroy() error
}

// Engine runs the detection network on one input tensor.
type Engine interface {
	// Run executes the network on a [1, 3, H, W] float32 tensor.
	//
	// Arguments:
	//   - ctx: The context of the invocation.
	//   - input: The normalized planar input tensor.
	//
	// Returns:
	//   - Output: The raw output tensor.
	//   - error: An error if execution fails.
	Run(ctx context.Context, input *tensor.Dense) (Output, error)
}

// EngineFunc adapts an ordinary function to the Engine interface.
type EngineFunc func(ctx context.Context, input *tensor.Dense) (Output, error)

// Run calls f(ctx, input).
func (f EngineFunc) Run(ctx context.Context, input *tensor.Dense) (Output, error) {
	return f(ctx, input)
}

// denseOutput exposes a host tensor as an Output.
type denseOutput struct {
	dense *tensor.Dense
	shape []int64
}

// NewDenseOutput wraps a float32 host tensor as an Output.
//
// Arguments:
//   - dense: The tensor holding the output values.
//
// Returns:
//   - Output: The wrapped output. Destroy is a no-op.
//   - error: An error if the tensor is nil or not float32.
func NewDenseOutput(dense *tensor.Dense) (Output, error) {
	if dense == nil {
		return nil, fmt.Errorf("nil output tensor")
	}
	if dense.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("output tensor dtype %v is not float32", dense.Dtype())
	}
	dims := dense.Shape()
	shape := make([]int64, len(dims))
	for i, d := range dims {
		shape[i] = int64(d)
	}
	return &denseOutput{dense: dense, shape: shape}, nil
}

func (o *denseOutput) Shape() []int64 { return o.shape }

func (o *denseOutput) Data() []float32 {
	data, _ := o.dense.Data().([]float32)
	return data
}

func (o *denseOutput) Destroy() error { return nil }
