package images

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		a        Box
		b        Box
		expected float32
	}{
		{
			name:     "Identical boxes",
			a:        Box{0, 0, 100, 100},
			b:        Box{0, 0, 100, 100},
			expected: 1.0,
		},
		{
			name:     "No overlap",
			a:        Box{0, 0, 100, 100},
			b:        Box{200, 200, 100, 100},
			expected: 0.0,
		},
		{
			name:     "Touching edges",
			a:        Box{0, 0, 100, 100},
			b:        Box{100, 0, 100, 100},
			expected: 0.0,
		},
		{
			name:     "Quarter overlap",
			a:        Box{0, 0, 100, 100},
			b:        Box{50, 50, 100, 100},
			expected: 0.142857, // 2500 / (10000+10000-2500)
		},
		{
			name:     "One inside other",
			a:        Box{0, 0, 100, 100},
			b:        Box{25, 25, 50, 50},
			expected: 0.25,
		},
		{
			name:     "Fractional coordinates",
			a:        Box{0.5, 0.5, 2, 2},
			b:        Box{1.5, 0.5, 2, 2},
			expected: 2.0 / 6.0,
		},
		{
			name:     "Zero area boxes",
			a:        Box{10, 10, 0, 0},
			b:        Box{10, 10, 0, 0},
			expected: 0.0,
		},
		{
			name:     "Negative origin",
			a:        Box{-50, -50, 100, 100},
			b:        Box{0, 0, 100, 100},
			expected: 0.142857,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IoU(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-4)

			// IoU(A, B) should equal IoU(B, A).
			assert.InDelta(t, got, IoU(tt.b, tt.a), 1e-6, "IoU must be symmetric")
		})
	}
}

func TestBoxClamp(t *testing.T) {
	tests := []struct {
		name     string
		box      Box
		expected Box
	}{
		{"Inside", Box{10, 10, 20, 20}, Box{10, 10, 20, 20}},
		{"Left overflow", Box{-10, 10, 20, 20}, Box{0, 10, 10, 20}},
		{"Bottom right overflow", Box{90, 40, 30, 30}, Box{90, 40, 10, 10}},
		{"Fully outside", Box{150, 10, 20, 20}, Box{100, 10, 0, 20}},
		{"Larger than image", Box{-5, -5, 200, 200}, Box{0, 0, 100, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.box.Clamp(100, 50))
		})
	}
}

func TestBoxRect(t *testing.T) {
	b := Box{X: 1.4, Y: 2.6, W: 10.2, H: 5}
	assert.Equal(t, image.Rect(1, 2, 12, 8), b.Rect())
	assert.InDelta(t, 11.6, b.X2(), 1e-5)
	assert.InDelta(t, 51.0, b.Area(), 1e-4)
}

func TestBoxJSON(t *testing.T) {
	b := Box{X: 1, Y: 2, W: 3.5, H: 4}

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3.5,4]`, string(data))

	var decoded Box
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b, decoded)

	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &decoded))
}

func BenchmarkIoU_PartialOverlap(b *testing.B) {
	r1 := Box{0, 0, 100, 100}
	r2 := Box{50, 50, 100, 100}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = IoU(r1, r2)
	}
}

func BenchmarkIoU_NonOverlapping(b *testing.B) {
	r1 := Box{0, 0, 100, 100}
	r2 := Box{200, 200, 100, 100}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = IoU(r1, r2)
	}
}
