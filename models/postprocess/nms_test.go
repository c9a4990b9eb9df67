package postprocess

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/images"
)

var defaultNMS = NMSConfig{IoUThreshold: 0.5}

func candidate(x, y, w, h float32, class int, score float32) Candidate {
	return Candidate{Box: images.Box{X: x, Y: y, W: w, H: h}, Class: class, Score: score}
}

// TestSuppressSameClassOverlap keeps only the best of two overlapping boxes.
func TestSuppressSameClassOverlap(t *testing.T) {
	a := candidate(0, 0, 100, 100, 0, 0.90)
	b := candidate(25, 0, 100, 100, 0, 0.95)
	require.InDelta(t, 0.6, images.IoU(a.Box, b.Box), 1e-6)

	kept := Suppress([]Candidate{a, b}, defaultNMS)
	require.Len(t, kept, 1)
	assert.Equal(t, b, kept[0])
}

// TestSuppressDifferentClasses never suppresses across classes by default.
func TestSuppressDifferentClasses(t *testing.T) {
	a := candidate(0, 0, 100, 100, 0, 0.95)
	b := candidate(5, 0, 100, 100, 1, 0.90)
	require.Greater(t, images.IoU(a.Box, b.Box), float32(0.9))

	kept := Suppress([]Candidate{a, b}, defaultNMS)
	assert.Equal(t, []Candidate{a, b}, kept)

	agnostic := Suppress([]Candidate{a, b}, NMSConfig{IoUThreshold: 0.5, ClassAgnostic: true})
	assert.Equal(t, []Candidate{a}, agnostic)
}

func TestSuppressThresholdIsExclusive(t *testing.T) {
	a := candidate(0, 0, 100, 100, 0, 0.9)
	b := candidate(25, 0, 100, 100, 0, 0.8)

	kept := Suppress([]Candidate{a, b}, NMSConfig{IoUThreshold: 0.6})
	assert.Len(t, kept, 2, "IoU equal to the threshold does not suppress")
}

func TestSuppressChainKeepsNonOverlappingTail(t *testing.T) {
	// b overlaps a, c overlaps b but not a. c survives because b was removed
	// before it could suppress anything.
	a := candidate(0, 0, 100, 100, 0, 0.9)
	b := candidate(30, 0, 100, 100, 0, 0.8)
	c := candidate(60, 0, 100, 100, 0, 0.7)
	require.Greater(t, images.IoU(b.Box, c.Box), float32(0.5))
	require.Less(t, images.IoU(a.Box, c.Box), float32(0.5))

	kept := Suppress([]Candidate{c, b, a}, defaultNMS)
	assert.Equal(t, []Candidate{a, c}, kept)
}

func TestSuppressStableTieBreak(t *testing.T) {
	first := candidate(0, 0, 10, 10, 0, 0.9)
	second := candidate(1, 0, 10, 10, 0, 0.9)

	assert.Equal(t, []Candidate{first}, Suppress([]Candidate{first, second}, defaultNMS))
	assert.Equal(t, []Candidate{second}, Suppress([]Candidate{second, first}, defaultNMS))
}

func TestSuppressMaxDetections(t *testing.T) {
	input := []Candidate{
		candidate(0, 0, 10, 10, 0, 0.7),
		candidate(100, 0, 10, 10, 0, 0.9),
		candidate(200, 0, 10, 10, 0, 0.8),
	}
	kept := Suppress(input, NMSConfig{IoUThreshold: 0.5, MaxDetections: 2})
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Score)
	assert.Equal(t, float32(0.8), kept[1].Score)
}

func TestSuppressEmptyAndInputUntouched(t *testing.T) {
	kept := Suppress(nil, defaultNMS)
	assert.NotNil(t, kept)
	assert.Empty(t, kept)

	input := []Candidate{
		candidate(0, 0, 10, 10, 0, 0.1),
		candidate(0, 0, 10, 10, 0, 0.9),
	}
	snapshot := append([]Candidate(nil), input...)
	_ = Suppress(input, defaultNMS)
	assert.Equal(t, snapshot, input)
}

func TestSuppressDegenerateBoxes(t *testing.T) {
	a := candidate(5, 5, 0, 0, 0, 0.9)
	b := candidate(5, 5, 0, 0, 0, 0.8)
	assert.Len(t, Suppress([]Candidate{a, b}, defaultNMS), 2)
}

func randomCandidates(r *rand.Rand, n, classes int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = candidate(
			r.Float32()*200,
			r.Float32()*200,
			5+r.Float32()*60,
			5+r.Float32()*60,
			r.Intn(classes),
			// Coarse scores produce plenty of ties.
			float32(r.Intn(10))/10,
		)
	}
	return out
}

// TestSuppressProperties checks overlap, subset and idempotency on random input.
func TestSuppressProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		input := randomCandidates(r, 1+r.Intn(60), 1+r.Intn(3))
		cfg := NMSConfig{IoUThreshold: 0.1 + r.Float32()*0.8}

		kept := Suppress(input, cfg)

		for i := range kept {
			for j := i + 1; j < len(kept); j++ {
				if kept[i].Class != kept[j].Class {
					continue
				}
				assert.LessOrEqual(t, images.IoU(kept[i].Box, kept[j].Box), cfg.IoUThreshold,
					"round %d: same-class survivors overlap above threshold", round)
			}
			if i > 0 {
				assert.GreaterOrEqual(t, kept[i-1].Score, kept[i].Score, "round %d: not sorted", round)
			}
		}

		remaining := append([]Candidate(nil), input...)
		for _, k := range kept {
			idx := indexOf(remaining, k)
			require.GreaterOrEqual(t, idx, 0, "round %d: survivor %v not in input", round, k)
			remaining = append(remaining[:idx], remaining[idx+1:]...)
		}

		assert.Equal(t, kept, Suppress(kept, cfg), "round %d: suppression is not idempotent", round)
	}
}

func indexOf(cands []Candidate, c Candidate) int {
	for i := range cands {
		if cands[i] == c {
			return i
		}
	}
	return -1
}

func TestClampToImage(t *testing.T) {
	input := []Candidate{
		candidate(-10, -10, 30, 30, 0, 0.9),
		candidate(10, 10, 5, 5, 1, 0.8),
	}
	clamped := ClampToImage(input, 15, 15)

	require.Len(t, clamped, 2)
	assert.Equal(t, images.Box{X: 0, Y: 0, W: 15, H: 15}, clamped[0].Box)
	assert.Equal(t, images.Box{X: 10, Y: 10, W: 5, H: 5}, clamped[1].Box)
	assert.Equal(t, 1, clamped[1].Class)
	assert.Equal(t, float32(-10), input[0].Box.X, "input is not modified")
}

func BenchmarkSuppress(b *testing.B) {
	input := randomCandidates(rand.New(rand.NewSource(7)), 300, 1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Suppress(input, defaultNMS)
	}
}
