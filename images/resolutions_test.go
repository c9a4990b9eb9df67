package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolution_GetMegaPixels(t *testing.T) {
	tests := []struct {
		name string
		res  Resolution
		want float64
	}{
		{"1080p", Resolution{Width: 1920, Height: 1080}, 2.07},
		{"4K", Resolution{Width: 3840, Height: 2160}, 8.29},
		{"Zero width", Resolution{Width: 0, Height: 1080}, 0},
		{"Negative height", Resolution{Width: 640, Height: -1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.GetMegaPixels())
		})
	}
}

func TestResolution_String(t *testing.T) {
	r, ok := ResolutionByName("HD 720p")
	require.True(t, ok)
	assert.Equal(t, "HD 720p (1280x720, 0.92 MP, 16:9)", r.String())

	_, ok = ResolutionByName("720")
	assert.False(t, ok)
}

func TestCameraResolutionsOrdered(t *testing.T) {
	all := CameraResolutions()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Width*all[i-1].Height, all[i].Width*all[i].Height, all[i].Name)
	}

	all[0].Width = 1
	assert.Equal(t, 640, CameraResolutions()[0].Width, "callers get a copy")
}

func TestResolutionFrame(t *testing.T) {
	img := Resolution{Width: 4, Height: 2}.Frame()
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, uint8(128), img.Pix[0])
	assert.Equal(t, uint8(255), img.Pix[len(img.Pix)-1])
}
