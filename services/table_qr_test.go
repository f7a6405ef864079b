package services

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-reservations/models"
)

func TestTableQRLink(t *testing.T) {
	qr := NewTableQR("https://bistro.example")
	assert.Equal(t, "https://bistro.example/book?table=12", qr.Link(models.Table{ID: 3, Number: 12}))
}

func TestTableQRGeneratesPNG(t *testing.T) {
	qr := NewTableQR("https://bistro.example")

	raw, err := qr.Generate(models.Table{Number: 4})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())

	qr.Size = 0
	raw, err = qr.Generate(models.Table{Number: 4})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))
}
