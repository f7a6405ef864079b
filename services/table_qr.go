package services

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/yeremiapane/restaurant-reservations/models"
)

// TableQR renders the QR code printed on each table; scanning it opens the
// booking page with the table preselected.
type TableQR struct {
	BaseURL string
	Size    int
}

func NewTableQR(baseURL string) TableQR {
	return TableQR{BaseURL: baseURL, Size: 256}
}

func (g TableQR) Link(t models.Table) string {
	return fmt.Sprintf("%s/book?table=%d", g.BaseURL, t.Number)
}

func (g TableQR) Generate(t models.Table) ([]byte, error) {
	size := g.Size
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(g.Link(t), qrcode.Medium, size)
}
