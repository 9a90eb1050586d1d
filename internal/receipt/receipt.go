package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/zeromonos/internal/domain"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// Generator renders printable proof of a booking for the citizen.
type Generator struct {
	publicURL string
}

func NewGenerator(publicURL string) *Generator {
	return &Generator{publicURL: strings.TrimRight(publicURL, "/")}
}

// LookupLink is what the QR code points at. Without a public URL it is the bare token.
func (g *Generator) LookupLink(token string) string {
	if g.publicURL == "" {
		return token
	}
	return g.publicURL + "/api/bookings/" + token
}

func (g *Generator) QRCode(token string) ([]byte, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	png, err := qrcode.Encode(g.LookupLink(token), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

func (g *Generator) PDF(booking *domain.Booking, history []domain.StatusChange) ([]byte, error) {
	qrPNG, err := g.QRCode(booking.Token)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252, municipality names are not ASCII
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Booking "+booking.Token, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr("Bulk Item Collection Request"))
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	rows := [][2]string{
		{"Token", booking.Token},
		{"Municipality", booking.Municipality},
		{"Date", booking.RequestedDate.Format(domain.DateLayout)},
		{"Time slot", string(booking.TimeSlot)},
		{"Status", string(booking.Status)},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(40, 8, tr(row[0]+":"))
		pdf.SetFont("Arial", "", 12)
		pdf.Cell(0, 8, tr(row[1]))
		pdf.Ln(8)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Description")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(120, 6, tr(booking.Description), "", "L", false)

	if len(history) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "History")
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 10)
		for _, change := range history {
			pdf.Cell(0, 6, fmt.Sprintf("%s  %s", change.ChangedAt.UTC().Format(time.RFC3339), change.Status))
			pdf.Ln(6)
		}
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 30, 45, 45, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
