package ecard

import (
	"bytes"
	"fmt"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/document"
	"seehuhn.de/go/pdf/font"
	"seehuhn.de/go/pdf/font/standard"
	"seehuhn.de/go/pdf/graphics/color"
	pdfimage "seehuhn.de/go/pdf/graphics/image"

	"github.com/pscheid92/blastdesk/internal/domain"
)

// Render draws the name and role runs onto the backdrop and returns the
// result as a one-page PDF. One image pixel maps to one PDF point.
func Render(settings domain.ECardSettings, name, role string) ([]byte, error) {
	img, err := decodeBackdrop(settings)
	if err != nil {
		return nil, err
	}
	textRuns, err := runs(settings, name, role)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	buf := &bytes.Buffer{}
	page, err := document.WriteSinglePage(buf, &pdf.Rectangle{URx: w, URy: h}, pdf.V1_7, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf: %w", err)
	}

	page.PushGraphicsState()
	page.Transform(matrix.Scale(w, h))
	page.DrawXObject(pdfimage.FromImage(img, color.SpaceDeviceRGB, 8))
	page.PopGraphicsState()

	if len(textRuns) > 0 {
		regular := standard.Helvetica.New()
		bold := standard.HelveticaBold.New()

		for _, r := range textRuns {
			var f font.Instance = regular
			if r.bold {
				f = bold
			}
			page.TextBegin()
			page.TextSetFont(f, r.place.FontSize)
			page.SetFillColor(color.DeviceRGB{
				float64(r.color.R) / 255,
				float64(r.color.G) / 255,
				float64(r.color.B) / 255,
			})
			gg := page.TextLayout(nil, r.text)
			x := r.place.X - alignOffset(r.place.Align, gg.TotalWidth())
			page.TextFirstLine(x, h-r.place.Y)
			page.TextShowGlyphs(gg)
			page.TextEnd()
		}
	}

	if page.Err != nil {
		return nil, fmt.Errorf("failed to draw e-card: %w", page.Err)
	}
	if err := page.Close(); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
