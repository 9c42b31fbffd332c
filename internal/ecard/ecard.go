// Package ecard composes personalized e-cards: a backdrop image with a name
// run and a role run drawn on top. Render produces a single-page PDF whose
// page size equals the backdrop size; Preview rasterizes the same layout.
package ecard

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/pscheid92/blastdesk/internal/adapter/metrics"
	"github.com/pscheid92/blastdesk/internal/domain"
)

var (
	ErrNoBackdrop       = errors.New("e-card has no backdrop image")
	ErrUnsupportedImage = errors.New("unsupported backdrop image format")
	ErrInvalidColor     = errors.New("invalid color, expected #RRGGBB")
)

// SupportedTypes lists the backdrop content types accepted on upload.
var SupportedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// DetectType sniffs the content type of an uploaded backdrop and reports
// whether it can be decoded.
func DetectType(data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	if !SupportedTypes[contentType] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return contentType, nil
}

func decodeBackdrop(settings domain.ECardSettings) (image.Image, error) {
	if len(settings.Backdrop) == 0 {
		return nil, ErrNoBackdrop
	}
	img, _, err := image.Decode(bytes.NewReader(settings.Backdrop))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedImage
		}
		return nil, fmt.Errorf("failed to decode backdrop: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("failed to decode backdrop: empty image")
	}
	return img, nil
}

// ParseColor parses a #RRGGBB hex color.
func ParseColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// run is one text run ready for drawing, with the color already parsed.
type run struct {
	text  string
	bold  bool
	place domain.TextPlacement
	color color.RGBA
}

func runs(settings domain.ECardSettings, name, role string) ([]run, error) {
	var out []run
	for _, r := range []run{
		{text: name, bold: true, place: settings.Name},
		{text: role, place: settings.Role},
	} {
		r.text = strings.TrimSpace(r.text)
		if r.text == "" {
			continue
		}
		c, err := ParseColor(r.place.Color)
		if err != nil {
			return nil, err
		}
		r.color = c
		out = append(out, r)
	}
	return out, nil
}

// alignOffset returns the distance from the anchor X to the start of a run of
// the given width.
func alignOffset(align domain.Align, width float64) float64 {
	switch align {
	case domain.AlignLeft:
		return 0
	case domain.AlignRight:
		return width
	default:
		return width / 2
	}
}

// Renderer implements domain.ECardRenderer and counts renders.
type Renderer struct {
	metrics *metrics.BlastMetrics
}

func NewRenderer(m *metrics.BlastMetrics) *Renderer {
	return &Renderer{metrics: m}
}

func (r *Renderer) RenderPDF(settings domain.ECardSettings, name, role string) ([]byte, error) {
	data, err := Render(settings, name, role)
	r.observe(err)
	return data, err
}

func (r *Renderer) RenderPNG(settings domain.ECardSettings, name, role string) ([]byte, error) {
	data, err := RenderPNG(settings, name, role)
	r.observe(err)
	return data, err
}

func (r *Renderer) observe(err error) {
	if r.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.metrics.ECardsRendered.WithLabelValues(result).Inc()
}
