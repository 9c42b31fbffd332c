package ecard

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/pscheid92/blastdesk/internal/domain"
)

var (
	fontsOnce   sync.Once
	regularFont *opentype.Font
	boldFont    *opentype.Font
	fontsErr    error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		regularFont, fontsErr = opentype.Parse(goregular.TTF)
		if fontsErr != nil {
			return
		}
		boldFont, fontsErr = opentype.Parse(gobold.TTF)
	})
	return fontsErr
}

// Preview rasterizes the e-card onto a copy of the backdrop. The backdrop
// bytes are never modified.
func Preview(settings domain.ECardSettings, name, role string) (image.Image, error) {
	img, err := decodeBackdrop(settings)
	if err != nil {
		return nil, err
	}
	textRuns, err := runs(settings, name, role)
	if err != nil {
		return nil, err
	}
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	for _, r := range textRuns {
		f := regularFont
		if r.bold {
			f = boldFont
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    r.place.FontSize,
			DPI:     72,
			Hinting: font.HintingNone,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create font face: %w", err)
		}

		width := float64(font.MeasureString(face, r.text)) / 64
		x := r.place.X - alignOffset(r.place.Align, width)
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(r.color),
			Face: face,
			Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(r.place.Y * 64)},
		}
		d.DrawString(r.text)
		_ = face.Close()
	}
	return dst, nil
}

// RenderPNG is Preview encoded as PNG.
func RenderPNG(settings domain.ECardSettings, name, role string) ([]byte, error) {
	img, err := Preview(settings, name, role)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
