package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Template struct {
	ID        uuid.UUID
	Name      string
	Subject   string
	BodyHTML  string
	ECard     *ECardSettings
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TemplateInput struct {
	Name     string
	Subject  string
	BodyHTML string
}

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

func ParseAlign(s string) (Align, bool) {
	switch Align(s) {
	case AlignLeft, AlignCenter, AlignRight:
		return Align(s), true
	case "":
		return AlignCenter, true
	default:
		return "", false
	}
}

// TextPlacement positions one text run on the backdrop. X and Y are image
// pixels from the top-left corner; Y is the text baseline.
type TextPlacement struct {
	X        float64
	Y        float64
	FontSize float64
	Color    string
	Align    Align
}

type ECardSettings struct {
	Enabled      bool
	Backdrop     []byte
	BackdropType string
	Name         TextPlacement
	Role         TextPlacement
}

// HasBackdrop reports whether a backdrop was uploaded. List results carry the
// type but not the bytes.
func (s *ECardSettings) HasBackdrop() bool {
	return s != nil && s.BackdropType != ""
}

// DefaultECardSettings places the name above the role, centred on a
// landscape A5-ish backdrop.
func DefaultECardSettings() ECardSettings {
	return ECardSettings{
		Name: TextPlacement{X: 400, Y: 300, FontSize: 48, Color: "#000000", Align: AlignCenter},
		Role: TextPlacement{X: 400, Y: 360, FontSize: 24, Color: "#333333", Align: AlignCenter},
	}
}

type TemplateRepository interface {
	List(ctx context.Context) ([]Template, error)
	Get(ctx context.Context, templateID uuid.UUID) (*Template, error)
	Create(ctx context.Context, in TemplateInput) (*Template, error)
	Update(ctx context.Context, templateID uuid.UUID, in TemplateInput) (*Template, error)
	// UpdateECard stores placement and the enabled flag; the backdrop is left unchanged.
	UpdateECard(ctx context.Context, templateID uuid.UUID, settings ECardSettings) error
	SetBackdrop(ctx context.Context, templateID uuid.UUID, data []byte, contentType string) error
	Delete(ctx context.Context, templateID uuid.UUID) error
}

// Preview formats.
const (
	PreviewPDF = "pdf"
	PreviewPNG = "png"
)

// ECardRenderer turns e-card settings plus a recipient into document bytes.
type ECardRenderer interface {
	RenderPDF(settings ECardSettings, name, role string) ([]byte, error)
	RenderPNG(settings ECardSettings, name, role string) ([]byte, error)
}
