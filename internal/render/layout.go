package render

import (
	"image/color"

	"github.com/evidenceledger/certchain/internal/errl"
)

// Fixed texts drawn on every certificate.
const (
	HeadingText = "CERTIFICATE OF ACHIEVEMENT"
	CertifyText = "This is to certify that"
	DatePrefix  = "Issued on: "
	// DateFormat is locale free so the issuer and any verifier draw the same footer.
	DateFormat = "January 2, 2006"
)

// Placeholders drawn for empty fields. They are never part of the canonical bytes.
const (
	PlaceholderTitle       = "Course Name"
	PlaceholderRecipient   = "Recipient Name"
	PlaceholderDescription = "Certificate Description"
)

// maxSide bounds the canvas so a misconfigured layout cannot allocate unbounded memory.
const maxSide = 8192

// Layout fixes the geometry of the certificate. Offsets are baselines in pixels.
type Layout struct {
	Width  int
	Height int

	// Description lines wrap when wider than Width - WrapMargin.
	WrapMargin int
	LineHeight int

	OuterInset  int
	OuterStroke int
	InnerInset  int
	InnerStroke int

	HeadingY     int
	TitleY       int
	CertifyY     int
	NameY        int
	DescriptionY int
	// DateY is measured from the bottom edge.
	DateY int

	HeadingSize float64
	TitleSize   float64
	CertifySize float64
	NameSize    float64
	TextSize    float64
	DateSize    float64

	OuterBorderColor color.NRGBA
	InnerBorderColor color.NRGBA
}

// DefaultLayout is the 1200x800 certificate.
func DefaultLayout() Layout {
	return Layout{
		Width:  1200,
		Height: 800,

		WrapMargin: 200,
		LineHeight: 40,

		OuterInset:  40,
		OuterStroke: 20,
		InnerInset:  60,
		InnerStroke: 2,

		HeadingY:     170,
		TitleY:       235,
		CertifyY:     300,
		NameY:        380,
		DescriptionY: 470,
		DateY:        120,

		HeadingSize: 48,
		TitleSize:   32,
		CertifySize: 28,
		NameSize:    40,
		TextSize:    24,
		DateSize:    20,

		// rgba(147, 51, 234, 0.3) and rgba(147, 51, 234, 0.2)
		OuterBorderColor: color.NRGBA{R: 147, G: 51, B: 234, A: 77},
		InnerBorderColor: color.NRGBA{R: 147, G: 51, B: 234, A: 51},
	}
}

// WrapWidth is the widest a description line may be, in pixels.
func (l Layout) WrapWidth() int {
	return l.Width - l.WrapMargin
}

func (l Layout) validate() error {
	if l.Width <= 0 || l.Height <= 0 || l.Width > maxSide || l.Height > maxSide {
		return errl.Newf(errl.KindRender, "drawing surface cannot be sized to %dx%d", l.Width, l.Height)
	}
	if l.WrapWidth() <= 0 {
		return errl.Newf(errl.KindRender, "wrap margin %d leaves no room on a %d pixel canvas", l.WrapMargin, l.Width)
	}
	if l.LineHeight <= 0 {
		return errl.New(errl.KindRender, "line height must be positive")
	}
	for _, size := range []float64{l.HeadingSize, l.TitleSize, l.CertifySize, l.NameSize, l.TextSize, l.DateSize} {
		if size <= 0 {
			return errl.New(errl.KindRender, "font sizes must be positive")
		}
	}
	return nil
}
