// Package render turns a certificate document into its raster image and into
// the canonical bytes the fingerprint is computed from.
//
// Rendering is a pure function of the document and the layout: text is
// measured with the embedded Go fonts at a fixed DPI with hinting disabled,
// and every call draws on a surface of its own.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/models"
)

const dpi = 72

// Options configures a Renderer.
type Options struct {
	Layout Layout
	// BindRaster adds the PNG encoding of the raster to the canonical bytes,
	// tying the fingerprint to this renderer's exact pixels.
	BindRaster bool
}

// Artifact is the result of rendering one document. The PNG held here is the
// one the canonical bytes were derived from and the one handed to exporters.
type Artifact struct {
	Document         models.CertificateDocument
	Image            *image.RGBA
	PNG              []byte
	Canonical        []byte
	DescriptionLines []string
}

// fontPair holds the body and the emphasized face family for one emphasis.
type fontPair struct {
	body   *opentype.Font
	strong *opentype.Font
}

// Renderer draws certificates. It is safe for concurrent use.
type Renderer struct {
	opts  Options
	fonts map[models.FontEmphasis]fontPair
}

// New creates a renderer, parsing the embedded fonts once.
func New(opts Options) (*Renderer, error) {
	if err := opts.Layout.validate(); err != nil {
		return nil, err
	}

	parsed := make(map[string]*opentype.Font)
	for name, ttf := range map[string][]byte{
		"regular":     goregular.TTF,
		"bold":        gobold.TTF,
		"italic":      goitalic.TTF,
		"bold-italic": gobolditalic.TTF,
	} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return nil, errl.Wrap(errl.KindRender, err, "failed to parse font "+name)
		}
		parsed[name] = f
	}

	r := &Renderer{
		opts: opts,
		fonts: map[models.FontEmphasis]fontPair{
			models.EmphasisRegular:    {body: parsed["regular"], strong: parsed["bold"]},
			models.EmphasisBold:       {body: parsed["bold"], strong: parsed["bold"]},
			models.EmphasisItalic:     {body: parsed["italic"], strong: parsed["bold-italic"]},
			models.EmphasisBoldItalic: {body: parsed["bold-italic"], strong: parsed["bold-italic"]},
		},
	}

	slog.Debug("Renderer initialized",
		"width", opts.Layout.Width,
		"height", opts.Layout.Height,
		"bind_raster", opts.BindRaster)
	return r, nil
}

// Layout returns the layout the renderer draws with.
func (r *Renderer) Layout() Layout { return r.opts.Layout }

// BindsRaster reports whether canonical bytes include the raster.
func (r *Renderer) BindsRaster() bool { return r.opts.BindRaster }

// Render draws doc and derives its canonical bytes.
func (r *Renderer) Render(doc models.CertificateDocument) (*Artifact, error) {
	if doc.RecipientName() == "" {
		return nil, errl.New(errl.KindValidation, "recipient name is required")
	}
	art, err := r.draw(doc)
	if err != nil {
		return nil, err
	}

	var raster []byte
	if r.opts.BindRaster {
		raster = art.PNG
	}
	art.Canonical, err = CanonicalBytes(doc, raster)
	if err != nil {
		return nil, err
	}
	return art, nil
}

// Preview draws a possibly incomplete document, substituting placeholders.
// The artifact has no canonical bytes and must not be fingerprinted.
func (r *Renderer) Preview(doc models.CertificateDocument) (*Artifact, error) {
	return r.draw(doc)
}

// faces is the set of faces used by one render. Faces are not safe for
// concurrent use, so every render opens its own.
type faces struct {
	heading, title, certify, name, text, date font.Face
}

func (f *faces) close() {
	for _, face := range []font.Face{f.heading, f.title, f.certify, f.name, f.text, f.date} {
		if face != nil {
			face.Close()
		}
	}
}

func (r *Renderer) openFaces(emphasis models.FontEmphasis) (*faces, error) {
	pair, ok := r.fonts[emphasis]
	if !ok {
		pair = r.fonts[models.DefaultFontEmphasis]
	}
	l := r.opts.Layout

	f := &faces{}
	var err error
	open := func(fnt *opentype.Font, size float64) font.Face {
		if err != nil {
			return nil
		}
		var face font.Face
		face, err = opentype.NewFace(fnt, &opentype.FaceOptions{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingNone,
		})
		return face
	}
	f.heading = open(pair.strong, l.HeadingSize)
	f.title = open(pair.body, l.TitleSize)
	f.certify = open(pair.body, l.CertifySize)
	f.name = open(pair.strong, l.NameSize)
	f.text = open(pair.body, l.TextSize)
	f.date = open(pair.body, l.DateSize)
	if err != nil {
		f.close()
		return nil, errl.Wrap(errl.KindRender, err, "failed to open font face")
	}
	return f, nil
}

func (r *Renderer) draw(doc models.CertificateDocument) (*Artifact, error) {
	l := r.opts.Layout

	bg, err := parseHexColor(doc.BackgroundColor())
	if err != nil {
		return nil, err
	}
	fg, err := parseHexColor(doc.TextColor())
	if err != nil {
		return nil, err
	}

	ff, err := r.openFaces(doc.FontEmphasis())
	if err != nil {
		return nil, err
	}
	defer ff.close()

	img := image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	strokeRect(img, image.Rect(l.OuterInset, l.OuterInset, l.Width-l.OuterInset, l.Height-l.OuterInset), l.OuterStroke, l.OuterBorderColor)
	strokeRect(img, image.Rect(l.InnerInset, l.InnerInset, l.Width-l.InnerInset, l.Height-l.InnerInset), l.InnerStroke, l.InnerBorderColor)

	ink := image.NewUniform(fg)
	centered := func(face font.Face, s string, y int) {
		d := &font.Drawer{Dst: img, Src: ink, Face: face}
		width := d.MeasureString(s)
		d.Dot = fixed.Point26_6{X: (fixed.I(l.Width) - width) / 2, Y: fixed.I(y)}
		d.DrawString(s)
	}

	centered(ff.heading, HeadingText, l.HeadingY)
	centered(ff.title, orPlaceholder(doc.Title(), PlaceholderTitle), l.TitleY)
	centered(ff.certify, CertifyText, l.CertifyY)
	centered(ff.name, orPlaceholder(doc.RecipientName(), PlaceholderRecipient), l.NameY)

	measure := func(s string) fixed.Int26_6 { return font.MeasureString(ff.text, s) }
	lines := wrapLines(orPlaceholder(doc.Description(), PlaceholderDescription), fixed.I(l.WrapWidth()), measure)
	y := l.DescriptionY
	for _, line := range lines {
		centered(ff.text, line, y)
		y += l.LineHeight
	}

	centered(ff.date, DatePrefix+doc.IssueDate().Format(DateFormat), l.Height-l.DateY)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, errl.Wrap(errl.KindRender, err, "failed to encode raster")
	}

	return &Artifact{
		Document:         doc,
		Image:            img,
		PNG:              buf.Bytes(),
		DescriptionLines: lines,
	}, nil
}

// strokeRect draws the outline of r with a stroke of the given width centered
// on its edges, blending c over the surface. Bands do not overlap, so corners
// are blended once.
func strokeRect(img *image.RGBA, r image.Rectangle, width int, c color.Color) {
	if width <= 0 {
		return
	}
	half := width / 2
	outer := image.Rect(r.Min.X-half, r.Min.Y-half, r.Max.X-half+width, r.Max.Y-half+width)
	inner := image.Rect(outer.Min.X+width, outer.Min.Y+width, outer.Max.X-width, outer.Max.Y-width)

	src := image.NewUniform(c)
	bands := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y), // top
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y), // bottom
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y), // left
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y), // right
	}
	for _, b := range bands {
		draw.Draw(img, b.Intersect(img.Bounds()), src, image.Point{}, draw.Over)
	}
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func parseHexColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, errl.Newf(errl.KindValidation, "color %q must be formatted as #rrggbb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, errl.Wrap(errl.KindValidation, err, fmt.Sprintf("color %q must be formatted as #rrggbb", s))
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
