package models

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/evidenceledger/certchain/internal/errl"
)

// FontEmphasis selects the face family used for the certificate text.
type FontEmphasis string

const (
	EmphasisRegular    FontEmphasis = "regular"
	EmphasisBold       FontEmphasis = "bold"
	EmphasisItalic     FontEmphasis = "italic"
	EmphasisBoldItalic FontEmphasis = "bold-italic"
)

// Presentation defaults, applied at construction when the issuer leaves them empty.
const (
	DefaultBackgroundColor = "#ffffff"
	DefaultTextColor       = "#1a1a1a"
	DefaultFontEmphasis    = EmphasisRegular
)

// DateLayout is the only accepted textual form of an issue date.
const DateLayout = "2006-01-02"

var colorRegex = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// CertificateInput is the raw issuer input, as received from a form or the API.
type CertificateInput struct {
	RecipientName   string `json:"recipient_name" form:"recipient_name"`
	Title           string `json:"title" form:"title"`
	Description     string `json:"description" form:"description"`
	IssueDate       string `json:"issue_date" form:"issue_date"`
	BackgroundColor string `json:"background_color" form:"background_color"`
	TextColor       string `json:"text_color" form:"text_color"`
	FontEmphasis    string `json:"font_emphasis" form:"font_emphasis"`
}

// CertificateDocument is the canonical record of one certificate's content.
// It is immutable: fields are only reachable through accessors.
type CertificateDocument struct {
	recipientName   string
	title           string
	description     string
	issueDate       time.Time
	backgroundColor string
	textColor       string
	fontEmphasis    FontEmphasis
}

// NewCertificateDocument validates the issuer input and builds a document.
// now supplies the issue date when the input leaves it empty; only its UTC
// calendar date is kept.
func NewCertificateDocument(in CertificateInput, now time.Time) (CertificateDocument, error) {
	recipient := normalizeText(in.RecipientName)
	if recipient == "" {
		return CertificateDocument{}, errl.New(errl.KindValidation, "recipient name is required")
	}

	issueDate := dateOf(now)
	if s := strings.TrimSpace(in.IssueDate); s != "" {
		d, err := time.ParseInLocation(DateLayout, s, time.UTC)
		if err != nil {
			return CertificateDocument{}, errl.Wrap(errl.KindValidation, err, "issue date must be formatted as YYYY-MM-DD")
		}
		issueDate = d
	}

	bg, err := normalizeColor(in.BackgroundColor, DefaultBackgroundColor)
	if err != nil {
		return CertificateDocument{}, err
	}
	fg, err := normalizeColor(in.TextColor, DefaultTextColor)
	if err != nil {
		return CertificateDocument{}, err
	}

	emphasis := DefaultFontEmphasis
	if s := strings.ToLower(strings.TrimSpace(in.FontEmphasis)); s != "" {
		emphasis = FontEmphasis(s)
		if !emphasis.Valid() {
			return CertificateDocument{}, errl.Newf(errl.KindValidation, "unknown font emphasis %q", in.FontEmphasis)
		}
	}

	return CertificateDocument{
		recipientName:   recipient,
		title:           normalizeText(in.Title),
		description:     normalizeText(in.Description),
		issueDate:       issueDate,
		backgroundColor: bg,
		textColor:       fg,
		fontEmphasis:    emphasis,
	}, nil
}

// DraftDocument builds a document for previews without validating it.
// Invalid presentation attributes fall back to the defaults.
func DraftDocument(in CertificateInput, now time.Time) CertificateDocument {
	doc, err := NewCertificateDocument(in, now)
	if err == nil {
		return doc
	}
	in.BackgroundColor, in.TextColor, in.FontEmphasis, in.IssueDate = "", "", "", ""
	doc, err = NewCertificateDocument(in, now)
	if err == nil {
		return doc
	}
	// Only an empty recipient remains.
	return CertificateDocument{
		title:           normalizeText(in.Title),
		description:     normalizeText(in.Description),
		issueDate:       dateOf(now),
		backgroundColor: DefaultBackgroundColor,
		textColor:       DefaultTextColor,
		fontEmphasis:    DefaultFontEmphasis,
	}
}

func (d CertificateDocument) RecipientName() string      { return d.recipientName }
func (d CertificateDocument) Title() string              { return d.title }
func (d CertificateDocument) Description() string        { return d.description }
func (d CertificateDocument) IssueDate() time.Time       { return d.issueDate }
func (d CertificateDocument) BackgroundColor() string    { return d.backgroundColor }
func (d CertificateDocument) TextColor() string          { return d.textColor }
func (d CertificateDocument) FontEmphasis() FontEmphasis { return d.fontEmphasis }

// IssueDateString returns the issue date as YYYY-MM-DD.
func (d CertificateDocument) IssueDateString() string {
	return d.issueDate.Format(DateLayout)
}

// Input returns the document as issuer input, e.g. to derive an edited copy.
func (d CertificateDocument) Input() CertificateInput {
	return CertificateInput{
		RecipientName:   d.recipientName,
		Title:           d.title,
		Description:     d.description,
		IssueDate:       d.IssueDateString(),
		BackgroundColor: d.backgroundColor,
		TextColor:       d.textColor,
		FontEmphasis:    string(d.fontEmphasis),
	}
}

// Valid reports whether e is one of the known emphasis values.
func (e FontEmphasis) Valid() bool {
	switch e {
	case EmphasisRegular, EmphasisBold, EmphasisItalic, EmphasisBoldItalic:
		return true
	}
	return false
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// normalizeText trims surrounding whitespace and applies Unicode NFC, so that
// visually identical input always yields the same stored value.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normalizeColor(s, def string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def, nil
	}
	if !colorRegex.MatchString(s) {
		return "", errl.Newf(errl.KindValidation, "color %q must be formatted as #rrggbb", s)
	}
	return s, nil
}
