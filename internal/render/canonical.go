package render

import (
	"encoding/json"

	"github.com/gowebpki/jcs"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/models"
)

// canonicalVersion is bumped whenever the set or meaning of the fields changes.
const canonicalVersion = 1

// canonicalDocument lists every fingerprint-relevant field. Empty fields stay
// empty: rendering placeholders never appear here.
type canonicalDocument struct {
	Version         int    `json:"v"`
	RecipientName   string `json:"recipient_name"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	IssueDate       string `json:"issue_date"`
	BackgroundColor string `json:"background_color"`
	TextColor       string `json:"text_color"`
	FontEmphasis    string `json:"font_emphasis"`
	ImagePNG        []byte `json:"image_png,omitempty"`
}

// CanonicalBytes serializes the document, and the encoded raster if given,
// as RFC 8785 canonical JSON: sorted keys, no insignificant whitespace.
func CanonicalBytes(doc models.CertificateDocument, rasterPNG []byte) ([]byte, error) {
	c := canonicalDocument{
		Version:         canonicalVersion,
		RecipientName:   doc.RecipientName(),
		Title:           doc.Title(),
		Description:     doc.Description(),
		IssueDate:       doc.IssueDateString(),
		BackgroundColor: doc.BackgroundColor(),
		TextColor:       doc.TextColor(),
		FontEmphasis:    string(doc.FontEmphasis()),
		ImagePNG:        rasterPNG,
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return nil, errl.Wrap(errl.KindRender, err, "failed to serialize certificate")
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, errl.Wrap(errl.KindRender, err, "failed to canonicalize certificate")
	}
	return out, nil
}
