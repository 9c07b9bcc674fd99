// Package export turns a committed certificate into downloadable files.
//
// Exports always start from the PNG stored with the commit record, which is
// the raster the fingerprint was computed alongside. Nothing here re-renders.
package export

import (
	"bytes"
	"image/png"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/models"
)

// ContentID returns the CIDv1 (raw codec, sha2-256) of data in its default
// base32 text form.
func ContentID(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", errl.Errorf("failed to hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// PNG returns the stored raster of rec.
func PNG(rec *models.CommitRecord) ([]byte, error) {
	if rec == nil || len(rec.ImagePNG) == 0 {
		return nil, errl.New(errl.KindNotFound, "no image stored for this certificate")
	}
	return rec.ImagePNG, nil
}

// PDF writes a single page document of the same size as the stored raster,
// filled with it.
func PDF(rec *models.CommitRecord, w io.Writer) error {
	raster, err := PNG(rec)
	if err != nil {
		return err
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(raster))
	if err != nil {
		return errl.Wrap(errl.KindRender, err, "stored image is not a valid PNG")
	}
	width, height := float64(cfg.Width), float64(cfg.Height)

	// fpdf swaps the page sides for landscape, so Wd is always the short side.
	orientation := "L"
	size := fpdf.SizeType{Wd: height, Ht: width}
	if height > width {
		orientation = "P"
		size = fpdf.SizeType{Wd: width, Ht: height}
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           size,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(rec.CommittedAt)
	pdf.SetModificationDate(rec.CommittedAt)
	pdf.SetTitle("Certificate for "+rec.RecipientName, true)
	pdf.SetSubject(rec.Fingerprint, false)
	pdf.SetKeywords(rec.Strategy+" "+rec.TxID, false)
	pdf.SetCreator("certchain", false)

	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(rec.Fingerprint, opts, bytes.NewReader(raster))
	pdf.ImageOptions(rec.Fingerprint, 0, 0, width, height, false, opts, 0, "")

	if err := pdf.Error(); err != nil {
		return errl.Wrap(errl.KindRender, err, "failed to build PDF")
	}
	if err := pdf.Output(w); err != nil {
		return errl.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
