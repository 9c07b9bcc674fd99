package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/models"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 147, G: 51, B: 234, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testRecord(t *testing.T) *models.CommitRecord {
	return &models.CommitRecord{
		Fingerprint:   "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Strategy:      "keccak256",
		TxID:          "0x01",
		RecipientName: "Alice",
		CommittedAt:   time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		ImagePNG:      testPNG(t, 120, 80),
	}
}

func TestContentID(t *testing.T) {
	data := []byte("certificate raster")

	id, err := ContentID(data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "bafkrei"), id)

	again, err := ContentID(data)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	other, err := ContentID([]byte("certificate raster!"))
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	parsed, err := cid.Decode(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(cid.Raw), parsed.Prefix().Codec)
}

func TestPNGReturnsStoredBytes(t *testing.T) {
	rec := testRecord(t)

	got, err := PNG(rec)
	require.NoError(t, err)
	assert.Equal(t, rec.ImagePNG, got)

	_, err = PNG(&models.CommitRecord{})
	assert.True(t, errl.Is(err, errl.KindNotFound))
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(testRecord(t), &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestPDFRejectsBadImage(t *testing.T) {
	rec := testRecord(t)
	rec.ImagePNG = []byte("not a png")

	err := PDF(rec, &bytes.Buffer{})
	assert.True(t, errl.Is(err, errl.KindRender))
}
