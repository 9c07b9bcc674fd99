package render

import (
	"bytes"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/fingerprint"
	"github.com/evidenceledger/certchain/internal/models"
)

var testNow = time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)

func newDoc(t *testing.T, in models.CertificateInput) models.CertificateDocument {
	t.Helper()
	doc, err := models.NewCertificateDocument(in, testNow)
	require.NoError(t, err)
	return doc
}

func newRenderer(t *testing.T, bind bool) *Renderer {
	t.Helper()
	r, err := New(Options{Layout: DefaultLayout(), BindRaster: bind})
	require.NoError(t, err)
	return r
}

func TestRenderDeterministic(t *testing.T) {
	doc := newDoc(t, models.CertificateInput{
		RecipientName: "Alice",
		Title:         "Distributed Systems",
		Description:   "For outstanding work on consensus protocols and for shipping the replicated log on time",
	})

	for _, bind := range []bool{false, true} {
		r := newRenderer(t, bind)
		first, err := r.Render(doc)
		require.NoError(t, err)
		second, err := r.Render(doc)
		require.NoError(t, err)

		assert.Equal(t, first.Canonical, second.Canonical, "bind_raster=%v", bind)
		assert.Equal(t, first.PNG, second.PNG, "bind_raster=%v", bind)
	}
}

func TestRenderConcurrentSurfaces(t *testing.T) {
	r := newRenderer(t, true)
	docs := []models.CertificateDocument{
		newDoc(t, models.CertificateInput{RecipientName: "Alice", Description: "first"}),
		newDoc(t, models.CertificateInput{RecipientName: "Bob", Description: "second", FontEmphasis: "bold"}),
	}

	want := make([][]byte, len(docs))
	for i, doc := range docs {
		art, err := r.Render(doc)
		require.NoError(t, err)
		want[i] = art.Canonical
	}

	var wg sync.WaitGroup
	got := make([][]byte, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			art, err := r.Render(docs[i%len(docs)])
			if err == nil {
				got[i] = art.Canonical
			}
		}(i)
	}
	wg.Wait()

	for i := range got {
		assert.Equal(t, want[i%len(docs)], got[i])
	}
}

func TestCanonicalBytesLayout(t *testing.T) {
	doc := newDoc(t, models.CertificateInput{RecipientName: "Alice", IssueDate: "2024-01-02"})

	b, err := CanonicalBytes(doc, nil)
	require.NoError(t, err)
	assert.Equal(t,
		`{"background_color":"#ffffff","description":"","font_emphasis":"regular","issue_date":"2024-01-02","recipient_name":"Alice","text_color":"#1a1a1a","title":"","v":1}`,
		string(b))
}

func TestCanonicalBytesHaveNoPlaceholders(t *testing.T) {
	r := newRenderer(t, false)
	art, err := r.Render(newDoc(t, models.CertificateInput{RecipientName: "Alice"}))
	require.NoError(t, err)

	assert.NotContains(t, string(art.Canonical), PlaceholderTitle)
	assert.NotContains(t, string(art.Canonical), PlaceholderDescription)
	// The raster still shows the placeholder text.
	assert.Equal(t, []string{PlaceholderDescription}, art.DescriptionLines)

	// A document that literally says "Course Name" is a different certificate.
	literal, err := r.Render(newDoc(t, models.CertificateInput{RecipientName: "Alice", Title: PlaceholderTitle}))
	require.NoError(t, err)
	assert.NotEqual(t, art.Canonical, literal.Canonical)
}

func TestBindRaster(t *testing.T) {
	doc := newDoc(t, models.CertificateInput{RecipientName: "Alice"})

	plain, err := newRenderer(t, false).Render(doc)
	require.NoError(t, err)
	bound, err := newRenderer(t, true).Render(doc)
	require.NoError(t, err)

	assert.NotContains(t, string(plain.Canonical), "image_png")
	assert.Contains(t, string(bound.Canonical), `"image_png":"iVBORw0KGgo`)
	// Pixels are the same either way.
	assert.Equal(t, plain.PNG, bound.PNG)
}

func TestRenderRaster(t *testing.T) {
	r := newRenderer(t, false)
	art, err := r.Render(newDoc(t, models.CertificateInput{RecipientName: "Alice", BackgroundColor: "#102030"}))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(art.PNG))
	require.NoError(t, err)
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 800, img.Bounds().Dy())

	// Corner pixel is plain background, outside both borders.
	cr, cg, cb, _ := img.At(5, 5).RGBA()
	assert.Equal(t, []uint32{0x10, 0x20, 0x30}, []uint32{cr >> 8, cg >> 8, cb >> 8})
}

func TestRenderSensitivityProperty(t *testing.T) {
	r := newRenderer(t, false)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("different recipients give different canonical bytes", prop.ForAll(
		func(a, b string) bool {
			da, errA := models.NewCertificateDocument(models.CertificateInput{RecipientName: a}, testNow)
			db, errB := models.NewCertificateDocument(models.CertificateInput{RecipientName: b}, testNow)
			if errA != nil || errB != nil || da.RecipientName() == db.RecipientName() {
				return true
			}
			ca, _ := CanonicalBytes(da, nil)
			cb, _ := CanonicalBytes(db, nil)
			return !bytes.Equal(ca, cb)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return strings.TrimSpace(s) != "" }),
		gen.AlphaString().SuchThat(func(s string) bool { return strings.TrimSpace(s) != "" }),
	))

	properties.Property("canonical bytes are stable", prop.ForAll(
		func(name, description string) bool {
			doc, err := models.NewCertificateDocument(models.CertificateInput{RecipientName: name, Description: description}, testNow)
			if err != nil {
				return true
			}
			a, _ := r.Render(doc)
			b, _ := r.Render(doc)
			return a != nil && b != nil && bytes.Equal(a.Canonical, b.Canonical)
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestEveryFieldChangesFingerprint(t *testing.T) {
	base := models.CertificateInput{
		RecipientName:   "Alice",
		Title:           "Distributed Systems",
		Description:     "For outstanding work on consensus",
		IssueDate:       "2024-05-17",
		BackgroundColor: "#ffffff",
		TextColor:       "#1a1a1a",
		FontEmphasis:    "regular",
	}

	tests := []struct {
		name   string
		mutate func(*models.CertificateInput)
	}{
		{"recipient", func(in *models.CertificateInput) { in.RecipientName = "Alicia" }},
		{"title", func(in *models.CertificateInput) { in.Title = "Distributed Systems II" }},
		{"description", func(in *models.CertificateInput) { in.Description = "For outstanding work on consensus." }},
		{"issue date", func(in *models.CertificateInput) { in.IssueDate = "2024-05-18" }},
		{"background color", func(in *models.CertificateInput) { in.BackgroundColor = "#fffffe" }},
		{"text color", func(in *models.CertificateInput) { in.TextColor = "#1a1a1b" }},
		{"emphasis", func(in *models.CertificateInput) { in.FontEmphasis = "bold" }},
	}

	for _, bind := range []bool{false, true} {
		r := newRenderer(t, bind)
		engine, err := fingerprint.NewEngine(fingerprint.StrategyKeccak256)
		require.NoError(t, err)

		baseArt, err := r.Render(newDoc(t, base))
		require.NoError(t, err)
		baseFP := engine.Fingerprint(baseArt.Canonical)

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				in := base
				tt.mutate(&in)
				art, err := r.Render(newDoc(t, in))
				require.NoError(t, err)
				assert.NotEqual(t, baseFP, engine.Fingerprint(art.Canonical), "bind_raster=%v", bind)
			})
		}
	}
}

func TestNewRejectsUnusableSurface(t *testing.T) {
	for _, mutate := range []func(*Layout){
		func(l *Layout) { l.Width = 0 },
		func(l *Layout) { l.Height = -1 },
		func(l *Layout) { l.Width = maxSide + 1 },
		func(l *Layout) { l.WrapMargin = l.Width },
		func(l *Layout) { l.TextSize = 0 },
	} {
		l := DefaultLayout()
		mutate(&l)
		_, err := New(Options{Layout: l})
		assert.Equal(t, errl.KindRender, errl.KindOf(err))
	}
}

func TestRenderRequiresRecipient(t *testing.T) {
	r := newRenderer(t, false)
	_, err := r.Render(models.DraftDocument(models.CertificateInput{}, testNow))
	assert.Equal(t, errl.KindValidation, errl.KindOf(err))

	preview, err := r.Preview(models.DraftDocument(models.CertificateInput{}, testNow))
	require.NoError(t, err)
	assert.Nil(t, preview.Canonical)
	assert.NotEmpty(t, preview.PNG)
}
