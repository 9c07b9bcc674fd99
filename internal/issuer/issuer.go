// Package issuer runs the issuance pipeline: a document is validated,
// rendered, fingerprinted and committed to the ledger, and the commit record
// is cached locally for display and export.
package issuer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evidenceledger/certchain/internal/cache"
	"github.com/evidenceledger/certchain/internal/export"
	"github.com/evidenceledger/certchain/internal/fingerprint"
	"github.com/evidenceledger/certchain/internal/ledger"
	"github.com/evidenceledger/certchain/internal/models"
	"github.com/evidenceledger/certchain/internal/render"
)

// DefaultSubmissionTTL is how long a finished submission stays pollable.
const DefaultSubmissionTTL = 30 * time.Minute

// Store caches commit records.
type Store interface {
	SaveCommit(ctx context.Context, rec *models.CommitRecord) error
}

// Notifier tells a recipient about an issued certificate.
type Notifier interface {
	SendIssuanceNotice(toEmail string, rec *models.CommitRecord, verifyURL string) error
}

// Config holds the optional parts of an Issuer.
type Config struct {
	Store    Store
	Notifier Notifier
	// VerifyURL is included in notices, so recipients know where to check.
	VerifyURL     string
	SubmissionTTL time.Duration
}

// Options apply to one commit.
type Options struct {
	// Submitter is the ledger account to commit from; empty means the node's first account.
	Submitter string
	// NotifyEmail, if set, receives an issuance notice after the commit.
	NotifyEmail string
}

// Prepared is a rendered and fingerprinted document, ready to commit.
// Its fields must not be modified.
type Prepared struct {
	Document    models.CertificateDocument
	Artifact    *render.Artifact
	Fingerprint fingerprint.Fingerprint
	Strategy    fingerprint.Strategy
}

// Issuer runs the issuance pipeline.
type Issuer struct {
	renderer    *render.Renderer
	engine      *fingerprint.Engine
	ledger      *ledger.Client
	cfg         Config
	submissions *cache.Cache[*ledger.Submission]
	now         func() time.Time

	// background commits run under ctx and are tracked by wg
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an issuer.
func New(renderer *render.Renderer, engine *fingerprint.Engine, client *ledger.Client, cfg Config) *Issuer {
	if cfg.SubmissionTTL <= 0 {
		cfg.SubmissionTTL = DefaultSubmissionTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Issuer{
		renderer:    renderer,
		engine:      engine,
		ledger:      client,
		cfg:         cfg,
		submissions: cache.New[*ledger.Submission](cfg.SubmissionTTL),
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// WithClock overrides the clock that supplies default issue dates, for tests.
func (i *Issuer) WithClock(clock func() time.Time) *Issuer {
	i.now = clock
	return i
}

// Strategy returns the fingerprint strategy of the deployment.
func (i *Issuer) Strategy() fingerprint.Strategy { return i.engine.Strategy() }

// Prepare validates in, renders it and computes its fingerprint.
func (i *Issuer) Prepare(in models.CertificateInput) (*Prepared, error) {
	doc, err := models.NewCertificateDocument(in, i.now())
	if err != nil {
		return nil, err
	}

	art, err := i.renderer.Render(doc)
	if err != nil {
		return nil, err
	}

	fp := i.engine.Fingerprint(art.Canonical)
	slog.Debug("Certificate prepared", "fingerprint", fp, "strategy", i.engine.Strategy(), "recipient", doc.RecipientName())

	return &Prepared{
		Document:    doc,
		Artifact:    art,
		Fingerprint: fp,
		Strategy:    i.engine.Strategy(),
	}, nil
}

// Preview renders in as a PNG with placeholders for empty fields.
// Nothing is fingerprinted or committed.
func (i *Issuer) Preview(in models.CertificateInput) ([]byte, error) {
	art, err := i.renderer.Preview(models.DraftDocument(in, i.now()))
	if err != nil {
		return nil, err
	}
	return art.PNG, nil
}

// Commit commits p and waits for the outcome. The submission stays pollable
// under its id whether or not the commit succeeds.
func (i *Issuer) Commit(ctx context.Context, p *Prepared, opts Options) (*ledger.Submission, error) {
	sub := i.track(p)
	_, err := i.run(ctx, sub, p, opts)
	return sub, err
}

// Start commits p in the background and returns the submission to poll.
// The commit runs until it finishes or the issuer is closed.
func (i *Issuer) Start(p *Prepared, opts Options) *ledger.Submission {
	sub := i.track(p)

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		if _, err := i.run(i.ctx, sub, p, opts); err != nil {
			slog.Warn("Background commit failed", "submission_id", sub.ID(), "fingerprint", p.Fingerprint, "error", err)
		}
	}()

	return sub
}

// Submission returns a submission started by Commit or Start.
func (i *Issuer) Submission(id string) (*ledger.Submission, bool) {
	return i.submissions.Get(id)
}

// Close cancels background commits and waits for them to finish.
func (i *Issuer) Close() {
	i.cancel()
	i.wg.Wait()
}

func (i *Issuer) track(p *Prepared) *ledger.Submission {
	sub := ledger.NewSubmission(uuid.NewString(), p.Fingerprint)
	// Pollable for as long as the commit runs; the TTL starts when it ends.
	i.submissions.Set(sub.ID(), sub, -1)
	return sub
}

func (i *Issuer) run(ctx context.Context, sub *ledger.Submission, p *Prepared, opts Options) (*models.CommitRecord, error) {
	defer i.submissions.Set(sub.ID(), sub, 0)

	rec, err := i.ledger.Track(ctx, sub, opts.Submitter, func(rec *models.CommitRecord) error {
		return i.finalize(ctx, rec, p)
	})
	if err != nil {
		return nil, err
	}

	if opts.NotifyEmail != "" && i.cfg.Notifier != nil {
		if err := i.cfg.Notifier.SendIssuanceNotice(opts.NotifyEmail, rec, i.cfg.VerifyURL); err != nil {
			slog.Error("Failed to send issuance notice", "fingerprint", rec.Fingerprint, "error", err)
		}
	}
	return rec, nil
}

// finalize completes the record with document data and caches it.
func (i *Issuer) finalize(ctx context.Context, rec *models.CommitRecord, p *Prepared) error {
	rec.Strategy = string(p.Strategy)
	rec.RecipientName = p.Document.RecipientName()
	rec.Title = p.Document.Title()
	rec.IssueDate = p.Document.IssueDateString()
	rec.ImagePNG = p.Artifact.PNG

	cid, err := export.ContentID(p.Artifact.PNG)
	if err != nil {
		slog.Warn("Failed to compute image content id", "fingerprint", rec.Fingerprint, "error", err)
	} else {
		rec.ImageCID = cid
	}

	if i.cfg.Store == nil {
		return nil
	}
	// The ledger already holds the commit; the cache write outlives the request.
	return i.cfg.Store.SaveCommit(context.WithoutCancel(ctx), rec)
}
