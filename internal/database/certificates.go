package database

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/models"
)

// SaveCommit caches a commit record. Saving the same transaction twice is a no-op.
func (d *Database) SaveCommit(ctx context.Context, rec *models.CommitRecord) error {
	query := `
		INSERT OR IGNORE INTO certificates (
			tx_id, fingerprint, strategy, submitter, network_id, contract,
			block_number, recipient_name, title, issue_date, image_cid,
			image_png, committed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, query,
		rec.TxID, rec.Fingerprint, rec.Strategy, rec.Submitter, rec.NetworkID, rec.Contract,
		int64(rec.BlockNumber), rec.RecipientName, rec.Title, rec.IssueDate, rec.ImageCID,
		rec.ImagePNG, rec.CommittedAt.UTC(),
	)
	if err != nil {
		return errl.Errorf("failed to save commit record: %w", err)
	}

	slog.Debug("Saved commit record", "fingerprint", rec.Fingerprint, "tx_id", rec.TxID)
	return nil
}

// GetCommit retrieves the earliest commit of a fingerprint, PNG included.
// It returns nil, nil if the fingerprint was never committed through this service.
func (d *Database) GetCommit(ctx context.Context, fingerprint string) (*models.CommitRecord, error) {
	query := `
		SELECT tx_id, fingerprint, strategy, submitter, network_id, contract,
		       block_number, recipient_name, title, issue_date, image_cid,
		       image_png, committed_at
		FROM certificates
		WHERE fingerprint = ?
		ORDER BY committed_at ASC
		LIMIT 1
	`

	var rec models.CommitRecord
	var block int64
	var title, cid sql.NullString
	err := d.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&rec.TxID, &rec.Fingerprint, &rec.Strategy, &rec.Submitter, &rec.NetworkID, &rec.Contract,
		&block, &rec.RecipientName, &title, &rec.IssueDate, &cid,
		&rec.ImagePNG, &rec.CommittedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errl.Errorf("failed to get commit record: %w", err)
	}

	rec.BlockNumber = uint64(block)
	rec.Title = title.String
	rec.ImageCID = cid.String
	return &rec, nil
}

// ListCommits retrieves the most recent commit records, newest first, without images
func (d *Database) ListCommits(ctx context.Context, limit int) ([]models.CommitRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT tx_id, fingerprint, strategy, submitter, network_id, contract,
		       block_number, recipient_name, title, issue_date, image_cid,
		       committed_at
		FROM certificates
		ORDER BY committed_at DESC
		LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errl.Errorf("failed to list commit records: %w", err)
	}
	defer rows.Close()

	recs := []models.CommitRecord{}
	for rows.Next() {
		var rec models.CommitRecord
		var block int64
		var title, cid sql.NullString
		err := rows.Scan(
			&rec.TxID, &rec.Fingerprint, &rec.Strategy, &rec.Submitter, &rec.NetworkID, &rec.Contract,
			&block, &rec.RecipientName, &title, &rec.IssueDate, &cid,
			&rec.CommittedAt,
		)
		if err != nil {
			return nil, errl.Errorf("failed to scan commit record: %w", err)
		}
		rec.BlockNumber = uint64(block)
		rec.Title = title.String
		rec.ImageCID = cid.String
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errl.Errorf("failed to list commit records: %w", err)
	}

	return recs, nil
}
