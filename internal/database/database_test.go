package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidenceledger/certchain/internal/models"
)

func sampleRecord(tx string, at time.Time) *models.CommitRecord {
	return &models.CommitRecord{
		Fingerprint:   "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Strategy:      "keccak256",
		TxID:          tx,
		Submitter:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		NetworkID:     "5777",
		Contract:      "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		BlockNumber:   7,
		CommittedAt:   at,
		RecipientName: "Alice",
		IssueDate:     "2024-01-02",
		ImageCID:      "bafkreitest",
		ImagePNG:      []byte{0x89, 'P', 'N', 'G'},
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "nested", "certchain.db"))
	require.NoError(t, d.Initialize())
	defer d.Close()

	ctx := context.Background()
	first := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, d.SaveCommit(ctx, sampleRecord("0x01", first)))
	require.NoError(t, d.SaveCommit(ctx, sampleRecord("0x02", first.Add(time.Hour))))
	// Saving the same transaction again is ignored.
	require.NoError(t, d.SaveCommit(ctx, sampleRecord("0x01", first)))

	got, err := d.GetCommit(ctx, sampleRecord("", first).Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0x01", got.TxID)
	assert.Equal(t, uint64(7), got.BlockNumber)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got.ImagePNG)
	assert.True(t, first.Equal(got.CommittedAt), "committed_at %v", got.CommittedAt)

	list, err := d.ListCommits(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "0x02", list[0].TxID)
	assert.Nil(t, list[0].ImagePNG)

	missing, err := d.GetCommit(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInitializeFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS certificates").WillReturnError(errors.New("disk full"))

	err = NewWithDB(db).Initialize()
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT OR IGNORE INTO certificates").WillReturnError(errors.New("database is locked"))

	err = NewWithDB(db).SaveCommit(context.Background(), sampleRecord("0x01", time.Now()))
	assert.ErrorContains(t, err, "failed to save commit record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCommitNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM certificates").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"tx_id"}))

	rec, err := NewWithDB(db).GetCommit(context.Background(), "abc")
	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCommitsScan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"tx_id", "fingerprint", "strategy", "submitter", "network_id", "contract",
		"block_number", "recipient_name", "title", "issue_date", "image_cid", "committed_at",
	}).AddRow("0x01", "ab", "keccak256", "0xsub", "5777", "0xc", int64(3), "Alice", nil, "2024-01-02", nil, at)

	mock.ExpectQuery("SELECT (.+) FROM certificates").WithArgs(50).WillReturnRows(rows)

	list, err := NewWithDB(db).ListCommits(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(3), list[0].BlockNumber)
	assert.Empty(t, list[0].Title)
	assert.Equal(t, at, list[0].CommittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
