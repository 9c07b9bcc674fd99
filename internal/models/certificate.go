package models

import (
	"time"
)

// CommitRecord pairs a fingerprint with the ledger transaction that recorded it.
// The ledger owns the record; this is the locally cached copy used for display
// and export.
type CommitRecord struct {
	Fingerprint string    `json:"fingerprint"`
	Strategy    string    `json:"strategy"`
	TxID        string    `json:"tx_id"`
	Submitter   string    `json:"submitter"`
	NetworkID   string    `json:"network_id"`
	Contract    string    `json:"contract"`
	BlockNumber uint64    `json:"block_number,omitempty"`
	CommittedAt time.Time `json:"committed_at"`

	// Display data, taken from the document the fingerprint was computed from
	RecipientName string `json:"recipient_name"`
	Title         string `json:"title,omitempty"`
	IssueDate     string `json:"issue_date"`

	// ImageCID is the content identifier of ImagePNG
	ImageCID string `json:"image_cid,omitempty"`
	ImagePNG []byte `json:"-"`
}

// LedgerEntry is what the registry contract returns for a committed fingerprint.
type LedgerEntry struct {
	Issuer   string    `json:"issuer"`
	IssuedAt time.Time `json:"issued_at"`
}
