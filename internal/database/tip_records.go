package database

import (
	"database/sql"
	"time"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

// TipRecord is one settled tip or donation. Unlike payment_records there is no
// uniqueness constraint: the same reader may tip the same article repeatedly.
type TipRecord struct {
	ID              int64     `json:"id"`
	ResourceID      string    `json:"resource_id"`
	PayerAddress    string    `json:"payer_address"`
	Amount          string    `json:"amount"` // atomic units, decimal string
	TransactionHash string    `json:"transaction_hash,omitempty"`
	Kind            string    `json:"kind"` // "tip" or "donation"
	CreatedAt       time.Time `json:"created_at"`
}

// TipRecordsManager is the append-only tip and donation log
type TipRecordsManager struct {
	db     *sql.DB
	logger *utils.LogsManager
}

// NewTipRecordsManager creates the manager and its table
func NewTipRecordsManager(db *sql.DB, logger *utils.LogsManager) (*TipRecordsManager, error) {
	trm := &TipRecordsManager{
		db:     db,
		logger: logger,
	}

	if err := trm.initTable(); err != nil {
		return nil, err
	}

	return trm, nil
}

func (trm *TipRecordsManager) initTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tip_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		resource_id TEXT NOT NULL,
		payer_address TEXT NOT NULL,
		amount TEXT NOT NULL,
		transaction_hash TEXT,
		kind TEXT NOT NULL DEFAULT 'tip',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_tip_records_resource ON tip_records(resource_id);
	`

	_, err := trm.db.Exec(query)
	return err
}

// RecordTip appends a tip or donation row
func (trm *TipRecordsManager) RecordTip(resourceID, payerAddress, amount, txHash, kind string) error {
	query := `
	INSERT INTO tip_records (resource_id, payer_address, amount, transaction_hash, kind)
	VALUES (?, ?, ?, ?, ?)
	`

	var hash interface{}
	if txHash != "" {
		hash = txHash
	}

	_, err := trm.db.Exec(query, resourceID, payerAddress, amount, hash, kind)
	return err
}

// ListTips retrieves tips for a resource, newest first
func (trm *TipRecordsManager) ListTips(resourceID string, limit, offset int) ([]*TipRecord, error) {
	query := `
	SELECT id, resource_id, payer_address, amount, transaction_hash, kind, created_at
	FROM tip_records
	WHERE resource_id = ?
	ORDER BY created_at DESC LIMIT ? OFFSET ?
	`

	rows, err := trm.db.Query(query, resourceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tips := make([]*TipRecord, 0)
	for rows.Next() {
		tip := &TipRecord{}
		var txHash sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&tip.ID,
			&tip.ResourceID,
			&tip.PayerAddress,
			&tip.Amount,
			&txHash,
			&tip.Kind,
			&createdAt,
		); err != nil {
			continue
		}

		if txHash.Valid {
			tip.TransactionHash = txHash.String
		}
		tip.CreatedAt = time.Unix(createdAt, 0)

		tips = append(tips, tip)
	}

	return tips, nil
}
