package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

// PaymentRecord is one completed article purchase. Rows are append-only and are
// never deleted, even when the underlying article is removed; payment history
// is permanent. Uniqueness on (resource_id, payer_address) is the double-spend
// guard for the whole payment pipeline.
type PaymentRecord struct {
	ID              int64     `json:"id"`
	ResourceID      string    `json:"resource_id"`
	PayerAddress    string    `json:"payer_address"` // normalized before write
	Amount          string    `json:"amount"`        // atomic units, decimal string
	TransactionHash string    `json:"transaction_hash,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PaymentRecordsManager is the durable payment ledger
type PaymentRecordsManager struct {
	db     *sql.DB
	logger *utils.LogsManager
}

// NewPaymentRecordsManager creates the manager and its table
func NewPaymentRecordsManager(db *sql.DB, logger *utils.LogsManager) (*PaymentRecordsManager, error) {
	prm := &PaymentRecordsManager{
		db:     db,
		logger: logger,
	}

	if err := prm.initTable(); err != nil {
		return nil, err
	}

	return prm, nil
}

func (prm *PaymentRecordsManager) initTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS payment_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		resource_id TEXT NOT NULL,
		payer_address TEXT NOT NULL,
		amount TEXT NOT NULL,
		transaction_hash TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(resource_id, payer_address)
	);

	CREATE INDEX IF NOT EXISTS idx_payment_records_payer ON payment_records(payer_address);
	`

	_, err := prm.db.Exec(query)
	return err
}

// RecordPayment inserts a ledger row for a settled payment. A unique-constraint
// violation means a racing request for the same (resource, payer) already
// recorded; that is benign, reported as created=false with no error. Two
// concurrent calls never produce two rows.
func (prm *PaymentRecordsManager) RecordPayment(resourceID, payerAddress, amount, txHash string) (bool, error) {
	query := `
	INSERT INTO payment_records (resource_id, payer_address, amount, transaction_hash)
	VALUES (?, ?, ?, ?)
	`

	var hash interface{}
	if txHash != "" {
		hash = txHash
	}

	_, err := prm.db.Exec(query, resourceID, payerAddress, amount, hash)
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// HasPaid reports whether a payer holds a ledger row for a resource. This is
// the single query behind both the pre-settlement duplicate check and the
// access grant on subsequent visits.
func (prm *PaymentRecordsManager) HasPaid(resourceID, payerAddress string) (bool, error) {
	query := `SELECT COUNT(1) FROM payment_records WHERE resource_id = ? AND payer_address = ?`

	var count int
	if err := prm.db.QueryRow(query, resourceID, payerAddress).Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

// GetPaymentRecord retrieves one ledger row
func (prm *PaymentRecordsManager) GetPaymentRecord(resourceID, payerAddress string) (*PaymentRecord, error) {
	query := `
	SELECT id, resource_id, payer_address, amount, transaction_hash, created_at
	FROM payment_records
	WHERE resource_id = ? AND payer_address = ?
	`

	record := &PaymentRecord{}
	var txHash sql.NullString
	var createdAt int64

	err := prm.db.QueryRow(query, resourceID, payerAddress).Scan(
		&record.ID,
		&record.ResourceID,
		&record.PayerAddress,
		&record.Amount,
		&txHash,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if txHash.Valid {
		record.TransactionHash = txHash.String
	}
	record.CreatedAt = time.Unix(createdAt, 0)

	return record, nil
}

// ListPaymentRecords retrieves ledger rows, newest first, optionally filtered
// by resource
func (prm *PaymentRecordsManager) ListPaymentRecords(resourceID string, limit, offset int) ([]*PaymentRecord, error) {
	query := `
	SELECT id, resource_id, payer_address, amount, transaction_hash, created_at
	FROM payment_records
	`

	args := []interface{}{}
	if resourceID != "" {
		query += " WHERE resource_id = ?"
		args = append(args, resourceID)
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := prm.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*PaymentRecord, 0)
	for rows.Next() {
		record := &PaymentRecord{}
		var txHash sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&record.ID,
			&record.ResourceID,
			&record.PayerAddress,
			&record.Amount,
			&txHash,
			&createdAt,
		); err != nil {
			continue
		}

		if txHash.Valid {
			record.TransactionHash = txHash.String
		}
		record.CreatedAt = time.Unix(createdAt, 0)

		records = append(records, record)
	}

	return records, nil
}

// CountPayments returns the number of ledger rows for a resource
func (prm *PaymentRecordsManager) CountPayments(resourceID string) (int, error) {
	var count int
	err := prm.db.QueryRow(`SELECT COUNT(1) FROM payment_records WHERE resource_id = ?`, resourceID).Scan(&count)
	return count, err
}

// isUniqueConstraintError detects a sqlite unique-constraint violation. The
// modernc driver surfaces it in the error text (SQLITE_CONSTRAINT_UNIQUE,
// code 2067).
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, fmt.Sprintf("(%d)", 2067))
}
