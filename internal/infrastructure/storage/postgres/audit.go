package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/id"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionConfirm AuditAction = "confirm"
	AuditActionPay     AuditAction = "pay"
)

// CompressionAlgo specifies how a snapshot is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one row of sys_audit.
type AuditEntry struct {
	ID                 id.ID           `db:"id" json:"id"`
	EntityType         string          `db:"entity_type" json:"entityType"`
	EntityID           id.ID           `db:"entity_id" json:"entityId"`
	Number             string          `db:"number" json:"number"`
	Action             AuditAction     `db:"action" json:"action"`
	UserID             string          `db:"user_id" json:"userId"`
	Snapshot           json.RawMessage `db:"snapshot" json:"snapshot"`
	SnapshotCompressed []byte          `db:"snapshot_compressed" json:"-"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo" json:"-"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
}

// AuditLog records confirmed documents and payments. Snapshots above the
// threshold are stored zstd-compressed; invoices with many lines get large.
type AuditLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditLog creates a new audit log.
func NewAuditLog(txManager *TxManager) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 8 * 1024,
	}, nil
}

// Record stores a snapshot of entity taken right after it was confirmed.
func (s *AuditLog) Record(ctx context.Context, entityType string, entityID id.ID, number string, action AuditAction, snapshot any) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	entry := AuditEntry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Number:     number,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		CreatedAt:  time.Now().UTC(),
	}
	s.pack(&entry, raw)

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, number, action, user_id,
			snapshot, snapshot_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Number, entry.Action, entry.UserID,
		entry.Snapshot, entry.SnapshotCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries for an entity first.
func (s *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, number, action, user_id,
		       snapshot, snapshot_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Number, &e.Action, &e.UserID,
			&e.Snapshot, &e.SnapshotCompressed, &e.CompressionAlgo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := s.unpack(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *AuditLog) pack(e *AuditEntry, raw []byte) {
	if len(raw) > s.compressThreshold {
		e.SnapshotCompressed = s.encoder.EncodeAll(raw, nil)
		e.Snapshot = nil
		e.CompressionAlgo = CompressionZstd
		return
	}
	e.Snapshot = raw
	e.CompressionAlgo = CompressionNone
}

func (s *AuditLog) unpack(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.SnapshotCompressed) == 0 {
		return nil
	}
	raw, err := s.decoder.DecodeAll(e.SnapshotCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress snapshot: %w", err)
	}
	e.Snapshot = raw
	e.SnapshotCompressed = nil
	return nil
}
