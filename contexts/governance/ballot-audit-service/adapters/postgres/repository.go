package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainerrors "agora/contexts/governance/ballot-audit-service/domain/errors"
	"agora/contexts/governance/ballot-audit-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) AppendEntry(ctx context.Context, entry ports.AuditEntry) error {
	row := auditEntryModel{
		EntryID:    entry.EntryID,
		BallotID:   entry.BallotID,
		EventID:    entry.EventID,
		EventType:  entry.EventType,
		Actor:      entry.Actor,
		Payload:    append([]byte(nil), entry.Payload...),
		OccurredAt: entry.OccurredAt.UTC(),
		RecordedAt: entry.RecordedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvariantBroken
		}
		return err
	}
	return nil
}

func (r *Repository) ListBallotActivity(ctx context.Context, ballotID string, limit int) ([]ports.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []auditEntryModel
	if err := r.db.WithContext(ctx).
		Where("ballot_id = ?", ballotID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "recorded_at"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "entry_id"}, Desc: true}).
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntry())
	}
	return items, nil
}

func (r *Repository) GetSummary(ctx context.Context) (ports.AuditSummary, error) {
	summary := ports.AuditSummary{
		CountsByType: make(map[string]int),
	}

	var typeCounts []struct {
		EventType string `gorm:"column:event_type"`
		Total     int    `gorm:"column:total"`
	}
	if err := r.db.WithContext(ctx).
		Model(&auditEntryModel{}).
		Select("event_type, COUNT(*) AS total").
		Group("event_type").
		Scan(&typeCounts).
		Error; err != nil {
		return ports.AuditSummary{}, err
	}
	for _, row := range typeCounts {
		summary.CountsByType[row.EventType] = row.Total
		summary.TotalEntries += row.Total
	}

	var ballots int64
	if err := r.db.WithContext(ctx).
		Model(&auditEntryModel{}).
		Distinct("ballot_id").
		Count(&ballots).
		Error; err != nil {
		return ports.AuditSummary{}, err
	}
	summary.Ballots = int(ballots)

	var latest auditEntryModel
	err := r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "recorded_at"}, Desc: true}).
		First(&latest).
		Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.AuditSummary{}, err
	}
	if err == nil {
		recorded := latest.RecordedAt.UTC()
		summary.LastRecordedAt = &recorded
	}

	return summary, nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     eventID,
		PayloadHash: payloadHash,
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return false, createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", eventID).
		First(&existing).
		Error; err != nil {
		return false, err
	}
	if existing.PayloadHash != payloadHash {
		return false, domainerrors.ErrInvariantBroken
	}
	return true, nil
}

type auditEntryModel struct {
	EntryID    string    `gorm:"column:entry_id;primaryKey"`
	BallotID   string    `gorm:"column:ballot_id"`
	EventID    string    `gorm:"column:event_id;uniqueIndex"`
	EventType  string    `gorm:"column:event_type"`
	Actor      string    `gorm:"column:actor"`
	Payload    []byte    `gorm:"column:payload"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
	RecordedAt time.Time `gorm:"column:recorded_at"`
}

func (auditEntryModel) TableName() string {
	return "ballot_audit_entries"
}

func (m auditEntryModel) toEntry() ports.AuditEntry {
	return ports.AuditEntry{
		EntryID:    m.EntryID,
		BallotID:   m.BallotID,
		EventID:    m.EventID,
		EventType:  m.EventType,
		Actor:      m.Actor,
		Payload:    append([]byte(nil), m.Payload...),
		OccurredAt: m.OccurredAt.UTC(),
		RecordedAt: m.RecordedAt.UTC(),
	}
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "ballot_audit_event_dedup"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
