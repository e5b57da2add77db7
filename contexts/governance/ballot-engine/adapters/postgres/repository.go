package postgresadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"agora/contexts/governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/governance/ballot-engine/domain/errors"
	"agora/contexts/governance/ballot-engine/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository persists ballots across normalized tables. Every write runs in
// one transaction that takes a FOR UPDATE lock on the ballots row, so
// mutations on a single ballot are strictly serialized.
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

func (r *Repository) CreateBallotWithOutbox(ctx context.Context, ballot entities.Ballot, event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ballotRow := ballotModelFromEntity(ballot)
		if err := tx.Create(&ballotRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}

		proposalRows := proposalModelsFromEntity(ballot)
		if err := tx.Create(&proposalRows).Error; err != nil {
			return err
		}
		voterRows := voterModelsFromEntity(ballot)
		if len(voterRows) > 0 {
			if err := tx.Create(&voterRows).Error; err != nil {
				return err
			}
		}

		outboxRow := outboxModel{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			Status:       outboxStatusPending,
			CreatedAt:    event.OccurredAt.UTC(),
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}
		return nil
	})
}

func (r *Repository) GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error) {
	return loadBallot(r.db.WithContext(ctx), ballotID, false)
}

func (r *Repository) ListBallots(ctx context.Context, filter ports.BallotListFilter) ([]entities.Ballot, string, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	tx := r.db.WithContext(ctx).Model(&ballotModel{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	tx = tx.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "ballot_id"}, Desc: false})

	offset := decodeCursor(filter.Cursor)
	if offset < 0 {
		offset = 0
	}

	var rows []ballotModel
	if err := tx.Offset(offset).Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = encodeCursor(offset + limit)
		rows = rows[:limit]
	}

	items, err := r.hydrateBallots(ctx, rows)
	if err != nil {
		return nil, "", err
	}
	return items, nextCursor, nil
}

func (r *Repository) UpdateBallotWithOutbox(
	ctx context.Context,
	ballotID string,
	mutate ports.BallotMutation,
) (entities.Ballot, error) {
	var updated entities.Ballot
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ballot, err := loadBallot(tx, ballotID, true)
		if err != nil {
			return err
		}
		event, err := mutate(&ballot)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}

		if err := tx.Model(&ballotModel{}).
			Where("ballot_id = ?", ballotID).
			Updates(map[string]any{
				"status":     string(ballot.Status),
				"updated_at": ballot.UpdatedAt.UTC(),
			}).Error; err != nil {
			return err
		}
		for index, proposal := range ballot.Proposals {
			if err := tx.Model(&ballotProposalModel{}).
				Where("ballot_id = ? AND proposal_index = ?", ballotID, index).
				Update("vote_count", proposal.VoteCount).Error; err != nil {
				return err
			}
		}
		voterRows := voterModelsFromEntity(ballot)
		if len(voterRows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "ballot_id"}, {Name: "address"}},
				DoUpdates: clause.AssignmentColumns([]string{"weight", "voted", "delegate", "vote_index"}),
			}).Create(&voterRows).Error; err != nil {
				return err
			}
		}

		outboxRow := outboxModel{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			Status:       outboxStatusPending,
			CreatedAt:    event.OccurredAt.UTC(),
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}

		updated = ballot
		return nil
	})
	if err != nil {
		return entities.Ballot{}, err
	}
	return updated, nil
}

func (r *Repository) ListExpiredOpenBallots(ctx context.Context, now time.Time, limit int) ([]entities.Ballot, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND ends_at IS NOT NULL AND ends_at < ?", string(entities.BallotStatusOpen), now.UTC()).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "ends_at"}, Desc: false}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "ballot_id"}, Desc: false}).
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return r.hydrateBallots(ctx, rows)
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", key).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return row.toPort(), true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModelFromPort(record)
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", record.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func loadBallot(tx *gorm.DB, ballotID string, forUpdate bool) (entities.Ballot, error) {
	query := tx.Where("ballot_id = ?", ballotID)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row ballotModel
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, domainerrors.ErrBallotNotFound
		}
		return entities.Ballot{}, err
	}

	var proposalRows []ballotProposalModel
	if err := tx.
		Where("ballot_id = ?", ballotID).
		Order("proposal_index ASC").
		Find(&proposalRows).
		Error; err != nil {
		return entities.Ballot{}, err
	}
	var voterRows []ballotVoterModel
	if err := tx.
		Where("ballot_id = ?", ballotID).
		Find(&voterRows).
		Error; err != nil {
		return entities.Ballot{}, err
	}

	return assembleBallot(row, proposalRows, voterRows), nil
}

func (r *Repository) hydrateBallots(ctx context.Context, rows []ballotModel) ([]entities.Ballot, error) {
	if len(rows) == 0 {
		return []entities.Ballot{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.BallotID)
	}
	var proposalRows []ballotProposalModel
	if err := r.db.WithContext(ctx).
		Where("ballot_id IN ?", ids).
		Order("proposal_index ASC").
		Find(&proposalRows).
		Error; err != nil {
		return nil, err
	}
	var voterRows []ballotVoterModel
	if err := r.db.WithContext(ctx).
		Where("ballot_id IN ?", ids).
		Find(&voterRows).
		Error; err != nil {
		return nil, err
	}

	proposalsByBallot := make(map[string][]ballotProposalModel, len(rows))
	for _, row := range proposalRows {
		proposalsByBallot[row.BallotID] = append(proposalsByBallot[row.BallotID], row)
	}
	votersByBallot := make(map[string][]ballotVoterModel, len(rows))
	for _, row := range voterRows {
		votersByBallot[row.BallotID] = append(votersByBallot[row.BallotID], row)
	}

	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		items = append(items, assembleBallot(row, proposalsByBallot[row.BallotID], votersByBallot[row.BallotID]))
	}
	return items, nil
}

func assembleBallot(row ballotModel, proposalRows []ballotProposalModel, voterRows []ballotVoterModel) entities.Ballot {
	ballot := entities.Ballot{
		BallotID:    row.BallotID,
		Chairperson: row.Chairperson,
		Status:      entities.BallotStatus(row.Status),
		Proposals:   make([]entities.Proposal, len(proposalRows)),
		Voters:      make(map[string]entities.Voter, len(voterRows)),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.EndsAt != nil {
		ends := row.EndsAt.UTC()
		ballot.EndsAt = &ends
	}
	for _, proposal := range proposalRows {
		ballot.Proposals[proposal.ProposalIndex] = entities.Proposal{
			Name:      proposal.Name,
			VoteCount: proposal.VoteCount,
		}
	}
	for _, voter := range voterRows {
		record := entities.Voter{
			Address:  voter.Address,
			Weight:   voter.Weight,
			Voted:    voter.Voted,
			Delegate: voter.Delegate,
		}
		if voter.VoteIndex != nil {
			index := *voter.VoteIndex
			record.Vote = &index
		}
		ballot.Voters[voter.Address] = record
	}
	return ballot
}

type ballotModel struct {
	BallotID    string     `gorm:"column:ballot_id;primaryKey"`
	Chairperson string     `gorm:"column:chairperson"`
	Status      string     `gorm:"column:status"`
	EndsAt      *time.Time `gorm:"column:ends_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

func ballotModelFromEntity(ballot entities.Ballot) ballotModel {
	row := ballotModel{
		BallotID:    ballot.BallotID,
		Chairperson: ballot.Chairperson,
		Status:      string(ballot.Status),
		CreatedAt:   ballot.CreatedAt.UTC(),
		UpdatedAt:   ballot.UpdatedAt.UTC(),
	}
	if ballot.EndsAt != nil {
		ends := ballot.EndsAt.UTC()
		row.EndsAt = &ends
	}
	return row
}

type ballotProposalModel struct {
	BallotID      string `gorm:"column:ballot_id;primaryKey"`
	ProposalIndex int    `gorm:"column:proposal_index;primaryKey"`
	Name          string `gorm:"column:name"`
	VoteCount     int    `gorm:"column:vote_count"`
}

func (ballotProposalModel) TableName() string {
	return "ballot_proposals"
}

func proposalModelsFromEntity(ballot entities.Ballot) []ballotProposalModel {
	rows := make([]ballotProposalModel, 0, len(ballot.Proposals))
	for index, proposal := range ballot.Proposals {
		rows = append(rows, ballotProposalModel{
			BallotID:      ballot.BallotID,
			ProposalIndex: index,
			Name:          proposal.Name,
			VoteCount:     proposal.VoteCount,
		})
	}
	return rows
}

type ballotVoterModel struct {
	BallotID  string `gorm:"column:ballot_id;primaryKey"`
	Address   string `gorm:"column:address;primaryKey"`
	Weight    int    `gorm:"column:weight"`
	Voted     bool   `gorm:"column:voted"`
	Delegate  string `gorm:"column:delegate"`
	VoteIndex *int   `gorm:"column:vote_index"`
}

func (ballotVoterModel) TableName() string {
	return "ballot_voters"
}

func voterModelsFromEntity(ballot entities.Ballot) []ballotVoterModel {
	rows := make([]ballotVoterModel, 0, len(ballot.Voters))
	for _, voter := range ballot.Voters {
		row := ballotVoterModel{
			BallotID: ballot.BallotID,
			Address:  voter.Address,
			Weight:   voter.Weight,
			Voted:    voter.Voted,
			Delegate: voter.Delegate,
		}
		if voter.Vote != nil {
			index := *voter.Vote
			row.VoteIndex = &index
		}
		rows = append(rows, row)
	}
	return rows
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	BallotID    string    `gorm:"column:ballot_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "ballot_idempotency"
}

func idempotencyModelFromPort(record ports.IdempotencyRecord) idempotencyModel {
	return idempotencyModel{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		BallotID:    record.BallotID,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
}

func (m idempotencyModel) toPort() ports.IdempotencyRecord {
	return ports.IdempotencyRecord{
		Key:         m.Key,
		RequestHash: m.RequestHash,
		BallotID:    m.BallotID,
		ExpiresAt:   m.ExpiresAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ballot_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func decodeCursor(cursor string) int {
	if strings.TrimSpace(cursor) == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	index, err := strconv.Atoi(string(raw))
	if err != nil || index < 0 {
		return 0
	}
	return index
}

func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}
