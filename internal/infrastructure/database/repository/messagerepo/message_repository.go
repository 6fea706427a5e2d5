package messagerepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/message"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/dbschema"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/transaction"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

const (
	tokenBatchSize = 200
	idBatchSize    = 500
)

type MessageGormRepository struct {
	db  *transaction.Database
	now func() time.Time
}

var _ message.Store = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *transaction.Database) message.Store {
	return &MessageGormRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Upsert implements message.Store. The message row and its tokens commit together: a new
// message is inserted with its tokens, an existing one gets fresh counters, and only a changed
// text rewrites the token rows.
func (repo *MessageGormRepository) Upsert(ctx context.Context, msg *message.Message) (message.UpsertOutcome, error) {
	var outcome message.UpsertOutcome
	msg.Date = msg.Date.UTC()
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.Query(ctx)
		now := repo.now()

		var existing dbschema.ChannelMessage
		err := tx.Where("channel_id = ? AND source_id = ?", msg.ChannelID, msg.SourceID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			msg.IndexedAt, msg.UpdatedAt = now, now
			model := dbschema.NewSchemaChannelMessage(msg)
			model.ID = 0
			if err := tx.Create(model).Error; err != nil {
				return err
			}
			msg.ID = model.ID
			outcome = message.OutcomeInserted
			return insertTokens(tx, msg.ID, msg.Text)
		case err != nil:
			return err
		}

		updates := map[string]any{
			"views":      msg.Views,
			"forwards":   msg.Forwards,
			"has_media":  msg.HasMedia,
			"media_type": msg.MediaType,
			"updated_at": now,
		}
		textChanged := existing.Text != msg.Text
		if textChanged {
			updates["text"] = msg.Text
		}
		if err := tx.Model(&dbschema.ChannelMessage{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return err
		}
		msg.ID = existing.ID
		msg.IndexedAt = existing.IndexedAt
		msg.UpdatedAt = now
		outcome = message.OutcomeUpdated

		if !textChanged {
			return nil
		}
		if err := tx.Where("message_id = ?", existing.ID).Delete(&dbschema.SearchToken{}).Error; err != nil {
			return err
		}
		return insertTokens(tx, existing.ID, msg.Text)
	})
	if err != nil {
		return 0, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to upsert message", err, "", map[string]any{"channel_id": msg.ChannelID, "source_id": msg.SourceID})
	}
	return outcome, nil
}

func insertTokens(tx *gorm.DB, messageID uint, text string) error {
	rows := dbschema.NewSchemaSearchTokens(message.Tokens(messageID, text))
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, tokenBatchSize).Error
}

// FindBySource implements message.Store. A missing row is (nil, nil).
func (repo *MessageGormRepository) FindBySource(ctx context.Context, channelID uint, sourceID int64) (*message.Message, error) {
	var model dbschema.ChannelMessage
	err := repo.db.Query(ctx).Where("channel_id = ? AND source_id = ?", channelID, sourceID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find message", err, "")
	}
	return model.EtoD(), nil
}

// FindCandidates implements message.Store. It loads the metadata of every message in the
// allowed channels and date range that carries at least one query term, then their matched
// term frequencies. Texts are left out; FindByIDs loads them for the page being returned.
func (repo *MessageGormRepository) FindCandidates(ctx context.Context, query message.CandidateQuery) ([]message.Candidate, error) {
	if len(query.Terms) == 0 || len(query.ChannelIDs) == 0 {
		return []message.Candidate{}, nil
	}

	var rows []dbschema.ChannelMessage
	err := repo.candidates(ctx, query).
		Omit("text").
		Order("channel_messages.date DESC, channel_messages.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find candidate messages", err, "")
	}
	if len(rows) == 0 {
		return []message.Candidate{}, nil
	}

	var tokens []dbschema.SearchToken
	err = repo.db.Query(ctx).
		Where("term IN ?", query.Terms).
		Where("message_id IN (?)", repo.candidates(ctx, query).Select("channel_messages.id")).
		Find(&tokens).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load candidate tokens", err, "")
	}

	matches := make(map[uint]map[string]int, len(rows))
	for _, t := range tokens {
		m, ok := matches[t.MessageID]
		if !ok {
			m = make(map[string]int)
			matches[t.MessageID] = m
		}
		m[t.Term] = t.Frequency
	}

	candidates := make([]message.Candidate, 0, len(rows))
	for i := range rows {
		candidates = append(candidates, message.Candidate{
			Message: *rows[i].EtoD(),
			Matches: matches[rows[i].ID],
		})
	}
	return candidates, nil
}

// candidates scopes channel_messages to the rows a candidate query selects.
func (repo *MessageGormRepository) candidates(ctx context.Context, query message.CandidateQuery) *gorm.DB {
	db := repo.db.Query(ctx)
	matching := db.Session(&gorm.Session{NewDB: true}).
		Model(&dbschema.SearchToken{}).
		Select("1").
		Where("search_tokens.message_id = channel_messages.id AND search_tokens.term IN ?", query.Terms)

	sql := db.Model(&dbschema.ChannelMessage{}).
		Where("channel_messages.channel_id IN ?", query.ChannelIDs).
		Where("EXISTS (?)", matching)
	if query.From != nil {
		sql = sql.Where("channel_messages.date >= ?", query.From.UTC())
	}
	if query.To != nil {
		sql = sql.Where("channel_messages.date <= ?", query.To.UTC())
	}
	return sql
}

// FindByIDs implements message.Store. Unknown ids are skipped; order follows ids.
func (repo *MessageGormRepository) FindByIDs(ctx context.Context, ids []uint) ([]message.Message, error) {
	if len(ids) == 0 {
		return []message.Message{}, nil
	}
	byID := make(map[uint]*message.Message, len(ids))
	for start := 0; start < len(ids); start += idBatchSize {
		end := min(start+idBatchSize, len(ids))
		var rows []dbschema.ChannelMessage
		if err := repo.db.Query(ctx).Where("id IN ?", ids[start:end]).Find(&rows).Error; err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load messages", err, "")
		}
		for i := range rows {
			byID[rows[i].ID] = rows[i].EtoD()
		}
	}

	out := make([]message.Message, 0, len(byID))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

// NewestDate implements message.Store.
func (repo *MessageGormRepository) NewestDate(ctx context.Context) (*time.Time, error) {
	var newest dbschema.ChannelMessage
	err := repo.db.Query(ctx).Select("date").Order("date DESC").Take(&newest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find newest message", err, "")
	}
	date := newest.Date.UTC()
	return &date, nil
}

// StatsByChannel implements message.Store.
func (repo *MessageGormRepository) StatsByChannel(ctx context.Context, channelID uint) (*message.ChannelStats, error) {
	var totals struct {
		Messages      int64
		TotalViews    int64
		TotalForwards int64
	}
	err := repo.db.Query(ctx).
		Model(&dbschema.ChannelMessage{}).
		Select("COUNT(*) AS messages, COALESCE(SUM(views), 0) AS total_views, COALESCE(SUM(forwards), 0) AS total_forwards").
		Where("channel_id = ?", channelID).
		Scan(&totals).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to compute channel stats", err, "")
	}

	stats := &message.ChannelStats{
		ChannelID:     channelID,
		Messages:      totals.Messages,
		TotalViews:    totals.TotalViews,
		TotalForwards: totals.TotalForwards,
	}
	if totals.Messages == 0 {
		return stats, nil
	}

	var newest dbschema.ChannelMessage
	err = repo.db.Query(ctx).
		Where("channel_id = ?", channelID).
		Order("date DESC").
		Take(&newest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find newest message", err, "")
	}
	if err == nil {
		date := newest.Date
		stats.NewestDate = &date
	}
	return stats, nil
}

// Count implements message.Store.
func (repo *MessageGormRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := repo.db.Query(ctx).Model(&dbschema.ChannelMessage{}).Count(&total).Error; err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to count messages", err, "")
	}
	return total, nil
}
