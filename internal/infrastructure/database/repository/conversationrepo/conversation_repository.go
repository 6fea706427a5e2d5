package conversationrepo

import (
	"context"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/dbschema"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/transaction"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

type ConversationGormRepository struct {
	db *transaction.Database
}

var _ conversation.Store = (*ConversationGormRepository)(nil)

func NewConversationGormRepository(db *transaction.Database) conversation.Store {
	return &ConversationGormRepository{db}
}

// Append implements conversation.Store. The insert and the trim of older turns commit together.
func (repo *ConversationGormRepository) Append(ctx context.Context, key conversation.Key, turn conversation.Turn, limit int) error {
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.Query(ctx)
		if err := tx.Create(dbschema.NewSchemaConversationTurn(key, turn)).Error; err != nil {
			return err
		}
		if limit <= 0 {
			return nil
		}

		var boundary []uint
		err := tx.Model(&dbschema.ConversationTurn{}).
			Where("conversation_key = ?", string(key)).
			Order("id DESC").
			Offset(limit-1).
			Limit(1).
			Pluck("id", &boundary).Error
		if err != nil || len(boundary) == 0 {
			return err
		}
		return tx.Where("conversation_key = ? AND id < ?", string(key), boundary[0]).
			Delete(&dbschema.ConversationTurn{}).Error
	})
	if err != nil {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to append conversation turn", err, "", map[string]any{"conversation": string(key)})
	}
	return nil
}

// Load implements conversation.Store.
func (repo *ConversationGormRepository) Load(ctx context.Context, key conversation.Key, limit int) ([]conversation.Turn, error) {
	sql := repo.db.Query(ctx).
		Where("conversation_key = ?", string(key)).
		Order("id DESC")
	if limit > 0 {
		sql = sql.Limit(limit)
	}
	var rows []dbschema.ConversationTurn
	if err := sql.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load conversation", err, "")
	}

	turns := make([]conversation.Turn, len(rows))
	for i := range rows {
		turns[len(rows)-1-i] = rows[i].EtoD()
	}
	return turns, nil
}

// Clear implements conversation.Store.
func (repo *ConversationGormRepository) Clear(ctx context.Context, key conversation.Key) error {
	err := repo.db.Query(ctx).
		Where("conversation_key = ?", string(key)).
		Delete(&dbschema.ConversationTurn{}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to clear conversation", err, "")
	}
	return nil
}
