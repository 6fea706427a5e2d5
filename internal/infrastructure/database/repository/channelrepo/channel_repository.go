package channelrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/dbschema"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/transaction"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

type ChannelGormRepository struct {
	db *transaction.Database
}

var _ channel.Repository = (*ChannelGormRepository)(nil)

func NewChannelGormRepository(db *transaction.Database) channel.Repository {
	return &ChannelGormRepository{db}
}

// Create implements channel.Repository.
func (repo *ChannelGormRepository) Create(ctx context.Context, ch *channel.Channel) (*channel.Channel, error) {
	model := dbschema.NewSchemaChannel(ch)
	if err := repo.db.Query(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "channel already exists", err, "0d2f4a6c-8e1b-4d3f-a5c7-9e1b3d5f7a9c")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create channel", err, "")
	}
	return model.EtoD(), nil
}

// FindByID implements channel.Repository. A missing row is (nil, nil).
func (repo *ChannelGormRepository) FindByID(ctx context.Context, id uint) (*channel.Channel, error) {
	var model dbschema.Channel
	err := repo.db.Query(ctx).Where("id = ?", id).Take(&model).Error
	return repo.one(ctx, &model, err, "failed to find channel by ID")
}

// FindByRef implements channel.Repository. A missing row is (nil, nil).
func (repo *ChannelGormRepository) FindByRef(ctx context.Context, ref string) (*channel.Channel, error) {
	var model dbschema.Channel
	err := repo.db.Query(ctx).Where("ref = ?", ref).Take(&model).Error
	return repo.one(ctx, &model, err, "failed to find channel by ref")
}

// List implements channel.Repository. Topic filtering happens after the query so the
// JSON column needs no dialect-specific operators.
func (repo *ChannelGormRepository) List(ctx context.Context, filter channel.ListFilter) ([]*channel.Channel, error) {
	sql := repo.db.Query(ctx)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		sql = sql.Where("status IN ?", statuses)
	}
	if filter.Limit > 0 && filter.Topic == "" {
		sql = sql.Limit(filter.Limit)
	}

	var rows []dbschema.Channel
	if err := sql.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list channels", err, "")
	}

	result := make([]*channel.Channel, 0, len(rows))
	for i := range rows {
		ch := rows[i].EtoD()
		if filter.Topic != "" && !ch.HasTopic(filter.Topic) {
			continue
		}
		result = append(result, ch)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// CountByStatus implements channel.Repository.
func (repo *ChannelGormRepository) CountByStatus(ctx context.Context) (map[channel.Status]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := repo.db.Query(ctx).
		Model(&dbschema.Channel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to count channels", err, "")
	}
	counts := map[channel.Status]int64{
		channel.StatusPending:  0,
		channel.StatusApproved: 0,
		channel.StatusRejected: 0,
	}
	for _, r := range rows {
		counts[channel.Status(r.Status)] = r.Total
	}
	return counts, nil
}

// UpdateStatus implements channel.Repository as a compare-and-set on the status column.
func (repo *ChannelGormRepository) UpdateStatus(ctx context.Context, ch *channel.Channel, from channel.Status) (bool, error) {
	res := repo.db.Query(ctx).
		Model(&dbschema.Channel{}).
		Where("id = ? AND status = ?", ch.ID, string(from)).
		Updates(map[string]any{
			"status":      string(ch.Status),
			"reviewed_by": ch.ReviewedBy,
			"review_note": ch.ReviewNote,
			"reviewed_at": ch.ReviewedAt,
		})
	if res.Error != nil {
		return false, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update channel status", res.Error, "")
	}
	return res.RowsAffected == 1, nil
}

// UpdateMetadata implements channel.Repository.
func (repo *ChannelGormRepository) UpdateMetadata(ctx context.Context, ch *channel.Channel) error {
	model := dbschema.NewSchemaChannel(ch)
	err := repo.db.Query(ctx).
		Model(&dbschema.Channel{}).
		Where("id = ?", ch.ID).
		Updates(map[string]any{
			"username":    model.Username,
			"title":       model.Title,
			"description": model.Description,
			"topics":      model.Topics,
			"level":       model.Level,
			"language":    model.Language,
		}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update channel metadata", err, "")
	}
	return nil
}

// MarkIndexed implements channel.Repository.
func (repo *ChannelGormRepository) MarkIndexed(ctx context.Context, id uint, at time.Time) error {
	err := repo.db.Query(ctx).
		Model(&dbschema.Channel{}).
		Where("id = ?", id).
		Update("last_indexed_at", at).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to mark channel indexed", err, "")
	}
	return nil
}

func (repo *ChannelGormRepository) one(ctx context.Context, model *dbschema.Channel, err error, msg string) (*channel.Channel, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, msg, err, "")
	}
	return model.EtoD(), nil
}
