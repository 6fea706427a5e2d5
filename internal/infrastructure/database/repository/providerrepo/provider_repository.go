package providerrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/dbschema"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/transaction"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

type ProviderConfigGormRepository struct {
	db *transaction.Database
}

var _ llm.ConfigRepository = (*ProviderConfigGormRepository)(nil)

func NewProviderConfigGormRepository(db *transaction.Database) llm.ConfigRepository {
	return &ProviderConfigGormRepository{db}
}

// Sync implements llm.ConfigRepository. Rows for the given providers are created or refreshed
// with their active flag preserved; providers missing from configs are marked unavailable.
func (repo *ProviderConfigGormRepository) Sync(ctx context.Context, configs []llm.ProviderConfig) error {
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.Query(ctx)
		seen := make([]string, 0, len(configs))
		for _, cfg := range configs {
			seen = append(seen, string(cfg.Name))

			var existing dbschema.ProviderConfig
			err := tx.Where("name = ?", string(cfg.Name)).Take(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				model := dbschema.NewSchemaProviderConfig(cfg)
				model.Active = false
				if err := tx.Create(model).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			err = tx.Model(&dbschema.ProviderConfig{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{
					"model":          cfg.Model,
					"credential_ref": cfg.CredentialRef,
					"available":      cfg.Available,
				}).Error
			if err != nil {
				return err
			}
		}

		stale := tx.Model(&dbschema.ProviderConfig{})
		if len(seen) > 0 {
			stale = stale.Where("name NOT IN ?", seen)
		} else {
			stale = stale.Where("1 = 1")
		}
		return stale.Update("available", false).Error
	})
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to sync provider configs", err, "")
	}
	return nil
}

// List implements llm.ConfigRepository.
func (repo *ProviderConfigGormRepository) List(ctx context.Context) ([]llm.ProviderConfig, error) {
	var rows []dbschema.ProviderConfig
	if err := repo.db.Query(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list provider configs", err, "")
	}
	result := make([]llm.ProviderConfig, len(rows))
	for i := range rows {
		result[i] = rows[i].EtoD()
	}
	return result, nil
}

// FindActive implements llm.ConfigRepository. No active row is (nil, nil).
func (repo *ProviderConfigGormRepository) FindActive(ctx context.Context) (*llm.ProviderConfig, error) {
	var model dbschema.ProviderConfig
	err := repo.db.Query(ctx).Where("active = ?", true).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find active provider", err, "")
	}
	cfg := model.EtoD()
	return &cfg, nil
}

// SetActive implements llm.ConfigRepository.
func (repo *ProviderConfigGormRepository) SetActive(ctx context.Context, name llm.Kind) error {
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.Query(ctx)
		res := tx.Model(&dbschema.ProviderConfig{}).Where("name = ?", string(name)).Update("active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&dbschema.ProviderConfig{}).Where("name <> ?", string(name)).Update("active", false).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "provider config not found", err, "")
	}
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to set active provider", err, "")
	}
	return nil
}
