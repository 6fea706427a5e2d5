package dbschema

import (
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(ProviderConfig{})
}

type ProviderConfig struct {
	BaseModel
	Name          string `gorm:"size:32;not null;uniqueIndex"`
	Model         string `gorm:"size:255"`
	CredentialRef string `gorm:"size:128"`
	Available     bool   `gorm:"not null;index"`
	Active        bool   `gorm:"not null;index"`
}

func (ProviderConfig) TableName() string {
	return "provider_configs"
}

func NewSchemaProviderConfig(p llm.ProviderConfig) *ProviderConfig {
	return &ProviderConfig{
		Name:          string(p.Name),
		Model:         p.Model,
		CredentialRef: p.CredentialRef,
		Available:     p.Available,
		Active:        p.Active,
	}
}

func (p *ProviderConfig) EtoD() llm.ProviderConfig {
	return llm.ProviderConfig{
		Name:          llm.Kind(p.Name),
		Model:         p.Model,
		CredentialRef: p.CredentialRef,
		Available:     p.Available,
		Active:        p.Active,
	}
}
