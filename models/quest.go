package models

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gosimple/slug"
)

// QuestType hints at how a quest is completed; the ledger itself only cares
// about ids, mandatory flags and point values.
type QuestType string

const (
	QuestTypeTelegramChannel QuestType = "telegram_channel"
	QuestTypeTelegramChat    QuestType = "telegram_chat"
	QuestTypeDiscord         QuestType = "discord_membership"
	QuestTypeSocialFollow    QuestType = "social_follow"
	QuestTypeWebsiteVisit    QuestType = "website_visit"
	QuestTypeEmail           QuestType = "email_collection"
	QuestTypeWallet          QuestType = "wallet_collection"
)

// QuestDefinition is one catalog entry. The catalog is read-only input
// supplied at startup; entries may be added between deployments and the
// ledger backfills participant records lazily.
type QuestDefinition struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mandatory bool      `json:"mandatory"`
	Points    int64     `json:"points"`
	Type      QuestType `json:"type"`
}

// QuestCatalog is the ordered quest list plus derived lookups.
type QuestCatalog struct {
	Definitions []QuestDefinition
	byID        map[string]QuestDefinition
}

func NewQuestCatalog(definitions []QuestDefinition) (*QuestCatalog, error) {
	byID := make(map[string]QuestDefinition, len(definitions))
	for i, def := range definitions {
		if def.ID == "" {
			// Catalog files may omit ids; derive a stable one from the title.
			def.ID = slug.Make(def.Title)
			definitions[i] = def
		}
		if def.ID == "" {
			return nil, fmt.Errorf("quest %d has neither id nor title", i)
		}
		if _, exists := byID[def.ID]; exists {
			return nil, fmt.Errorf("duplicate quest id %q", def.ID)
		}
		byID[def.ID] = def
	}
	return &QuestCatalog{Definitions: definitions, byID: byID}, nil
}

// LoadQuestCatalog reads a JSON catalog file, falling back to the built-in
// default campaign when path is empty.
func LoadQuestCatalog(path string) (*QuestCatalog, error) {
	if path == "" {
		return NewQuestCatalog(DefaultQuestDefinitions())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quest catalog: %w", err)
	}
	var definitions []QuestDefinition
	if err := json.Unmarshal(raw, &definitions); err != nil {
		return nil, fmt.Errorf("failed to parse quest catalog: %w", err)
	}
	return NewQuestCatalog(definitions)
}

func (c *QuestCatalog) Get(questID string) (QuestDefinition, bool) {
	def, ok := c.byID[questID]
	return def, ok
}

func (c *QuestCatalog) QuestIDs() []string {
	ids := make([]string, 0, len(c.Definitions))
	for _, def := range c.Definitions {
		ids = append(ids, def.ID)
	}
	return ids
}

func (c *QuestCatalog) MandatoryQuestIDs() []string {
	var ids []string
	for _, def := range c.Definitions {
		if def.Mandatory {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

// PointsFor returns the catalog point value for a quest, zero for unknown ids.
func (c *QuestCatalog) PointsFor(questID string) int64 {
	return c.byID[questID].Points
}

// DefaultQuestDefinitions mirrors the launch campaign catalog.
func DefaultQuestDefinitions() []QuestDefinition {
	return []QuestDefinition{
		{ID: "telegram_channel", Title: "Subscribe to the Telegram channel", Mandatory: true, Points: 10, Type: QuestTypeTelegramChannel},
		{ID: "telegram_chat", Title: "Join the Telegram community chat", Mandatory: true, Points: 10, Type: QuestTypeTelegramChat},
		{ID: "discord_join", Title: "Join the Discord server", Mandatory: true, Points: 10, Type: QuestTypeDiscord},
		{ID: "x_follow", Title: "Follow on X (Twitter)", Mandatory: true, Points: 10, Type: QuestTypeSocialFollow},
		{ID: "instagram_follow", Title: "Follow on Instagram", Mandatory: true, Points: 10, Type: QuestTypeSocialFollow},
		{ID: "website_visit", Title: "Visit the website", Mandatory: true, Points: 10, Type: QuestTypeWebsiteVisit},
		{ID: "email_submit", Title: "Drop your email", Mandatory: true, Points: 10, Type: QuestTypeEmail},
		{ID: "wallet_submit", Title: "Submit your EVM wallet", Mandatory: true, Points: 10, Type: QuestTypeWallet},
		{ID: "sol_wallet_submit", Title: "Submit your SOL wallet", Mandatory: true, Points: 10, Type: QuestTypeWallet},
	}
}
