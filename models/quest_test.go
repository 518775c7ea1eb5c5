package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewQuestCatalogDerivesIDs(t *testing.T) {
	catalog, err := NewQuestCatalog([]QuestDefinition{
		{Title: "Join the Discord Server", Mandatory: true, Points: 10},
		{ID: "explicit", Title: "Explicit id wins", Points: 5},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	if _, ok := catalog.Get("join-the-discord-server"); !ok {
		t.Fatalf("slug id not derived from title: %v", catalog.QuestIDs())
	}
	if _, ok := catalog.Get("explicit"); !ok {
		t.Fatalf("explicit id lost")
	}
	if got := catalog.PointsFor("explicit"); got != 5 {
		t.Fatalf("PointsFor(explicit) = %d, want 5", got)
	}
	if got := catalog.PointsFor("unknown"); got != 0 {
		t.Fatalf("PointsFor(unknown) = %d, want 0", got)
	}
}

func TestNewQuestCatalogRejectsDuplicates(t *testing.T) {
	if _, err := NewQuestCatalog([]QuestDefinition{
		{ID: "dup", Title: "First"},
		{ID: "dup", Title: "Second"},
	}); err == nil {
		t.Fatalf("duplicate ids accepted")
	}
	if _, err := NewQuestCatalog([]QuestDefinition{{}}); err == nil {
		t.Fatalf("entry without id or title accepted")
	}
}

func TestLoadQuestCatalogFromFile(t *testing.T) {
	definitions := []QuestDefinition{
		{ID: "custom_quest", Title: "Custom quest", Mandatory: true, Points: 42, Type: QuestTypeWebsiteVisit},
	}
	raw, _ := json.Marshal(definitions)
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}

	catalog, err := LoadQuestCatalog(path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if got := catalog.PointsFor("custom_quest"); got != 42 {
		t.Fatalf("PointsFor(custom_quest) = %d, want 42", got)
	}
	if ids := catalog.MandatoryQuestIDs(); len(ids) != 1 || ids[0] != "custom_quest" {
		t.Fatalf("MandatoryQuestIDs = %v", ids)
	}

	if _, err := LoadQuestCatalog(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("missing catalog file accepted")
	}
}

func TestDefaultCatalogIsAllMandatory(t *testing.T) {
	catalog, err := LoadQuestCatalog("")
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if len(catalog.Definitions) == 0 {
		t.Fatalf("default catalog empty")
	}
	if got, want := len(catalog.MandatoryQuestIDs()), len(catalog.QuestIDs()); got != want {
		t.Fatalf("mandatory quests = %d, total = %d", got, want)
	}
}
