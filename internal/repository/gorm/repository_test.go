package gormrepository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"gameshelf/internal/config"
	"gameshelf/internal/db"
	"gameshelf/internal/models"
	"gameshelf/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(config.DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close(conn) })
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(conn.Gorm)
}

func sp(s string) *string { return &s }

func seed(t *testing.T, store *Store, things ...models.Thing) {
	t.Helper()
	err := store.InTx(context.Background(), func(tx *gorm.DB) error {
		for i := range things {
			if things[i].RawJSON == nil {
				things[i].RawJSON = datatypes.JSON([]byte("{}"))
			}
			if err := store.UpsertThingTx(context.Background(), tx, &things[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func listIDs(t *testing.T, store *Store, params repository.ListThingsParams) []string {
	t.Helper()
	things, err := store.ListThings(context.Background(), params)
	if err != nil {
		t.Fatalf("ListThings: %v", err)
	}
	ids := make([]string, 0, len(things))
	for _, thing := range things {
		ids = append(ids, thing.ID)
	}
	return ids
}

func wantIDs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestGetThingByIDMissing(t *testing.T) {
	store := newTestStore(t)
	thing, err := store.GetThingByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetThingByID: %v", err)
	}
	if thing != nil {
		t.Fatalf("expected nil for a missing row, got %+v", thing)
	}
}

func TestUpsertPreservesCreatedAtAndChecksum(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	firstSeen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	seed(t, store, models.Thing{
		ID:            "174430",
		Type:          "boardgame",
		Name:          "Gloomhaven",
		SchemaVersion: 1,
		CreatedAt:     firstSeen,
	})
	err := store.InTx(ctx, func(tx *gorm.DB) error {
		return store.SyncThingTagsTx(ctx, tx, "174430", []string{"Action Queue"}, "cafe01")
	})
	if err != nil {
		t.Fatalf("SyncThingTagsTx: %v", err)
	}

	refreshedAt := time.Now().UTC()
	seed(t, store, models.Thing{
		ID:              "174430",
		Type:            "boardgame",
		Name:            "Gloomhaven (2nd printing)",
		RatingAverage:   sp("8.7"),
		LastRefreshedAt: &refreshedAt,
		SchemaVersion:   models.ThingSchemaVersion,
		CreatedAt:       time.Now().UTC(),
	})

	got, err := store.GetThingByID(ctx, "174430")
	if err != nil {
		t.Fatalf("GetThingByID: %v", err)
	}
	if got.Name != "Gloomhaven (2nd printing)" {
		t.Errorf("payload columns not replaced: name = %q", got.Name)
	}
	if got.SchemaVersion != models.ThingSchemaVersion {
		t.Errorf("schema version = %d", got.SchemaVersion)
	}
	if !got.CreatedAt.Equal(firstSeen) {
		t.Errorf("created_at rewritten: %v, want %v", got.CreatedAt, firstSeen)
	}
	if got.TagsChecksum == nil || *got.TagsChecksum != "cafe01" {
		t.Errorf("tags_checksum lost on refresh: %v", got.TagsChecksum)
	}
}

func TestListThingMeta(t *testing.T) {
	store := newTestStore(t)
	refreshedAt := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	seed(t, store,
		models.Thing{ID: "a", Type: "boardgame", Name: "A", LastRefreshedAt: &refreshedAt, SchemaVersion: 2},
		models.Thing{ID: "b", Type: "boardgame", Name: "B", SchemaVersion: 1},
	)

	metas, err := store.ListThingMeta(context.Background(), []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("ListThingMeta: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("got %d metas, want 2", len(metas))
	}
	byID := map[string]repository.ThingMeta{}
	for _, m := range metas {
		byID[m.ID] = m
	}
	if m := byID["a"]; m.LastRefreshedAt == nil || !m.LastRefreshedAt.Equal(refreshedAt) || m.SchemaVersion != 2 {
		t.Errorf("meta a = %+v", m)
	}
	if m := byID["b"]; m.LastRefreshedAt != nil || m.SchemaVersion != 1 {
		t.Errorf("meta b = %+v", m)
	}
}

func seedCatalog(t *testing.T, store *Store) {
	t.Helper()
	seed(t, store,
		models.Thing{
			ID: "1", Type: "boardgame", Name: "Brass: Birmingham",
			Description: sp("An economic strategy game."),
			MinPlayers:  sp("2"), MaxPlayers: sp("4"),
			MinPlayTime: sp("60"), MaxPlayTime: sp("120"),
			RatingAverage: sp("8.7"), Rank: sp("1"), Weight: sp("3.9"),
		},
		models.Thing{
			ID: "2", Type: "boardgame", Name: "Cascadia",
			Description: sp("A puzzly tile-laying game about wildlife."),
			MinPlayers:  sp("1"), MaxPlayers: sp("4"),
			MinPlayTime: sp("30"), MaxPlayTime: sp("45"),
			RatingAverage: sp("7.8"), Rank: sp("60"), Weight: sp("1.9"),
		},
		models.Thing{
			ID: "3", Type: "boardgame", Name: "Twilight Imperium",
			Description: sp("An epic space opera."),
			MinPlayers:  sp("3"), MaxPlayers: sp("6"),
			MinPlayTime: sp("240"), MaxPlayTime: sp("480"),
			RatingAverage: sp("8.1"), Rank: sp("7"), Weight: sp("4.3"),
		},
		models.Thing{
			ID: "4", Type: "boardgameexpansion", Name: "Unranked Expansion",
			MinPlayers: sp(""), MaxPlayers: sp(""),
			RatingAverage: sp("N/A"), Rank: sp("Not Ranked"), Weight: sp("0"),
		},
	)
}

func TestPlayerCountRange(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)
	asc := true

	got := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{PlayerCount: intp(2)},
		Asc:     &asc,
	})
	// 1 (2..4) and 2 (1..4) fit; 3 needs at least 3; 4 has non-numeric bounds.
	wantIDs(t, got, []string{"1", "2"})
}

func TestPlayTimeRange(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)

	got := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{PlayTime: intp(45)},
	})
	wantIDs(t, got, []string{"2"})
}

func TestMinRatingSkipsNonNumeric(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)

	got := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{MinRating: floatp(8.0)},
	})
	wantIDs(t, got, []string{"1", "3"})
}

func TestMaxRankExcludesSentinel(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)

	got := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{MaxRank: intp(10)},
	})
	wantIDs(t, got, []string{"1", "3"})
}

func TestWeightOneSidedBounds(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)

	heavy := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{MinWeight: floatp(3.0)},
	})
	wantIDs(t, heavy, []string{"1", "3"})

	light := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{MaxWeight: floatp(2.0)},
	})
	// "0" parses, so the expansion qualifies for the light bucket.
	wantIDs(t, light, []string{"2", "4"})
}

func TestTextFiltersCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)

	byName := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{NameContains: "BRASS"},
	})
	wantIDs(t, byName, []string{"1"})

	byDescription := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{DescriptionContains: "Space Opera"},
	})
	wantIDs(t, byDescription, []string{"3"})
}

func TestRatingOrderNonNumericLast(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)
	desc := false

	got := listIDs(t, store, repository.ListThingsParams{OrderBy: "rating", Asc: &desc})
	wantIDs(t, got, []string{"1", "3", "2", "4"})

	asc := true
	got = listIDs(t, store, repository.ListThingsParams{OrderBy: "rating", Asc: &asc})
	// Ascending too, the unparsable rating stays last.
	wantIDs(t, got, []string{"2", "3", "1", "4"})
}

func TestDefaultOrderIsName(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)

	got := listIDs(t, store, repository.ListThingsParams{})
	wantIDs(t, got, []string{"1", "2", "3", "4"})
}

func TestCountMatchesList(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)

	params := repository.ListThingsParams{
		Filters: repository.ThingFilters{MinRating: floatp(8.0)},
	}
	total, err := store.CountThings(context.Background(), params)
	if err != nil {
		t.Fatalf("CountThings: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestLimitOffset(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)

	got := listIDs(t, store, repository.ListThingsParams{Limit: 2, Offset: 1})
	wantIDs(t, got, []string{"2", "3"})
}

func TestSyncThingTagsReplacesSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seed(t, store, models.Thing{ID: "1", Type: "boardgame", Name: "Brass"})

	sync := func(names []string, checksum string) {
		t.Helper()
		err := store.InTx(ctx, func(tx *gorm.DB) error {
			return store.SyncThingTagsTx(ctx, tx, "1", names, checksum)
		})
		if err != nil {
			t.Fatalf("SyncThingTagsTx: %v", err)
		}
	}

	sync([]string{"Hand Management", "Network Building"}, "v1")
	tags, err := store.ListTagsByThingID(ctx, "1")
	if err != nil {
		t.Fatalf("ListTagsByThingID: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "Hand Management" {
		t.Fatalf("tags = %+v", tags)
	}
	if tags[0].Slug != "hand-management" {
		t.Errorf("slug = %q", tags[0].Slug)
	}

	sync([]string{"Network Building", "Income"}, "v2")
	tags, err = store.ListTagsByThingID(ctx, "1")
	if err != nil {
		t.Fatalf("ListTagsByThingID: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "Income" || tags[1].Name != "Network Building" {
		t.Fatalf("tag set not replaced: %+v", tags)
	}

	// Dropped association must not delete the shared tag row itself.
	all, err := store.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("tag rows = %d, want 3", len(all))
	}

	thing, err := store.GetThingByID(ctx, "1")
	if err != nil {
		t.Fatalf("GetThingByID: %v", err)
	}
	if thing.TagsChecksum == nil || *thing.TagsChecksum != "v2" {
		t.Errorf("checksum = %v, want v2", thing.TagsChecksum)
	}
}

func TestSyncThingTagsReusesExistingRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seed(t, store,
		models.Thing{ID: "1", Type: "boardgame", Name: "A"},
		models.Thing{ID: "2", Type: "boardgame", Name: "B"},
	)

	for _, id := range []string{"1", "2"} {
		thingID := id
		err := store.InTx(ctx, func(tx *gorm.DB) error {
			return store.SyncThingTagsTx(ctx, tx, thingID, []string{"Worker Placement"}, "sum")
		})
		if err != nil {
			t.Fatalf("sync %s: %v", thingID, err)
		}
	}

	all, err := store.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("duplicate tag rows created: %+v", all)
	}
}

func TestHasAllTagsIsConjunctive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seed(t, store,
		models.Thing{ID: "1", Type: "boardgame", Name: "A"},
		models.Thing{ID: "2", Type: "boardgame", Name: "B"},
	)
	err := store.InTx(ctx, func(tx *gorm.DB) error {
		if err := store.SyncThingTagsTx(ctx, tx, "1", []string{"Drafting", "Set Collection"}, "s1"); err != nil {
			return err
		}
		return store.SyncThingTagsTx(ctx, tx, "2", []string{"Drafting"}, "s2")
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	all, err := store.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	idByName := map[string]uint{}
	for _, tag := range all {
		idByName[tag.Name] = tag.ID
	}

	both := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{TagIDs: []uint{idByName["Drafting"], idByName["Set Collection"]}},
	})
	wantIDs(t, both, []string{"1"})

	one := listIDs(t, store, repository.ListThingsParams{
		Filters: repository.ThingFilters{TagIDs: []uint{idByName["Drafting"]}},
	})
	wantIDs(t, one, []string{"1", "2"})
}

func TestListStaleThingIDs(t *testing.T) {
	store := newTestStore(t)
	old := time.Now().UTC().Add(-48 * time.Hour)
	older := time.Now().UTC().Add(-96 * time.Hour)
	fresh := time.Now().UTC()
	seed(t, store,
		models.Thing{ID: "never", Type: "boardgame", Name: "Never", SchemaVersion: models.ThingSchemaVersion},
		models.Thing{ID: "older", Type: "boardgame", Name: "Older", LastRefreshedAt: &older, SchemaVersion: models.ThingSchemaVersion},
		models.Thing{ID: "old", Type: "boardgame", Name: "Old", LastRefreshedAt: &old, SchemaVersion: models.ThingSchemaVersion},
		models.Thing{ID: "fresh", Type: "boardgame", Name: "Fresh", LastRefreshedAt: &fresh, SchemaVersion: models.ThingSchemaVersion},
		models.Thing{ID: "oldschema", Type: "boardgame", Name: "OldSchema", LastRefreshedAt: &fresh, SchemaVersion: models.ThingSchemaVersion - 1},
	)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	ids, err := store.ListStaleThingIDs(context.Background(), cutoff, models.ThingSchemaVersion, 10)
	if err != nil {
		t.Fatalf("ListStaleThingIDs: %v", err)
	}
	if len(ids) != 4 {
		t.Fatalf("ids = %v, want 4 stale rows", ids)
	}
	if ids[0] != "never" {
		t.Errorf("never-refreshed rows should lead: %v", ids)
	}
	if ids[1] != "older" || ids[2] != "old" {
		t.Errorf("aged rows not oldest-first: %v", ids)
	}

	limited, err := store.ListStaleThingIDs(context.Background(), cutoff, models.ThingSchemaVersion, 2)
	if err != nil {
		t.Fatalf("ListStaleThingIDs limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit not applied: %v", limited)
	}
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }
