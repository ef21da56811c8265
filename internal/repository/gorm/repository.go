package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gameshelf/internal/models"
	"gameshelf/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) dialect() string {
	if s == nil || s.db == nil {
		return ""
	}
	return s.db.Dialector.Name()
}

func (s *Store) GetThingByID(ctx context.Context, id string) (*models.Thing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.Thing
	err := s.db.WithContext(ctx).Model(&models.Thing{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListThingMeta(ctx context.Context, ids []string) ([]repository.ThingMeta, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ids = cleanStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var metas []repository.ThingMeta
	if err := s.db.WithContext(ctx).
		Model(&models.Thing{}).
		Select("id, last_refreshed_at, schema_version").
		Where("id IN ?", ids).
		Scan(&metas).Error; err != nil {
		return nil, err
	}
	return metas, nil
}

// thingUpsertColumns are the columns a refresh replaces on conflict. id and
// created_at keep their first-sight values; tags_checksum is owned by the
// tag-sync unit and must survive a plain row refresh.
var thingUpsertColumns = []string{
	"type",
	"name",
	"description",
	"year_published",
	"min_players",
	"max_players",
	"min_play_time",
	"max_play_time",
	"min_age",
	"rating_average",
	"users_rated",
	"rank",
	"weight",
	"image_url",
	"thumbnail_url",
	"last_refreshed_at",
	"schema_version",
	"raw_json",
}

func (s *Store) UpsertThingTx(ctx context.Context, tx *gorm.DB, item *models.Thing) error {
	if item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(thingUpsertColumns),
	}).Create(item).Error
}

// SyncThingTagsTx replaces the full tag association set of one Thing and
// stamps the new checksum, all inside the caller's transaction. Callers skip
// it entirely when the checksum is unchanged.
func (s *Store) SyncThingTagsTx(ctx context.Context, tx *gorm.DB, thingID string, names []string, checksum string) error {
	tagIDs, err := s.resolveTagIDsTx(ctx, tx, names)
	if err != nil {
		return err
	}
	if err := tx.WithContext(ctx).
		Where("thing_id = ?", thingID).
		Delete(&models.ThingTag{}).Error; err != nil {
		return err
	}
	if len(tagIDs) > 0 {
		links := make([]models.ThingTag, 0, len(tagIDs))
		for _, tagID := range tagIDs {
			links = append(links, models.ThingTag{ThingID: thingID, TagID: tagID})
		}
		if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thing_id"}, {Name: "tag_id"}},
			DoNothing: true,
		}).CreateInBatches(links, 200).Error; err != nil {
			return err
		}
	}
	return tx.WithContext(ctx).
		Model(&models.Thing{}).
		Where("id = ?", thingID).
		Update("tags_checksum", checksum).Error
}

// resolveTagIDsTx maps raw tag names to Tag row ids, creating missing rows.
// ON CONFLICT DO NOTHING absorbs concurrent creates of the same name or slug;
// a name that lost the race to an equivalent slug resolves to the existing
// row instead of failing.
func (s *Store) resolveTagIDsTx(ctx context.Context, tx *gorm.DB, names []string) ([]uint, error) {
	type candidate struct {
		name string
		slug string
	}
	seen := map[string]struct{}{}
	candidates := make([]candidate, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, candidate{name: name, slug: models.Slugify(name)})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	rows := make([]models.Tag, 0, len(candidates))
	nameList := make([]string, 0, len(candidates))
	slugList := make([]string, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, models.Tag{Name: c.name, Slug: c.slug, CreatedAt: now})
		nameList = append(nameList, c.name)
		slugList = append(slugList, c.slug)
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	var tags []models.Tag
	if err := tx.WithContext(ctx).
		Model(&models.Tag{}).
		Where("name IN ? OR slug IN ?", nameList, slugList).
		Find(&tags).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]uint, len(tags))
	bySlug := make(map[string]uint, len(tags))
	for _, tag := range tags {
		byName[tag.Name] = tag.ID
		bySlug[tag.Slug] = tag.ID
	}

	ids := make([]uint, 0, len(candidates))
	added := map[uint]struct{}{}
	for _, c := range candidates {
		id, ok := byName[c.name]
		if !ok {
			id, ok = bySlug[c.slug]
		}
		if !ok {
			continue
		}
		if _, dup := added[id]; dup {
			continue
		}
		added[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) ListThings(ctx context.Context, params repository.ListThingsParams) ([]models.Thing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Thing{})
	for _, scope := range thingScopes(s.dialect(), params) {
		query = scope(query)
	}
	query = applyThingOrder(query, s.dialect(), params.OrderBy, params.Asc)
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}
	var items []models.Thing
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountThings(ctx context.Context, params repository.ListThingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Thing{})
	for _, scope := range thingScopes(s.dialect(), params) {
		query = scope(query)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListTags(ctx context.Context) ([]models.Tag, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Tag
	if err := s.db.WithContext(ctx).
		Model(&models.Tag{}).
		Order("name asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListTagsByThingID(ctx context.Context, thingID string) ([]models.Tag, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	thingID = strings.TrimSpace(thingID)
	if thingID == "" {
		return nil, nil
	}
	var items []models.Tag
	if err := s.db.WithContext(ctx).
		Model(&models.Tag{}).
		Joins("JOIN catalog_thing_tags tt ON tt.tag_id = catalog_tags.id").
		Where("tt.thing_id = ?", thingID).
		Order("catalog_tags.name asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListStaleThingIDs returns already-cached rows due for a refresh, oldest
// first (never-refreshed rows lead). Used by the scheduled sweep; rows never
// cached at all are the caller-driven path's concern.
func (s *Store) ListStaleThingIDs(ctx context.Context, refreshedBefore time.Time, belowVersion int, limit int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Thing{}).
		Where("last_refreshed_at IS NULL OR last_refreshed_at < ? OR schema_version < ?", refreshedBefore, belowVersion).
		Order("(CASE WHEN last_refreshed_at IS NULL THEN 0 ELSE 1 END) asc").
		Order("last_refreshed_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

var _ repository.ThingRepository = (*Store)(nil)
