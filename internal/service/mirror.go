package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"gameshelf/internal/client/bgg"
	"gameshelf/internal/models"
	"gameshelf/internal/repository"
)

// ErrValidation marks a fetched payload that cannot be persisted (missing
// identity or type). Nothing is written when it is returned.
var ErrValidation = errors.New("invalid thing payload")

// CatalogFetcher is the external catalog collaborator: one batch of ids in,
// parsed records or a transport error out.
type CatalogFetcher interface {
	FetchThings(ctx context.Context, ids []string) ([]bgg.Thing, error)
}

// MirrorService keeps the local Thing mirror fresh and answers filtered,
// sorted reads over it. Zero-valued knobs fall back to the documented
// defaults (one-week TTL, 20 ids per batch, one second between batches).
type MirrorService struct {
	Repo    repository.ThingRepository
	Catalog CatalogFetcher
	Logger  *zap.Logger

	TTL        time.Duration
	BatchSize  int
	BatchDelay time.Duration
}

type RefreshResult struct {
	Things    []models.Thing
	FailedIDs []string
}

type LoadOptions struct {
	Filters repository.ThingFilters
	OrderBy string
	Asc     *bool
	Limit   int
	Offset  int
}

type LoadResult struct {
	Things    []models.Thing
	FailedIDs []string
}

func (s *MirrorService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return 7 * 24 * time.Hour
}

func (s *MirrorService) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return bgg.MaxIDsPerRequest
}

func (s *MirrorService) batchDelay() time.Duration {
	if s.BatchDelay > 0 {
		return s.BatchDelay
	}
	return time.Second
}

// Classify returns the subset of ids whose stored row is missing, never
// refreshed, older than the TTL, or populated under an older schema version.
// Pure read; duplicates collapse.
func (s *MirrorService) Classify(ctx context.Context, ids []string) ([]string, error) {
	ids = cleanStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	metas, err := s.Repo.ListThingMeta(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]repository.ThingMeta, len(metas))
	for _, meta := range metas {
		byID[meta.ID] = meta
	}
	cutoff := time.Now().UTC().Add(-s.ttl())
	stale := make([]string, 0, len(ids))
	for _, id := range ids {
		meta, ok := byID[id]
		switch {
		case !ok:
			stale = append(stale, id)
		case meta.LastRefreshedAt == nil:
			stale = append(stale, id)
		case meta.LastRefreshedAt.Before(cutoff):
			stale = append(stale, id)
		case meta.SchemaVersion < models.ThingSchemaVersion:
			stale = append(stale, id)
		}
	}
	return stale, nil
}

// Refresh fetches the given ids in sequential batches, upserting whatever
// comes back. A failed batch is logged and skipped, never fatal: its ids land
// in FailedIDs and the remaining batches still run. Between batches the
// configured delay is honored; cancellation during a delay abandons the
// remaining batches but keeps everything already upserted.
func (s *MirrorService) Refresh(ctx context.Context, ids []string) (RefreshResult, error) {
	result := RefreshResult{}
	ids = cleanStrings(ids)
	if len(ids) == 0 {
		return result, nil
	}
	chunks := chunkStrings(ids, s.batchSize())
	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-ctx.Done():
				for _, rest := range chunks[i:] {
					result.FailedIDs = append(result.FailedIDs, rest...)
				}
				return result, ctx.Err()
			case <-time.After(s.batchDelay()):
			}
		}
		fetched, err := s.Catalog.FetchThings(ctx, chunk)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("catalog batch fetch failed",
					zap.Int("batch", i),
					zap.Strings("ids", chunk),
					zap.Error(err))
			}
			result.FailedIDs = append(result.FailedIDs, chunk...)
			continue
		}
		returned := make(map[string]struct{}, len(fetched))
		for _, raw := range fetched {
			thing, err := s.Upsert(ctx, raw)
			if err != nil {
				if s.Logger != nil {
					s.Logger.Warn("thing upsert failed", zap.String("id", raw.ID), zap.Error(err))
				}
				continue
			}
			returned[thing.ID] = struct{}{}
			result.Things = append(result.Things, *thing)
		}
		// Ids the source chose not to return count as failed for this call.
		for _, id := range chunk {
			if _, ok := returned[id]; !ok {
				result.FailedIDs = append(result.FailedIDs, id)
			}
		}
	}
	return result, nil
}

// Upsert persists one fetched record: stamps the refresh time and schema
// version, replaces the row idempotently, and rewrites the tag associations
// only when the checksum over the raw tag-name list changed.
func (s *MirrorService) Upsert(ctx context.Context, raw bgg.Thing) (*models.Thing, error) {
	id := strings.TrimSpace(raw.ID)
	typ := strings.TrimSpace(raw.Type)
	if id == "" || typ == "" {
		return nil, fmt.Errorf("%w: id and type are required", ErrValidation)
	}

	prior, err := s.Repo.GetThingByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	thing := &models.Thing{
		ID:              id,
		Type:            typ,
		Name:            strings.TrimSpace(raw.Name),
		Description:     strPtr(raw.Description),
		YearPublished:   strPtr(raw.YearPublished),
		MinPlayers:      strPtr(raw.MinPlayers),
		MaxPlayers:      strPtr(raw.MaxPlayers),
		MinPlayTime:     strPtr(raw.MinPlayTime),
		MaxPlayTime:     strPtr(raw.MaxPlayTime),
		MinAge:          strPtr(raw.MinAge),
		RatingAverage:   strPtr(raw.RatingAverage),
		UsersRated:      strPtr(raw.UsersRated),
		Rank:            strPtr(raw.Rank),
		Weight:          strPtr(raw.Weight),
		ImageURL:        strPtr(raw.ImageURL),
		ThumbnailURL:    strPtr(raw.ThumbnailURL),
		LastRefreshedAt: &now,
		SchemaVersion:   models.ThingSchemaVersion,
		CreatedAt:       now,
		RawJSON:         mustJSON(raw),
	}

	var newChecksum string
	syncTags := false
	if len(raw.Mechanics) > 0 {
		newChecksum = models.TagsChecksum(raw.Mechanics)
		syncTags = prior == nil || prior.TagsChecksum == nil || *prior.TagsChecksum != newChecksum
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.UpsertThingTx(ctx, tx, thing); err != nil {
			return err
		}
		if syncTags {
			return s.Repo.SyncThingTagsTx(ctx, tx, id, raw.Mechanics, newChecksum)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if syncTags {
		thing.TagsChecksum = &newChecksum
	} else if prior != nil {
		thing.TagsChecksum = prior.TagsChecksum
	}
	if prior != nil {
		thing.CreatedAt = prior.CreatedAt
	}
	return thing, nil
}

// Load is the single public read path: extract ids from the candidates
// (possibly bare id stubs), refresh what is stale, then run one filtered,
// sorted read over the full candidate id set at the storage layer. Candidates
// whose refresh failed show up stale if previously cached, or not at all.
func (s *MirrorService) Load(ctx context.Context, candidates []models.Thing, opts LoadOptions) (LoadResult, error) {
	result := LoadResult{}
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	ids = cleanStrings(ids)
	if len(ids) == 0 {
		return result, nil
	}

	stale, err := s.Classify(ctx, ids)
	if err != nil {
		return result, err
	}
	if len(stale) > 0 {
		refreshed, err := s.Refresh(ctx, stale)
		result.FailedIDs = refreshed.FailedIDs
		if err != nil {
			return result, err
		}
	}

	things, err := s.Repo.ListThings(ctx, repository.ListThingsParams{
		IDs:     ids,
		Filters: opts.Filters,
		OrderBy: opts.OrderBy,
		Asc:     opts.Asc,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
	if err != nil {
		return result, err
	}
	result.Things = things
	return result, nil
}

// SweepStale refreshes up to limit already-cached rows that have aged out or
// were written under an older schema version. Run from cron to keep the
// mirror warm without caller traffic.
func (s *MirrorService) SweepStale(ctx context.Context, limit int) (RefreshResult, error) {
	before := time.Now().UTC().Add(-s.ttl())
	ids, err := s.Repo.ListStaleThingIDs(ctx, before, models.ThingSchemaVersion, limit)
	if err != nil {
		return RefreshResult{}, err
	}
	return s.Refresh(ctx, ids)
}

func chunkStrings(items []string, size int) [][]string {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	if len(items) <= size {
		return [][]string{items}
	}
	chunks := make([][]string, 0, (len(items)/size)+1)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
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

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func mustJSON(v any) datatypes.JSON {
	payload, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(payload)
}
