package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"gameshelf/internal/models"
)

// ThingMeta is the slice of a stored row the freshness classifier needs.
type ThingMeta struct {
	ID              string
	LastRefreshedAt *time.Time
	SchemaVersion   int
}

// ThingFilters are the supported query filters, combined with logical AND.
// Nil/zero fields are inactive. Numeric filters run against string-encoded
// columns; rows whose column does not parse as the expected numeric type are
// excluded, never matched and never an error.
type ThingFilters struct {
	NameContains        string
	PlayerCount         *int
	PlayTime            *int
	MinRating           *float64
	MaxRank             *int
	MinWeight           *float64
	MaxWeight           *float64
	DescriptionContains string
	TagIDs              []uint
}

// WeightCeiling fills the upper bound of a one-sided weight filter; the
// complexity scale tops out at 5.
const WeightCeiling = 5.0

type ListThingsParams struct {
	IDs     []string
	Filters ThingFilters
	OrderBy string // name | players | rating | weight
	Asc     *bool
	Limit   int
	Offset  int
}

type ThingRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	GetThingByID(ctx context.Context, id string) (*models.Thing, error)
	ListThingMeta(ctx context.Context, ids []string) ([]ThingMeta, error)
	UpsertThingTx(ctx context.Context, tx *gorm.DB, item *models.Thing) error
	SyncThingTagsTx(ctx context.Context, tx *gorm.DB, thingID string, names []string, checksum string) error
	ListThings(ctx context.Context, params ListThingsParams) ([]models.Thing, error)
	CountThings(ctx context.Context, params ListThingsParams) (int64, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
	ListTagsByThingID(ctx context.Context, thingID string) ([]models.Tag, error)
	ListStaleThingIDs(ctx context.Context, refreshedBefore time.Time, belowVersion int, limit int) ([]string, error)
}
