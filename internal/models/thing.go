package models

import (
	"time"

	"gorm.io/datatypes"
)

// ThingSchemaVersion marks which set of columns and relations a stored row was
// populated under. Bumping it makes every previously cached row stale, forcing
// a one-time re-fetch that backfills newly introduced fields.
const ThingSchemaVersion = 2

// Thing is a catalog item mirrored from the external source. Numeric
// attributes are kept as strings on purpose: the source emits sentinel values
// such as "Not Ranked" that must not break parsing at ingest time.
type Thing struct {
	ID              string         `gorm:"primaryKey;type:text"`
	Type            string         `gorm:"type:text;not null"`
	Name            string         `gorm:"type:text;not null;index"`
	Description     *string        `gorm:"type:text"`
	YearPublished   *string        `gorm:"type:text"`
	MinPlayers      *string        `gorm:"type:text"`
	MaxPlayers      *string        `gorm:"type:text"`
	MinPlayTime     *string        `gorm:"type:text"`
	MaxPlayTime     *string        `gorm:"type:text"`
	MinAge          *string        `gorm:"type:text"`
	RatingAverage   *string        `gorm:"type:text"`
	UsersRated      *string        `gorm:"type:text"`
	Rank            *string        `gorm:"type:text"`
	Weight          *string        `gorm:"type:text"`
	ImageURL        *string        `gorm:"type:text"`
	ThumbnailURL    *string        `gorm:"type:text"`
	LastRefreshedAt *time.Time     `gorm:"index"`
	SchemaVersion   int            `gorm:"not null;default:0;index"`
	TagsChecksum    *string        `gorm:"type:text"`
	CreatedAt       time.Time      `gorm:"not null"`
	RawJSON         datatypes.JSON `gorm:"not null"`
}

func (Thing) TableName() string {
	return "catalog_things"
}
