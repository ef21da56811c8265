package models

// ThingTag links one Thing to one Tag. The full set of rows for a Thing is
// replaced atomically whenever that Thing's tag checksum changes.
type ThingTag struct {
	ThingID string `gorm:"primaryKey;type:text"`
	TagID   uint   `gorm:"primaryKey"`
}

func (ThingTag) TableName() string {
	return "catalog_thing_tags"
}
