package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Tag is a reusable descriptive label (a game mechanic). Rows are created
// lazily the first time a name shows up during a tag sync and are never
// updated or deleted afterwards.
type Tag struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"type:text;uniqueIndex;not null"`
	Slug      string    `gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Tag) TableName() string {
	return "catalog_tags"
}

// Slugify derives the URL-safe form of a tag name: lowercased, everything but
// letters, digits, spaces and hyphens stripped, whitespace and hyphen runs
// collapsed to a single hyphen, edge hyphens trimmed.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			b.WriteRune('-')
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}

// TagsChecksum hashes a raw tag-name list so a refresh carrying an unchanged
// list can skip the relational rewrite. Names are trimmed, lowercased and
// sorted first, so the result does not depend on source ordering.
func TagsChecksum(names []string) string {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			cleaned = append(cleaned, name)
		}
	}
	sort.Strings(cleaned)
	sum := sha256.Sum256([]byte(strings.Join(cleaned, "\n")))
	return hex.EncodeToString(sum[:])
}
