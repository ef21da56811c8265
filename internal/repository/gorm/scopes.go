package gormrepository

import (
	"strings"

	"gorm.io/gorm"

	"gameshelf/internal/repository"
)

// Each active filter contributes one scope and ListThings folds them onto the
// base query. Adding a filter means adding a constructor here, not another
// hand-written query variant.

func thingScopes(dialect string, params repository.ListThingsParams) []func(*gorm.DB) *gorm.DB {
	filters := params.Filters
	scopes := make([]func(*gorm.DB) *gorm.DB, 0, 9)
	if ids := cleanStrings(params.IDs); len(ids) > 0 {
		scopes = append(scopes, idSet(ids))
	}
	if strings.TrimSpace(filters.NameContains) != "" {
		scopes = append(scopes, textContains("name", filters.NameContains))
	}
	if filters.PlayerCount != nil {
		scopes = append(scopes, intRangeContains(dialect, "min_players", "max_players", *filters.PlayerCount))
	}
	if filters.PlayTime != nil {
		scopes = append(scopes, intRangeContains(dialect, "min_play_time", "max_play_time", *filters.PlayTime))
	}
	if filters.MinRating != nil {
		scopes = append(scopes, floatAtLeast(dialect, "rating_average", *filters.MinRating))
	}
	if filters.MaxRank != nil {
		scopes = append(scopes, rankAtMost(dialect, *filters.MaxRank))
	}
	if filters.MinWeight != nil || filters.MaxWeight != nil {
		scopes = append(scopes, weightBetween(dialect, filters.MinWeight, filters.MaxWeight))
	}
	if strings.TrimSpace(filters.DescriptionContains) != "" {
		scopes = append(scopes, textContains("description", filters.DescriptionContains))
	}
	if len(filters.TagIDs) > 0 {
		scopes = append(scopes, hasAllTags(filters.TagIDs))
	}
	return scopes
}

func idSet(ids []string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("catalog_things.id IN ?", ids)
	}
}

func textContains(column, needle string) func(*gorm.DB) *gorm.DB {
	pattern := "%" + strings.ToLower(strings.TrimSpace(needle)) + "%"
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("LOWER("+column+") LIKE ?", pattern)
	}
}

// intExpr yields the column cast to an integer when the stored string is all
// digits and NULL otherwise, so sentinel values drop out of comparisons
// instead of raising cast errors. Wrapped in CASE because the guard must win
// regardless of predicate evaluation order.
func intExpr(dialect, column string) string {
	if dialect == "sqlite" {
		return "(CASE WHEN " + column + " <> '' AND " + column + " NOT GLOB '*[^0-9]*' THEN CAST(" + column + " AS INTEGER) END)"
	}
	return "(CASE WHEN " + column + " ~ '^[0-9]+$' THEN CAST(" + column + " AS INTEGER) END)"
}

func floatExpr(dialect, column string) string {
	if dialect == "sqlite" {
		return "(CASE WHEN " + column + " <> '' AND " + column + " <> '.' AND " + column +
			" NOT GLOB '*[^0-9.]*' AND " + column + " NOT GLOB '*.*.*' THEN CAST(" + column + " AS REAL) END)"
	}
	return "(CASE WHEN " + column + ` ~ '^[0-9]+(\.[0-9]+)?$' THEN CAST(` + column + " AS NUMERIC) END)"
}

// intRangeContains matches rows whose [minColumn, maxColumn] inclusively
// contains target. A non-numeric bound makes the row non-matching.
func intRangeContains(dialect, minColumn, maxColumn string, target int) func(*gorm.DB) *gorm.DB {
	minExpr := intExpr(dialect, minColumn)
	maxExpr := intExpr(dialect, maxColumn)
	return func(q *gorm.DB) *gorm.DB {
		return q.Where(minExpr+" <= ? AND "+maxExpr+" >= ?", target, target)
	}
}

func floatAtLeast(dialect, column string, threshold float64) func(*gorm.DB) *gorm.DB {
	expr := floatExpr(dialect, column)
	return func(q *gorm.DB) *gorm.DB {
		return q.Where(expr+" >= ?", threshold)
	}
}

// rankAtMost keeps rows with a positive numeric rank at or under the
// threshold. The "Not Ranked" sentinel and zero ranks fall out of the guard.
func rankAtMost(dialect string, threshold int) func(*gorm.DB) *gorm.DB {
	expr := intExpr(dialect, "rank")
	return func(q *gorm.DB) *gorm.DB {
		return q.Where(expr+" <= ? AND "+expr+" > 0", threshold)
	}
}

// weightBetween bounds the complexity weight inclusively. One-sided input is
// completed with the scale's known extremes (0 and WeightCeiling).
func weightBetween(dialect string, min, max *float64) func(*gorm.DB) *gorm.DB {
	lo := 0.0
	if min != nil {
		lo = *min
	}
	hi := repository.WeightCeiling
	if max != nil {
		hi = *max
	}
	expr := floatExpr(dialect, "weight")
	return func(q *gorm.DB) *gorm.DB {
		return q.Where(expr+" >= ? AND "+expr+" <= ?", lo, hi)
	}
}

// hasAllTags requires association with every supplied tag id, not any.
func hasAllTags(tagIDs []uint) func(*gorm.DB) *gorm.DB {
	seen := make(map[uint]struct{}, len(tagIDs))
	ids := make([]uint, 0, len(tagIDs))
	for _, id := range tagIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return func(q *gorm.DB) *gorm.DB {
		return q.Where(
			"catalog_things.id IN (SELECT thing_id FROM catalog_thing_tags WHERE tag_id IN ? GROUP BY thing_id HAVING COUNT(DISTINCT tag_id) = ?)",
			ids, len(ids),
		)
	}
}

// applyThingOrder sorts by one of the supported fields. Rows whose numeric
// sort column does not parse go last regardless of direction; name ordering
// is case-insensitive. A name tiebreak keeps results deterministic.
func applyThingOrder(q *gorm.DB, dialect, orderBy string, asc *bool) *gorm.DB {
	direction := "asc"
	if asc != nil && !*asc {
		direction = "desc"
	}
	switch strings.ToLower(strings.TrimSpace(orderBy)) {
	case "players":
		return orderNumeric(q, intExpr(dialect, "min_players"), direction)
	case "rating":
		return orderNumeric(q, floatExpr(dialect, "rating_average"), direction)
	case "weight":
		return orderNumeric(q, floatExpr(dialect, "weight"), direction)
	default:
		return q.Order("LOWER(name) " + direction)
	}
}

func orderNumeric(q *gorm.DB, expr, direction string) *gorm.DB {
	return q.
		Order("(CASE WHEN " + expr + " IS NULL THEN 1 ELSE 0 END) asc").
		Order(expr + " " + direction).
		Order("LOWER(name) asc")
}
