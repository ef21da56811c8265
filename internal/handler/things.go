package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gameshelf/internal/models"
	"gameshelf/internal/repository"
	"gameshelf/internal/service"
)

type ThingsHandler struct {
	Service *service.MirrorService
	Repo    repository.ThingRepository
	Logger  *zap.Logger
}

func (h *ThingsHandler) Register(r *gin.Engine) {
	group := r.Group("/api")
	group.GET("/things", h.listThings)
	group.GET("/things/:id", h.getThing)
	group.POST("/things/refresh", h.refreshThings)
	group.GET("/tags", h.listTags)
}

// @Summary List things with filters and sorting
// @Tags things
// @Param ids query string false "comma-separated catalog ids; when set, stale ones are refreshed first"
// @Param name query string false "case-insensitive name substring"
// @Param players query int false "player count that must fit the min/max range"
// @Param play_time query int false "play time that must fit the min/max range"
// @Param min_rating query number false "minimum average rating"
// @Param max_rank query int false "maximum (positive) rank"
// @Param min_weight query number false "minimum complexity weight"
// @Param max_weight query number false "maximum complexity weight (scale max 5)"
// @Param description query string false "case-insensitive description substring"
// @Param tag_ids query string false "comma-separated tag ids; things must carry all of them"
// @Param sort query string false "name|players|rating|weight"
// @Param order query string false "asc|desc"
// @Success 200 {object} apiResponse
// @Router /api/things [get]
func (h *ThingsHandler) listThings(c *gin.Context) {
	filters := repository.ThingFilters{
		NameContains:        strings.TrimSpace(c.Query("name")),
		PlayerCount:         intQueryPtr(c, "players"),
		PlayTime:            intQueryPtr(c, "play_time"),
		MinRating:           floatQueryPtr(c, "min_rating"),
		MaxRank:             intQueryPtr(c, "max_rank"),
		MinWeight:           floatQueryPtr(c, "min_weight"),
		MaxWeight:           floatQueryPtr(c, "max_weight"),
		DescriptionContains: strings.TrimSpace(c.Query("description")),
		TagIDs:              uintListQuery(c, "tag_ids"),
	}
	orderBy := strings.TrimSpace(c.Query("sort"))
	asc := ascending(c.Query("order"))
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	ids := splitList(c.Query("ids"))
	if len(ids) == 0 {
		// Pure mirror read: no candidate set, so no refresh pass.
		params := repository.ListThingsParams{
			Filters: filters,
			OrderBy: orderBy,
			Asc:     &asc,
			Limit:   limit,
			Offset:  offset,
		}
		total, err := h.Repo.CountThings(c.Request.Context(), params)
		if err != nil {
			Error(c, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		items, err := h.Repo.ListThings(c.Request.Context(), params)
		if err != nil {
			Error(c, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		Ok(c, items, map[string]any{"total": total})
		return
	}

	candidates := make([]models.Thing, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, models.Thing{ID: id})
	}
	result, err := h.Service.Load(c.Request.Context(), candidates, service.LoadOptions{
		Filters: filters,
		OrderBy: orderBy,
		Asc:     &asc,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("load things failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	meta := map[string]any{"total": len(result.Things)}
	if len(result.FailedIDs) > 0 {
		// Lets the caller tell "filters matched nothing" apart from
		// "source unavailable".
		meta["failed_ids"] = result.FailedIDs
	}
	Ok(c, result.Things, meta)
}

// @Summary Get one thing with its tags
// @Tags things
// @Param id path string true "catalog id"
// @Success 200 {object} apiResponse
// @Router /api/things/{id} [get]
func (h *ThingsHandler) getThing(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	thing, err := h.Repo.GetThingByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if thing == nil {
		Error(c, http.StatusNotFound, "thing not found", nil)
		return
	}
	tags, err := h.Repo.ListTagsByThingID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"thing": thing, "tags": tags}, nil)
}

type refreshRequest struct {
	IDs []string `json:"ids"`
}

// @Summary Force-refresh things from the external catalog
// @Tags things
// @Success 200 {object} apiResponse
// @Router /api/things/refresh [post]
func (h *ThingsHandler) refreshThings(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	if len(req.IDs) == 0 {
		Error(c, http.StatusBadRequest, "ids are required", nil)
		return
	}
	result, err := h.Service.Refresh(c.Request.Context(), req.IDs)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("forced refresh failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{"failed_ids": result.FailedIDs})
		return
	}
	meta := map[string]any{"refreshed": len(result.Things)}
	if len(result.FailedIDs) > 0 {
		meta["failed_ids"] = result.FailedIDs
	}
	Ok(c, result.Things, meta)
}

// @Summary List known tags
// @Tags tags
// @Success 200 {object} apiResponse
// @Router /api/tags [get]
func (h *ThingsHandler) listTags(c *gin.Context) {
	tags, err := h.Repo.ListTags(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, tags, map[string]any{"total": len(tags)})
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func ascending(order string) bool {
	return !strings.EqualFold(strings.TrimSpace(order), "desc")
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}

func intQueryPtr(c *gin.Context, key string) *int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &val
}

func floatQueryPtr(c *gin.Context, key string) *float64 {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &val
}

func uintListQuery(c *gin.Context, key string) []uint {
	parts := splitList(c.Query(key))
	out := make([]uint, 0, len(parts))
	for _, p := range parts {
		val, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, uint(val))
	}
	return out
}
