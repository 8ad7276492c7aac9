// Performance read API.
//
//   - GET  /perf/stats          (current aggregate view)
//   - GET  /perf/digests        (persisted digest history, newest first)
//   - GET  /perf/digests/{id}   (one digest)
//   - POST /perf/reset          (clear counters and window; opt-in)
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-perf-monitor/internal/domain"
	"github.com/tbourn/go-perf-monitor/internal/http/middleware"
	"github.com/tbourn/go-perf-monitor/internal/perf"
	"github.com/tbourn/go-perf-monitor/internal/repo"
	"github.com/tbourn/go-perf-monitor/internal/utils"
)

// StatsSource is the monitor as seen by the handlers.
type StatsSource interface {
	Stats() perf.Stats
	Reset()
}

// DigestReader reads persisted digest history.
type DigestReader interface {
	ListDigests(ctx context.Context, limit int) ([]domain.Digest, error)
	GetDigest(ctx context.Context, id string) (*domain.Digest, error)
}

// Handlers serves the performance read API.
type Handlers struct {
	stats        StatsSource
	digests      DigestReader
	resetEnabled bool
}

// New returns handlers over stats. digests may be nil when the digest store
// is disabled; the history endpoints then answer 404.
func New(stats StatsSource, digests DigestReader, resetEnabled bool) *Handlers {
	return &Handlers{stats: stats, digests: digests, resetEnabled: resetEnabled}
}

// ListDigestsResponse wraps a page of digest history.
type ListDigestsResponse struct {
	Digests []domain.Digest `json:"digests"`
	Limit   int             `json:"limit" example:"20"`
}

const (
	defaultDigestLimit = 20
	maxDigestLimit     = 100
)

// clampLimit parses ?limit= and bounds it to [1, maxDigestLimit].
func clampLimit(c *gin.Context) int {
	n := utils.AtoiDefault(strings.TrimSpace(c.Query("limit")), defaultDigestLimit)
	return utils.Clamp(n, 1, maxDigestLimit)
}

// GetStats godoc
// @ID          getPerfStats
// @Summary     Current performance statistics
// @Description Counters since start or last reset, plus average/p95/p99 over the sliding window of recent requests.
// @Tags        Performance
// @Produce     json
// @Success     200  {object}  perf.Stats
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Router      /perf/stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	ok(c, http.StatusOK, h.stats.Stats())
}

// ListDigests godoc
// @ID          listPerfDigests
// @Summary     Digest history
// @Description Returns persisted performance digests, newest first.
// @Tags        Performance
// @Produce     json
// @Param       limit  query  int  false  "Max digests to return"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListDigestsResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Digest store disabled"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /perf/digests [get]
func (h *Handlers) ListDigests(c *gin.Context) {
	if h.digests == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "digest store disabled")
		return
	}
	limit := clampLimit(c)
	list, err := h.digests.ListDigests(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list digests")
		return
	}
	if list == nil {
		list = []domain.Digest{}
	}
	ok(c, http.StatusOK, ListDigestsResponse{Digests: list, Limit: limit})
}

// GetDigest godoc
// @ID          getPerfDigest
// @Summary     One digest
// @Tags        Performance
// @Produce     json
// @Param       id   path  string  true  "Digest ID"  format(uuid)
// @Success     200  {object}  domain.Digest
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /perf/digests/{id} [get]
func (h *Handlers) GetDigest(c *gin.Context) {
	if h.digests == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "digest store disabled")
		return
	}
	d, err := h.digests.GetDigest(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "digest not found")
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeGetFailed, "could not load digest")
	default:
		ok(c, http.StatusOK, d)
	}
}

// ResetStats godoc
// @ID          resetPerfStats
// @Summary     Reset statistics
// @Description Clears counters and the sliding window. Disabled unless PERF_RESET_ENABLED is set.
// @Tags        Performance
// @Success     204  {string}  string  "Reset"
// @Failure     404  {object}  handlers.ErrorResponse  "Reset disabled"
// @Router      /perf/reset [post]
func (h *Handlers) ResetStats(c *gin.Context) {
	if !h.resetEnabled {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "resource not found")
		return
	}
	h.stats.Reset()
	middleware.LoggerFrom(c).Info().Msg("performance statistics reset")
	noContent(c)
}
