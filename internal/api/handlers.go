package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/cache"
	"github.com/JustJay7/ecourts-extractor/internal/database"
	"github.com/JustJay7/ecourts-extractor/internal/extractor"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Extractor is the engine the handlers call.
type Extractor interface {
	SearchCase(ctx context.Context, caseType, caseNumber string, year int) (*extractor.Result, error)
	RefreshCase(ctx context.Context, fp cache.Fingerprint) (*extractor.Result, error)
	FetchCauseList(ctx context.Context, date time.Time, court string) (*extractor.Result, error)
	CheckCaseInCauseList(ctx context.Context, caseType, caseNumber string, year int, date time.Time) (*extractor.Result, error)
	Adapters() []string
}

// Store persists results after successful extractions.
type Store interface {
	SaveCase(ctx context.Context, rec *models.CaseRecord) (uint, error)
	SaveCauseList(ctx context.Context, list *models.CauseList) (int, error)
	LogAttempt(ctx context.Context, entry *database.ScrapingLog) error
	RecentLogs(ctx context.Context, limit int) ([]database.ScrapingLog, error)
	Courts(ctx context.Context) ([]database.Court, error)
	CauseListStats(ctx context.Context, from, to time.Time, court string) (*database.CauseListStats, error)
}

// Documents streams judgment files.
type Documents interface {
	Allowed(rawURL string) bool
	Stream(ctx context.Context, rawURL string, w io.Writer) (*scraper.DocumentInfo, error)
}

// Cache is the result cache as seen by the admin endpoints.
type Cache interface {
	Stats() cache.Stats
	Delete(key cache.Fingerprint)
	Clear()
	IsInflight(key cache.Fingerprint) bool
}

// Identities reports identity pool usage.
type Identities interface {
	Size() int
	Rotations() uint64
}

// Handlers holds all HTTP handlers
type Handlers struct {
	engine     Extractor
	store      Store
	documents  Documents
	cache      Cache
	identities Identities
	logger     *logger.Logger
}

// NewHandlers creates a new handlers instance. store may be nil, in which
// case results are not persisted.
func NewHandlers(engine Extractor, store Store, documents Documents, c Cache, ids Identities, log *logger.Logger) *Handlers {
	return &Handlers{
		engine:     engine,
		store:      store,
		documents:  documents,
		cache:      c,
		identities: ids,
		logger:     log,
	}
}

type caseRequest struct {
	CaseType   string `json:"case_type" binding:"required"`
	CaseNumber string `json:"case_number" binding:"required"`
	Year       int    `json:"year" binding:"required"`
}

// SearchCase handles POST /api/cases/search
func (h *Handlers) SearchCase(c *gin.Context) {
	var req caseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	res, err := h.engine.SearchCase(c.Request.Context(), req.CaseType, req.CaseNumber, req.Year)
	fp := cache.CaseKey(req.CaseType, req.CaseNumber, req.Year)
	h.afterCase(c, "search_case", fp, res, err)
	h.respond(c, res, err)
}

// RefreshCase handles POST /api/cases/refresh. The case is named either by
// fingerprint or by type, number and year.
func (h *Handlers) RefreshCase(c *gin.Context) {
	var req struct {
		Fingerprint string `json:"fingerprint"`
		CaseType    string `json:"case_type"`
		CaseNumber  string `json:"case_number"`
		Year        int    `json:"year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	fp := cache.Fingerprint(req.Fingerprint)
	if fp == "" {
		if req.CaseType == "" || req.CaseNumber == "" || req.Year == 0 {
			badRequest(c, "Provide a fingerprint or case_type, case_number and year")
			return
		}
		fp = cache.CaseKey(req.CaseType, req.CaseNumber, req.Year)
	}

	res, err := h.engine.RefreshCase(c.Request.Context(), fp)
	h.afterCase(c, "refresh_case", fp, res, err)
	h.respond(c, res, err)
}

// CauseList handles GET /api/cause-lists?date=YYYY-MM-DD&court=
func (h *Handlers) CauseList(c *gin.Context) {
	date, ok := parseDateParam(c, "date")
	if !ok {
		return
	}
	court := c.Query("court")

	res, err := h.engine.FetchCauseList(c.Request.Context(), date, court)
	fp := cache.CauseListKey(date, court)

	if err == nil && !res.Cached && h.store != nil {
		if _, serr := h.store.SaveCauseList(c.Request.Context(), res.CauseList); serr != nil {
			h.logger.Error("Failed to save cause list", "fingerprint", fp, "error", serr)
		}
	}
	h.logAttempt(c, "cause_list", fp, res)
	h.respond(c, res, err)
}

// CheckCase handles GET /api/cause-lists/check
func (h *Handlers) CheckCase(c *gin.Context) {
	date, ok := parseDateParam(c, "date")
	if !ok {
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		badRequest(c, "Invalid year")
		return
	}

	res, err := h.engine.CheckCaseInCauseList(c.Request.Context(), c.Query("case_type"), c.Query("case_number"), year, date)
	h.logAttempt(c, "check_case", cache.CaseKey(c.Query("case_type"), c.Query("case_number"), year), res)
	h.respond(c, res, err)
}

// DownloadJudgment handles GET /api/judgments/download?url=...; with
// text=true the document's plain text is returned instead.
func (h *Handlers) DownloadJudgment(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		badRequest(c, "Missing required parameter: url")
		return
	}
	if !h.documents.Allowed(target) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "Document host is not a configured portal",
		})
		return
	}

	if c.Query("text") == "true" {
		var buf bytes.Buffer
		if _, err := h.documents.Stream(c.Request.Context(), target, &buf); err != nil {
			h.documentError(c, target, err)
			return
		}
		text, err := scraper.ExtractText(buf.Bytes())
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "url": target, "text": text})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "attachment")
	if _, err := h.documents.Stream(c.Request.Context(), target, c.Writer); err != nil {
		h.documentError(c, target, err)
	}
}

func (h *Handlers) documentError(c *gin.Context, target string, err error) {
	h.logger.Warn("Document download failed", "url", target, "error", err)
	if c.Writer.Written() {
		// Part of the body is out; dropping the connection keeps the client
		// from taking a truncated document for a complete one.
		dropConnection(c.Writer)
		c.Abort()
		return
	}
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, scraper.ErrHostNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, scraper.ErrDocumentTooLarge):
		status = http.StatusRequestEntityTooLarge
	}
	c.Header("Content-Disposition", "")
	c.Header("Content-Type", "")
	c.JSON(status, gin.H{"success": false, "message": "Failed to download document"})
}

// dropConnection closes the client connection under w. gin panics when the
// underlying writer cannot be hijacked (HTTP/2); the body is then left as is.
func dropConnection(w http.Hijacker) {
	defer func() { _ = recover() }()
	if conn, _, err := w.Hijack(); err == nil {
		_ = conn.Close()
	}
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"adapters": h.engine.Adapters(),
		"database": h.store != nil,
		"cache":    h.cache.Stats(),
		"identities": gin.H{
			"size":      h.identities.Size(),
			"rotations": h.identities.Rotations(),
		},
		"time": time.Now().Unix(),
	})
}

// CacheStats returns cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.cache.Stats(),
	})
}

// InvalidateCache handles DELETE /api/cache/*fingerprint. An extraction
// already running for the fingerprint still stores its result.
func (h *Handlers) InvalidateCache(c *gin.Context) {
	fp := cache.Fingerprint(strings.TrimPrefix(c.Param("fingerprint"), "/"))
	if fp == "" {
		badRequest(c, "Missing fingerprint")
		return
	}
	h.cache.Delete(fp)
	h.logger.Info("Cache entry invalidated", "fingerprint", fp)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"fingerprint": fp,
		"inflight":    h.cache.IsInflight(fp),
	})
}

// ClearCache handles DELETE /api/cache
func (h *Handlers) ClearCache(c *gin.Context) {
	h.cache.Clear()
	h.logger.Info("Cache cleared")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Courts lists the courts seen in stored cause lists and cases.
func (h *Handlers) Courts(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "courts": []database.Court{}})
		return
	}
	courts, err := h.store.Courts(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list courts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to list courts"})
		return
	}
	if courts == nil {
		courts = []database.Court{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "courts": courts})
}

// CauseListStats handles GET /api/cause-lists/stats?from=&to=&court=. Both
// dates default to today.
func (h *Handlers) CauseListStats(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "No database configured"})
		return
	}
	today := time.Now()
	from, ok := optionalDateParam(c, "from", today)
	if !ok {
		return
	}
	to, ok := optionalDateParam(c, "to", today)
	if !ok {
		return
	}
	if to.Before(from) {
		badRequest(c, "to is before from")
		return
	}

	stats, err := h.store.CauseListStats(c.Request.Context(), from, to, c.Query("court"))
	if err != nil {
		h.logger.Error("Failed to compute cause list stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// RecentLogs returns the latest extraction attempts
func (h *Handlers) RecentLogs(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "logs": []database.ScrapingLog{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.store.RecentLogs(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to read logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
}

// afterCase persists a live case result and logs the attempt.
func (h *Handlers) afterCase(c *gin.Context, op string, fp cache.Fingerprint, res *extractor.Result, err error) {
	if err == nil && !res.Cached && h.store != nil {
		if _, serr := h.store.SaveCase(c.Request.Context(), res.Case); serr != nil {
			h.logger.Error("Failed to save case", "fingerprint", fp, "error", serr)
		}
	}
	h.logAttempt(c, op, fp, res)
}

func (h *Handlers) logAttempt(c *gin.Context, op string, fp cache.Fingerprint, res *extractor.Result) {
	if h.store == nil || res == nil {
		return
	}
	entry := &database.ScrapingLog{
		Operation:       op,
		Fingerprint:     string(fp),
		Success:         res.Success,
		Cached:          res.Cached,
		Reason:          res.Reason,
		ExecutionTimeMs: res.ExecutionTimeMs,
		IPAddress:       c.ClientIP(),
	}
	if !res.Success {
		entry.ErrorMessage = res.Message
	}
	if err := h.store.LogAttempt(c.Request.Context(), entry); err != nil {
		h.logger.Error("Failed to log attempt", "error", err)
	}
}

func (h *Handlers) respond(c *gin.Context, res *extractor.Result, err error) {
	if res == nil {
		res = &extractor.Result{Message: "no result", Reason: extractor.ReasonSystem}
	}
	if err != nil {
		h.logger.Info("Extraction failed", "path", c.FullPath(), "reason", res.Reason, "error", err)
	}
	c.JSON(statusFor(err), res)
}

// statusFor maps extraction errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, extractor.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, extractor.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, extractor.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func parseDateParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		badRequest(c, "Missing required parameter: "+name)
		return time.Time{}, false
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		badRequest(c, "Invalid date, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func optionalDateParam(c *gin.Context, name string, fallback time.Time) (time.Time, bool) {
	if c.Query(name) == "" {
		return fallback, true
	}
	return parseDateParam(c, name)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": msg,
		"reason":  extractor.ReasonInvalidQuery,
	})
}
