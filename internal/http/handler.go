package http

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go.ngs.io/woa-api/internal/domain"
	"go.ngs.io/woa-api/internal/usecase"
)

// Query parameter defaults.
const (
	defaultResolution = "1.00"
	defaultTimeCode   = string(domain.TimeAnnual)
)

// Handler handles HTTP requests for climatology grids.
type Handler struct {
	climatologyUC *usecase.ClimatologyUseCase
	log           logrus.FieldLogger
}

// NewHandler creates a new HTTP handler.
func NewHandler(climatologyUC *usecase.ClimatologyUseCase, log logrus.FieldLogger) *Handler {
	return &Handler{
		climatologyUC: climatologyUC,
		log:           log,
	}
}

// GetSummary handles GET /v1/grids/summary.
func (h *Handler) GetSummary(c *gin.Context) {
	req, ok := h.gridRequest(c)
	if !ok {
		return
	}

	response, err := h.climatologyUC.Summary(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// GetProfile handles GET /v1/grids/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	req, ok := h.gridRequest(c)
	if !ok {
		return
	}
	lat, lon, ok := parseLatLon(c)
	if !ok {
		return
	}

	response, err := h.climatologyUC.Profile(c.Request.Context(), req, lat, lon)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// GetValue handles GET /v1/grids/value.
func (h *Handler) GetValue(c *gin.Context) {
	req, ok := h.gridRequest(c)
	if !ok {
		return
	}
	lat, lon, ok := parseLatLon(c)
	if !ok {
		return
	}
	depthIdx, ok := parseIndex(c, "depth_index")
	if !ok {
		return
	}
	timeIdx, ok := parseIndex(c, "time_index")
	if !ok {
		return
	}

	response, err := h.climatologyUC.Value(c.Request.Context(), req, lat, lon, depthIdx, timeIdx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// GetCitation handles GET /v1/citation.
func (h *Handler) GetCitation(c *gin.Context) {
	variable := c.Query("v")
	if variable == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "v parameter is required"})
		return
	}

	citation, err := h.climatologyUC.Citation(variable)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"variable": variable,
		"citation": citation,
	})
}

// GetCatalog handles GET /v1/catalog.
func (h *Handler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.climatologyUC.Catalog())
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// gridRequest reads v, t, r, field and time. r defaults to 1.00 and time to 00.
func (h *Handler) gridRequest(c *gin.Context) (usecase.GridRequest, bool) {
	for _, name := range []string{"v", "t", "field"} {
		if c.Query(name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s parameter is required", name)})
			return usecase.GridRequest{}, false
		}
	}

	return usecase.GridRequest{
		Archive: domain.ArchiveSelector{
			Variable:   c.Query("v"),
			Span:       c.Query("t"),
			Resolution: c.DefaultQuery("r", defaultResolution),
		},
		Selector: domain.Selector{
			Field: domain.FieldCode(c.Query("field")),
			Time:  domain.TimeCode(c.DefaultQuery("time", defaultTimeCode)),
		},
	}, true
}

func parseLatLon(c *gin.Context) (float64, float64, bool) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon parameters are required"})
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid latitude: %v", err)})
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid longitude: %v", err)})
		return 0, 0, false
	}
	return lat, lon, true
}

func parseIndex(c *gin.Context, name string) (int, bool) {
	s := c.DefaultQuery(name, "0")
	v, err := strconv.Atoi(s)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s: %v", name, err)})
		return 0, false
	}
	return v, true
}

// writeError maps use case failures to status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidSelector), errors.Is(err, usecase.ErrOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoMatchingFiles), errors.Is(err, domain.ErrFileCountMismatch),
		errors.Is(err, usecase.ErrNoData), errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrMalformedHeader), errors.Is(err, domain.ErrDepthMismatch):
		status = http.StatusUnprocessableEntity
	}

	switch status {
	case http.StatusInternalServerError:
		h.log.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
	case http.StatusUnprocessableEntity:
		h.log.WithError(err).WithField("path", c.Request.URL.Path).Warn("Archive files cannot serve request")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
