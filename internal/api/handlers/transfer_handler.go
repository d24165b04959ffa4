package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/engine"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/service"
)

type TransferHandler struct {
	service *service.TransferService
}

func NewTransferHandler(svc *service.TransferService) *TransferHandler {
	return &TransferHandler{service: svc}
}

// Analyze runs the engine. The optional JSON body carries per-run threshold
// overrides; an empty body runs with configured defaults.
func (h *TransferHandler) Analyze(c *gin.Context) {
	var overrides service.RunOverrides
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&overrides); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid overrides payload: "+err.Error())
			return
		}
	}

	result, err := h.service.Analyze(c.Request.Context(), &overrides)
	if err != nil {
		log.Error().Err(err).Msg("analysis run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Latest serves the most recent cached run. An optional ?action= query
// narrows the recommendation lists to one recommended action.
func (h *TransferHandler) Latest(c *gin.Context) {
	var action domain.RecommendedAction
	if label := c.Query("action"); label != "" {
		var ok bool
		if action, ok = domain.ParseAction(label); !ok {
			errorResponse(c, http.StatusBadRequest, "unknown action: "+label)
			return
		}
	}

	result, ok, err := h.service.Latest(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		errorResponse(c, http.StatusNotFound, "no completed run cached")
		return
	}
	if action != "" {
		result = filterAction(result, action)
	}
	c.JSON(http.StatusOK, result)
}

// filterAction returns a copy of the run narrowed to one recommended action.
// The cached result is shared and must not be mutated.
func filterAction(result *engine.RunResult, action domain.RecommendedAction) *engine.RunResult {
	filtered := *result
	filtered.Recommendations = selectAction(result.Recommendations, action)
	filtered.PendingApproval = selectAction(result.PendingApproval, action)
	return &filtered
}

func selectAction(recs []domain.Recommendation, action domain.RecommendedAction) []domain.Recommendation {
	out := make([]domain.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if rec.Action == action {
			out = append(out, rec)
		}
	}
	return out
}

// Run serves one cached run by session ID.
func (h *TransferHandler) Run(c *gin.Context) {
	result, ok, err := h.service.Run(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		errorResponse(c, http.StatusNotFound, "run not found")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Flush drops every cached run.
func (h *TransferHandler) Flush(c *gin.Context) {
	if err := h.service.FlushRuns(c.Request.Context()); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// Config exposes the effective engine thresholds.
func (h *TransferHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.EngineConfig())
}

// Archive lists archived run payloads.
func (h *TransferHandler) Archive(c *gin.Context) {
	objects, err := h.service.ArchivedRuns(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": objects})
}

// Health reports database reachability and the active outlet count.
func (h *TransferHandler) Health(c *gin.Context) {
	health := h.service.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	log.Error().Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
}
