package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pacelab/internal/analysis"
	"pacelab/internal/history"
	"pacelab/internal/service"
	"pacelab/internal/store"
)

// Handler serves the analytics endpoints
type Handler struct {
	classifier *service.ClassificationService
	variations *service.VariationService
	skill      *service.SkillService
	calibrator *service.CalibrationService
}

// NewHandler creates a new handler
func NewHandler(classifier *service.ClassificationService, variations *service.VariationService,
	skill *service.SkillService, calibrator *service.CalibrationService) *Handler {
	return &Handler{
		classifier: classifier,
		variations: variations,
		skill:      skill,
		calibrator: calibrator,
	}
}

// Classify handles POST /api/v1/classifications
func (h *Handler) Classify(c *gin.Context) {
	var req service.ClassifyRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.classifier.Run(c.Request.Context(), req)
	if err != nil {
		Error(c, serviceStatus(err), "Failed to classify activities", err)
		return
	}
	Success(c, result)
}

// ComputeVariations handles POST /api/v1/variations
func (h *Handler) ComputeVariations(c *gin.Context) {
	var req service.VariationRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.variations.Run(c.Request.Context(), req)
	if err != nil {
		Error(c, serviceStatus(err), "Failed to compute variations", err)
		return
	}
	Success(c, result)
}

// LabelCounts handles GET /api/v1/classifications?user_id=
func (h *Handler) LabelCounts(c *gin.Context) {
	var userID *int64
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			BadRequest(c, "Invalid user ID", err)
			return
		}
		userID = &id
	}

	counts, err := h.classifier.LabelCounts(c.Request.Context(), userID)
	if err != nil {
		Error(c, serviceStatus(err), "Failed to count workout labels", err)
		return
	}
	Success(c, gin.H{"labels": counts})
}

// SkillLevel handles GET /api/v1/users/:id/skill-level
func (h *Handler) SkillLevel(c *gin.Context) {
	userID, ok := pathID(c, "Invalid user ID")
	if !ok {
		return
	}

	var lookback int
	if raw := c.Query("lookback_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			BadRequest(c, "lookback_days must be a positive integer", err)
			return
		}
		lookback = n
	}

	result, err := h.skill.Estimate(c.Request.Context(), service.SkillRequest{UserID: userID, LookbackDays: lookback})
	if err != nil {
		Error(c, serviceStatus(err), "Failed to estimate skill level", err)
		return
	}
	Success(c, result)
}

// SafePaces handles GET /api/v1/users/:id/safe-paces
func (h *Handler) SafePaces(c *gin.Context) {
	userID, ok := pathID(c, "Invalid user ID")
	if !ok {
		return
	}

	result, err := h.calibrator.SafePaces(c.Request.Context(), userID)
	if err != nil {
		Error(c, serviceStatus(err), "Failed to compute safe paces", err)
		return
	}
	Success(c, result)
}

// PaceCheck handles POST /api/v1/users/:id/pace-check
func (h *Handler) PaceCheck(c *gin.Context) {
	userID, ok := pathID(c, "Invalid user ID")
	if !ok {
		return
	}

	var req service.PaceCheck
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body", err)
		return
	}
	if req.Category == "" {
		BadRequest(c, "category is required", nil)
		return
	}

	result, err := h.calibrator.ClampPace(c.Request.Context(), userID, req)
	if err != nil {
		Error(c, serviceStatus(err), "Failed to check pace", err)
		return
	}
	Success(c, result)
}

// SanitizePrescriptions handles POST /api/v1/users/:id/prescriptions/sanitize
func (h *Handler) SanitizePrescriptions(c *gin.Context) {
	userID, ok := pathID(c, "Invalid user ID")
	if !ok {
		return
	}

	var req service.SanitizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body", err)
		return
	}
	if len(req.Workouts) == 0 {
		BadRequest(c, "workouts is required", nil)
		return
	}
	req.UserID = userID

	result, err := h.calibrator.SanitizePlan(c.Request.Context(), req)
	if err != nil {
		Error(c, serviceStatus(err), "Failed to sanitize prescriptions", err)
		return
	}
	Success(c, result)
}

type recalibrateRequest struct {
	Apply bool `json:"apply"`
}

// RecalibratePlan handles POST /api/v1/plans/:id/recalibrate
func (h *Handler) RecalibratePlan(c *gin.Context) {
	planID, ok := pathID(c, "Invalid plan ID")
	if !ok {
		return
	}

	var req recalibrateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.calibrator.RecalibratePlan(c.Request.Context(), planID, req.Apply)
	if errors.Is(err, store.ErrPlanNotFound) {
		NotFound(c, "Plan not found")
		return
	}
	if err != nil {
		Error(c, serviceStatus(err), "Failed to recalibrate plan", err)
		return
	}
	Success(c, result)
}

// Categories handles GET /api/v1/categories
func (h *Handler) Categories(c *gin.Context) {
	Success(c, gin.H{
		"workout_types": []analysis.WorkoutType{
			analysis.WorkoutWalkOrInvalid,
			analysis.WorkoutLongRun,
			analysis.WorkoutInterval,
			analysis.WorkoutTempo,
			analysis.WorkoutEasy,
			analysis.WorkoutRecovery,
			analysis.WorkoutUnclassified,
		},
		"tiers": []analysis.Tier{
			analysis.TierBeginner,
			analysis.TierIntermediate,
			analysis.TierAdvanced,
			analysis.TierElite,
		},
		"pace_categories": []string{
			analysis.CategoryEasy,
			analysis.CategoryLong,
			analysis.CategoryTempo,
			analysis.CategoryOther,
		},
	})
}

func pathID(c *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, message, err)
		return 0, false
	}
	return id, true
}

// bindOptionalJSON binds a JSON body when one was sent
func bindOptionalJSON(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		BadRequest(c, "Invalid request body", err)
		return false
	}
	return true
}

// serviceStatus maps a service error to an HTTP status
func serviceStatus(err error) int {
	if errors.Is(err, history.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
