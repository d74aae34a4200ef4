package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-delivery/internal/http/response"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
	"github.com/yungbote/neurobridge-delivery/internal/services"
)

const maxBodyBytes = 1 << 20

type DeliveryHandler struct {
	log      *logger.Logger
	delivery services.DeliveryService
}

func NewDeliveryHandler(log *logger.Logger, delivery services.DeliveryService) *DeliveryHandler {
	if log != nil {
		log = log.With("handler", "DeliveryHandler")
	}
	return &DeliveryHandler{log: log, delivery: delivery}
}

type startEncounterRequest struct {
	LearnerID       string   `json:"learner_id"`
	ConceptID       string   `json:"concept_id"`
	AvailableStyles []string `json:"available_styles"`
	ForceStyle      string   `json:"force_style"`
}

type recordSignalRequest struct {
	SignalType string   `json:"signal_type"`
	Value      *float64 `json:"value"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// POST /api/encounters
func (h *DeliveryHandler) StartEncounter(c *gin.Context) {
	var req startEncounterRequest
	if !h.bind(c, &req) {
		return
	}
	learnerID, err := uuid.Parse(strings.TrimSpace(req.LearnerID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return
	}
	conceptID, err := uuid.Parse(strings.TrimSpace(req.ConceptID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_concept_id", err)
		return
	}
	out, err := h.delivery.StartEncounter(c.Request.Context(), services.StartEncounterInput{
		LearnerID:       learnerID,
		ConceptID:       conceptID,
		AvailableStyles: req.AvailableStyles,
		ForceStyle:      req.ForceStyle,
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, out)
}

// POST /api/encounters/:id/signals
func (h *DeliveryHandler) RecordSignal(c *gin.Context) {
	encounterID, ok := pathUUID(c, "id", "invalid_encounter_id")
	if !ok {
		return
	}
	var req recordSignalRequest
	if !h.bind(c, &req) {
		return
	}
	value := 1.0
	if req.Value != nil {
		value = *req.Value
	}
	if err := h.delivery.RecordSignal(c.Request.Context(), encounterID, strings.TrimSpace(req.SignalType), value); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/encounters/:id/complete
func (h *DeliveryHandler) CompleteEncounter(c *gin.Context) {
	encounterID, ok := pathUUID(c, "id", "invalid_encounter_id")
	if !ok {
		return
	}
	var req answerRequest
	if !h.bind(c, &req) {
		return
	}
	out, err := h.delivery.CompleteEncounter(c.Request.Context(), encounterID, req.Answer)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/learners/:learner_id/retention-checks/due
func (h *DeliveryHandler) ListDueRetentionChecks(c *gin.Context) {
	learnerID, ok := pathUUID(c, "learner_id", "invalid_learner_id")
	if !ok {
		return
	}
	at, ok := queryTime(c, "at")
	if !ok {
		return
	}
	out, err := h.delivery.ListDueRetentionChecks(c.Request.Context(), learnerID, at)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"checks": out})
}

// POST /api/retention-checks/:id/answer
func (h *DeliveryHandler) AnswerRetentionCheck(c *gin.Context) {
	checkID, ok := pathUUID(c, "id", "invalid_check_id")
	if !ok {
		return
	}
	var req answerRequest
	if !h.bind(c, &req) {
		return
	}
	out, err := h.delivery.AnswerRetentionCheck(c.Request.Context(), checkID, req.Answer)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/learners/:learner_id/style-profile
func (h *DeliveryHandler) GetStyleProfile(c *gin.Context) {
	learnerID, ok := pathUUID(c, "learner_id", "invalid_learner_id")
	if !ok {
		return
	}
	out, err := h.delivery.GetStyleProfile(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/learners/:learner_id/retention-stats
func (h *DeliveryHandler) RetentionStats(c *gin.Context) {
	learnerID, ok := pathUUID(c, "learner_id", "invalid_learner_id")
	if !ok {
		return
	}
	out, err := h.delivery.RetentionStats(c.Request.Context(), learnerID, time.Time{})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/learners/:learner_id/concepts/:concept_id/mastery
func (h *DeliveryHandler) ConceptMastery(c *gin.Context) {
	learnerID, ok := pathUUID(c, "learner_id", "invalid_learner_id")
	if !ok {
		return
	}
	conceptID, ok := pathUUID(c, "concept_id", "invalid_concept_id")
	if !ok {
		return
	}
	out, err := h.delivery.ConceptMastery(c.Request.Context(), learnerID, conceptID, time.Time{})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

func (h *DeliveryHandler) bind(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return false
	}
	return true
}

func pathUUID(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

// queryTime reads an optional RFC 3339 timestamp; absent means now.
func queryTime(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return time.Time{}, false
	}
	return t, true
}
