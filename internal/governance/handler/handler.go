package handler

import (
	"context"
	"net/http"

	"crm_automation_backend/internal/governance/dispatch"
	"crm_automation_backend/internal/governance/domain"
	"crm_automation_backend/internal/governance/service"
	"crm_automation_backend/internal/governance/transport"
	"crm_automation_backend/platform/httpkit"
	"crm_automation_backend/platform/sanitize"
	"crm_automation_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
	msgEmptyReason      = "reason must contain text"
)

// Governance is the orchestrator surface the handler drives.
type Governance interface {
	Evaluate(ctx context.Context, leadID uuid.UUID) (domain.AutomationDecision, error)
	EvaluateMany(ctx context.Context, leadIDs []uuid.UUID) ([]service.BatchResult, error)
	DetectAndClassify(ctx context.Context, leadID uuid.UUID, in service.ClassifyInput) (service.Derived, error)
	RequestStop(ctx context.Context, leadID uuid.UUID, reason string) (dispatch.StopAck, error)
	VerifyContact(ctx context.Context, leadID uuid.UUID) (domain.LeadSnapshot, error)
	HandleTrigger(ctx context.Context, t service.Trigger) (service.TriggerResult, error)
}

// Handler serves the automation governance API.
type Handler struct {
	svc Governance
	val *validator.Validator
}

func New(svc Governance, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	leads := rg.Group("/leads/:id/automation")
	leads.GET("", h.GetDecision)
	leads.POST("/classify", h.Classify)
	leads.POST("/stop", h.Stop)
	leads.POST("/verify", h.Verify)

	automation := rg.Group("/automation")
	automation.POST("/evaluate", h.EvaluateSnapshot)
	automation.POST("/evaluate-batch", h.EvaluateBatch)
	automation.POST("/triggers", h.Trigger)
}

func (h *Handler) GetDecision(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	decision, err := h.svc.Evaluate(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, decision)
}

func (h *Handler) Classify(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.ClassifyRequest
	if c.Request.ContentLength != 0 {
		if !h.bind(c, &req) {
			return
		}
	}

	derived, err := h.svc.DetectAndClassify(c.Request.Context(), leadID, service.ClassifyInput{
		RawSource:         sanitize.TextPtr(req.RawSource),
		WhatsAppInitiated: req.WhatsAppInitiated,
		Country:           sanitize.TextPtr(req.Country),
		Phone:             req.Phone,
		Email:             req.Email,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, derived)
}

func (h *Handler) Stop(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	if _, ok := httpkit.MustGetIdentity(c); !ok {
		return
	}

	var req transport.StopRequest
	if !h.bind(c, &req) {
		return
	}

	reason := sanitize.Reason(req.Reason)
	if reason == "" {
		httpkit.Error(c, http.StatusBadRequest, msgEmptyReason, nil)
		return
	}

	ack, err := h.svc.RequestStop(c.Request.Context(), leadID, reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, ack)
}

func (h *Handler) Verify(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	lead, err := h.svc.VerifyContact(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.VerifyResponse{LeadID: leadID, ContactVerified: lead.ContactVerified})
}

// EvaluateSnapshot authorizes a posted snapshot without reading storage.
func (h *Handler) EvaluateSnapshot(c *gin.Context) {
	var req transport.EvaluateRequest
	if !h.bind(c, &req) {
		return
	}

	lead, err := req.Snapshot()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	httpkit.OK(c, domain.Authorize(lead))
}

func (h *Handler) EvaluateBatch(c *gin.Context) {
	var req transport.EvaluateBatchRequest
	if !h.bind(c, &req) {
		return
	}

	ids, err := req.ParseIDs()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	results, err := h.svc.EvaluateMany(c.Request.Context(), ids)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"results": results})
}

func (h *Handler) Trigger(c *gin.Context) {
	var req transport.TriggerRequest
	if !h.bind(c, &req) {
		return
	}

	triggerType, err := service.ParseTriggerType(req.Type)
	if httpkit.HandleError(c, err) {
		return
	}
	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}

	result, err := h.svc.HandleTrigger(c.Request.Context(), service.Trigger{
		Type:   triggerType,
		LeadID: leadID,
		Reason: sanitize.Reason(req.Reason),
		Input: service.ClassifyInput{
			RawSource:         sanitize.TextPtr(req.RawSource),
			WhatsAppInitiated: req.WhatsAppInitiated,
			Country:           sanitize.TextPtr(req.Country),
			Phone:             req.Phone,
			Email:             req.Email,
		},
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, result)
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.Nil, false
	}
	return id, true
}
