package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"crm_automation_backend/internal/governance/dispatch"
	"crm_automation_backend/internal/governance/domain"
	"crm_automation_backend/internal/governance/service"
	"crm_automation_backend/platform/apperr"
	"crm_automation_backend/platform/httpkit"
	"crm_automation_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGovernance struct {
	evaluateErr error
	stopErr     error
	stopReason  string
	trigger     service.Trigger
	batchIDs    []uuid.UUID
}

func (f *fakeGovernance) Evaluate(_ context.Context, leadID uuid.UUID) (domain.AutomationDecision, error) {
	if f.evaluateErr != nil {
		return domain.AutomationDecision{}, f.evaluateErr
	}
	return domain.Authorize(domain.LeadSnapshot{ID: leadID, Status: domain.StatusContacted, RawSource: "referral", ContactVerified: true}), nil
}

func (f *fakeGovernance) EvaluateMany(_ context.Context, ids []uuid.UUID) ([]service.BatchResult, error) {
	f.batchIDs = ids
	out := make([]service.BatchResult, len(ids))
	for i, id := range ids {
		out[i] = service.BatchResult{LeadID: id, Error: "lead not found"}
	}
	return out, nil
}

func (f *fakeGovernance) DetectAndClassify(_ context.Context, _ uuid.UUID, in service.ClassifyInput) (service.Derived, error) {
	raw := ""
	if in.RawSource != nil {
		raw = *in.RawSource
	}
	return service.Derived{Classification: domain.Classify(raw, domain.ClassifyContext{}), Persisted: true}, nil
}

func (f *fakeGovernance) RequestStop(_ context.Context, leadID uuid.UUID, reason string) (dispatch.StopAck, error) {
	f.stopReason = reason
	if f.stopErr != nil {
		return dispatch.StopAck{}, f.stopErr
	}
	return dispatch.StopAck{LeadID: leadID}, nil
}

func (f *fakeGovernance) VerifyContact(_ context.Context, leadID uuid.UUID) (domain.LeadSnapshot, error) {
	return domain.LeadSnapshot{ID: leadID, ContactVerified: true}, nil
}

func (f *fakeGovernance) HandleTrigger(_ context.Context, t service.Trigger) (service.TriggerResult, error) {
	f.trigger = t
	return service.TriggerResult{Type: t.Type, LeadID: t.LeadID}, nil
}

func newEngine(svc Governance) *gin.Engine {
	engine := gin.New()
	group := engine.Group("/api/v1", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Next()
	})
	New(svc, validator.New()).RegisterRoutes(group)
	return engine
}

func do(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestGetDecision(t *testing.T) {
	id := uuid.New()
	rec := do(newEngine(&fakeGovernance{}), http.MethodGet, "/api/v1/leads/"+id.String()+"/automation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.AutomationDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.True(t, decision.Eligibility.Eligible)
	assert.Equal(t, 2, decision.Channels[domain.ChannelEmail].MaxMessages)
}

func TestGetDecisionInvalidID(t *testing.T) {
	rec := do(newEngine(&fakeGovernance{}), http.MethodGet, "/api/v1/leads/not-a-uuid/automation", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDecisionRepositoryUnavailable(t *testing.T) {
	svc := &fakeGovernance{evaluateErr: apperr.Unavailable("lead repository unavailable", errors.New("down"))}
	rec := do(newEngine(svc), http.MethodGet, "/api/v1/leads/"+uuid.NewString()+"/automation", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestStop(t *testing.T) {
	svc := &fakeGovernance{}
	engine := newEngine(svc)

	rec := do(engine, http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/automation/stop", map[string]string{"reason": "Requested by owner"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Requested by owner", svc.stopReason)

	rec = do(engine, http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/automation/stop", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reason":"required"`)
}

func TestStopSanitizesReason(t *testing.T) {
	svc := &fakeGovernance{}
	engine := newEngine(svc)

	rec := do(engine, http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/automation/stop", map[string]string{"reason": "<b>owner</b>\n asked"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner asked", svc.stopReason)

	rec = do(engine, http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/automation/stop", map[string]string{"reason": "<p></p>"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopDispatchUnavailable(t *testing.T) {
	svc := &fakeGovernance{stopErr: apperr.Unavailable("dispatch service did not confirm the stop", errors.New("502"))}
	rec := do(newEngine(svc), http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/automation/stop", map[string]string{"reason": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClassifyWithoutBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/automation/classify", nil)
	rec := httptest.NewRecorder()
	newEngine(&fakeGovernance{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"classification":"cold_imported"`)
}

func TestClassifyWithOverride(t *testing.T) {
	rec := do(newEngine(&fakeGovernance{}), http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/automation/classify",
		map[string]string{"rawSource": "walk_in"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"classification":"referral"`)
}

func TestVerify(t *testing.T) {
	rec := do(newEngine(&fakeGovernance{}), http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/automation/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"contactVerified":true`)
}

func TestEvaluateSnapshot(t *testing.T) {
	rec := do(newEngine(&fakeGovernance{}), http.MethodPost, "/api/v1/automation/evaluate", map[string]any{
		"status":            "new",
		"rawSource":         "social_media",
		"whatsappInitiated": true,
		"contactVerified":   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.AutomationDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, domain.ClassWhatsAppInbound, decision.Classification)
	assert.Equal(t, domain.Unlimited, decision.Channels[domain.ChannelWhatsApp].MaxMessages)
}

func TestEvaluateSnapshotRejectsUnknownStatus(t *testing.T) {
	rec := do(newEngine(&fakeGovernance{}), http.MethodPost, "/api/v1/automation/evaluate", map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"oneof"`)
}

func TestEvaluateBatch(t *testing.T) {
	svc := &fakeGovernance{}
	ids := []string{uuid.NewString(), uuid.NewString()}

	rec := do(newEngine(svc), http.MethodPost, "/api/v1/automation/evaluate-batch", map[string]any{"leadIds": ids})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.batchIDs, 2)
}

func TestTrigger(t *testing.T) {
	svc := &fakeGovernance{}
	id := uuid.New()

	rec := do(newEngine(svc), http.MethodPost, "/api/v1/automation/triggers", map[string]any{
		"type":   "new_lead",
		"leadId": id.String(),
		"phone":  "+971501234567",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	assert.Equal(t, service.TriggerNewLead, svc.trigger.Type)
	assert.Equal(t, id, svc.trigger.LeadID)
	require.NotNil(t, svc.trigger.Input.Phone)
	assert.Equal(t, "+971501234567", *svc.trigger.Input.Phone)
}

func TestTriggerValidation(t *testing.T) {
	tests := []map[string]any{
		{"type": "reopened", "leadId": uuid.NewString()},
		{"type": "new_lead"},
		{"type": "new_lead", "leadId": uuid.NewString(), "email": "not-an-email"},
	}

	for i, body := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			rec := do(newEngine(&fakeGovernance{}), http.MethodPost, "/api/v1/automation/triggers", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
