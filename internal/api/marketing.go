package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/signalcrest/outreach/internal/models"
)

const maxTickBatch = 200

// handleTick handles GET and POST /api/v1/marketing/tick. It runs one
// scheduler pass synchronously and returns the counters, so an external
// cron can drive and observe the pipeline with a single call. The batch
// parameter is clamped to [1, maxTickBatch].
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	batch := s.batchSize
	if v := r.URL.Query().Get("batch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "batch must be an integer")
			return
		}
		batch = n
	}
	if batch < 1 {
		batch = 1
	}
	if batch > maxTickBatch {
		batch = maxTickBatch
	}

	result, err := s.engine.Tick(r.Context(), batch)
	if err != nil {
		s.logger.Error("tick failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Tick failed")
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

// WebhookEvent is the delivery event payload posted by the email provider
type WebhookEvent struct {
	Type string `json:"type"` // e.g. "email.bounced"
	Data struct {
		EmailID string `json:"email_id"`
	} `json:"data"`
}

// webhookStatus maps provider event names to send log statuses. Unlisted
// events are acknowledged and dropped.
var webhookStatus = map[string]string{
	"sent":       models.SendStatusSent,
	"delivered":  models.SendStatusDelivered,
	"opened":     models.SendStatusOpened,
	"clicked":    models.SendStatusClicked,
	"bounced":    models.SendStatusBounced,
	"complained": models.SendStatusComplained,
}

// handleWebhook handles POST /webhooks/email. Bounces and complaints
// suppress the contact so no further campaign mail reaches them.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var event WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if event.Data.EmailID == "" {
		s.sendError(w, http.StatusBadRequest, "email_id is required")
		return
	}

	kind := strings.TrimPrefix(event.Type, "email.")
	status, tracked := webhookStatus[kind]
	if !tracked {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	send, err := s.sends.GetByProviderID("resend", event.Data.EmailID)
	if err != nil {
		s.logger.Error("failed to look up send for webhook", "provider_id", event.Data.EmailID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to process event")
		return
	}
	if send == nil {
		// Unknown message id, possibly sent outside campaigns
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, err := s.sends.UpdateStatusByProviderID("resend", event.Data.EmailID, status); err != nil {
		s.logger.Error("failed to update send status", "provider_id", event.Data.EmailID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	if status == models.SendStatusBounced || status == models.SendStatusComplained {
		reason := models.SuppressionReasonBounce
		if status == models.SendStatusComplained {
			reason = models.SuppressionReasonComplaint
		}
		if err := s.suppressions.Add(&models.Suppression{ContactID: send.ContactID, Reason: reason}); err != nil {
			s.logger.Error("failed to suppress contact", "contact_id", send.ContactID, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to process event")
			return
		}
		s.logger.Info("contact suppressed from webhook",
			"contact_id", send.ContactID,
			"reason", reason,
		)
	}

	s.logger.Info("webhook event applied",
		"type", event.Type,
		"provider_id", event.Data.EmailID,
		"status", status,
	)
	w.WriteHeader(http.StatusNoContent)
}

// SuppressionRequest is the request body for POST /suppressions
type SuppressionRequest struct {
	ContactID string `json:"contact_id"`
	Reason    string `json:"reason"`
}

// handleListSuppressions handles GET /api/v1/suppressions
func (s *Server) handleListSuppressions(w http.ResponseWriter, r *http.Request) {
	suppressions, err := s.suppressions.List()
	if err != nil {
		s.logger.Error("failed to list suppressions", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list suppressions")
		return
	}
	s.sendJSON(w, http.StatusOK, suppressions)
}

// handleAddSuppression handles POST /api/v1/suppressions
func (s *Server) handleAddSuppression(w http.ResponseWriter, r *http.Request) {
	var req SuppressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ContactID == "" {
		s.sendError(w, http.StatusBadRequest, "contact_id is required")
		return
	}
	switch req.Reason {
	case models.SuppressionReasonBounce, models.SuppressionReasonComplaint,
		models.SuppressionReasonUnsubscribe, models.SuppressionReasonManual:
	case "":
		req.Reason = models.SuppressionReasonManual
	default:
		s.sendError(w, http.StatusBadRequest, "unknown reason")
		return
	}

	suppression := &models.Suppression{ContactID: req.ContactID, Reason: req.Reason}
	if err := s.suppressions.Add(suppression); err != nil {
		s.logger.Error("failed to add suppression", "contact_id", req.ContactID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to add suppression")
		return
	}
	s.sendJSON(w, http.StatusCreated, suppression)
}

// handleRemoveSuppression handles DELETE /api/v1/suppressions/{contactID}
func (s *Server) handleRemoveSuppression(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "contactID")
	if err := s.suppressions.Remove(contactID); err != nil {
		s.logger.Error("failed to remove suppression", "contact_id", contactID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to remove suppression")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// editableConfigKeys are the marketing_config keys the API accepts. The
// rate bucket keys are scheduler state, not settings, and stay internal.
var editableConfigKeys = map[string]bool{
	models.ConfigKeyQuietStart:  true,
	models.ConfigKeyQuietEnd:    true,
	models.ConfigKeyRatePerHour: true,
	models.ConfigKeySenderName:  true,
}

// handleGetConfig handles GET /api/v1/config
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	entries, err := s.settings.List()
	if err != nil {
		s.logger.Error("failed to load config", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to load config")
		return
	}
	visible := make([]models.ConfigEntry, 0, len(entries))
	for _, e := range entries {
		if editableConfigKeys[e.Key] {
			visible = append(visible, e)
		}
	}
	s.sendJSON(w, http.StatusOK, visible)
}

// handlePutConfig handles PUT /api/v1/config with a key/value object.
// Values are validated per key before anything is written.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(values) == 0 {
		s.sendError(w, http.StatusBadRequest, "no settings provided")
		return
	}

	for key, value := range values {
		if !editableConfigKeys[key] {
			s.sendError(w, http.StatusBadRequest, "unknown setting: "+key)
			return
		}
		if msg := validateConfigValue(key, value); msg != "" {
			s.sendError(w, http.StatusBadRequest, msg)
			return
		}
	}

	for key, value := range values {
		if err := s.settings.Set(key, value); err != nil {
			s.logger.Error("failed to save setting", "key", key, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to save config")
			return
		}
	}

	s.logger.Info("marketing config updated", "keys", len(values))
	w.WriteHeader(http.StatusNoContent)
}

func validateConfigValue(key, value string) string {
	switch key {
	case models.ConfigKeyQuietStart, models.ConfigKeyQuietEnd:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 23 {
			return key + " must be an hour between 0 and 23"
		}
	case models.ConfigKeyRatePerHour:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return "rate_per_hour must be a positive integer"
		}
	}
	return ""
}
