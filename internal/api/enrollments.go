package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalcrest/outreach/internal/models"
	"github.com/signalcrest/outreach/internal/repository"
)

// EnrollRequest is the request body for POST /campaigns/{id}/enroll
type EnrollRequest struct {
	ContactIDs []string          `json:"contact_ids"`
	Data       map[string]string `json:"data,omitempty"`
}

// EnrollResponse reports the outcome per contact
type EnrollResponse struct {
	Enrolled int      `json:"enrolled"`
	Skipped  []string `json:"skipped,omitempty"` // already enrolled or unknown contacts
}

// handleEnroll handles POST /api/v1/campaigns/{id}/enroll. Contacts already
// enrolled in the campaign are skipped, not errors, so bulk enrollment is
// idempotent.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	campaign, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	if campaign.Status != models.CampaignStatusActive {
		s.sendError(w, http.StatusConflict, "campaign is not active")
		return
	}

	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.ContactIDs) == 0 {
		s.sendError(w, http.StatusBadRequest, "contact_ids is required")
		return
	}

	first, err := s.campaigns.FirstStep(campaign.ID)
	if err != nil {
		s.logger.Error("failed to resolve first step", "campaign_id", campaign.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to enroll contacts")
		return
	}
	if first == nil {
		s.sendError(w, http.StatusConflict, "campaign has no steps")
		return
	}

	var dataJSON string
	if len(req.Data) > 0 {
		raw, err := json.Marshal(req.Data)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid data")
			return
		}
		dataJSON = string(raw)
	}

	resp := EnrollResponse{}
	// The first step's delay counts from enrollment, so a delay-0 opener is
	// due on the very next tick.
	firstRunAt := s.engine.Now().Add(time.Duration(first.DelayMinutes) * time.Minute)
	for _, contactID := range req.ContactIDs {
		contact, err := s.contacts.GetByID(contactID)
		if err != nil {
			s.logger.Error("failed to look up contact", "contact_id", contactID, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to enroll contacts")
			return
		}
		if contact == nil {
			resp.Skipped = append(resp.Skipped, contactID)
			continue
		}

		enrollment := &models.Enrollment{
			CampaignID:    campaign.ID,
			ContactID:     contactID,
			NextStepOrder: first.StepOrder,
			NextRunAt:     firstRunAt,
			DataJSON:      dataJSON,
		}
		if err := s.enrollments.Create(enrollment); err != nil {
			if repository.IsDuplicate(err) {
				resp.Skipped = append(resp.Skipped, contactID)
				continue
			}
			s.logger.Error("failed to create enrollment", "contact_id", contactID, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to enroll contacts")
			return
		}
		resp.Enrolled++
	}

	s.logger.Info("contacts enrolled",
		"campaign_id", campaign.ID,
		"enrolled", resp.Enrolled,
		"skipped", len(resp.Skipped),
	)
	s.sendJSON(w, http.StatusOK, resp)
}

// handleListEnrollments handles GET /api/v1/enrollments
func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	enrollments, err := s.enrollments.List(models.EnrollmentListFilter{
		CampaignID: r.URL.Query().Get("campaign_id"),
		ContactID:  r.URL.Query().Get("contact_id"),
		Status:     r.URL.Query().Get("status"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.logger.Error("failed to list enrollments", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list enrollments")
		return
	}
	s.sendJSON(w, http.StatusOK, enrollments)
}

// handlePauseEnrollment handles POST /api/v1/enrollments/{id}/pause
func (s *Server) handlePauseEnrollment(w http.ResponseWriter, r *http.Request) {
	s.setEnrollmentStatus(w, r, models.EnrollmentStatusActive, models.EnrollmentStatusPaused)
}

// handleResumeEnrollment handles POST /api/v1/enrollments/{id}/resume
func (s *Server) handleResumeEnrollment(w http.ResponseWriter, r *http.Request) {
	s.setEnrollmentStatus(w, r, models.EnrollmentStatusPaused, models.EnrollmentStatusActive)
}

func (s *Server) setEnrollmentStatus(w http.ResponseWriter, r *http.Request, from, to string) {
	id := chi.URLParam(r, "id")
	enrollment, err := s.enrollments.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get enrollment", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get enrollment")
		return
	}
	if enrollment == nil {
		s.sendError(w, http.StatusNotFound, "Enrollment not found")
		return
	}
	if enrollment.Status != from {
		s.sendError(w, http.StatusConflict, "enrollment is "+enrollment.Status)
		return
	}

	if err := s.enrollments.SetStatus(id, to); err != nil {
		s.logger.Error("failed to update enrollment status", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update enrollment")
		return
	}
	enrollment.Status = to
	s.sendJSON(w, http.StatusOK, enrollment)
}

// SendListResponse is the response for GET /sends
type SendListResponse struct {
	Sends []models.Send `json:"sends"`
	Total int           `json:"total"`
}

// handleListSends handles GET /api/v1/sends
func (s *Server) handleListSends(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	sends, total, err := s.sends.List(models.SendListFilter{
		ContactID:  r.URL.Query().Get("contact_id"),
		CampaignID: r.URL.Query().Get("campaign_id"),
		Status:     r.URL.Query().Get("status"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.logger.Error("failed to list sends", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list sends")
		return
	}
	s.sendJSON(w, http.StatusOK, SendListResponse{Sends: sends, Total: total})
}
