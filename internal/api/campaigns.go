package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/signalcrest/outreach/internal/models"
	"github.com/signalcrest/outreach/internal/repository"
)

// CampaignRequest is the request body for creating or updating a campaign
type CampaignRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// StepRequest is the request body for POST /campaigns/{id}/steps
type StepRequest struct {
	StepOrder    int    `json:"step_order"`
	DelayMinutes int    `json:"delay_minutes"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	SubjectB     string `json:"subject_b"`
	BodyB        string `json:"body_b"`
	WeightB      int    `json:"weight_b"`
}

// CampaignListResponse is the response for GET /campaigns
type CampaignListResponse struct {
	Campaigns []models.CampaignWithStats `json:"campaigns"`
	Total     int                        `json:"total"`
}

// handleListCampaigns handles GET /api/v1/campaigns
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter := models.CampaignListFilter{
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}

	campaigns, total, err := s.campaigns.List(filter)
	if err != nil {
		s.logger.Error("failed to list campaigns", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list campaigns")
		return
	}

	s.sendJSON(w, http.StatusOK, CampaignListResponse{Campaigns: campaigns, Total: total})
}

// handleCreateCampaign handles POST /api/v1/campaigns
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Status == "" {
		req.Status = models.CampaignStatusActive
	}
	if req.Status != models.CampaignStatusActive && req.Status != models.CampaignStatusArchived {
		s.sendError(w, http.StatusBadRequest, "status must be active or archived")
		return
	}

	campaign := &models.Campaign{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	}
	if err := s.campaigns.Create(campaign); err != nil {
		s.logger.Error("failed to create campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create campaign")
		return
	}

	s.logger.Info("campaign created", "id", campaign.ID, "name", campaign.Name)
	s.sendJSON(w, http.StatusCreated, campaign)
}

// handleGetCampaign handles GET /api/v1/campaigns/{id}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, campaign)
}

// handleUpdateCampaign handles PUT /api/v1/campaigns/{id}
func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}

	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name != "" {
		campaign.Name = req.Name
	}
	if req.Description != "" {
		campaign.Description = req.Description
	}
	if req.Status != "" {
		if req.Status != models.CampaignStatusActive && req.Status != models.CampaignStatusArchived {
			s.sendError(w, http.StatusBadRequest, "status must be active or archived")
			return
		}
		campaign.Status = req.Status
	}

	if err := s.campaigns.Update(campaign); err != nil {
		s.logger.Error("failed to update campaign", "id", campaign.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update campaign")
		return
	}
	s.sendJSON(w, http.StatusOK, campaign)
}

// handleDeleteCampaign handles DELETE /api/v1/campaigns/{id}
func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	if err := s.campaigns.Delete(campaign.ID); err != nil {
		s.logger.Error("failed to delete campaign", "id", campaign.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete campaign")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListSteps handles GET /api/v1/campaigns/{id}/steps
func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	campaign, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	steps, err := s.campaigns.ListSteps(campaign.ID)
	if err != nil {
		s.logger.Error("failed to list steps", "campaign_id", campaign.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list steps")
		return
	}
	s.sendJSON(w, http.StatusOK, steps)
}

// handleAddStep handles POST /api/v1/campaigns/{id}/steps
func (s *Server) handleAddStep(w http.ResponseWriter, r *http.Request) {
	campaign, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}

	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.StepOrder < 1 {
		s.sendError(w, http.StatusBadRequest, "step_order must be at least 1")
		return
	}
	if req.DelayMinutes < 0 {
		s.sendError(w, http.StatusBadRequest, "delay_minutes must not be negative")
		return
	}
	if req.Subject == "" || req.Body == "" {
		s.sendError(w, http.StatusBadRequest, "subject and body are required")
		return
	}
	if req.WeightB < 0 || req.WeightB > 100 {
		s.sendError(w, http.StatusBadRequest, "weight_b must be between 0 and 100")
		return
	}

	step := &models.Step{
		CampaignID:   campaign.ID,
		StepOrder:    req.StepOrder,
		DelayMinutes: req.DelayMinutes,
		Subject:      req.Subject,
		Body:         req.Body,
		SubjectB:     req.SubjectB,
		BodyB:        req.BodyB,
		WeightB:      req.WeightB,
	}
	if err := s.campaigns.AddStep(step); err != nil {
		if repository.IsDuplicate(err) {
			s.sendError(w, http.StatusConflict, "step_order already exists for this campaign")
			return
		}
		s.logger.Error("failed to add step", "campaign_id", campaign.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to add step")
		return
	}
	s.sendJSON(w, http.StatusCreated, step)
}

// handleDeleteStep handles DELETE /api/v1/campaigns/{id}/steps/{stepID}
func (s *Server) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	campaign, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	stepID := chi.URLParam(r, "stepID")
	if err := s.campaigns.DeleteStep(stepID); err != nil {
		s.logger.Error("failed to delete step", "campaign_id", campaign.ID, "step_id", stepID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete step")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadCampaign(w http.ResponseWriter, r *http.Request) (*models.Campaign, bool) {
	id := chi.URLParam(r, "id")
	campaign, err := s.campaigns.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get campaign", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return nil, false
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return nil, false
	}
	return campaign, true
}
