package api

import (
	"encoding/json"
	"net/http"
	"net/mail"

	"github.com/go-chi/chi/v5"

	"github.com/signalcrest/outreach/internal/models"
	"github.com/signalcrest/outreach/internal/repository"
)

// ContactRequest is the request body for creating or updating a contact
type ContactRequest struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	LinkedinURL string `json:"linkedin_url"`
	Source      string `json:"source"`
	IsActive    *bool  `json:"is_active"`
}

// ContactListResponse is the response for GET /contacts
type ContactListResponse struct {
	Contacts []models.Contact `json:"contacts"`
	Total    int              `json:"total"`
}

// handleListContacts handles GET /api/v1/contacts
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	contacts, total, err := s.contacts.List(models.ContactListFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list contacts", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list contacts")
		return
	}
	s.sendJSON(w, http.StatusOK, ContactListResponse{Contacts: contacts, Total: total})
}

// handleCreateContact handles POST /api/v1/contacts
func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		s.sendError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	contact := &models.Contact{
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Title:       req.Title,
		Company:     req.Company,
		LinkedinURL: req.LinkedinURL,
		Source:      req.Source,
		IsActive:    true,
	}
	if req.IsActive != nil {
		contact.IsActive = *req.IsActive
	}

	if err := s.contacts.Create(contact); err != nil {
		if repository.IsDuplicate(err) {
			s.sendError(w, http.StatusConflict, "a contact with this email already exists")
			return
		}
		s.logger.Error("failed to create contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create contact")
		return
	}
	s.sendJSON(w, http.StatusCreated, contact)
}

// handleGetContact handles GET /api/v1/contacts/{id}
func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	contact, ok := s.loadContact(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, contact)
}

// handleUpdateContact handles PUT /api/v1/contacts/{id}
func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	contact, ok := s.loadContact(w, r)
	if !ok {
		return
	}

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid email")
			return
		}
		contact.Email = req.Email
	}
	if req.FirstName != "" {
		contact.FirstName = req.FirstName
	}
	if req.LastName != "" {
		contact.LastName = req.LastName
	}
	if req.Title != "" {
		contact.Title = req.Title
	}
	if req.Company != "" {
		contact.Company = req.Company
	}
	if req.LinkedinURL != "" {
		contact.LinkedinURL = req.LinkedinURL
	}
	if req.Source != "" {
		contact.Source = req.Source
	}
	if req.IsActive != nil {
		contact.IsActive = *req.IsActive
	}

	if err := s.contacts.Update(contact); err != nil {
		s.logger.Error("failed to update contact", "id", contact.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update contact")
		return
	}
	s.sendJSON(w, http.StatusOK, contact)
}

// handleDeleteContact handles DELETE /api/v1/contacts/{id}
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	contact, ok := s.loadContact(w, r)
	if !ok {
		return
	}
	if err := s.contacts.Delete(contact.ID); err != nil {
		if repository.IsReferenced(err) {
			s.sendError(w, http.StatusConflict, "contact has enrollments; remove them first")
			return
		}
		s.logger.Error("failed to delete contact", "id", contact.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete contact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadContact(w http.ResponseWriter, r *http.Request) (*models.Contact, bool) {
	id := chi.URLParam(r, "id")
	contact, err := s.contacts.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get contact", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get contact")
		return nil, false
	}
	if contact == nil {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return nil, false
	}
	return contact, true
}
