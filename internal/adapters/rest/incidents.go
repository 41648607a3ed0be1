package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/ewilliams-labs/soundwatch/internal/logging"
)

type incidentResponse struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Urgency     string    `json:"urgency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toIncidentResponse(inc domain.Incident) incidentResponse {
	return incidentResponse{
		ID:          inc.ID,
		UserID:      inc.UserID,
		Type:        inc.Type,
		Title:       inc.Title,
		Description: inc.Description,
		Latitude:    inc.Latitude,
		Longitude:   inc.Longitude,
		Urgency:     string(inc.Urgency),
		Status:      string(inc.Status),
		CreatedAt:   inc.CreatedAt,
		UpdatedAt:   inc.UpdatedAt,
	}
}

type createIncidentRequest struct {
	UserID      string  `json:"userId"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Urgency     string  `json:"urgency"`
	Status      string  `json:"status"`
}

type createIncidentResponse struct {
	ID int64 `json:"id"`
}

type updateIncidentRequest struct {
	Status  *string `json:"status"`
	Urgency *string `json:"urgency"`
}

// ListIncidents handles GET /incidents
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.incidents.List(r.Context())
	if err != nil {
		h.incidentError(w, err)
		return
	}

	out := make([]incidentResponse, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, toIncidentResponse(inc))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateIncident handles POST /incidents
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.incidents.Create(r.Context(), domain.Incident{
		UserID:      req.UserID,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Urgency:     domain.Urgency(req.Urgency),
		Status:      domain.IncidentStatus(req.Status),
	})
	if err != nil {
		h.incidentError(w, err)
		return
	}

	w.Header().Set("Location", "/incidents/"+strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusCreated, createIncidentResponse{ID: id})
}

// GetIncident handles GET /incidents/{id}
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}
	inc, err := h.incidents.Get(r.Context(), id)
	if err != nil {
		h.incidentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentResponse(inc))
}

// UpdateIncident handles PUT /incidents/{id}
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	var req updateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var upd domain.IncidentUpdate
	if req.Status != nil {
		s := domain.IncidentStatus(*req.Status)
		upd.Status = &s
	}
	if req.Urgency != nil {
		u := domain.Urgency(*req.Urgency)
		upd.Urgency = &u
	}

	inc, err := h.incidents.Update(r.Context(), id, upd)
	if err != nil {
		h.incidentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentResponse(inc))
}

func incidentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "incident id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) incidentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIncident):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "Not Found"})
	default:
		logging.Error(logging.CategoryStore, "incident request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
