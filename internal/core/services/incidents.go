package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/ewilliams-labs/soundwatch/internal/core/ports"
)

// IncidentService applies the incident rules on top of a repository.
type IncidentService struct {
	repo ports.IncidentRepository
	now  func() time.Time
}

// NewIncidentService constructs an IncidentService.
func NewIncidentService(repo ports.IncidentRepository) *IncidentService {
	return &IncidentService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// List returns every incident, newest first.
func (s *IncidentService) List(ctx context.Context) ([]domain.Incident, error) {
	incidents, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list incidents: %w", err)
	}
	return incidents, nil
}

// Create fills defaults, validates and stores a new incident. It returns the
// new id.
func (s *IncidentService) Create(ctx context.Context, inc domain.Incident) (int64, error) {
	if inc.Status == "" {
		inc.Status = domain.StatusPending
	}
	if inc.Urgency == "" {
		inc.Urgency = domain.UrgencyMedium
	}
	if err := inc.Validate(); err != nil {
		return 0, err
	}

	ts := s.now()
	inc.ID = 0
	inc.CreatedAt = ts
	inc.UpdatedAt = ts

	id, err := s.repo.Create(ctx, inc)
	if err != nil {
		return 0, fmt.Errorf("service: failed to create incident: %w", err)
	}
	return id, nil
}

// Get loads a single incident. Missing ids wrap domain.ErrNotFound.
func (s *IncidentService) Get(ctx context.Context, id int64) (domain.Incident, error) {
	inc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Incident{}, fmt.Errorf("service: failed to load incident %d: %w", id, err)
	}
	return inc, nil
}

// Update applies upd to the stored incident and returns the result.
func (s *IncidentService) Update(ctx context.Context, id int64, upd domain.IncidentUpdate) (domain.Incident, error) {
	inc, err := s.Get(ctx, id)
	if err != nil {
		return domain.Incident{}, err
	}
	if err := upd.Apply(&inc); err != nil {
		return domain.Incident{}, err
	}
	inc.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, inc); err != nil {
		return domain.Incident{}, fmt.Errorf("service: failed to save incident %d: %w", id, err)
	}
	return inc, nil
}
