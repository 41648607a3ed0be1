package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidIncident = errors.New("domain: invalid incident")

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

type IncidentStatus string

const (
	StatusPending    IncidentStatus = "pending"
	StatusInProgress IncidentStatus = "in-progress"
	StatusResolved   IncidentStatus = "resolved"
)

func (s IncidentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Incident is a user-submitted safety report.
type Incident struct {
	ID          int64
	UserID      string
	Type        string
	Title       string
	Description string
	Latitude    float64
	Longitude   float64
	Urgency     Urgency
	Status      IncidentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate reports the first rule the incident breaks, wrapped in
// ErrInvalidIncident.
func (i Incident) Validate() error {
	switch {
	case strings.TrimSpace(i.UserID) == "":
		return fmt.Errorf("%w: userId is required", ErrInvalidIncident)
	case strings.TrimSpace(i.Type) == "":
		return fmt.Errorf("%w: type is required", ErrInvalidIncident)
	case strings.TrimSpace(i.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidIncident)
	case i.Latitude < -90 || i.Latitude > 90:
		return fmt.Errorf("%w: latitude out of range", ErrInvalidIncident)
	case i.Longitude < -180 || i.Longitude > 180:
		return fmt.Errorf("%w: longitude out of range", ErrInvalidIncident)
	case !i.Urgency.Valid():
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalidIncident, i.Urgency)
	case !i.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidIncident, i.Status)
	}
	return nil
}

// IncidentUpdate carries the mutable fields of an incident. Nil fields are
// left unchanged.
type IncidentUpdate struct {
	Status  *IncidentStatus
	Urgency *Urgency
}

// Apply validates the update and writes it onto inc.
func (u IncidentUpdate) Apply(inc *Incident) error {
	if u.Status == nil && u.Urgency == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidIncident)
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidIncident, *u.Status)
		}
		inc.Status = *u.Status
	}
	if u.Urgency != nil {
		if !u.Urgency.Valid() {
			return fmt.Errorf("%w: unknown urgency %q", ErrInvalidIncident, *u.Urgency)
		}
		inc.Urgency = *u.Urgency
	}
	return nil
}
