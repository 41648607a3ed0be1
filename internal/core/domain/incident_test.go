package domain

import (
	"errors"
	"testing"
)

func validIncident() Incident {
	return Incident{
		UserID:      "u-1",
		Type:        "Fire",
		Title:       "Smoke on 5th",
		Description: "smoke coming out of a window",
		Latitude:    40.7,
		Longitude:   -74.0,
		Urgency:     UrgencyHigh,
		Status:      StatusPending,
	}
}

func TestIncident_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(i *Incident)
		wantErr bool
	}{
		{name: "valid", mutate: func(i *Incident) {}},
		{name: "missing user", mutate: func(i *Incident) { i.UserID = " " }, wantErr: true},
		{name: "missing type", mutate: func(i *Incident) { i.Type = "" }, wantErr: true},
		{name: "missing title", mutate: func(i *Incident) { i.Title = "" }, wantErr: true},
		{name: "latitude out of range", mutate: func(i *Incident) { i.Latitude = 91 }, wantErr: true},
		{name: "longitude out of range", mutate: func(i *Incident) { i.Longitude = -181 }, wantErr: true},
		{name: "unknown urgency", mutate: func(i *Incident) { i.Urgency = "urgent" }, wantErr: true},
		{name: "unknown status", mutate: func(i *Incident) { i.Status = "closed" }, wantErr: true},
		{name: "empty description allowed", mutate: func(i *Incident) { i.Description = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inc := validIncident()
			tc.mutate(&inc)
			err := inc.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: got err=%v wantErr=%v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIncident) {
				t.Fatalf("expected ErrInvalidIncident, got %v", err)
			}
		})
	}
}

func TestIncidentUpdate_Apply(t *testing.T) {
	resolved := StatusResolved
	bogus := IncidentStatus("archived")
	critical := UrgencyCritical

	tests := []struct {
		name        string
		update      IncidentUpdate
		wantErr     bool
		wantStatus  IncidentStatus
		wantUrgency Urgency
	}{
		{name: "status only", update: IncidentUpdate{Status: &resolved}, wantStatus: StatusResolved, wantUrgency: UrgencyHigh},
		{name: "urgency only", update: IncidentUpdate{Urgency: &critical}, wantStatus: StatusPending, wantUrgency: UrgencyCritical},
		{name: "empty update", update: IncidentUpdate{}, wantErr: true},
		{name: "bad status", update: IncidentUpdate{Status: &bogus}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inc := validIncident()
			err := tc.update.Apply(&inc)
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: got err=%v wantErr=%v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if inc.Status != tc.wantStatus || inc.Urgency != tc.wantUrgency {
				t.Fatalf("got status=%s urgency=%s", inc.Status, inc.Urgency)
			}
		})
	}
}
