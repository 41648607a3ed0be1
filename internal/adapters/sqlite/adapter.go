// Package sqlite provides a SQLite-backed implementation of the incident
// repository port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously
)

const incidentColumns = `id, user_id, type, title, description, latitude, longitude, urgency, status, created_at, updated_at`

// Adapter implements the repository port for SQLite
type Adapter struct {
	db *sql.DB
}

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// An in-memory database lives and dies with its connection.
	if storagePath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) List(ctx context.Context) ([]domain.Incident, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT `+incidentColumns+` FROM incidents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := []domain.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incidents: %w", err)
	}
	return incidents, nil
}

func (a *Adapter) Create(ctx context.Context, inc domain.Incident) (int64, error) {
	res, err := a.db.ExecContext(ctx, `
		INSERT INTO incidents (
			user_id, type, title, description, latitude, longitude,
			urgency, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inc.UserID,
		inc.Type,
		inc.Title,
		inc.Description,
		inc.Latitude,
		inc.Longitude,
		string(inc.Urgency),
		string(inc.Status),
		inc.CreatedAt,
		inc.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert incident: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read incident id: %w", err)
	}
	return id, nil
}

func (a *Adapter) GetByID(ctx context.Context, id int64) (domain.Incident, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id)
	inc, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Incident{}, domain.ErrNotFound
		}
		return domain.Incident{}, fmt.Errorf("failed to load incident: %w", err)
	}
	return inc, nil
}

func (a *Adapter) Update(ctx context.Context, inc domain.Incident) error {
	res, err := a.db.ExecContext(ctx, `
		UPDATE incidents
		SET status = ?, urgency = ?, updated_at = ?
		WHERE id = ?
	`, string(inc.Status), string(inc.Urgency), inc.UpdatedAt, inc.ID)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(s scanner) (domain.Incident, error) {
	var (
		inc             domain.Incident
		description     sql.NullString
		urgency, status string
	)
	if err := s.Scan(
		&inc.ID,
		&inc.UserID,
		&inc.Type,
		&inc.Title,
		&description,
		&inc.Latitude,
		&inc.Longitude,
		&urgency,
		&status,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	); err != nil {
		return domain.Incident{}, err
	}
	inc.Description = description.String
	inc.Urgency = domain.Urgency(urgency)
	inc.Status = domain.IncidentStatus(status)
	return inc, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS incidents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		urgency TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents (created_at);
	`
	_, err := a.db.Exec(query)
	return err
}
