// Package mysql provides a MySQL-backed implementation of the incident
// repository port, matching the incidents table the mobile clients were
// first built against.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/go-sql-driver/mysql"
)

const incidentColumns = `id, user_id, type, title, description, latitude, longitude, urgency, status, created_at, updated_at`

// Config holds the connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN renders the driver connection string. Timestamps are read back as
// time.Time in UTC.
func (c Config) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// Adapter implements the repository port for MySQL.
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens a pool, verifies it and creates the incidents table when
// it does not exist yet.
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql db: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql db at %s: %w", cfg.Host, err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(ctx); err != nil {
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

// Update writes the mutable fields. MySQL reports zero affected rows when the
// values are unchanged, so a miss is confirmed with a lookup.
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
		if _, err := a.GetByID(ctx, inc.ID); err != nil {
			return err
		}
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

func (a *Adapter) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS incidents (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		type VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		latitude DOUBLE NOT NULL DEFAULT 0,
		longitude DOUBLE NOT NULL DEFAULT 0,
		urgency VARCHAR(16) NOT NULL DEFAULT 'medium',
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_incidents_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`)
	return err
}
