package ports

import (
	"context"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
)

type IncidentRepository interface {
	List(ctx context.Context) ([]domain.Incident, error)
	Create(ctx context.Context, inc domain.Incident) (int64, error)
	GetByID(ctx context.Context, id int64) (domain.Incident, error)
	Update(ctx context.Context, inc domain.Incident) error
}
