package repository

import (
	"context"

	"weaponwatch/internal/dto"
	"weaponwatch/internal/model"
)

// IncidentRepository defines the interface for incident persistence and queries.
type IncidentRepository interface {
	// Create operations
	Save(ctx context.Context, inc model.Incident) error

	// Read operations
	MostRecent(ctx context.Context, label, sourceID string) (*model.Incident, error)
	Query(ctx context.Context, filter dto.IncidentFilter) ([]model.Incident, error)
	CountAll(ctx context.Context) (int, error)

	// Aggregations
	AggregateByPeriod(ctx context.Context, granularity dto.Granularity) ([]dto.PeriodCount, error)
	AggregateByField(ctx context.Context, field dto.Field) ([]dto.CategoryCount, error)
}

// DestinationRepository defines the interface for the alert destination set.
type DestinationRepository interface {
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Add(ctx context.Context, chatID string) error
	Remove(ctx context.Context, chatID string) (bool, error)
	RemoveBatch(ctx context.Context, chatIDs []string) error
}
