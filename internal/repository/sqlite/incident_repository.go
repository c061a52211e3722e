package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"weaponwatch/internal/dto"
	"weaponwatch/internal/model"
)

// endOfDaySuffix extends a date-only upper bound to the last second of that day.
const endOfDaySuffix = "_23-59-59"

const incidentColumns = `id, timestamp, camera, camera_name, location, label, confidence, image`

// IncidentRepository implements repository.IncidentRepository for SQLite.
type IncidentRepository struct {
	db *DB
}

// NewIncidentRepository creates a new SQLite incident repository.
func NewIncidentRepository(db *DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Save inserts an incident record.
func (r *IncidentRepository) Save(ctx context.Context, inc model.Incident) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO incidents (`+incidentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, inc.ID, inc.Timestamp, inc.SourceID, inc.SourceName, inc.Location, inc.Label, inc.Confidence, inc.Image)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

// MostRecent returns the newest incident for (label, sourceID), or nil when there is none.
func (r *IncidentRepository) MostRecent(ctx context.Context, label, sourceID string) (*model.Incident, error) {
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents WHERE label = ? AND camera = ?
		ORDER BY timestamp DESC LIMIT 1
	`, label, sourceID)

	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get most recent incident: %w", err)
	}
	return &inc, nil
}

// Query returns incidents within the filter bounds, newest first.
func (r *IncidentRepository) Query(ctx context.Context, filter dto.IncidentFilter) ([]model.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
	args := []interface{}{}

	if filter.StartDate != "" {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate)
	}

	if filter.EndDate != "" {
		end := filter.EndDate
		if len(end) == 10 {
			end += endOfDaySuffix
		}
		query += " AND timestamp <= ?"
		args = append(args, end)
	}

	query += " ORDER BY timestamp DESC"

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	incidents := []model.Incident{}
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

// CountAll returns the total number of stored incidents.
func (r *IncidentRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return count, nil
}

// AggregateByPeriod counts incidents per day or month, oldest period first.
func (r *IncidentRepository) AggregateByPeriod(ctx context.Context, granularity dto.Granularity) ([]dto.PeriodCount, error) {
	length, ok := granularity.PrefixLength()
	if !ok {
		return nil, fmt.Errorf("unsupported granularity %q", granularity)
	}

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT substr(timestamp, 1, ?) AS period, COUNT(*)
		FROM incidents
		GROUP BY period
		ORDER BY period
	`, length)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate incidents by period: %w", err)
	}
	defer rows.Close()

	periods := []dto.PeriodCount{}
	for rows.Next() {
		var pc dto.PeriodCount
		if err := rows.Scan(&pc.Period, &pc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		periods = append(periods, pc)
	}
	return periods, rows.Err()
}

// AggregateByField counts incidents per value of a categorical field, largest count first.
func (r *IncidentRepository) AggregateByField(ctx context.Context, field dto.Field) ([]dto.CategoryCount, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("unsupported field %q", field)
	}

	// field is whitelisted above, so it is safe to interpolate as a column name.
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT `+string(field)+`, COUNT(*) AS cnt
		FROM incidents
		GROUP BY `+string(field)+`
		ORDER BY cnt DESC, `+string(field)+`
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate incidents by %s: %w", field, err)
	}
	defer rows.Close()

	categories := []dto.CategoryCount{}
	for rows.Next() {
		var cc dto.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cc)
	}
	return categories, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanIncident(s scanner) (model.Incident, error) {
	var inc model.Incident
	err := s.Scan(&inc.ID, &inc.Timestamp, &inc.SourceID, &inc.SourceName, &inc.Location, &inc.Label, &inc.Confidence, &inc.Image)
	return inc, err
}
