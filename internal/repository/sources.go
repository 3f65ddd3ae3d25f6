package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fleet-tracker/internal/models"

	"go.uber.org/zap"
)

// SourceRepository reads the four tracking sources from Postgres. It is used as
// a polling Fetcher when the sources live in a relational store.
//
// last_update, created_at and noted_at must be timestamptz columns: lib/pq
// returns a plain timestamp as UTC, which shifts it off its local calendar day.
type SourceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *sql.DB, logger *zap.Logger) *SourceRepository {
	return &SourceRepository{
		db:     db,
		logger: logger,
	}
}

// Fetch reads the complete current set of source.
func (r *SourceRepository) Fetch(ctx context.Context, source models.Source) (models.Snapshot, error) {
	snap := models.EmptySnapshot(source)
	var err error
	switch source {
	case models.SourcePositions:
		snap.Positions, err = r.GetPositions(ctx)
	case models.SourceUnits:
		snap.Units, err = r.GetUnits(ctx)
	case models.SourcePersonnel:
		snap.Personnel, err = r.GetPersonnel(ctx)
	case models.SourceNotes:
		snap.Notes, err = r.GetActivityNotes(ctx)
	default:
		_, err = models.ParseSource(string(source))
	}
	if err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// GetPositions last known position of every unit.
// Null coordinates read as 0; a null created_at falls back to last_update.
func (r *SourceRepository) GetPositions(ctx context.Context) ([]models.PositionReport, error) {
	query := `
		SELECT
			unit_id,
			COALESCE(route, '') AS route,
			COALESCE(status, '') AS status,
			latitude,
			longitude,
			last_update,
			created_at
		FROM unit_positions
		ORDER BY last_update ASC, unit_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unit positions: %w", err)
	}
	defer rows.Close()

	positions := make([]models.PositionReport, 0)
	for rows.Next() {
		var (
			p                     models.PositionReport
			lat, lon              sql.NullFloat64
			lastUpdate, createdAt sql.NullTime
		)
		if err := rows.Scan(&p.UnitID, &p.Route, &p.Status, &lat, &lon, &lastUpdate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan unit position: %w", err)
		}
		p.Latitude = lat.Float64
		p.Longitude = lon.Float64
		if lastUpdate.Valid {
			p.LastUpdate = lastUpdate.Time
		}
		p.CreatedAt = p.LastUpdate
		if createdAt.Valid {
			p.CreatedAt = createdAt.Time
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unit positions: %w", err)
	}
	return positions, nil
}

// GetUnits every unit record. A blank holder is returned as nil.
func (r *SourceRepository) GetUnits(ctx context.Context) ([]models.UnitRecord, error) {
	query := `
		SELECT
			unit_id,
			holder_id,
			COALESCE(vehicle_id, '') AS vehicle_id,
			COALESCE(status, '') AS status
		FROM units
		ORDER BY unit_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	units := make([]models.UnitRecord, 0)
	for rows.Next() {
		var (
			u      models.UnitRecord
			holder sql.NullString
		)
		if err := rows.Scan(&u.UnitID, &holder, &u.VehicleID, &u.Status); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		if holder.Valid && strings.TrimSpace(holder.String) != "" {
			h := strings.TrimSpace(holder.String)
			u.HolderID = &h
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate units: %w", err)
	}
	return units, nil
}

// GetPersonnel every personnel record.
func (r *SourceRepository) GetPersonnel(ctx context.Context) ([]models.PersonnelRecord, error) {
	query := `
		SELECT
			personnel_id,
			COALESCE(first_name, '') AS first_name,
			COALESCE(middle_name, '') AS middle_name,
			COALESCE(last_name, '') AS last_name
		FROM personnel
		ORDER BY personnel_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query personnel: %w", err)
	}
	defer rows.Close()

	personnel := make([]models.PersonnelRecord, 0)
	for rows.Next() {
		var p models.PersonnelRecord
		if err := rows.Scan(&p.PersonnelID, &p.FirstName, &p.MiddleName, &p.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan personnel: %w", err)
		}
		personnel = append(personnel, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate personnel: %w", err)
	}
	return personnel, nil
}

// GetActivityNotes every activity note, oldest first.
func (r *SourceRepository) GetActivityNotes(ctx context.Context) ([]models.ActivityNote, error) {
	query := `
		SELECT
			personnel_id,
			COALESCE(note, '') AS note,
			noted_at
		FROM activity_notes
		ORDER BY noted_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity notes: %w", err)
	}
	defer rows.Close()

	notes := make([]models.ActivityNote, 0)
	for rows.Next() {
		var (
			n       models.ActivityNote
			notedAt sql.NullTime
		)
		if err := rows.Scan(&n.PersonnelID, &n.Note, &notedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity note: %w", err)
		}
		if notedAt.Valid {
			n.NotedAt = notedAt.Time
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		r.logger.Warn("Activity notes iteration stopped early", zap.Error(err))
		return nil, fmt.Errorf("failed to iterate activity notes: %w", err)
	}
	return notes, nil
}
