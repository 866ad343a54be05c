package stabletypes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	libdb "github.com/hoofbeat/stableops/libdbexec"
)

func (s *store) CreateHorse(ctx context.Context, horse *Horse) error {
	now := time.Now().UTC()
	horse.CreatedAt = now
	horse.UpdatedAt = now
	if horse.ID == "" {
		horse.ID = uuid.NewString()
	}
	_, err := s.Exec.ExecContext(ctx, `
		INSERT INTO horses
		(id, stable_id, name, horse_group_id, location_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		horse.ID,
		horse.StableID,
		horse.Name,
		horse.HorseGroupID,
		horse.LocationID,
		horse.IsActive,
		horse.CreatedAt,
		horse.UpdatedAt,
	)
	return err
}

func (s *store) GetHorse(ctx context.Context, id string) (*Horse, error) {
	var horse Horse
	err := s.Exec.QueryRowContext(ctx, `
		SELECT id, stable_id, name, horse_group_id, location_id, is_active, created_at, updated_at
		FROM horses
		WHERE id = $1`,
		id,
	).Scan(
		&horse.ID,
		&horse.StableID,
		&horse.Name,
		&horse.HorseGroupID,
		&horse.LocationID,
		&horse.IsActive,
		&horse.CreatedAt,
		&horse.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, libdb.ErrNotFound
	}
	return &horse, err
}

func (s *store) UpdateHorse(ctx context.Context, horse *Horse) error {
	horse.UpdatedAt = time.Now().UTC()

	result, err := s.Exec.ExecContext(ctx, `
		UPDATE horses
		SET stable_id = $2,
			name = $3,
			horse_group_id = $4,
			location_id = $5,
			is_active = $6,
			updated_at = $7
		WHERE id = $1`,
		horse.ID,
		horse.StableID,
		horse.Name,
		horse.HorseGroupID,
		horse.LocationID,
		horse.IsActive,
		horse.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update horse: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *store) DeleteHorse(ctx context.Context, id string) error {
	result, err := s.Exec.ExecContext(ctx, `
		DELETE FROM horses
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete horse: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *store) ListHorsesForStable(ctx context.Context, stableID string) ([]*Horse, error) {
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT id, stable_id, name, horse_group_id, location_id, is_active, created_at, updated_at
        FROM horses
        WHERE stable_id = $1 AND is_active = TRUE
        ORDER BY name ASC, id ASC;
    `, stableID)
	if err != nil {
		return nil, fmt.Errorf("failed to query horses: %w", err)
	}
	defer rows.Close()
	return scanHorses(rows)
}

func (s *store) ListHorsesByIDs(ctx context.Context, ids []string) ([]*Horse, error) {
	if len(ids) == 0 {
		return []*Horse{}, nil
	}
	placeholders, args := placeholderList(ids, 1)
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT id, stable_id, name, horse_group_id, location_id, is_active, created_at, updated_at
        FROM horses
        WHERE id IN (`+placeholders+`)
        ORDER BY name ASC, id ASC;
    `, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query horses by ids: %w", err)
	}
	defer rows.Close()
	return scanHorses(rows)
}

func (s *store) ListHorsesByGroups(ctx context.Context, stableID string, groupIDs []string) ([]*Horse, error) {
	if len(groupIDs) == 0 {
		return []*Horse{}, nil
	}
	placeholders, args := placeholderList(groupIDs, 2)
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT id, stable_id, name, horse_group_id, location_id, is_active, created_at, updated_at
        FROM horses
        WHERE stable_id = $1 AND is_active = TRUE AND horse_group_id IN (`+placeholders+`)
        ORDER BY name ASC, id ASC;
    `, append([]any{stableID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query horses by groups: %w", err)
	}
	defer rows.Close()
	return scanHorses(rows)
}

// placeholderList renders $start..$start+n-1 for an IN clause, which both
// postgres and sqlite accept with positional args.
func placeholderList(values []string, start int) (string, []any) {
	placeholders := make([]byte, 0, len(values)*4)
	args := make([]any, 0, len(values))
	for i, v := range values {
		if i > 0 {
			placeholders = append(placeholders, ", "...)
		}
		placeholders = append(placeholders, fmt.Sprintf("$%d", start+i)...)
		args = append(args, v)
	}
	return string(placeholders), args
}

func scanHorses(rows *sql.Rows) ([]*Horse, error) {
	horses := []*Horse{}
	for rows.Next() {
		var horse Horse
		if err := rows.Scan(
			&horse.ID,
			&horse.StableID,
			&horse.Name,
			&horse.HorseGroupID,
			&horse.LocationID,
			&horse.IsActive,
			&horse.CreatedAt,
			&horse.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan horse: %w", err)
		}
		horses = append(horses, &horse)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return horses, nil
}

func (s *store) CreateHorseGroup(ctx context.Context, group *HorseGroup) error {
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	_, err := s.Exec.ExecContext(ctx, `
		INSERT INTO horse_groups
		(id, stable_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		group.ID,
		group.StableID,
		group.Name,
		group.CreatedAt,
		group.UpdatedAt,
	)
	return err
}

func (s *store) GetHorseGroup(ctx context.Context, id string) (*HorseGroup, error) {
	var group HorseGroup
	err := s.Exec.QueryRowContext(ctx, `
		SELECT id, stable_id, name, created_at, updated_at
		FROM horse_groups
		WHERE id = $1`,
		id,
	).Scan(
		&group.ID,
		&group.StableID,
		&group.Name,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, libdb.ErrNotFound
	}
	return &group, err
}

func (s *store) DeleteHorseGroup(ctx context.Context, id string) error {
	result, err := s.Exec.ExecContext(ctx, `
		DELETE FROM horse_groups
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete horse group: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *store) ListHorseGroups(ctx context.Context, stableID string) ([]*HorseGroup, error) {
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT id, stable_id, name, created_at, updated_at
        FROM horse_groups
        WHERE stable_id = $1
        ORDER BY name ASC, id ASC;
    `, stableID)
	if err != nil {
		return nil, fmt.Errorf("failed to query horse groups: %w", err)
	}
	defer rows.Close()

	groups := []*HorseGroup{}
	for rows.Next() {
		var group HorseGroup
		if err := rows.Scan(
			&group.ID,
			&group.StableID,
			&group.Name,
			&group.CreatedAt,
			&group.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan horse group: %w", err)
		}
		groups = append(groups, &group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return groups, nil
}

func checkRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return libdb.ErrNotFound
	}
	return nil
}

func (s *store) EstimateHorseCount(ctx context.Context) (int64, error) {
	return s.estimateCount(ctx, "horses")
}
