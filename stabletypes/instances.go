package stabletypes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	libdb "github.com/hoofbeat/stableops/libdbexec"
)

const instanceColumns = `id, template_id, template_name, stable_id, steps, scheduled_at,
	assigned_to, assignment_type, status, started_at, completed_at, cancelled_at,
	cancellation_reason, progress, created_at, updated_at`

func (s *store) CreateInstance(ctx context.Context, instance *RoutineInstance) error {
	now := time.Now().UTC()
	instance.CreatedAt = now
	instance.UpdatedAt = now
	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}
	if instance.Steps == nil {
		instance.Steps = []RoutineStep{}
	}

	stepsJSON, err := json.Marshal(instance.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal instance steps: %w", err)
	}
	progressJSON, err := json.Marshal(instance.Progress)
	if err != nil {
		return fmt.Errorf("failed to marshal instance progress: %w", err)
	}

	_, err = s.Exec.ExecContext(ctx, `
		INSERT INTO routine_instances
		(id, template_id, template_name, stable_id, steps, scheduled_at, assigned_to, assignment_type, status, started_at, completed_at, cancelled_at, cancellation_reason, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		instance.ID,
		instance.TemplateID,
		instance.TemplateName,
		instance.StableID,
		stepsJSON,
		instance.ScheduledAt,
		instance.AssignedTo,
		instance.AssignmentType,
		instance.Status,
		instance.StartedAt,
		instance.CompletedAt,
		instance.CancelledAt,
		instance.CancellationReason,
		progressJSON,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	return err
}

func scanInstance(scan func(dest ...any) error) (*RoutineInstance, error) {
	var instance RoutineInstance
	var stepsJSON, progressJSON []byte
	err := scan(
		&instance.ID,
		&instance.TemplateID,
		&instance.TemplateName,
		&instance.StableID,
		&stepsJSON,
		&instance.ScheduledAt,
		&instance.AssignedTo,
		&instance.AssignmentType,
		&instance.Status,
		&instance.StartedAt,
		&instance.CompletedAt,
		&instance.CancelledAt,
		&instance.CancellationReason,
		&progressJSON,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepsJSON, &instance.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance steps: %w", err)
	}
	if err := json.Unmarshal(progressJSON, &instance.Progress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance progress: %w", err)
	}
	return &instance, nil
}

func (s *store) GetInstance(ctx context.Context, id string) (*RoutineInstance, error) {
	row := s.Exec.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM routine_instances
		WHERE id = $1`,
		id,
	)
	instance, err := scanInstance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, libdb.ErrNotFound
	}
	return instance, err
}

func (s *store) UpdateInstance(ctx context.Context, instance *RoutineInstance) error {
	instance.UpdatedAt = time.Now().UTC()

	stepsJSON, err := json.Marshal(instance.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal instance steps for update: %w", err)
	}
	progressJSON, err := json.Marshal(instance.Progress)
	if err != nil {
		return fmt.Errorf("failed to marshal instance progress for update: %w", err)
	}

	result, err := s.Exec.ExecContext(ctx, `
		UPDATE routine_instances
		SET steps = $2,
			scheduled_at = $3,
			assigned_to = $4,
			assignment_type = $5,
			status = $6,
			started_at = $7,
			completed_at = $8,
			cancelled_at = $9,
			cancellation_reason = $10,
			progress = $11,
			updated_at = $12
		WHERE id = $1`,
		instance.ID,
		stepsJSON,
		instance.ScheduledAt,
		instance.AssignedTo,
		instance.AssignmentType,
		instance.Status,
		instance.StartedAt,
		instance.CompletedAt,
		instance.CancelledAt,
		instance.CancellationReason,
		progressJSON,
		instance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *store) DeleteInstance(ctx context.Context, id string) error {
	result, err := s.Exec.ExecContext(ctx, `
		DELETE FROM routine_instances
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *store) ListInstances(ctx context.Context, stableID string, date *time.Time, limit int) ([]*RoutineInstance, error) {
	if limit <= 0 {
		limit = MAXLIMIT
	}
	if limit > MAXLIMIT {
		return nil, ErrLimitParamExceeded
	}

	var rows *sql.Rows
	var err error
	if date != nil {
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24 * time.Hour)
		rows, err = s.Exec.QueryContext(ctx, `
            SELECT `+instanceColumns+`
            FROM routine_instances
            WHERE stable_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
            ORDER BY scheduled_at ASC, id ASC
            LIMIT $4;
        `, stableID, dayStart, dayEnd, limit)
	} else {
		rows, err = s.Exec.QueryContext(ctx, `
            SELECT `+instanceColumns+`
            FROM routine_instances
            WHERE stable_id = $1
            ORDER BY scheduled_at DESC, id DESC
            LIMIT $2;
        `, stableID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows)
}

// ListScheduledInstancesBefore returns still-SCHEDULED instances whose
// scheduled time is older than cutoff, for the missed-instance sweep.
func (s *store) ListScheduledInstancesBefore(ctx context.Context, cutoff time.Time) ([]*RoutineInstance, error) {
	rows, err := s.Exec.QueryContext(ctx, `
        SELECT `+instanceColumns+`
        FROM routine_instances
        WHERE status = $1 AND scheduled_at < $2
        ORDER BY scheduled_at ASC, id ASC
        LIMIT $3;
    `, InstanceScheduled, cutoff, MAXLIMIT)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled instances: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows)
}

func collectInstances(rows *sql.Rows) ([]*RoutineInstance, error) {
	instances := []*RoutineInstance{}
	for rows.Next() {
		instance, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return instances, nil
}

func (s *store) EstimateInstanceCount(ctx context.Context) (int64, error) {
	return s.estimateCount(ctx, "routine_instances")
}
