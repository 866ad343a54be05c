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

func (s *store) CreateTemplate(ctx context.Context, template *RoutineTemplate) error {
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if template.Steps == nil {
		template.Steps = []RoutineStep{}
	}

	stepsJSON, err := json.Marshal(template.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal template steps: %w", err)
	}

	_, err = s.Exec.ExecContext(ctx, `
		INSERT INTO routine_templates
		(id, organization_id, stable_id, name, steps, requires_notes_read, allow_skip_steps, points, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		template.ID,
		template.OrganizationID,
		template.StableID,
		template.Name,
		stepsJSON,
		template.RequiresNotesRead,
		template.AllowSkipSteps,
		template.Points,
		template.IsActive,
		template.CreatedAt,
		template.UpdatedAt,
	)
	return err
}

func (s *store) GetTemplate(ctx context.Context, id string) (*RoutineTemplate, error) {
	var template RoutineTemplate
	var stepsJSON []byte
	err := s.Exec.QueryRowContext(ctx, `
		SELECT id, organization_id, stable_id, name, steps, requires_notes_read, allow_skip_steps, points, is_active, created_at, updated_at
		FROM routine_templates
		WHERE id = $1`,
		id,
	).Scan(
		&template.ID,
		&template.OrganizationID,
		&template.StableID,
		&template.Name,
		&stepsJSON,
		&template.RequiresNotesRead,
		&template.AllowSkipSteps,
		&template.Points,
		&template.IsActive,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, libdb.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(stepsJSON, &template.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template steps: %w", err)
	}
	return &template, nil
}

func (s *store) UpdateTemplate(ctx context.Context, template *RoutineTemplate) error {
	template.UpdatedAt = time.Now().UTC()
	if template.Steps == nil {
		template.Steps = []RoutineStep{}
	}

	stepsJSON, err := json.Marshal(template.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal template steps for update: %w", err)
	}

	result, err := s.Exec.ExecContext(ctx, `
		UPDATE routine_templates
		SET name = $2,
			steps = $3,
			requires_notes_read = $4,
			allow_skip_steps = $5,
			points = $6,
			is_active = $7,
			updated_at = $8
		WHERE id = $1`,
		template.ID,
		template.Name,
		stepsJSON,
		template.RequiresNotesRead,
		template.AllowSkipSteps,
		template.Points,
		template.IsActive,
		template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *store) DeleteTemplate(ctx context.Context, id string) error {
	result, err := s.Exec.ExecContext(ctx, `
		DELETE FROM routine_templates
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *store) ListTemplates(ctx context.Context, stableID string, createdAtCursor *time.Time, limit int) ([]*RoutineTemplate, error) {
	return s.listTemplatesBy(ctx, "stable_id", stableID, createdAtCursor, limit)
}

func (s *store) ListTemplatesByOrganization(ctx context.Context, organizationID string, createdAtCursor *time.Time, limit int) ([]*RoutineTemplate, error) {
	return s.listTemplatesBy(ctx, "organization_id", organizationID, createdAtCursor, limit)
}

func (s *store) listTemplatesBy(ctx context.Context, column, value string, createdAtCursor *time.Time, limit int) ([]*RoutineTemplate, error) {
	if limit <= 0 {
		limit = MAXLIMIT
	}
	if limit > MAXLIMIT {
		return nil, ErrLimitParamExceeded
	}
	cursor := time.Now().UTC()
	if createdAtCursor != nil {
		cursor = *createdAtCursor
	}

	rows, err := s.Exec.QueryContext(ctx, fmt.Sprintf(`
        SELECT id, organization_id, stable_id, name, steps, requires_notes_read, allow_skip_steps, points, is_active, created_at, updated_at
        FROM routine_templates
        WHERE %s = $1 AND created_at < $2
        ORDER BY created_at DESC, id DESC
        LIMIT $3;
    `, column), value, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	templates := []*RoutineTemplate{}
	for rows.Next() {
		var template RoutineTemplate
		var stepsJSON []byte
		if err := rows.Scan(
			&template.ID,
			&template.OrganizationID,
			&template.StableID,
			&template.Name,
			&stepsJSON,
			&template.RequiresNotesRead,
			&template.AllowSkipSteps,
			&template.Points,
			&template.IsActive,
			&template.CreatedAt,
			&template.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		if err := json.Unmarshal(stepsJSON, &template.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template steps from list: %w", err)
		}
		templates = append(templates, &template)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return templates, nil
}

func (s *store) HasInstancesForTemplate(ctx context.Context, templateID string) (bool, error) {
	var exists bool
	err := s.Exec.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM routine_instances WHERE template_id = $1)`,
		templateID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check template instances: %w", err)
	}
	return exists, nil
}

func (s *store) EstimateTemplateCount(ctx context.Context) (int64, error) {
	return s.estimateCount(ctx, "routine_templates")
}
