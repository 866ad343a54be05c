package stabletypes_test

import (
	"fmt"
	"testing"
	"time"

	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func defaultSteps() []stabletypes.RoutineStep {
	return []stabletypes.RoutineStep{
		{
			ID:           uuid.NewString(),
			Name:         "Morning feeding",
			Order:        1,
			Category:     "feeding",
			HorseContext: stabletypes.HorseContextAll,
			ShowFeeding:  true,
		},
		{
			ID:           uuid.NewString(),
			Name:         "Turnout",
			Order:        2,
			Category:     "turnout",
			HorseContext: stabletypes.HorseContextGroups,
			Filter:       &stabletypes.HorseFilter{GroupIDs: []string{"g1"}},
		},
	}
}

func TestUnit_Template_CreatesAndFetchesSteps(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	template := &stabletypes.RoutineTemplate{
		OrganizationID:    "org-1",
		StableID:          "stable-1",
		Name:              "Morning routine",
		Steps:             defaultSteps(),
		RequiresNotesRead: true,
		AllowSkipSteps:    true,
		Points:            10,
		IsActive:          true,
	}

	err := s.CreateTemplate(ctx, template)
	require.NoError(t, err)
	require.NotEmpty(t, template.ID)

	got, err := s.GetTemplate(ctx, template.ID)
	require.NoError(t, err)
	require.Equal(t, template.Name, got.Name)
	require.Len(t, got.Steps, 2)
	require.Equal(t, "Morning feeding", got.Steps[0].Name)
	require.Equal(t, stabletypes.HorseContextGroups, got.Steps[1].HorseContext)
	require.NotNil(t, got.Steps[1].Filter)
	require.Equal(t, []string{"g1"}, got.Steps[1].Filter.GroupIDs)
	require.True(t, got.RequiresNotesRead)
	require.WithinDuration(t, template.CreatedAt, got.CreatedAt, time.Second)
}

func TestUnit_Template_NilStepsStoredAsEmptyList(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	template := &stabletypes.RoutineTemplate{
		StableID: "stable-1",
		Name:     "Empty",
		IsActive: true,
	}
	require.NoError(t, s.CreateTemplate(ctx, template))

	got, err := s.GetTemplate(ctx, template.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Steps)
	require.Empty(t, got.Steps)
}

func TestUnit_Template_UpdatesStepsAndFlags(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	template := &stabletypes.RoutineTemplate{
		StableID: "stable-1",
		Name:     "Initial",
		Steps:    defaultSteps(),
		IsActive: true,
	}
	require.NoError(t, s.CreateTemplate(ctx, template))

	template.Name = "Updated"
	template.Steps = template.Steps[:1]
	template.AllowSkipSteps = true
	require.NoError(t, s.UpdateTemplate(ctx, template))

	got, err := s.GetTemplate(ctx, template.ID)
	require.NoError(t, err)
	require.Equal(t, "Updated", got.Name)
	require.Len(t, got.Steps, 1)
	require.True(t, got.AllowSkipSteps)
	require.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestUnit_Template_DeleteAndNotFound(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	template := &stabletypes.RoutineTemplate{StableID: "stable-1", Name: "Gone"}
	require.NoError(t, s.CreateTemplate(ctx, template))

	require.NoError(t, s.DeleteTemplate(ctx, template.ID))
	_, err := s.GetTemplate(ctx, template.ID)
	require.ErrorIs(t, err, libdb.ErrNotFound)

	err = s.UpdateTemplate(ctx, template)
	require.ErrorIs(t, err, libdb.ErrNotFound)
}

func TestUnit_Template_ListPaginatesWithCursor(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	for i := 0; i < 5; i++ {
		template := &stabletypes.RoutineTemplate{
			StableID: "stable-1",
			Name:     fmt.Sprintf("routine-%d", i),
			IsActive: true,
		}
		require.NoError(t, s.CreateTemplate(ctx, template))
		time.Sleep(5 * time.Millisecond)
	}

	page, err := s.ListTemplates(ctx, "stable-1", nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, "routine-4", page[0].Name)

	cursor := page[len(page)-1].CreatedAt
	rest, err := s.ListTemplates(ctx, "stable-1", &cursor, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Equal(t, "routine-1", rest[0].Name)

	_, err = s.ListTemplates(ctx, "stable-1", nil, stabletypes.MAXLIMIT+1)
	require.ErrorIs(t, err, stabletypes.ErrLimitParamExceeded)
}

func TestUnit_Template_ListByOrganizationSpansStables(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	for i, stableID := range []string{"stable-1", "stable-2", "stable-1"} {
		template := &stabletypes.RoutineTemplate{
			OrganizationID: "org-1",
			StableID:       stableID,
			Name:           fmt.Sprintf("routine-%d", i),
			IsActive:       true,
		}
		require.NoError(t, s.CreateTemplate(ctx, template))
		time.Sleep(5 * time.Millisecond)
	}
	other := &stabletypes.RoutineTemplate{OrganizationID: "org-2", StableID: "stable-9", Name: "elsewhere"}
	require.NoError(t, s.CreateTemplate(ctx, other))

	all, err := s.ListTemplatesByOrganization(ctx, "org-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "routine-2", all[0].Name)

	cursor := all[0].CreatedAt
	rest, err := s.ListTemplatesByOrganization(ctx, "org-1", &cursor, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)

	byStable, err := s.ListTemplates(ctx, "stable-2", nil, 10)
	require.NoError(t, err)
	require.Len(t, byStable, 1)
	require.Equal(t, "routine-1", byStable[0].Name)
}

func TestUnit_Template_HasInstancesForTemplate(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	template := &stabletypes.RoutineTemplate{StableID: "stable-1", Name: "Referenced", Steps: defaultSteps()}
	require.NoError(t, s.CreateTemplate(ctx, template))

	has, err := s.HasInstancesForTemplate(ctx, template.ID)
	require.NoError(t, err)
	require.False(t, has)

	instance := &stabletypes.RoutineInstance{
		TemplateID:   template.ID,
		TemplateName: template.Name,
		StableID:     "stable-1",
		Steps:        template.Steps,
		ScheduledAt:  time.Now().UTC(),
		Status:       stabletypes.InstanceScheduled,
	}
	require.NoError(t, s.CreateInstance(ctx, instance))

	has, err = s.HasInstancesForTemplate(ctx, template.ID)
	require.NoError(t, err)
	require.True(t, has)
}
