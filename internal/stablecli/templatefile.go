// templatefile.go parses routine template YAML files for apply.
package stablecli

import (
	"fmt"
	"os"
	"strings"

	"github.com/hoofbeat/stableops/stabletypes"
	"gopkg.in/yaml.v3"
)

// stepEntry is one step in a template file.
type stepEntry struct {
	ID                      string   `yaml:"id,omitempty"`
	Name                    string   `yaml:"name"`
	Order                   int      `yaml:"order"`
	Category                string   `yaml:"category,omitempty"`
	HorseContext            string   `yaml:"horse_context"`
	HorseIDs                []string `yaml:"horse_ids,omitempty"`
	GroupIDs                []string `yaml:"group_ids,omitempty"`
	LocationIDs             []string `yaml:"location_ids,omitempty"`
	ExcludeHorseIDs         []string `yaml:"exclude_horse_ids,omitempty"`
	ShowFeeding             bool     `yaml:"show_feeding,omitempty"`
	ShowMedication          bool     `yaml:"show_medication,omitempty"`
	ShowBlanketStatus       bool     `yaml:"show_blanket_status,omitempty"`
	ShowSpecialInstructions bool     `yaml:"show_special_instructions,omitempty"`
	RequiresConfirmation    bool     `yaml:"requires_confirmation,omitempty"`
	AllowPartialCompletion  bool     `yaml:"allow_partial_completion,omitempty"`
	EstimatedMinutes        int      `yaml:"estimated_minutes,omitempty"`
}

// templateFile is the on-disk shape of a routine template.
type templateFile struct {
	ID                string      `yaml:"id,omitempty"`
	OrganizationID    string      `yaml:"organization_id,omitempty"`
	StableID          string      `yaml:"stable_id,omitempty"`
	Name              string      `yaml:"name"`
	RequiresNotesRead bool        `yaml:"requires_notes_read,omitempty"`
	AllowSkipSteps    bool        `yaml:"allow_skip_steps,omitempty"`
	Points            int         `yaml:"points,omitempty"`
	Steps             []stepEntry `yaml:"steps"`
}

func (f *templateFile) toTemplate(defaultStableID string) (*stabletypes.RoutineTemplate, error) {
	stableID := f.StableID
	if stableID == "" {
		stableID = defaultStableID
	}
	if stableID == "" {
		return nil, fmt.Errorf("template %q: no stable_id in file and no --stable flag", f.Name)
	}

	steps := make([]stabletypes.RoutineStep, 0, len(f.Steps))
	for i, entry := range f.Steps {
		context := stabletypes.HorseContext(strings.ToUpper(strings.TrimSpace(entry.HorseContext)))
		switch context {
		case stabletypes.HorseContextAll, stabletypes.HorseContextSpecific,
			stabletypes.HorseContextGroups, stabletypes.HorseContextNone:
		case "":
			context = stabletypes.HorseContextNone
		default:
			return nil, fmt.Errorf("template %q step %d: unknown horse_context %q", f.Name, i+1, entry.HorseContext)
		}

		order := entry.Order
		if order == 0 {
			order = i + 1
		}

		step := stabletypes.RoutineStep{
			ID:                      entry.ID,
			Name:                    entry.Name,
			Order:                   order,
			Category:                entry.Category,
			HorseContext:            context,
			ShowFeeding:             entry.ShowFeeding,
			ShowMedication:          entry.ShowMedication,
			ShowBlanketStatus:       entry.ShowBlanketStatus,
			ShowSpecialInstructions: entry.ShowSpecialInstructions,
			RequiresConfirmation:    entry.RequiresConfirmation,
			AllowPartialCompletion:  entry.AllowPartialCompletion,
			EstimatedMinutes:        entry.EstimatedMinutes,
		}
		if len(entry.HorseIDs)+len(entry.GroupIDs)+len(entry.LocationIDs)+len(entry.ExcludeHorseIDs) > 0 {
			step.Filter = &stabletypes.HorseFilter{
				HorseIDs:        entry.HorseIDs,
				GroupIDs:        entry.GroupIDs,
				LocationIDs:     entry.LocationIDs,
				ExcludeHorseIDs: entry.ExcludeHorseIDs,
			}
		}
		steps = append(steps, step)
	}

	return &stabletypes.RoutineTemplate{
		ID:                f.ID,
		OrganizationID:    f.OrganizationID,
		StableID:          stableID,
		Name:              f.Name,
		Steps:             steps,
		RequiresNotesRead: f.RequiresNotesRead,
		AllowSkipSteps:    f.AllowSkipSteps,
		Points:            f.Points,
		IsActive:          true,
	}, nil
}

// loadTemplateFile reads and converts one template YAML file.
func loadTemplateFile(path, defaultStableID string) (*stabletypes.RoutineTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("%s: template has no name", path)
	}
	return file.toTemplate(defaultStableID)
}
