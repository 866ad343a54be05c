package careflow

import (
	"context"
	"log/slog"
	"slices"

	"github.com/hoofbeat/stableops/stabletypes"
)

// RosterSource supplies the horses a step can target. Satisfied by the
// horse service directly and by its HTTP client.
type RosterSource interface {
	ListForStable(ctx context.Context, stableID string) ([]*stabletypes.Horse, error)
	ListByIDs(ctx context.Context, ids []string) ([]*stabletypes.Horse, error)
}

// Resolver turns a step's horse-context rule into the concrete horse
// list the step applies to. The stable roster is loaded lazily and
// cached for the lifetime of the resolver, which is one instance
// execution. Roster failures degrade to an empty list so a flaky
// roster call never aborts a routine.
type Resolver struct {
	source RosterSource

	roster []*stabletypes.Horse
	loaded bool
}

func NewResolver(source RosterSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the horses the step applies to, in roster order.
func (r *Resolver) Resolve(ctx context.Context, step *stabletypes.RoutineStep, stableID string) []*stabletypes.Horse {
	switch step.HorseContext {
	case stabletypes.HorseContextNone:
		return []*stabletypes.Horse{}
	case stabletypes.HorseContextAll:
		return applyExclusions(r.stableRoster(ctx, stableID), step.Filter)
	case stabletypes.HorseContextGroups:
		if step.Filter == nil || len(step.Filter.GroupIDs) == 0 {
			return []*stabletypes.Horse{}
		}
		matched := []*stabletypes.Horse{}
		for _, horse := range r.stableRoster(ctx, stableID) {
			if slices.Contains(step.Filter.GroupIDs, horse.HorseGroupID) {
				matched = append(matched, horse)
			}
		}
		return applyExclusions(matched, step.Filter)
	case stabletypes.HorseContextSpecific:
		if step.Filter == nil || len(step.Filter.HorseIDs) == 0 {
			return []*stabletypes.Horse{}
		}
		horses, err := r.source.ListByIDs(ctx, step.Filter.HorseIDs)
		if err != nil {
			slog.Debug("horse lookup failed, treating step as horseless", "step", step.ID, "error", err)
			return []*stabletypes.Horse{}
		}
		return applyExclusions(horses, step.Filter)
	}
	return []*stabletypes.Horse{}
}

func (r *Resolver) stableRoster(ctx context.Context, stableID string) []*stabletypes.Horse {
	if r.loaded {
		return r.roster
	}
	horses, err := r.source.ListForStable(ctx, stableID)
	if err != nil {
		slog.Debug("roster load failed, treating step as horseless", "stable", stableID, "error", err)
		return []*stabletypes.Horse{}
	}
	r.roster = horses
	r.loaded = true
	return r.roster
}

func applyExclusions(horses []*stabletypes.Horse, filter *stabletypes.HorseFilter) []*stabletypes.Horse {
	if filter == nil || len(filter.ExcludeHorseIDs) == 0 {
		return horses
	}
	kept := []*stabletypes.Horse{}
	for _, horse := range horses {
		if slices.Contains(filter.ExcludeHorseIDs, horse.ID) {
			continue
		}
		kept = append(kept, horse)
	}
	return kept
}
