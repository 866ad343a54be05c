// Package horseservice manages the stable roster: horses, horse groups,
// and the cached per-stable roster reads the routine engine resolves
// steps against.
package horseservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoofbeat/stableops/apiframework"
	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/libkvstore"
	"github.com/hoofbeat/stableops/stabletypes"
)

var ErrInvalidHorse = errors.New("invalid horse data")

// rosterCacheTTL bounds staleness of cached rosters. Writes also
// invalidate, the TTL just covers writers elsewhere.
const rosterCacheTTL = 5 * time.Minute

// Service defines the interface for roster management.
type Service interface {
	Create(ctx context.Context, horse *stabletypes.Horse) error
	Get(ctx context.Context, id string) (*stabletypes.Horse, error)
	Update(ctx context.Context, horse *stabletypes.Horse) error
	Delete(ctx context.Context, id string) error
	ListForStable(ctx context.Context, stableID string) ([]*stabletypes.Horse, error)
	ListByIDs(ctx context.Context, ids []string) ([]*stabletypes.Horse, error)
	ListByGroups(ctx context.Context, stableID string, groupIDs []string) ([]*stabletypes.Horse, error)

	CreateGroup(ctx context.Context, group *stabletypes.HorseGroup) error
	GetGroup(ctx context.Context, id string) (*stabletypes.HorseGroup, error)
	DeleteGroup(ctx context.Context, id string) error
	ListGroups(ctx context.Context, stableID string) ([]*stabletypes.HorseGroup, error)
}

type service struct {
	dbInstance libdb.DBManager
	kvManager  libkvstore.KVManager
}

// New creates a new service instance. kvManager may be nil, which
// disables the roster cache.
func New(dbInstance libdb.DBManager, kvManager libkvstore.KVManager) Service {
	return &service{
		dbInstance: dbInstance,
		kvManager:  kvManager,
	}
}

func (s *service) Create(ctx context.Context, horse *stabletypes.Horse) error {
	if err := validate(horse); err != nil {
		return err
	}
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)
	count, err := storeInstance.EstimateHorseCount(ctx)
	if err != nil {
		return err
	}
	if err := storeInstance.EnforceMaxRowCount(ctx, count); err != nil {
		return err
	}
	if err := storeInstance.CreateHorse(ctx, horse); err != nil {
		return err
	}
	s.invalidateRoster(ctx, horse.StableID)
	return nil
}

func (s *service) Get(ctx context.Context, id string) (*stabletypes.Horse, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).GetHorse(ctx, id)
}

func (s *service) Update(ctx context.Context, horse *stabletypes.Horse) error {
	if err := validate(horse); err != nil {
		return err
	}
	tx := s.dbInstance.WithoutTransaction()
	if err := stabletypes.New(tx).UpdateHorse(ctx, horse); err != nil {
		return err
	}
	s.invalidateRoster(ctx, horse.StableID)
	return nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)
	horse, err := storeInstance.GetHorse(ctx, id)
	if err != nil {
		return err
	}
	if err := storeInstance.DeleteHorse(ctx, id); err != nil {
		return err
	}
	s.invalidateRoster(ctx, horse.StableID)
	return nil
}

// ListForStable serves the active roster from the cache when possible.
func (s *service) ListForStable(ctx context.Context, stableID string) ([]*stabletypes.Horse, error) {
	if cached, ok := s.cachedRoster(ctx, stableID); ok {
		return cached, nil
	}

	tx := s.dbInstance.WithoutTransaction()
	horses, err := stabletypes.New(tx).ListHorsesForStable(ctx, stableID)
	if err != nil {
		return nil, err
	}
	s.cacheRoster(ctx, stableID, horses)
	return horses, nil
}

func (s *service) ListByIDs(ctx context.Context, ids []string) ([]*stabletypes.Horse, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).ListHorsesByIDs(ctx, ids)
}

func (s *service) ListByGroups(ctx context.Context, stableID string, groupIDs []string) ([]*stabletypes.Horse, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).ListHorsesByGroups(ctx, stableID, groupIDs)
}

func (s *service) CreateGroup(ctx context.Context, group *stabletypes.HorseGroup) error {
	if group.Name == "" {
		return fmt.Errorf("%w %w: name is required", ErrInvalidHorse, apiframework.ErrUnprocessableEntity)
	}
	if group.StableID == "" {
		return fmt.Errorf("%w %w: stableId is required", ErrInvalidHorse, apiframework.ErrUnprocessableEntity)
	}
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).CreateHorseGroup(ctx, group)
}

func (s *service) GetGroup(ctx context.Context, id string) (*stabletypes.HorseGroup, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).GetHorseGroup(ctx, id)
}

func (s *service) DeleteGroup(ctx context.Context, id string) error {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).DeleteHorseGroup(ctx, id)
}

func (s *service) ListGroups(ctx context.Context, stableID string) ([]*stabletypes.HorseGroup, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).ListHorseGroups(ctx, stableID)
}

func rosterKey(stableID string) string {
	return fmt.Sprintf("roster:%s", stableID)
}

// cachedRoster is best effort. A cache miss and a cache failure look
// the same to the caller.
func (s *service) cachedRoster(ctx context.Context, stableID string) ([]*stabletypes.Horse, bool) {
	if s.kvManager == nil {
		return nil, false
	}
	kv, err := s.kvManager.Executor(ctx)
	if err != nil {
		return nil, false
	}
	raw, err := kv.Get(ctx, rosterKey(stableID))
	if err != nil {
		if !errors.Is(err, libkvstore.ErrNotFound) {
			slog.Debug("roster cache read failed", "stable_id", stableID, "error", err)
		}
		return nil, false
	}
	var horses []*stabletypes.Horse
	if err := json.Unmarshal(raw, &horses); err != nil {
		return nil, false
	}
	return horses, true
}

func (s *service) cacheRoster(ctx context.Context, stableID string, horses []*stabletypes.Horse) {
	if s.kvManager == nil {
		return
	}
	kv, err := s.kvManager.Executor(ctx)
	if err != nil {
		return
	}
	raw, err := json.Marshal(horses)
	if err != nil {
		return
	}
	if err := kv.SetWithTTL(ctx, rosterKey(stableID), raw, rosterCacheTTL); err != nil {
		slog.Debug("roster cache write failed", "stable_id", stableID, "error", err)
	}
}

func (s *service) invalidateRoster(ctx context.Context, stableID string) {
	if s.kvManager == nil {
		return
	}
	kv, err := s.kvManager.Executor(ctx)
	if err != nil {
		return
	}
	if err := kv.Delete(ctx, rosterKey(stableID)); err != nil && !errors.Is(err, libkvstore.ErrNotFound) {
		slog.Debug("roster cache invalidation failed", "stable_id", stableID, "error", err)
	}
}

func validate(horse *stabletypes.Horse) error {
	switch {
	case horse == nil:
		return fmt.Errorf("%w %w: horse is required", ErrInvalidHorse, apiframework.ErrUnprocessableEntity)
	case horse.Name == "":
		return fmt.Errorf("%w %w: name is required", ErrInvalidHorse, apiframework.ErrUnprocessableEntity)
	case horse.StableID == "":
		return fmt.Errorf("%w %w: stableId is required", ErrInvalidHorse, apiframework.ErrUnprocessableEntity)
	}
	return nil
}
