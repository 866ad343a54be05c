package stabletypes

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/stretchr/testify/require"
)

const MAXLIMIT = 1000

var ErrLimitParamExceeded = fmt.Errorf("limit exceeds maximum allowed value")

type Store interface {
	CreateHorse(ctx context.Context, horse *Horse) error
	GetHorse(ctx context.Context, id string) (*Horse, error)
	UpdateHorse(ctx context.Context, horse *Horse) error
	DeleteHorse(ctx context.Context, id string) error
	ListHorsesForStable(ctx context.Context, stableID string) ([]*Horse, error)
	ListHorsesByIDs(ctx context.Context, ids []string) ([]*Horse, error)
	ListHorsesByGroups(ctx context.Context, stableID string, groupIDs []string) ([]*Horse, error)
	EstimateHorseCount(ctx context.Context) (int64, error)

	CreateHorseGroup(ctx context.Context, group *HorseGroup) error
	GetHorseGroup(ctx context.Context, id string) (*HorseGroup, error)
	DeleteHorseGroup(ctx context.Context, id string) error
	ListHorseGroups(ctx context.Context, stableID string) ([]*HorseGroup, error)

	CreateTemplate(ctx context.Context, template *RoutineTemplate) error
	GetTemplate(ctx context.Context, id string) (*RoutineTemplate, error)
	UpdateTemplate(ctx context.Context, template *RoutineTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
	ListTemplates(ctx context.Context, stableID string, createdAtCursor *time.Time, limit int) ([]*RoutineTemplate, error)
	ListTemplatesByOrganization(ctx context.Context, organizationID string, createdAtCursor *time.Time, limit int) ([]*RoutineTemplate, error)
	HasInstancesForTemplate(ctx context.Context, templateID string) (bool, error)
	EstimateTemplateCount(ctx context.Context) (int64, error)

	CreateInstance(ctx context.Context, instance *RoutineInstance) error
	GetInstance(ctx context.Context, id string) (*RoutineInstance, error)
	UpdateInstance(ctx context.Context, instance *RoutineInstance) error
	DeleteInstance(ctx context.Context, id string) error
	ListInstances(ctx context.Context, stableID string, date *time.Time, limit int) ([]*RoutineInstance, error)
	ListScheduledInstancesBefore(ctx context.Context, cutoff time.Time) ([]*RoutineInstance, error)
	EstimateInstanceCount(ctx context.Context) (int64, error)

	SetDailyNotes(ctx context.Context, notes *DailyNotes) error
	GetDailyNotes(ctx context.Context, stableID string, date string) (*DailyNotes, error)

	EnforceMaxRowCount(ctx context.Context, count int64) error
}

//go:embed schema.sql
var Schema string

//go:embed schema_sqlite.sql
var SchemaSQLite string

type store struct {
	libdb.Exec
}

func New(exec libdb.Exec) Store {
	if exec == nil {
		panic("SERVER BUG: store.New called with nil exec")
	}
	return &store{exec}
}

const MaxRowsCount = 100000

// sqliteCountableTables is the whitelist for the SELECT COUNT(*) fallback
// when estimate_row_count is not available (SQLite).
var sqliteCountableTables = map[string]bool{
	"horses": true, "horse_groups": true,
	"routine_templates": true, "routine_instances": true, "daily_notes": true,
}

func (s *store) estimateCount(ctx context.Context, table string) (int64, error) {
	var count int64
	err := s.Exec.QueryRowContext(ctx, `
		SELECT estimate_row_count($1)
	`, table).Scan(&count)
	if err == nil {
		return count, nil
	}
	// SQLite has no estimate_row_count; fall back to COUNT(*) for whitelisted tables only.
	if !strings.Contains(err.Error(), "no such function") {
		return 0, err
	}
	if !sqliteCountableTables[table] {
		return 0, err
	}
	err = s.Exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
	return count, err
}

func (s *store) EnforceMaxRowCount(ctx context.Context, count int64) error {
	if count >= MaxRowsCount {
		return fmt.Errorf("row limit reached (max %d)", MaxRowsCount)
	}
	return nil
}

func quiet() func() {
	null, _ := os.Open(os.DevNull)
	sout := os.Stdout
	serr := os.Stderr
	os.Stdout = null
	os.Stderr = null
	log.SetOutput(null)
	return func() {
		defer null.Close()
		os.Stdout = sout
		os.Stderr = serr
		log.SetOutput(os.Stderr)
	}
}

// SetupStore initializes a test Postgres instance and returns the store.
func SetupStore(t *testing.T) (context.Context, Store) {
	t.Helper()

	// Silence logs
	unquiet := quiet()
	t.Cleanup(unquiet)

	ctx := context.TODO()
	connStr, _, cleanup, err := libdb.SetupLocalInstance(ctx, "test", "test", "test")
	require.NoError(t, err)

	dbManager, err := libdb.NewPostgresDBManager(ctx, connStr, Schema)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, dbManager.Close())
		cleanup()
	})

	s := New(dbManager.WithoutTransaction())
	return ctx, s
}
