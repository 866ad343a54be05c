// services.go builds the service set: remote over the SDK, or local SQLite.
package stablecli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hoofbeat/stableops/dailynotesservice"
	"github.com/hoofbeat/stableops/horseservice"
	libbus "github.com/hoofbeat/stableops/libbus"
	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/routineservice"
	"github.com/hoofbeat/stableops/stablesdk"
	"github.com/hoofbeat/stableops/stabletypes"
)

// services bundles the three domain services the commands drive. With a
// server configured they are HTTP clients; without one they run in
// process against a local SQLite database.
type services struct {
	Routine routineservice.Service
	Horses  horseservice.Service
	Notes   dailynotesservice.Service

	cleanup func()
}

func (s *services) Close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func buildServices(ctx context.Context, cfg Config) (*services, error) {
	if cfg.Server != "" {
		client, err := stablesdk.NewClient(ctx, stablesdk.Config{
			BaseURL: cfg.Server,
			Token:   cfg.Token,
		}, nil)
		if err != nil {
			return nil, err
		}
		return &services{
			Routine: client.RoutineService,
			Horses:  client.HorseService,
			Notes:   client.DailyNotesService,
		}, nil
	}

	dbPath, err := filepath.Abs(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, err
	}
	db, err := libdb.NewSQLiteDBManager(ctx, dbPath, stabletypes.SchemaSQLite)
	if err != nil {
		return nil, err
	}
	bus := libbus.NewInMem()

	return &services{
		Routine: routineservice.New(db, bus),
		Horses:  horseservice.New(db, nil),
		Notes:   dailynotesservice.New(db),
		cleanup: func() {
			if err := bus.Close(); err != nil {
				slog.Debug("closing bus failed", "error", err)
			}
			if err := db.Close(); err != nil {
				slog.Debug("closing database failed", "error", err)
			}
		},
	}, nil
}
