package serverapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/dailynotesservice"
	"github.com/hoofbeat/stableops/horseservice"
	"github.com/hoofbeat/stableops/internal/stableapi"
	libbus "github.com/hoofbeat/stableops/libbus"
	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/libkvstore"
	"github.com/hoofbeat/stableops/libroutine"
	"github.com/hoofbeat/stableops/libtracker"
	"github.com/hoofbeat/stableops/routineservice"
)

// DefaultMissedGrace is how long a SCHEDULED instance may sit past its
// slot before the sweep flips it to MISSED.
const DefaultMissedGrace = 2 * time.Hour

func New(
	ctx context.Context,
	mux *http.ServeMux,
	nodeInstanceID string,
	tenancy string,
	config *Config,
	dbInstance libdb.DBManager,
	pubsub libbus.Messenger,
	kvManager libkvstore.KVManager,
) (func() error, error) {
	cleanup := func() error { return nil }
	stdOuttracker := libtracker.NewLogActivityTracker(slog.Default())
	serveropsChainedTracker := libtracker.ChainedTracker{
		stdOuttracker,
	}
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		apiframework.Error(w, r, apiframework.ErrNotFound, apiframework.ListOperation)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		// OK
	})
	version := apiframework.GetVersion()
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		apiframework.Encode(w, r, http.StatusOK, apiframework.AboutServer{Version: version, NodeInstanceID: nodeInstanceID, Tenancy: tenancy})
	})

	routineSvc := routineservice.New(dbInstance, pubsub)
	routineSvc = routineservice.WithActivityTracker(routineSvc, serveropsChainedTracker)
	stableapi.AddRoutineRoutes(mux, routineSvc)

	horseSvc := horseservice.New(dbInstance, kvManager)
	horseSvc = horseservice.WithActivityTracker(horseSvc, serveropsChainedTracker)
	stableapi.AddHorseRoutes(mux, horseSvc)

	dailyNotesSvc := dailynotesservice.New(dbInstance)
	dailyNotesSvc = dailynotesservice.WithActivityTracker(dailyNotesSvc, serveropsChainedTracker)
	stableapi.AddDailyNotesRoutes(mux, dailyNotesSvc)

	grace := DefaultMissedGrace
	if config.MissedGrace != "" {
		parsed, err := time.ParseDuration(config.MissedGrace)
		if err != nil {
			return cleanup, fmt.Errorf("invalid missed_grace: %w", err)
		}
		grace = parsed
	}

	// Get circuit breaker group instance
	group := libroutine.GetGroup()

	group.StartLoop(
		ctx,
		&libroutine.LoopConfig{
			Key:          "sweepCycle",
			Threshold:    3,
			ResetTimeout: 10 * time.Second,
			Interval:     time.Minute,
			Operation: func(ctx context.Context) error {
				_, err := routineSvc.SweepMissed(ctx, grace)
				return err
			},
		},
	)

	// A bus message forces a sweep outside the regular interval.
	triggerCh := make(chan []byte, 10)
	err := pubsub.Publish(ctx, "sweep_cycle", []byte("trigger"))
	if err != nil {
		log.Fatalf("failed to publish sweep_cycle message: %v", err)
	}
	sub, err := pubsub.Stream(ctx, "sweep_cycle", triggerCh)
	if err != nil {
		log.Fatalf("failed to subscribe to sweep_cycle topic: %v", err)
	}
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-triggerCh:
				if !ok {
					return
				}
				group.ForceUpdate("sweepCycle")
			}
		}
	}()

	return cleanup, nil
}

type Config struct {
	DatabaseURL  string `json:"database_url"`
	Port         string `json:"port"`
	Addr         string `json:"addr"`
	NATSURL      string `json:"nats_url"`
	NATSUser     string `json:"nats_user"`
	NATSPassword string `json:"nats_password"`
	KVAddr       string `json:"kv_addr"`
	KVPassword   string `json:"kv_password"`
	MissedGrace  string `json:"missed_grace"`
	Token        string `json:"token"`
}

func LoadConfig[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("config pointer is nil")
	}
	config := map[string]string{}
	for _, kvPair := range os.Environ() {
		ar := strings.SplitN(kvPair, "=", 2)
		if len(ar) < 2 {
			continue
		}
		key := strings.ToLower(ar[0])
		value := ar[1]
		config[key] = value
	}

	b, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal env vars: %w", err)
	}
	err = json.Unmarshal(b, cfg)
	if err != nil {
		return fmt.Errorf("failed to unmarshal into config struct: %w", err)
	}

	return nil
}
