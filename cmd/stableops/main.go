package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hoofbeat/stableops/apiframework"
	libbus "github.com/hoofbeat/stableops/libbus"
	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/libkvstore"
	libroutine "github.com/hoofbeat/stableops/libroutine"
	"github.com/hoofbeat/stableops/serverapi"
	"github.com/hoofbeat/stableops/stabletypes"
)

var (
	cliSetTenancy  string
	Tenancy        = "2f1aa8b4-52da-45b3-a47c-d9e1e54a9cbd"
	nodeInstanceID = "NODE-Instance-UNSET-dev"
)

func initDatabase(ctx context.Context, cfg *serverapi.Config) (libdb.DBManager, error) {
	dbURL := cfg.DatabaseURL
	var err error
	if dbURL == "" {
		err = fmt.Errorf("DATABASE_URL is required")
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	var dbInstance libdb.DBManager
	err = libroutine.NewRoutine(10, time.Minute).ExecuteWithRetry(ctx, time.Second, 3, func(ctx context.Context) error {
		dbInstance, err = libdb.NewPostgresDBManager(ctx, dbURL, stabletypes.Schema)
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	return dbInstance, nil
}

func initPubSub(ctx context.Context, cfg *serverapi.Config) (libbus.Messenger, error) {
	ps, err := libbus.NewPubSub(ctx, &libbus.Config{
		NATSURL:      cfg.NATSURL,
		NATSPassword: cfg.NATSPassword,
		NATSUser:     cfg.NATSUser,
	})
	if err != nil {
		return nil, err
	}
	return ps, nil
}

func initKVManager(cfg *serverapi.Config) (libkvstore.KVManager, error) {
	if cfg.KVAddr == "" {
		return nil, nil
	}
	return libkvstore.NewManager(libkvstore.Config{
		KVAddr:     cfg.KVAddr,
		KVPassword: cfg.KVPassword,
	}, 10*time.Second)
}

func main() {
	if cliSetTenancy == "" {
		log.Fatalf("corrupted build! cliSetTenantID was not injected")
	}

	nodeInstanceID = uuid.NewString()[0:8]
	Tenancy = cliSetTenancy
	config := &serverapi.Config{}
	if err := serverapi.LoadConfig(config); err != nil {
		log.Fatalf("%s: failed to load configuration: %v", nodeInstanceID, err)
	}
	ctx := context.TODO()
	cleanups := []func() error{func() error {
		fmt.Printf("%s cleaning up", nodeInstanceID)
		return nil
	}}
	defer func() {
		for _, cleanup := range cleanups {
			err := cleanup()
			if err != nil {
				log.Printf("%s cleanup failed: %v", nodeInstanceID, err)
			}
		}
	}()

	dbInstance, err := initDatabase(ctx, config)
	if err != nil {
		log.Fatalf("%s initializing database failed: %v", nodeInstanceID, err)
	}
	defer dbInstance.Close()

	ps, err := initPubSub(ctx, config)
	if err != nil {
		log.Fatalf("%s initializing PubSub failed: %v", nodeInstanceID, err)
	}

	kvManager, err := initKVManager(config)
	if err != nil {
		log.Fatalf("%s initializing KV manager failed: %v", nodeInstanceID, err)
	}
	if kvManager != nil {
		defer kvManager.Close()
	}

	internalMux := http.NewServeMux()
	var apiHandler http.Handler = internalMux
	cleanup, err := serverapi.New(ctx, internalMux, nodeInstanceID, Tenancy, config, dbInstance, ps, kvManager)
	cleanups = append(cleanups, cleanup)
	if err != nil {
		log.Fatalf("%s initializing API handler failed: %v", nodeInstanceID, err)
	}
	apiHandler = apiframework.RequestIDMiddleware(apiHandler)
	apiHandler = apiframework.TracingMiddleware(apiHandler)
	if config.Token != "" {
		apiHandler = apiframework.TokenMiddleware(apiHandler)
		apiHandler = apiframework.EnforceToken(config.Token, apiHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/", apiHandler)
	port := config.Port
	log.Printf("%s %s starting server on :%s", Tenancy, nodeInstanceID, port)
	if err := http.ListenAndServe(config.Addr+":"+port, mux); err != nil {
		log.Fatalf("%s server failed: %v", nodeInstanceID, err)
	}
}
