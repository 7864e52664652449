package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/fhe-survey/config"
	"github.com/vocdoni/fhe-survey/crypto/ecc/curves"
	"github.com/vocdoni/fhe-survey/fhe"
	"github.com/vocdoni/fhe-survey/log"
	"github.com/vocdoni/fhe-survey/service"
	"github.com/vocdoni/fhe-survey/storage"
	"github.com/vocdoni/fhe-survey/survey"
	"go.vocdoni.io/dvote/db/metadb"
)

func main() {
	configFile := flag.String("config", "", "path to a TOML config file")
	dataDir := flag.String("dataDir", "", "data directory for the database")
	dbType := flag.String("dbType", "", "database backend type")
	logLevel := flag.String("logLevel", "", "log level (debug, info, warn, error, fatal)")
	host := flag.String("host", "", "API listen host")
	port := flag.Int("port", 0, "API listen port")
	curveType := flag.String("curve", "", "elliptic curve backend for the coprocessor")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Init("info", "stdout", nil)
		log.Fatal(err)
	}
	// flags override file values
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *dbType != "" {
		cfg.DBType = *dbType
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *host != "" {
		cfg.API.Host = *host
	}
	if *port != 0 {
		cfg.API.Port = *port
	}
	if *curveType != "" {
		cfg.Curve = *curveType
	}
	log.Init(cfg.LogLevel, cfg.LogOutput, nil)

	database, err := metadb.New(cfg.DBType, cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	store := storage.New(database)

	if _, err := curves.New(cfg.Curve); err != nil {
		log.Fatalf("unknown curve %q: %v", cfg.Curve, err)
	}
	cop, err := fhe.New(store, cfg.Curve)
	if err != nil {
		log.Fatalf("failed to initialize coprocessor: %v", err)
	}

	oracleService := service.NewOracle(store, cop)
	engine, err := survey.NewEngine(survey.Config{
		Storage:       store,
		Coprocessor:   cop,
		OracleAddress: oracleService.Address(),
	})
	if err != nil {
		log.Fatalf("failed to initialize survey engine: %v", err)
	}
	oracleService.Bind(engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := oracleService.Start(ctx); err != nil {
		log.Fatalf("failed to start oracle: %v", err)
	}
	apiService := service.NewAPI(engine, cfg.API.Host, cfg.API.Port)
	if err := apiService.Start(ctx); err != nil {
		log.Fatalf("failed to start API: %v", err)
	}
	log.Infow("surveyd started",
		"dataDir", cfg.DataDir,
		"api", cfg.API.Host,
		"port", cfg.API.Port,
		"oracle", oracleService.Address().Hex(),
		"gateway", cop.GatewayAddress().Hex(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	apiService.Stop()
	oracleService.Stop()
	store.Close()
}
