package service

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/fhe-survey/crypto/ecc/curves"
	"github.com/vocdoni/fhe-survey/fhe"
	"github.com/vocdoni/fhe-survey/storage"
	"github.com/vocdoni/fhe-survey/survey"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestAPIService(t *testing.T) {
	c := qt.New(t)

	// Setup storage, coprocessor and engine
	store := storage.New(metadb.NewTest(t))
	cop, err := fhe.New(store, curves.CurveTypeBabyJubJub)
	c.Assert(err, qt.IsNil)
	oracleService := NewOracle(store, cop)
	engine, err := survey.NewEngine(survey.Config{
		Storage:       store,
		Coprocessor:   cop,
		OracleAddress: oracleService.Address(),
	})
	c.Assert(err, qt.IsNil)
	oracleService.Bind(engine)

	// Create API service with a random available port
	apiService := NewAPI(engine, "127.0.0.1", 0) // Port 0 lets the OS choose an available port

	// Start service in background
	ctx := context.Background()

	err = apiService.Start(ctx)
	c.Assert(err, qt.IsNil)
	defer apiService.Stop()

	// Give the service time to start
	time.Sleep(2 * time.Second)

	// Test stopping and restarting
	apiService.Stop()
	err = apiService.Start(ctx)
	c.Assert(err, qt.IsNil)

	// Test starting an already running service
	err = apiService.Start(ctx)
	c.Assert(err, qt.ErrorMatches, "service already running")
}
