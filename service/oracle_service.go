package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/fhe-survey/fhe"
	"github.com/vocdoni/fhe-survey/log"
	"github.com/vocdoni/fhe-survey/oracle"
	"github.com/vocdoni/fhe-survey/storage"
	"github.com/vocdoni/fhe-survey/survey"
)

// OracleService represents a service that handles background decryption of
// survey results.
type OracleService struct {
	oracle *oracle.Oracle
}

// NewOracle creates a new decryption oracle worker over the given storage and
// coprocessor. The worker polls the pending request queue, decrypts each
// accumulator handle and delivers the signed cleartexts back to the engine.
func NewOracle(stg *storage.Storage, cop *fhe.Coprocessor) *OracleService {
	o, err := oracle.New(stg, cop)
	if err != nil {
		log.Fatalf("failed to create oracle: %v", err)
	}
	return &OracleService{
		oracle: o,
	}
}

// Address returns the oracle's callback signing identity, which the engine
// must be configured to trust.
func (os *OracleService) Address() common.Address {
	return os.oracle.Address()
}

// Bind attaches the survey engine the oracle delivers callbacks to.
func (os *OracleService) Bind(engine *survey.Engine) {
	os.oracle.SetEngine(engine)
}

// Start begins the decryption worker. It returns an error if the service is
// already running.
func (os *OracleService) Start(ctx context.Context) error {
	return os.oracle.Start(ctx)
}

// Stop halts the decryption worker.
func (os *OracleService) Stop() {
	if err := os.oracle.Stop(); err != nil {
		log.Warnw("oracle service stopped", "error", err)
	}
}
