package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/fhe-survey/api"
	"github.com/vocdoni/fhe-survey/api/client"
	"github.com/vocdoni/fhe-survey/crypto/ecc/curves"
	"github.com/vocdoni/fhe-survey/crypto/ethereum"
	"github.com/vocdoni/fhe-survey/fhe"
	"github.com/vocdoni/fhe-survey/oracle"
	"github.com/vocdoni/fhe-survey/storage"
	"github.com/vocdoni/fhe-survey/survey"
	"github.com/vocdoni/fhe-survey/types"
	"github.com/vocdoni/fhe-survey/util"
	"go.vocdoni.io/dvote/db/metadb"
)

// TestService bundles everything an integration test needs: the HTTP port of
// a running API, the coprocessor gateway for client-side encryption and the
// engine identity votes must be bound to.
type TestService struct {
	Port        int
	Coprocessor *fhe.Coprocessor
	Engine      *survey.Engine
}

// SetupAPI starts a full service stack (storage, coprocessor, engine, oracle
// worker and HTTP API) on a random port.
func SetupAPI(t *testing.T, ctx context.Context) (*TestService, error) {
	stg := storage.New(metadb.NewTest(t))
	cop, err := fhe.New(stg, curves.CurveTypeBabyJubJub)
	if err != nil {
		return nil, err
	}
	orc, err := oracle.New(stg, cop)
	if err != nil {
		return nil, err
	}
	engine, err := survey.NewEngine(survey.Config{
		Storage:       stg,
		Coprocessor:   cop,
		OracleAddress: orc.Address(),
	})
	if err != nil {
		return nil, err
	}
	orc.SetEngine(engine)
	if err := orc.Start(ctx); err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = orc.Stop() })

	tmpPort := util.RandomInt(40000, 60000)
	if _, err := api.New(&api.APIConfig{
		Host:   "127.0.0.1",
		Port:   tmpPort,
		Engine: engine,
	}); err != nil {
		return nil, err
	}

	// Wait for the HTTP server to start
	time.Sleep(500 * time.Millisecond)
	return &TestService{Port: tmpPort, Coprocessor: cop, Engine: engine}, nil
}

// NewTestSigner creates and initializes a new ethereum signer for testing.
func NewTestSigner() (*ethereum.SignKeys, error) {
	signer := ethereum.NewSignKeys()
	if err := signer.Generate(); err != nil {
		return nil, err
	}
	return signer, nil
}

// NewTestClient creates a new API client for testing.
func NewTestClient(port int) (*client.HTTPclient, error) {
	return client.New(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// CreateTestSurvey creates a survey signed by the given creator and returns
// its id.
func CreateTestSurvey(c *qt.C, cli *client.HTTPclient, signer *ethereum.SignKeys, questions []types.Question) types.SurveyID {
	ns := &api.NewSurvey{
		Title:       "integration survey",
		Description: "spawned by the test harness",
		Questions:   questions,
	}
	msg, err := ns.SignableContent()
	c.Assert(err, qt.IsNil)
	ns.Signature, err = signer.SignEthereum(msg)
	c.Assert(err, qt.IsNil)

	resp, err := cli.CreateSurvey(ns)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Creator, qt.Equals, signer.Address())
	return resp.SurveyID
}
