package tests

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/fhe-survey/api"
	fheclient "github.com/vocdoni/fhe-survey/client"
	"github.com/vocdoni/fhe-survey/log"
	"github.com/vocdoni/fhe-survey/types"
)

func init() {
	log.Init(log.LogLevelDebug, "stdout", nil)
}

func TestIntegration(t *testing.T) {
	c := qt.New(t)

	// Setup
	ctx := context.Background()
	srv, err := SetupAPI(t, ctx)
	c.Assert(err, qt.IsNil)
	cli, err := NewTestClient(srv.Port)
	c.Assert(err, qt.IsNil)

	creator, err := NewTestSigner()
	c.Assert(err, qt.IsNil)

	questions := []types.Question{
		{Text: "how do you commute", Options: []string{"bike", "train"}},
		{Text: "preferred meal", Options: []string{"breakfast", "lunch", "dinner"}},
	}
	surveyID := CreateTestSurvey(c, cli, creator, questions)

	c.Run("survey info", func(c *qt.C) {
		srvInfo, err := cli.Survey(surveyID)
		c.Assert(err, qt.IsNil)
		c.Assert(srvInfo.Title, qt.Equals, "integration survey")
		c.Assert(srvInfo.Active, qt.IsTrue)
		c.Assert(srvInfo.Questions, qt.HasLen, 2)
	})

	c.Run("cast votes", func(c *qt.C) {
		srvInfo, err := cli.Survey(surveyID)
		c.Assert(err, qt.IsNil)

		for i, choices := range [][]uint64{{0, 2}, {1, 2}} {
			voter, err := NewTestSigner()
			c.Assert(err, qt.IsNil)
			handles, proof, err := fheclient.EncryptChoices(
				srv.Coprocessor, srvInfo, voter.Address(), srv.Engine.Address(), choices)
			c.Assert(err, qt.IsNil)
			err = cli.SubmitVote(surveyID, &api.Vote{
				Voter:   voter.Address(),
				Choices: handles,
				Proof:   proof,
			})
			c.Assert(err, qt.IsNil, qt.Commentf("voter %d", i))

			// a second vote from the same address must be rejected
			handles, proof, err = fheclient.EncryptChoices(
				srv.Coprocessor, srvInfo, voter.Address(), srv.Engine.Address(), choices)
			c.Assert(err, qt.IsNil)
			err = cli.SubmitVote(surveyID, &api.Vote{
				Voter:   voter.Address(),
				Choices: handles,
				Proof:   proof,
			})
			c.Assert(err, qt.IsNotNil)
		}
	})

	c.Run("end and decrypt", func(c *qt.C) {
		sig, err := creator.SignEthereum(api.ActionMessage("endSurvey", surveyID))
		c.Assert(err, qt.IsNil)
		c.Assert(cli.EndSurvey(surveyID, sig), qt.IsNil)

		sig, err = creator.SignEthereum(api.ActionMessage("requestDecryption", surveyID))
		c.Assert(err, qt.IsNil)
		c.Assert(cli.RequestDecryption(surveyID, sig), qt.IsNil)

		// the oracle worker resolves the request in the background
		var results *api.Results
		deadline := time.Now().Add(30 * time.Second)
		for time.Now().Before(deadline) {
			results, err = cli.Results(surveyID)
			if err == nil {
				break
			}
			time.Sleep(250 * time.Millisecond)
		}
		c.Assert(err, qt.IsNil)
		c.Assert(results.OptionCounts, qt.DeepEquals, [][]uint64{{1, 1}, {0, 0, 2}})
	})
}
