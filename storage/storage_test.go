package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/fhe-survey/types"
	"github.com/vocdoni/fhe-survey/util"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	stg := New(metadb.NewTest(t))
	return stg
}

// failingDB wraps a database and rejects transaction commits once the allowed
// budget is spent. A negative budget never fails.
type failingDB struct {
	db.Database
	remaining int
}

func (f *failingDB) WriteTx() db.WriteTx {
	return &failingTx{WriteTx: f.Database.WriteTx(), parent: f}
}

type failingTx struct {
	db.WriteTx
	parent *failingDB
}

func (t *failingTx) Commit() error {
	if t.parent.remaining == 0 {
		return fmt.Errorf("commit rejected")
	}
	if t.parent.remaining > 0 {
		t.parent.remaining--
	}
	return t.WriteTx.Commit()
}

func testAccumulators(survey *types.Survey) []AccumulatorUpdate {
	var accs []AccumulatorUpdate
	for qi, q := range survey.Questions {
		for oi := range q.Options {
			accs = append(accs, AccumulatorUpdate{
				Question: qi,
				Option:   oi,
				Handle:   util.RandomBytes(32),
			})
		}
	}
	return accs
}

func testSurvey(id types.SurveyID) *types.Survey {
	return &types.Survey{
		ID:        id,
		Title:     "test survey",
		Creator:   common.HexToAddress("0x1234"),
		Active:    true,
		CreatedAt: time.Now(),
		Questions: []types.Question{
			{Text: "first", Options: []string{"a", "b"}},
			{Text: "second", Options: []string{"x", "y", "z"}},
		},
	}
}

func TestSurveyIDSequence(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	total, err := stg.TotalSurveys()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(0))

	for i := uint64(1); i <= 5; i++ {
		srv := testSurvey(0)
		id, err := stg.CommitSurveyCreation(srv, testAccumulators(srv))
		c.Assert(err, qt.IsNil)
		c.Assert(id, qt.Equals, types.SurveyID(i))
		c.Assert(srv.ID, qt.Equals, id)
	}
	total, err = stg.TotalSurveys()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(5))
}

func TestSurveyRoundtrip(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	_, err := stg.Survey(1)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	srv := testSurvey(1)
	c.Assert(stg.SetSurvey(srv), qt.IsNil)

	got, err := stg.Survey(1)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Title, qt.Equals, srv.Title)
	c.Assert(got.Creator, qt.Equals, srv.Creator)
	c.Assert(got.Questions, qt.DeepEquals, srv.Questions)
	c.Assert(got.Active, qt.IsTrue)

	c.Assert(stg.SetSurvey(testSurvey(3)), qt.IsNil)
	ids, err := stg.ListSurveys()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []types.SurveyID{1, 3})
}

func TestCommitVote(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)
	voter := common.HexToAddress("0xabcd")

	srv := testSurvey(0)
	id, err := stg.CommitSurveyCreation(srv, testAccumulators(srv))
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, types.SurveyID(1))

	voted, err := stg.HasVoted(1, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)

	newHandle := types.HexBytes(util.RandomBytes(32))
	srv.TotalVotes = 1
	err = stg.CommitVote(srv, voter, []AccumulatorUpdate{
		{Question: 0, Option: 1, Handle: newHandle},
	})
	c.Assert(err, qt.IsNil)

	voted, err = stg.HasVoted(1, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)

	handle, err := stg.Accumulator(1, 0, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(handle.String(), qt.Equals, newHandle.String())

	got, err := stg.Survey(1)
	c.Assert(err, qt.IsNil)
	c.Assert(got.TotalVotes, qt.Equals, uint64(1))

	// the audit leaf lands in the same transaction as the vote
	proof, err := stg.GenAuditProof(1, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(len(proof) > 0, qt.IsTrue)
}

func TestCommitSurveyCreationAtomicity(t *testing.T) {
	c := qt.New(t)
	fdb := &failingDB{Database: metadb.NewTest(t), remaining: -1}
	stg := New(fdb)

	fdb.remaining = 0
	_, err := stg.CommitSurveyCreation(testSurvey(0), testAccumulators(testSurvey(0)))
	c.Assert(err, qt.IsNotNil)
	fdb.remaining = -1

	// a failed creation leaves no trace: no id consumed, no survey record,
	// no orphan accumulators
	total, err := stg.TotalSurveys()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(0))
	ids, err := stg.ListSurveys()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 0)
	_, err = stg.Accumulator(1, 0, 0)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	srv := testSurvey(0)
	id, err := stg.CommitSurveyCreation(srv, testAccumulators(srv))
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, types.SurveyID(1))
}

func TestCommitVoteAtomicity(t *testing.T) {
	c := qt.New(t)
	fdb := &failingDB{Database: metadb.NewTest(t), remaining: -1}
	stg := New(fdb)
	voter := common.HexToAddress("0xabcd")

	srv := testSurvey(0)
	_, err := stg.CommitSurveyCreation(srv, testAccumulators(srv))
	c.Assert(err, qt.IsNil)
	accBefore, err := stg.Accumulator(srv.ID, 0, 0)
	c.Assert(err, qt.IsNil)
	rootBefore, err := stg.AuditRoot(srv.ID)
	c.Assert(err, qt.IsNil)

	srv.TotalVotes = 1
	updates := []AccumulatorUpdate{{Question: 0, Option: 0, Handle: util.RandomBytes(32)}}
	fdb.remaining = 0
	c.Assert(stg.CommitVote(srv, voter, updates), qt.IsNotNil)
	fdb.remaining = -1

	// nothing of the failed vote may be visible
	voted, err := stg.HasVoted(srv.ID, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)
	acc, err := stg.Accumulator(srv.ID, 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(acc.String(), qt.Equals, accBefore.String())
	root, err := stg.AuditRoot(srv.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(root.String(), qt.Equals, rootBefore.String())
	_, err = stg.GenAuditProof(srv.ID, voter)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	got, err := stg.Survey(srv.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.TotalVotes, qt.Equals, uint64(0))

	// with storage healthy again the same vote goes through in full
	c.Assert(stg.CommitVote(srv, voter, updates), qt.IsNil)
	voted, err = stg.HasVoted(srv.ID, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)
	_, err = stg.GenAuditProof(srv.ID, voter)
	c.Assert(err, qt.IsNil)
}

func TestDecryptionRequestQueue(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	_, err := stg.NextDecryptionRequest()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	srv := testSurvey(1)
	c.Assert(stg.SetSurvey(srv), qt.IsNil)

	req := &DecryptionRequest{
		RequestID:     util.RandomBytes(16),
		SurveyID:      1,
		OptionLengths: []int{2, 3},
		Handles:       []types.HexBytes{util.RandomBytes(32), util.RandomBytes(32)},
		CreatedAt:     time.Now(),
	}
	c.Assert(stg.PushDecryptionRequest(req), qt.IsNil)

	pending, err := stg.PendingDecryptionRequest(req.RequestID)
	c.Assert(err, qt.IsNil)
	c.Assert(pending.SurveyID, qt.Equals, types.SurveyID(1))
	c.Assert(pending.OptionLengths, qt.DeepEquals, []int{2, 3})

	next, err := stg.NextDecryptionRequest()
	c.Assert(err, qt.IsNil)
	c.Assert(next.RequestID.String(), qt.Equals, req.RequestID.String())

	// consuming stores the results, flips the survey and drops the request
	srv.ResultsDecrypted = true
	results := &types.SurveyResults{
		SurveyID:     1,
		OptionCounts: [][]uint64{{1, 0}, {0, 1, 0}},
		DecryptedAt:  time.Now(),
	}
	c.Assert(stg.ConsumeDecryptionRequest(srv, results, req.RequestID), qt.IsNil)

	_, err = stg.PendingDecryptionRequest(req.RequestID)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = stg.NextDecryptionRequest()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	got, err := stg.Results(1)
	c.Assert(err, qt.IsNil)
	c.Assert(got.OptionCounts, qt.DeepEquals, results.OptionCounts)
	gotSrv, err := stg.Survey(1)
	c.Assert(err, qt.IsNil)
	c.Assert(gotSrv.ResultsDecrypted, qt.IsTrue)
}

func TestAuditTree(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	srv := testSurvey(0)
	_, err := stg.CommitSurveyCreation(srv, testAccumulators(srv))
	c.Assert(err, qt.IsNil)
	root0, err := stg.AuditRoot(1)
	c.Assert(err, qt.IsNil)

	voter := common.HexToAddress("0x01")
	srv.TotalVotes = 1
	err = stg.CommitVote(srv, voter, []AccumulatorUpdate{
		{Question: 0, Option: 0, Handle: util.RandomBytes(32)},
	})
	c.Assert(err, qt.IsNil)

	root1, err := stg.AuditRoot(1)
	c.Assert(err, qt.IsNil)
	c.Assert(root1.String(), qt.Not(qt.Equals), root0.String())

	proof, err := stg.GenAuditProof(1, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(len(proof) > 0, qt.IsTrue)

	// trees of different surveys are independent
	rootOther, err := stg.AuditRoot(2)
	c.Assert(err, qt.IsNil)
	c.Assert(rootOther.String(), qt.Equals, root0.String())
}
