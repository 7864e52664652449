package survey

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/fhe-survey/crypto/ecc/curves"
	"github.com/vocdoni/fhe-survey/crypto/ethereum"
	"github.com/vocdoni/fhe-survey/fhe"
	"github.com/vocdoni/fhe-survey/storage"
	"github.com/vocdoni/fhe-survey/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

type testEnv struct {
	engine *Engine
	cop    *fhe.Coprocessor
	oracle *ethereum.SignKeys
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

func newTestEngine(t *testing.T) *testEnv {
	t.Helper()
	return newTestEngineDB(t, metadb.NewTest(t))
}

func newTestEngineDB(t *testing.T, database db.Database) *testEnv {
	t.Helper()
	stg := storage.New(database)
	cop, err := fhe.New(stg, curves.CurveTypeBabyJubJub)
	qt.Assert(t, err, qt.IsNil)
	oracle := ethereum.NewSignKeys()
	qt.Assert(t, oracle.Generate(), qt.IsNil)
	engine, err := NewEngine(Config{
		Storage:       stg,
		Coprocessor:   cop,
		OracleAddress: oracle.Address(),
	})
	qt.Assert(t, err, qt.IsNil)
	return &testEnv{engine: engine, cop: cop, oracle: oracle}
}

func testQuestions() []types.Question {
	return []types.Question{
		{Text: "favorite transport", Options: []string{"bike", "train"}},
		{Text: "preferred meal", Options: []string{"breakfast", "lunch", "dinner"}},
	}
}

func (env *testEnv) vote(t *testing.T, id types.SurveyID, voter common.Address, choices []uint64) error {
	t.Helper()
	handles, proof, err := env.cop.EncryptInput(voter, env.engine.Address(), choices)
	qt.Assert(t, err, qt.IsNil)
	return env.engine.SubmitVotes(voter, id, handles, proof)
}

func (env *testEnv) resolveDecryption(t *testing.T, tamper func(req *storage.DecryptionRequest, cleartexts []uint64) (types.HexBytes, []uint64)) error {
	t.Helper()
	req, err := env.engine.stg.NextDecryptionRequest()
	qt.Assert(t, err, qt.IsNil)
	cleartexts := make([]uint64, len(req.Handles))
	for i, h := range req.Handles {
		v, err := env.cop.Decrypt(h, 1000)
		qt.Assert(t, err, qt.IsNil)
		cleartexts[i] = v
	}
	requestID := req.RequestID
	if tamper != nil {
		requestID, cleartexts = tamper(req, cleartexts)
	}
	proof, err := env.oracle.SignEthereum(CallbackMessage(requestID, cleartexts))
	qt.Assert(t, err, qt.IsNil)
	return env.engine.DecryptionCallback(requestID, cleartexts, proof)
}

func TestCreateSurveyValidation(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x1111111111111111111111111111111111111111")

	_, err := env.engine.CreateSurvey(creator, "", "", testQuestions())
	c.Assert(err, qt.ErrorIs, ErrEmptyTitle)

	_, err = env.engine.CreateSurvey(creator, "t", "", nil)
	c.Assert(err, qt.ErrorIs, ErrNoQuestions)

	_, err = env.engine.CreateSurvey(creator, "t", "", []types.Question{
		{Text: "q", Options: []string{"only one"}},
	})
	c.Assert(err, qt.ErrorIs, ErrTooFewOptions)

	_, err = env.engine.CreateSurvey(creator, "t", "", []types.Question{
		{Text: "", Options: []string{"a", "b"}},
	})
	c.Assert(err, qt.ErrorIs, ErrEmptyQuestionText)

	tooMany := make([]string, types.MaxOptionsPerQuestion+1)
	for i := range tooMany {
		tooMany[i] = "opt"
	}
	_, err = env.engine.CreateSurvey(creator, "t", "", []types.Question{
		{Text: "q", Options: tooMany},
	})
	c.Assert(err, qt.ErrorIs, ErrTooManyOptions)

	// failed creations must not consume survey ids
	id, err := env.engine.CreateSurvey(creator, "first valid", "", testQuestions())
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, types.SurveyID(1))

	survey, err := env.engine.Survey(id)
	c.Assert(err, qt.IsNil)
	c.Assert(survey.Active, qt.IsTrue)
	c.Assert(survey.Creator, qt.Equals, creator)
	c.Assert(survey.TotalVotes, qt.Equals, uint64(0))

	total, err := env.engine.TotalSurveys()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(1))
}

func TestCreateSurveyStorageFailure(t *testing.T) {
	c := qt.New(t)
	fdb := &failingDB{Database: metadb.NewTest(t), remaining: -1}
	env := newTestEngineDB(t, fdb)
	creator := common.HexToAddress("0x01")

	// fail the creation pipeline at every possible commit point: no failed
	// attempt may consume a survey id or leave a partial record behind
	for budget := 0; ; budget++ {
		c.Assert(budget < 64, qt.IsTrue, qt.Commentf("creation never succeeded"))
		fdb.remaining = budget
		id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
		fdb.remaining = -1
		if err == nil {
			// the first creation that lands gets the first id
			c.Assert(id, qt.Equals, types.SurveyID(1))
			break
		}
		total, err := env.engine.TotalSurveys()
		c.Assert(err, qt.IsNil)
		c.Assert(total, qt.Equals, uint64(0))
		ids, err := env.engine.ListSurveys()
		c.Assert(err, qt.IsNil)
		c.Assert(ids, qt.HasLen, 0)
	}

	survey, err := env.engine.Survey(1)
	c.Assert(err, qt.IsNil)
	c.Assert(survey.Active, qt.IsTrue)
}

func TestVoteStorageFailure(t *testing.T) {
	c := qt.New(t)
	fdb := &failingDB{Database: metadb.NewTest(t), remaining: -1}
	env := newTestEngineDB(t, fdb)
	creator := common.HexToAddress("0x01")
	voterA := common.HexToAddress("0x0a")
	voterB := common.HexToAddress("0x0b")

	id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
	c.Assert(err, qt.IsNil)
	c.Assert(env.vote(t, id, voterA, []uint64{0, 2}), qt.IsNil)
	rootA, err := env.engine.AuditRoot(id)
	c.Assert(err, qt.IsNil)

	handles, proof, err := env.cop.EncryptInput(voterB, env.engine.Address(), []uint64{1, 2})
	c.Assert(err, qt.IsNil)

	// fail the submission pipeline at every possible commit point: a failed
	// vote may mark neither the hasVoted set nor the audit tree
	for budget := 0; ; budget++ {
		c.Assert(budget < 64, qt.IsTrue, qt.Commentf("vote never succeeded"))
		fdb.remaining = budget
		err := env.engine.SubmitVotes(voterB, id, handles, proof)
		fdb.remaining = -1
		if err == nil {
			break
		}
		voted, err := env.engine.HasVoted(id, voterB)
		c.Assert(err, qt.IsNil)
		c.Assert(voted, qt.IsFalse)
		root, err := env.engine.AuditRoot(id)
		c.Assert(err, qt.IsNil)
		c.Assert(root.String(), qt.Equals, rootA.String())
		survey, err := env.engine.Survey(id)
		c.Assert(err, qt.IsNil)
		c.Assert(survey.TotalVotes, qt.Equals, uint64(1))
	}

	// the accepted vote lands everywhere at once
	voted, err := env.engine.HasVoted(id, voterB)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)
	root, err := env.engine.AuditRoot(id)
	c.Assert(err, qt.IsNil)
	c.Assert(root.String(), qt.Not(qt.Equals), rootA.String())
	survey, err := env.engine.Survey(id)
	c.Assert(err, qt.IsNil)
	c.Assert(survey.TotalVotes, qt.Equals, uint64(2))
}

func TestVoteOncePerAddress(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x01")
	voter := common.HexToAddress("0x02")

	id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
	c.Assert(err, qt.IsNil)

	c.Assert(env.vote(t, id, voter, []uint64{0, 2}), qt.IsNil)

	voted, err := env.engine.HasVoted(id, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)

	err = env.vote(t, id, voter, []uint64{1, 1})
	c.Assert(err, qt.ErrorIs, ErrAlreadyVoted)

	survey, err := env.engine.Survey(id)
	c.Assert(err, qt.IsNil)
	c.Assert(survey.TotalVotes, qt.Equals, uint64(1))
}

func TestVoteValidation(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x01")
	voter := common.HexToAddress("0x02")

	id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
	c.Assert(err, qt.IsNil)

	err = env.vote(t, types.SurveyID(99), voter, []uint64{0, 0})
	c.Assert(err, qt.ErrorIs, ErrSurveyNotFound)

	// wrong number of choices
	handles, proof, err := env.cop.EncryptInput(voter, env.engine.Address(), []uint64{0})
	c.Assert(err, qt.IsNil)
	err = env.engine.SubmitVotes(voter, id, handles, proof)
	c.Assert(err, qt.ErrorIs, ErrVoteLengthMismatch)

	// proof bound to a different voter
	handles, proof, err = env.cop.EncryptInput(creator, env.engine.Address(), []uint64{0, 0})
	c.Assert(err, qt.IsNil)
	err = env.engine.SubmitVotes(voter, id, handles, proof)
	c.Assert(err, qt.ErrorIs, fhe.ErrInvalidInputProof)

	// nothing above may have marked the voter
	voted, err := env.engine.HasVoted(id, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)

	c.Assert(env.engine.EndSurvey(creator, id), qt.IsNil)
	err = env.vote(t, id, voter, []uint64{0, 0})
	c.Assert(err, qt.ErrorIs, ErrSurveyInactive)
}

func TestEndSurveyAccessControl(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x01")
	stranger := common.HexToAddress("0x02")

	id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
	c.Assert(err, qt.IsNil)

	c.Assert(env.engine.EndSurvey(stranger, id), qt.ErrorIs, ErrNotCreator)
	c.Assert(env.engine.EndSurvey(creator, id), qt.IsNil)
	c.Assert(env.engine.EndSurvey(creator, id), qt.ErrorIs, ErrAlreadyEnded)

	// deactivation is irreversible
	survey, err := env.engine.Survey(id)
	c.Assert(err, qt.IsNil)
	c.Assert(survey.Active, qt.IsFalse)
}

func TestRequestDecryptionPreconditions(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x01")
	stranger := common.HexToAddress("0x02")

	id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
	c.Assert(err, qt.IsNil)

	c.Assert(env.engine.RequestDecryption(creator, id), qt.ErrorIs, ErrStillActive)
	c.Assert(env.engine.EndSurvey(creator, id), qt.IsNil)
	c.Assert(env.engine.RequestDecryption(stranger, id), qt.ErrorIs, ErrNotCreator)
	c.Assert(env.engine.RequestDecryption(creator, id), qt.IsNil)

	c.Assert(env.resolveDecryption(t, nil), qt.IsNil)
	c.Assert(env.engine.RequestDecryption(creator, id), qt.ErrorIs, ErrAlreadyDecrypted)
}

func TestFullSurveyLifecycle(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x01")

	id, err := env.engine.CreateSurvey(creator, "commute habits", "two questions", testQuestions())
	c.Assert(err, qt.IsNil)

	c.Assert(env.vote(t, id, common.HexToAddress("0x0a"), []uint64{0, 2}), qt.IsNil)
	c.Assert(env.vote(t, id, common.HexToAddress("0x0b"), []uint64{1, 2}), qt.IsNil)

	_, err = env.engine.Results(id)
	c.Assert(err, qt.ErrorIs, ErrResultsNotAvailable)

	c.Assert(env.engine.EndSurvey(creator, id), qt.IsNil)
	c.Assert(env.engine.RequestDecryption(creator, id), qt.IsNil)
	c.Assert(env.resolveDecryption(t, nil), qt.IsNil)

	results, err := env.engine.Results(id)
	c.Assert(err, qt.IsNil)
	c.Assert(results.OptionCounts, qt.DeepEquals, [][]uint64{{1, 1}, {0, 0, 2}})

	// mass conservation: per-question counts sum to the number of voters
	survey, err := env.engine.Survey(id)
	c.Assert(err, qt.IsNil)
	c.Assert(survey.ResultsDecrypted, qt.IsTrue)
	for _, counts := range results.OptionCounts {
		var sum uint64
		for _, v := range counts {
			sum += v
		}
		c.Assert(sum, qt.Equals, survey.TotalVotes)
	}
}

func TestDecryptionCallbackIntegrity(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x01")

	id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
	c.Assert(err, qt.IsNil)
	c.Assert(env.vote(t, id, common.HexToAddress("0x0a"), []uint64{1, 0}), qt.IsNil)
	c.Assert(env.engine.EndSurvey(creator, id), qt.IsNil)
	c.Assert(env.engine.RequestDecryption(creator, id), qt.IsNil)

	req, err := env.engine.stg.NextDecryptionRequest()
	c.Assert(err, qt.IsNil)
	cleartexts := []uint64{0, 1, 1, 0, 0}

	// signature from a key that is not the oracle
	impostor := ethereum.NewSignKeys()
	c.Assert(impostor.Generate(), qt.IsNil)
	badProof, err := impostor.SignEthereum(CallbackMessage(req.RequestID, cleartexts))
	c.Assert(err, qt.IsNil)
	err = env.engine.DecryptionCallback(req.RequestID, cleartexts, badProof)
	c.Assert(err, qt.ErrorIs, ErrInvalidCallbackProof)

	// valid signature over tampered cleartexts does not match the proof
	goodProof, err := env.oracle.SignEthereum(CallbackMessage(req.RequestID, cleartexts))
	c.Assert(err, qt.IsNil)
	tampered := []uint64{9, 9, 9, 9, 9}
	err = env.engine.DecryptionCallback(req.RequestID, tampered, goodProof)
	c.Assert(err, qt.ErrorIs, ErrInvalidCallbackProof)

	// unknown request id
	err = env.resolveDecryption(t, func(_ *storage.DecryptionRequest, cl []uint64) (types.HexBytes, []uint64) {
		return types.HexBytes("0123456789abcdef"), cl
	})
	c.Assert(err, qt.ErrorIs, ErrUnknownRequest)

	// wrong cleartext count
	err = env.resolveDecryption(t, func(req *storage.DecryptionRequest, cl []uint64) (types.HexBytes, []uint64) {
		return req.RequestID, cl[:len(cl)-1]
	})
	c.Assert(err, qt.ErrorIs, ErrCleartextsMismatch)

	// a correct callback resolves the request, a replay does not
	c.Assert(env.resolveDecryption(t, nil), qt.IsNil)
	replayProof, err := env.oracle.SignEthereum(CallbackMessage(req.RequestID, cleartexts))
	c.Assert(err, qt.IsNil)
	err = env.engine.DecryptionCallback(req.RequestID, cleartexts, replayProof)
	c.Assert(err, qt.ErrorIs, ErrUnknownRequest)

	results, err := env.engine.Results(id)
	c.Assert(err, qt.IsNil)
	c.Assert(results.OptionCounts, qt.DeepEquals, [][]uint64{{0, 1}, {1, 0, 0}})
}

func TestAccumulatorHandlesChangePerVote(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x01")

	id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
	c.Assert(err, qt.IsNil)

	before, err := env.engine.EncryptedOptionCount(id, 0, 0)
	c.Assert(err, qt.IsNil)

	c.Assert(env.vote(t, id, common.HexToAddress("0x0a"), []uint64{1, 1}), qt.IsNil)

	// every accumulator handle changes even for options not chosen
	after, err := env.engine.EncryptedOptionCount(id, 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(after.String(), qt.Not(qt.Equals), before.String())

	_, err = env.engine.EncryptedOptionCount(id, 5, 0)
	c.Assert(err, qt.ErrorIs, ErrQuestionIndex)
	_, err = env.engine.EncryptedOptionCount(id, 0, 9)
	c.Assert(err, qt.ErrorIs, ErrOptionIndex)
}

func TestAuditTree(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x01")

	id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
	c.Assert(err, qt.IsNil)

	root0, err := env.engine.AuditRoot(id)
	c.Assert(err, qt.IsNil)

	c.Assert(env.vote(t, id, common.HexToAddress("0x0a"), []uint64{0, 0}), qt.IsNil)
	root1, err := env.engine.AuditRoot(id)
	c.Assert(err, qt.IsNil)
	c.Assert(root1.String(), qt.Not(qt.Equals), root0.String())

	c.Assert(env.vote(t, id, common.HexToAddress("0x0b"), []uint64{1, 2}), qt.IsNil)
	root2, err := env.engine.AuditRoot(id)
	c.Assert(err, qt.IsNil)
	c.Assert(root2.String(), qt.Not(qt.Equals), root1.String())
}

func TestEvents(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	creator := common.HexToAddress("0x01")
	events := env.engine.Subscribe()

	id, err := env.engine.CreateSurvey(creator, "transport", "", testQuestions())
	c.Assert(err, qt.IsNil)
	c.Assert(env.vote(t, id, common.HexToAddress("0x0a"), []uint64{0, 0}), qt.IsNil)
	c.Assert(env.engine.EndSurvey(creator, id), qt.IsNil)
	c.Assert(env.engine.RequestDecryption(creator, id), qt.IsNil)
	c.Assert(env.resolveDecryption(t, nil), qt.IsNil)

	expected := []EventType{EventSurveyCreated, EventVoteSubmitted, EventSurveyEnded, EventResultsDecrypted}
	for _, want := range expected {
		ev := <-events
		c.Assert(ev.Type, qt.Equals, want)
		c.Assert(ev.SurveyID, qt.Equals, id)
	}
}
