// Package survey implements the Survey Ledger & Tally Engine: it owns all
// survey, question and vote state, accumulates encrypted per-option counters
// through the FHE coprocessor, and drives the asynchronous decryption
// request/callback protocol with the oracle.
//
// Every state-mutating operation runs under a single lock, emulating the
// serialized transaction environment of a ledger: calls execute atomically
// with respect to each other and either apply completely or not at all.
package survey

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vocdoni/fhe-survey/crypto/ethereum"
	"github.com/vocdoni/fhe-survey/fhe"
	"github.com/vocdoni/fhe-survey/log"
	"github.com/vocdoni/fhe-survey/storage"
	"github.com/vocdoni/fhe-survey/types"
)

// Engine is the survey ledger and tally engine.
type Engine struct {
	stg        *storage.Storage
	cop        *fhe.Coprocessor
	address    common.Address
	oracleAddr common.Address

	// lock provides the serial-transaction guarantee: one state-mutating
	// operation at a time, run to completion.
	lock sync.Mutex

	events eventBus
}

// Config collects the collaborators and trusted identities of the engine.
type Config struct {
	Storage     *storage.Storage
	Coprocessor *fhe.Coprocessor
	// Address is the engine's own identity, used to bind encrypted inputs
	// to this ledger instance. If zero, a deterministic default is used.
	Address common.Address
	// OracleAddress is the only identity whose decryption callback
	// signatures are accepted.
	OracleAddress common.Address
}

// DefaultEngineAddress is the engine identity used when none is configured.
var DefaultEngineAddress = common.BytesToAddress(ethereum.HashRaw([]byte("fhe-survey-engine"))[:20])

// NewEngine creates a survey engine from the given configuration.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Storage == nil {
		return nil, fmt.Errorf("missing storage")
	}
	if cfg.Coprocessor == nil {
		return nil, fmt.Errorf("missing coprocessor")
	}
	addr := cfg.Address
	if addr == (common.Address{}) {
		addr = DefaultEngineAddress
	}
	return &Engine{
		stg:        cfg.Storage,
		cop:        cfg.Coprocessor,
		address:    addr,
		oracleAddr: cfg.OracleAddress,
	}, nil
}

// Address returns the engine identity encrypted inputs must be bound to.
func (e *Engine) Address() common.Address {
	return e.address
}

// Subscribe returns a channel receiving every state transition event from
// now on. Slow consumers miss events rather than block the engine.
func (e *Engine) Subscribe() <-chan Event {
	return e.events.subscribe()
}

// CreateSurvey validates and stores a new survey with one encrypted-zero
// accumulator per option, and returns its id. No state is left behind if any
// precondition fails.
func (e *Engine) CreateSurvey(creator common.Address, title, description string, questions []types.Question) (types.SurveyID, error) {
	if title == "" {
		return 0, ErrEmptyTitle
	}
	if len(questions) == 0 {
		return 0, ErrNoQuestions
	}
	if len(questions) > types.MaxQuestionsPerSurvey {
		return 0, ErrTooManyQuestions
	}
	for i, q := range questions {
		if q.Text == "" {
			return 0, fmt.Errorf("%w: question %d", ErrEmptyQuestionText, i)
		}
		if len(q.Options) < types.MinOptionsPerQuestion {
			return 0, fmt.Errorf("%w: question %d", ErrTooFewOptions, i)
		}
		if len(q.Options) > types.MaxOptionsPerQuestion {
			return 0, fmt.Errorf("%w: question %d", ErrTooManyOptions, i)
		}
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	var accumulators []storage.AccumulatorUpdate
	for qi, q := range questions {
		for oi := range q.Options {
			handle, err := e.cop.TrivialEncrypt(0)
			if err != nil {
				return 0, fmt.Errorf("initialize accumulator: %w", err)
			}
			accumulators = append(accumulators, storage.AccumulatorUpdate{
				Question: qi,
				Option:   oi,
				Handle:   handle,
			})
		}
	}
	survey := &types.Survey{
		Title:       title,
		Description: description,
		Creator:     creator,
		Active:      true,
		CreatedAt:   time.Now(),
		Questions:   questions,
	}
	// id allocation, accumulators and the survey record land in one
	// transaction, so a failed creation leaves no state behind
	id, err := e.stg.CommitSurveyCreation(survey, accumulators)
	if err != nil {
		return 0, fmt.Errorf("store survey: %w", err)
	}
	log.Infow("survey created", "surveyId", id, "creator", creator.Hex(), "questions", len(questions))
	e.events.publish(Event{
		Type:      EventSurveyCreated,
		SurveyID:  id,
		Address:   creator,
		Title:     title,
		Timestamp: time.Now(),
	})
	return id, nil
}

// SubmitVotes accepts one encrypted choice per question from a voter. The
// input proof is verified before any counter is touched. Tallying performs
// the same homomorphic work for every option of every question regardless of
// which option was chosen: an equality gate, a selection gate and one
// homomorphic addition per option. That unconditional workload is what keeps
// the chosen option unobservable from the outside.
func (e *Engine) SubmitVotes(voter common.Address, id types.SurveyID, choices []types.HexBytes, proof types.HexBytes) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	survey, err := e.survey(id)
	if err != nil {
		return err
	}
	if !survey.Active {
		return ErrSurveyInactive
	}
	voted, err := e.stg.HasVoted(id, voter)
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}
	if len(choices) != survey.QuestionCount() {
		return fmt.Errorf("%w: got %d, want %d", ErrVoteLengthMismatch, len(choices), survey.QuestionCount())
	}
	// verification first, mutation second
	if err := e.cop.VerifyInput(choices, voter, e.address, proof); err != nil {
		return err
	}

	var updates []storage.AccumulatorUpdate
	for qi, q := range survey.Questions {
		for oi := range q.Options {
			acc, err := e.stg.Accumulator(id, qi, oi)
			if err != nil {
				return fmt.Errorf("load accumulator: %w", err)
			}
			isChosen, err := e.cop.EqConst(choices[qi], uint64(oi))
			if err != nil {
				return err
			}
			one, err := e.cop.TrivialEncrypt(1)
			if err != nil {
				return err
			}
			zero, err := e.cop.TrivialEncrypt(0)
			if err != nil {
				return err
			}
			increment, err := e.cop.Select(isChosen, one, zero)
			if err != nil {
				return err
			}
			newAcc, err := e.cop.Add(acc, increment)
			if err != nil {
				return err
			}
			updates = append(updates, storage.AccumulatorUpdate{
				Question: qi,
				Option:   oi,
				Handle:   newAcc,
			})
		}
	}

	survey.TotalVotes++
	if err := e.stg.CommitVote(survey, voter, updates); err != nil {
		return err
	}
	log.Infow("vote submitted", "surveyId", id, "voter", voter.Hex(), "totalVotes", survey.TotalVotes)
	e.events.publish(Event{
		Type:      EventVoteSubmitted,
		SurveyID:  id,
		Address:   voter,
		Timestamp: time.Now(),
	})
	return nil
}

// EndSurvey irreversibly deactivates a survey. Only the creator can end it,
// and only while it is still active.
func (e *Engine) EndSurvey(caller common.Address, id types.SurveyID) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	survey, err := e.survey(id)
	if err != nil {
		return err
	}
	if survey.Creator != caller {
		return ErrNotCreator
	}
	if !survey.Active {
		return ErrAlreadyEnded
	}
	survey.Active = false
	if err := e.stg.SetSurvey(survey); err != nil {
		return err
	}
	log.Infow("survey ended", "surveyId", id, "totalVotes", survey.TotalVotes)
	e.events.publish(Event{
		Type:      EventSurveyEnded,
		SurveyID:  id,
		Address:   caller,
		Timestamp: time.Now(),
	})
	return nil
}

// RequestDecryption gathers every option accumulator handle of the survey, in
// question-ascending then option-ascending order, and registers the batch as
// a pending request for the decryption oracle. Callable only by the creator,
// only once the survey has ended and only while its results are still
// encrypted.
func (e *Engine) RequestDecryption(caller common.Address, id types.SurveyID) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	survey, err := e.survey(id)
	if err != nil {
		return err
	}
	if survey.Creator != caller {
		return ErrNotCreator
	}
	if survey.Active {
		return ErrStillActive
	}
	if survey.ResultsDecrypted {
		return ErrAlreadyDecrypted
	}

	var handles []types.HexBytes
	for qi, q := range survey.Questions {
		for oi := range q.Options {
			handle, err := e.stg.Accumulator(id, qi, oi)
			if err != nil {
				return fmt.Errorf("gather accumulator: %w", err)
			}
			handles = append(handles, handle)
		}
	}
	requestID := uuid.New()
	req := &storage.DecryptionRequest{
		RequestID:     requestID[:],
		SurveyID:      id,
		OptionLengths: survey.OptionLengths(),
		Handles:       handles,
		CreatedAt:     time.Now(),
	}
	if err := e.stg.PushDecryptionRequest(req); err != nil {
		return fmt.Errorf("register decryption request: %w", err)
	}
	log.Infow("decryption requested", "surveyId", id, "requestId", req.RequestID.String(), "handles", len(handles))
	return nil
}

// CallbackMessage builds the byte message the oracle signs over a decryption
// result: the request id followed by each cleartext as 8 bytes big-endian.
// The engine verifies the callback signature against this exact encoding.
func CallbackMessage(requestID types.HexBytes, cleartexts []uint64) []byte {
	var buf bytes.Buffer
	buf.Write(requestID)
	for _, v := range cleartexts {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		buf.Write(b)
	}
	return buf.Bytes()
}

// DecryptionCallback resolves a pending decryption request with the oracle's
// cleartexts. The proof must be a valid oracle signature over the request id
// and the cleartexts; it is checked before anything else, and an unknown or
// already-consumed request id fails without touching any state. On success
// the flat cleartext array is split back into per-question groups using the
// option lengths recorded at request time, the results are stored and the
// survey transitions to decrypted, exactly once.
func (e *Engine) DecryptionCallback(requestID types.HexBytes, cleartexts []uint64, proof types.HexBytes) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	addr, err := ethereum.AddrFromSignature(CallbackMessage(requestID, cleartexts), proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCallbackProof, err)
	}
	if addr != e.oracleAddr {
		return ErrInvalidCallbackProof
	}

	req, err := e.stg.PendingDecryptionRequest(requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUnknownRequest
	}
	if err != nil {
		return err
	}
	survey, err := e.survey(req.SurveyID)
	if err != nil {
		return err
	}

	total := 0
	for _, l := range req.OptionLengths {
		total += l
	}
	if len(cleartexts) != total {
		return fmt.Errorf("%w: got %d values, want %d", ErrCleartextsMismatch, len(cleartexts), total)
	}
	counts := make([][]uint64, len(req.OptionLengths))
	offset := 0
	for qi, l := range req.OptionLengths {
		counts[qi] = append([]uint64{}, cleartexts[offset:offset+l]...)
		offset += l
	}

	survey.ResultsDecrypted = true
	results := &types.SurveyResults{
		SurveyID:     survey.ID,
		OptionCounts: counts,
		DecryptedAt:  time.Now(),
	}
	if err := e.stg.ConsumeDecryptionRequest(survey, results, requestID); err != nil {
		return fmt.Errorf("consume decryption request: %w", err)
	}
	log.Infow("results decrypted", "surveyId", survey.ID, "requestId", requestID.String())
	e.events.publish(Event{
		Type:      EventResultsDecrypted,
		SurveyID:  survey.ID,
		Timestamp: time.Now(),
	})
	return nil
}

// survey loads a survey, mapping storage.ErrNotFound to ErrSurveyNotFound.
func (e *Engine) survey(id types.SurveyID) (*types.Survey, error) {
	survey, err := e.stg.Survey(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSurveyNotFound
	}
	if err != nil {
		return nil, err
	}
	return survey, nil
}

// Survey returns the full survey record.
func (e *Engine) Survey(id types.SurveyID) (*types.Survey, error) {
	return e.survey(id)
}

// Question returns the text and options of one question of a survey.
func (e *Engine) Question(id types.SurveyID, index int) (*types.Question, error) {
	survey, err := e.survey(id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= survey.QuestionCount() {
		return nil, ErrQuestionIndex
	}
	return &survey.Questions[index], nil
}

// EncryptedOptionCount returns the current encrypted accumulator handle of
// an option. The handle is opaque: only the decryption oracle can resolve it.
func (e *Engine) EncryptedOptionCount(id types.SurveyID, question, option int) (types.HexBytes, error) {
	survey, err := e.survey(id)
	if err != nil {
		return nil, err
	}
	if question < 0 || question >= survey.QuestionCount() {
		return nil, ErrQuestionIndex
	}
	if option < 0 || option >= len(survey.Questions[question].Options) {
		return nil, ErrOptionIndex
	}
	return e.stg.Accumulator(id, question, option)
}

// HasVoted reports whether the voter already voted in the survey.
func (e *Engine) HasVoted(id types.SurveyID, voter common.Address) (bool, error) {
	if _, err := e.survey(id); err != nil {
		return false, err
	}
	return e.stg.HasVoted(id, voter)
}

// TotalSurveys returns the number of surveys created so far.
func (e *Engine) TotalSurveys() (uint64, error) {
	return e.stg.TotalSurveys()
}

// ListSurveys returns all survey ids in ascending order.
func (e *Engine) ListSurveys() ([]types.SurveyID, error) {
	return e.stg.ListSurveys()
}

// Results returns the decrypted per-option counts of a survey once the
// oracle callback has resolved, or ErrResultsNotAvailable before that.
func (e *Engine) Results(id types.SurveyID) (*types.SurveyResults, error) {
	if _, err := e.survey(id); err != nil {
		return nil, err
	}
	results, err := e.stg.Results(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrResultsNotAvailable
	}
	return results, err
}

// AuditRoot returns the root of the survey's append-only voter audit tree.
func (e *Engine) AuditRoot(id types.SurveyID) (types.HexBytes, error) {
	if _, err := e.survey(id); err != nil {
		return nil, err
	}
	return e.stg.AuditRoot(id)
}
