package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/fhe-survey/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// voteMark is the membership record stored for each voter of a survey.
type voteMark struct {
	Sequence uint64 `cbor:"0,keyasint"`
}

// AccumulatorUpdate carries the new encrypted accumulator handle of a single
// option, produced by one vote submission.
type AccumulatorUpdate struct {
	Question int
	Option   int
	Handle   types.HexBytes
}

// HasVoted reports whether the voter is already a member of the survey's
// hasVoted set.
func (s *Storage) HasVoted(id types.SurveyID, voter common.Address) (bool, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, votedPrefix)
	if _, err := rd.Get(votedKey(id, voter.Bytes())); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Accumulator returns the encrypted accumulator handle of the given option.
func (s *Storage) Accumulator(id types.SurveyID, question, option int) (types.HexBytes, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, accumulatorPrefix)
	data, err := rd.Get(accumulatorKey(id, question, option))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	handle := make(types.HexBytes, len(data))
	copy(handle, data)
	return handle, nil
}

// CommitVote applies the full effect of one accepted vote in a single write
// transaction: the voter joins the hasVoted set, every option accumulator is
// replaced with its new handle, the survey record (with its incremented
// TotalVotes) is stored and the voter is appended to the audit tree. Either
// all of it lands or none of it does, so the audit tree can never diverge
// from the hasVoted set.
func (s *Storage) CommitVote(survey *types.Survey, voter common.Address, updates []AccumulatorUpdate) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	tx := s.db.WriteTx()

	voted := prefixeddb.NewPrefixedWriteTx(tx, votedPrefix)
	mark, err := encodeArtifact(voteMark{Sequence: survey.TotalVotes})
	if err != nil {
		tx.Discard()
		return err
	}
	if err := voted.Set(votedKey(survey.ID, voter.Bytes()), mark); err != nil {
		tx.Discard()
		return err
	}

	acc := prefixeddb.NewPrefixedWriteTx(tx, accumulatorPrefix)
	for _, u := range updates {
		if err := acc.Set(accumulatorKey(survey.ID, u.Question, u.Option), u.Handle); err != nil {
			tx.Discard()
			return err
		}
	}

	data, err := encodeArtifact(survey)
	if err != nil {
		tx.Discard()
		return err
	}
	sv := prefixeddb.NewPrefixedWriteTx(tx, surveyPrefix)
	if err := sv.Set(surveyKey(survey.ID), data); err != nil {
		tx.Discard()
		return err
	}

	audit, err := s.audit(survey.ID)
	if err != nil {
		tx.Discard()
		return err
	}
	sequence := make([]byte, 8)
	binary.BigEndian.PutUint64(sequence, survey.TotalVotes)
	auditTx := prefixeddb.NewPrefixedWriteTx(tx, auditTreeDBPrefix(survey.ID))
	if err := audit.tree.AddWithTx(auditTx, voter.Bytes(), sequence); err != nil {
		tx.Discard()
		return fmt.Errorf("append audit leaf: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vote: %w", err)
	}
	return nil
}
