package storage

import (
	"fmt"
	"time"

	"github.com/vocdoni/fhe-survey/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// DecryptionRequest is the transient correlation record of one oracle round
// trip. It remembers which survey the request belongs to and how to split the
// flat cleartext array back into per-question groups. The handles are listed
// question-ascending, then option-ascending, and the oracle must return the
// cleartexts in exactly that order.
type DecryptionRequest struct {
	RequestID     types.HexBytes   `cbor:"0,keyasint"`
	SurveyID      types.SurveyID   `cbor:"1,keyasint"`
	OptionLengths []int            `cbor:"2,keyasint"`
	Handles       []types.HexBytes `cbor:"3,keyasint"`
	CreatedAt     time.Time        `cbor:"4,keyasint"`
}

// PushDecryptionRequest registers a pending decryption request and enqueues
// it for the oracle, atomically.
func (s *Storage) PushDecryptionRequest(req *DecryptionRequest) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	data, err := encodeArtifact(req)
	if err != nil {
		return fmt.Errorf("encode decryption request: %w", err)
	}
	tx := s.db.WriteTx()
	pending := prefixeddb.NewPrefixedWriteTx(tx, pendingPrefix)
	if err := pending.Set(req.RequestID, data); err != nil {
		tx.Discard()
		return err
	}
	queue := prefixeddb.NewPrefixedWriteTx(tx, queuePrefix)
	if err := queue.Set(req.RequestID, []byte{1}); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// PendingDecryptionRequest loads a pending request by its id. Returns
// ErrNotFound if the request does not exist or was already consumed.
func (s *Storage) PendingDecryptionRequest(requestID types.HexBytes) (*DecryptionRequest, error) {
	req := &DecryptionRequest{}
	if err := s.getArtifact(pendingPrefix, requestID, req); err != nil {
		return nil, err
	}
	return req, nil
}

// NextDecryptionRequest returns the next queued decryption request for the
// oracle to process. Queue entries whose pending record no longer exists are
// garbage-collected on the way. Returns ErrNoMoreElements when the queue is
// empty.
func (s *Storage) NextDecryptionRequest() (*DecryptionRequest, error) {
	var ids []types.HexBytes
	rd := prefixeddb.NewPrefixedReader(s.db, queuePrefix)
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		id := make(types.HexBytes, len(k))
		copy(id, k)
		ids = append(ids, id)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate decryption queue: %w", err)
	}
	for _, id := range ids {
		req, err := s.PendingDecryptionRequest(id)
		if err == ErrNotFound {
			// consumed already, drop the stale queue entry
			if err := s.deleteArtifact(queuePrefix, id); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return req, nil
	}
	return nil, ErrNoMoreElements
}

// MarkDecryptionRequestDone removes a request from the oracle queue. The
// pending record itself is consumed by the callback, not here.
func (s *Storage) MarkDecryptionRequestDone(requestID types.HexBytes) error {
	return s.deleteArtifact(queuePrefix, requestID)
}

// ConsumeDecryptionRequest applies the full effect of a verified decryption
// callback in one write transaction: the cleartext results are stored, the
// survey record (with ResultsDecrypted set) is updated and the pending
// request record is deleted so a replayed callback cannot resolve twice.
func (s *Storage) ConsumeDecryptionRequest(survey *types.Survey, results *types.SurveyResults, requestID types.HexBytes) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	tx := s.db.WriteTx()

	resData, err := encodeArtifact(results)
	if err != nil {
		tx.Discard()
		return err
	}
	res := prefixeddb.NewPrefixedWriteTx(tx, resultsPrefix)
	if err := res.Set(surveyKey(survey.ID), resData); err != nil {
		tx.Discard()
		return err
	}

	svData, err := encodeArtifact(survey)
	if err != nil {
		tx.Discard()
		return err
	}
	sv := prefixeddb.NewPrefixedWriteTx(tx, surveyPrefix)
	if err := sv.Set(surveyKey(survey.ID), svData); err != nil {
		tx.Discard()
		return err
	}

	pending := prefixeddb.NewPrefixedWriteTx(tx, pendingPrefix)
	if err := pending.Delete(requestID); err != nil {
		tx.Discard()
		return err
	}
	queue := prefixeddb.NewPrefixedWriteTx(tx, queuePrefix)
	if err := queue.Delete(requestID); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// Results returns the decrypted results of a survey, or ErrNotFound if the
// oracle callback has not resolved yet.
func (s *Storage) Results(id types.SurveyID) (*types.SurveyResults, error) {
	results := &types.SurveyResults{}
	if err := s.getArtifact(resultsPrefix, surveyKey(id), results); err != nil {
		return nil, err
	}
	return results, nil
}
