package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vocdoni/fhe-survey/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Survey retrieves a survey from the storage. It returns ErrNotFound if the
// survey does not exist.
func (s *Storage) Survey(id types.SurveyID) (*types.Survey, error) {
	survey := &types.Survey{}
	if err := s.getArtifact(surveyPrefix, surveyKey(id), survey); err != nil {
		return nil, err
	}
	return survey, nil
}

// SetSurvey stores a survey into the storage, overwriting any previous state
// under the same id.
func (s *Storage) SetSurvey(survey *types.Survey) error {
	if survey == nil {
		return fmt.Errorf("nil survey data")
	}
	return s.setArtifact(surveyPrefix, surveyKey(survey.ID), survey)
}

// CommitSurveyCreation allocates the next survey id and stores the survey
// record together with the initial encrypted accumulator handles of every
// option, all in a single write transaction. A failure leaves the id sequence
// and every table untouched. The allocated id is written into the survey and
// returned.
func (s *Storage) CommitSurveyCreation(survey *types.Survey, accumulators []AccumulatorUpdate) (types.SurveyID, error) {
	if survey == nil {
		return 0, fmt.Errorf("nil survey data")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	tx := s.db.WriteTx()

	meta := prefixeddb.NewPrefixedWriteTx(tx, metadataPrefix)
	var last uint64
	if data, err := meta.Get(surveySeqKey); err == nil {
		last = binary.BigEndian.Uint64(data)
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		tx.Discard()
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, last+1)
	if err := meta.Set(surveySeqKey, buf); err != nil {
		tx.Discard()
		return 0, err
	}
	survey.ID = types.SurveyID(last + 1)

	acc := prefixeddb.NewPrefixedWriteTx(tx, accumulatorPrefix)
	for _, u := range accumulators {
		if err := acc.Set(accumulatorKey(survey.ID, u.Question, u.Option), u.Handle); err != nil {
			tx.Discard()
			return 0, err
		}
	}

	data, err := encodeArtifact(survey)
	if err != nil {
		tx.Discard()
		return 0, err
	}
	sv := prefixeddb.NewPrefixedWriteTx(tx, surveyPrefix)
	if err := sv.Set(surveyKey(survey.ID), data); err != nil {
		tx.Discard()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit survey creation: %w", err)
	}
	return survey.ID, nil
}

// ListSurveys returns the ids of all stored surveys in ascending order.
func (s *Storage) ListSurveys() ([]types.SurveyID, error) {
	var ids []types.SurveyID
	rd := prefixeddb.NewPrefixedReader(s.db, surveyPrefix)
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		if len(k) == 8 {
			ids = append(ids, types.SurveyID(binary.BigEndian.Uint64(k)))
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate surveys: %w", err)
	}
	return ids, nil
}
