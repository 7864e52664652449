package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/fhe-survey/types"
)

// Artifact encoding/decoding
func encodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

// surveyKey returns the storage key of a survey: its id as 8 bytes big-endian.
func surveyKey(id types.SurveyID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

// accumulatorKey returns the composite key of a per-option encrypted
// accumulator: survey id, question index and option index, big-endian.
func accumulatorKey(id types.SurveyID, question, option int) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint64(key[:8], uint64(id))
	binary.BigEndian.PutUint16(key[8:10], uint16(question))
	binary.BigEndian.PutUint16(key[10:12], uint16(option))
	return key
}

// votedKey returns the membership key of a voter in a survey.
func votedKey(id types.SurveyID, voter []byte) []byte {
	return append(surveyKey(id), voter...)
}
