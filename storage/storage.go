// Package storage contains all the artifacts of the survey ledger that are
// persisted in the database, using a prefixed key-value store. The following
// prefixes are used:
//   - 'm/' for metadata (survey id sequence)
//   - 's/' for surveys
//   - 'hv/' for the per-survey voter membership set
//   - 'ac/' for the encrypted per-option accumulator handles
//   - 'dr/' for decrypted survey results
//   - 'pd/' for pending decryption requests
//   - 'dq/' for the decryption request queue (consumed by the oracle)
//   - 'ct/' for the coprocessor ciphertext table
//   - 'ek/' for the coprocessor encryption keys
//   - 'at/' for the per-survey append-only audit trees
package storage

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/vocdoni/fhe-survey/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	metadataPrefix    = []byte("m/")
	surveyPrefix      = []byte("s/")
	votedPrefix       = []byte("hv/")
	accumulatorPrefix = []byte("ac/")
	resultsPrefix     = []byte("dr/")
	pendingPrefix     = []byte("pd/")
	queuePrefix       = []byte("dq/")
	ciphertextPrefix  = []byte("ct/")
	keysPrefix        = []byte("ek/")
	auditPrefix       = []byte("at/")
)

// surveySeqKey is the metadata key holding the last assigned survey id.
var surveySeqKey = []byte("surveySeq")

var (
	// ErrNotFound is returned when the artifact is not found in the storage.
	ErrNotFound = errors.New("not found")
	// ErrNoMoreElements is returned when a queue has no pending elements.
	ErrNoMoreElements = errors.New("no more elements")
)

// Storage wraps the prefixed key-value database holding all the survey ledger
// artifacts. All mutating methods are safe for concurrent use.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex

	auditLock  sync.Mutex
	auditTrees map[types.SurveyID]*auditTree
}

// New creates a new Storage instance over the given database.
func New(database db.Database) *Storage {
	return &Storage{
		db:         database,
		auditTrees: make(map[types.SurveyID]*auditTree),
	}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	s.db.Close()
}

// getArtifact retrieves and decodes an artifact from the given prefix. It
// returns ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	data, err := rd.Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return decodeArtifact(data, out)
}

// setArtifact encodes and stores an artifact under the given prefix.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// deleteArtifact removes an artifact from the given prefix. Deleting a
// non-existing key is not an error.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// TotalSurveys returns the number of surveys created so far. Ids are 1-based
// and strictly monotonic, so the last assigned id is the count.
func (s *Storage) TotalSurveys() (uint64, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, metadataPrefix)
	data, err := rd.Get(surveySeqKey)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}
