package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/fhe-survey/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// auditTreeMaxLevels is the depth of the per-survey audit merkle tree; 160
// bits covers a full Ethereum address as leaf key.
const auditTreeMaxLevels = 160

// auditTree wraps the append-only merkle tree recording every accepted voter
// of a survey. Leaves are keyed by voter address with the vote sequence
// number as value, so the tree root commits to the exact voter set and order.
type auditTree struct {
	tree *arbo.Tree
}

// auditTreeDBPrefix is the database prefix holding the audit tree of a
// survey. Writes from CommitVote go through the same prefix so the leaf
// append shares the vote transaction.
func auditTreeDBPrefix(id types.SurveyID) []byte {
	prefix := append([]byte{}, auditPrefix...)
	return append(prefix, surveyKey(id)...)
}

// audit returns the audit tree of a survey, opening (or creating) it on
// first use.
func (s *Storage) audit(id types.SurveyID) (*auditTree, error) {
	s.auditLock.Lock()
	defer s.auditLock.Unlock()

	if t, ok := s.auditTrees[id]; ok {
		return t, nil
	}
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(s.db, auditTreeDBPrefix(id)),
		MaxLevels:    auditTreeMaxLevels,
		HashFunction: arbo.HashFunctionPoseidon,
	})
	if err != nil {
		return nil, fmt.Errorf("open audit tree: %w", err)
	}
	t := &auditTree{tree: tree}
	s.auditTrees[id] = t
	return t, nil
}

// AuditRoot returns the current root of the survey's audit tree.
func (s *Storage) AuditRoot(id types.SurveyID) (types.HexBytes, error) {
	t, err := s.audit(id)
	if err != nil {
		return nil, err
	}
	root, err := t.tree.Root()
	if err != nil {
		return nil, fmt.Errorf("audit tree root: %w", err)
	}
	return root, nil
}

// GenAuditProof generates a merkle proof of membership of a voter in the
// survey's audit tree.
func (s *Storage) GenAuditProof(id types.SurveyID, voter common.Address) (types.HexBytes, error) {
	t, err := s.audit(id)
	if err != nil {
		return nil, err
	}
	_, _, siblings, exists, err := t.tree.GenProof(voter.Bytes())
	if err != nil {
		return nil, fmt.Errorf("audit proof: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return siblings, nil
}
