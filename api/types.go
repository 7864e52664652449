package api

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/fhe-survey/types"
)

// NewSurvey is the request body to create a survey. The signature must be an
// Ethereum signature by the creator over SignableContent.
type NewSurvey struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []types.Question `json:"questions"`
	Signature   types.HexBytes   `json:"signature"`
}

// SignableContent returns the byte message the creator signs to authenticate
// a survey creation request.
func (n *NewSurvey) SignableContent() ([]byte, error) {
	return json.Marshal(struct {
		Title       string           `json:"title"`
		Description string           `json:"description"`
		Questions   []types.Question `json:"questions"`
	}{n.Title, n.Description, n.Questions})
}

// NewSurveyResponse is the response to a survey creation request.
type NewSurveyResponse struct {
	SurveyID types.SurveyID `json:"surveyId"`
	Creator  common.Address `json:"creator"`
}

// SurveyList is the response to a survey listing request.
type SurveyList struct {
	Total   uint64           `json:"total"`
	Surveys []types.SurveyID `json:"surveys"`
}

// Vote is the request body to submit an encrypted vote: one coprocessor
// handle per question plus the gateway attestation proof binding them to the
// voter.
type Vote struct {
	Voter   common.Address   `json:"voter"`
	Choices []types.HexBytes `json:"choices"`
	Proof   types.HexBytes   `json:"proof"`
}

// SurveyAction is the request body for creator-only survey transitions, with
// an Ethereum signature over ActionMessage.
type SurveyAction struct {
	Signature types.HexBytes `json:"signature"`
}

// ActionMessage returns the byte message the creator signs to authenticate a
// survey transition such as ending it or requesting decryption.
func ActionMessage(action string, surveyID types.SurveyID) []byte {
	return []byte(action + surveyID.String())
}

// OptionHandle is the response carrying the encrypted accumulator handle of
// a single survey option.
type OptionHandle struct {
	Handle types.HexBytes `json:"handle"`
}

// Voted is the response to a has-voted query.
type Voted struct {
	Voted bool `json:"voted"`
}

// AuditRoot is the response carrying the root of a survey's voter audit tree.
type AuditRoot struct {
	Root types.HexBytes `json:"root"`
}

// Results is the response carrying the decrypted per-option counts.
type Results struct {
	SurveyID     types.SurveyID `json:"surveyId"`
	OptionCounts [][]uint64     `json:"optionCounts"`
	DecryptedAt  time.Time      `json:"decryptedAt"`
}
