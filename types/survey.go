package types

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SurveyID identifies a survey in the ledger. IDs are monotonically assigned
// starting at 1; zero is never a valid survey ID.
type SurveyID uint64

func (id SurveyID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Question is an immutable survey prompt with its ordered option labels.
// The encrypted per-option accumulators are kept separately in the storage,
// keyed by (survey, question index, option index).
type Question struct {
	Text    string   `json:"text"    cbor:"0,keyasint,omitempty"`
	Options []string `json:"options" cbor:"1,keyasint,omitempty"`
}

// Survey holds the immutable definition and the mutable lifecycle state of a
// survey. Questions are created atomically with the survey and never change
// afterwards.
type Survey struct {
	ID               SurveyID       `json:"id"               cbor:"0,keyasint,omitempty"`
	Title            string         `json:"title"            cbor:"1,keyasint,omitempty"`
	Description      string         `json:"description"      cbor:"2,keyasint,omitempty"`
	Creator          common.Address `json:"creator"          cbor:"3,keyasint,omitempty"`
	Active           bool           `json:"isActive"         cbor:"4,keyasint"`
	ResultsDecrypted bool           `json:"resultsDecrypted" cbor:"5,keyasint"`
	TotalVotes       uint64         `json:"totalVotes"       cbor:"6,keyasint"`
	CreatedAt        time.Time      `json:"createdAt"        cbor:"7,keyasint,omitempty"`
	Questions        []Question     `json:"questions"        cbor:"8,keyasint,omitempty"`
}

// QuestionCount returns the number of questions, fixed at creation.
func (s *Survey) QuestionCount() int {
	return len(s.Questions)
}

// OptionLengths returns the option list length of every question, in question
// order. It is the reconstruction metadata registered with a decryption
// request to split the oracle's flat cleartext array back into per-question
// groups.
func (s *Survey) OptionLengths() []int {
	lengths := make([]int, len(s.Questions))
	for i, q := range s.Questions {
		lengths[i] = len(q.Options)
	}
	return lengths
}

// SurveyResults holds the cleartext per-option counts of a survey once the
// decryption oracle has resolved them. Immutable once written.
type SurveyResults struct {
	SurveyID     SurveyID   `json:"surveyId"     cbor:"0,keyasint,omitempty"`
	OptionCounts [][]uint64 `json:"optionCounts" cbor:"1,keyasint,omitempty"`
	DecryptedAt  time.Time  `json:"decryptedAt"  cbor:"2,keyasint,omitempty"`
}
