// Package client provides the voter-side helper that turns cleartext survey
// choices into the encrypted handles and input proof the engine accepts.
package client

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/fhe-survey/fhe"
	"github.com/vocdoni/fhe-survey/types"
)

// EncryptChoices encrypts one option index per survey question through the
// coprocessor gateway and returns the handles plus the attestation proof
// binding them to the voter and the engine address. Choices are validated
// against the survey definition before anything is encrypted.
func EncryptChoices(gateway *fhe.Coprocessor, survey *types.Survey, voter, engineAddr common.Address, choices []uint64) ([]types.HexBytes, types.HexBytes, error) {
	if len(choices) != survey.QuestionCount() {
		return nil, nil, fmt.Errorf("expected %d choices, got %d", survey.QuestionCount(), len(choices))
	}
	for qi, choice := range choices {
		if choice >= uint64(len(survey.Questions[qi].Options)) {
			return nil, nil, fmt.Errorf("choice %d out of range for question %d", choice, qi)
		}
	}
	return gateway.EncryptInput(voter, engineAddr, choices)
}
