package api

import (
	"encoding/json"
	"net/http"

	"github.com/vocdoni/fhe-survey/crypto/ethereum"
	"github.com/vocdoni/fhe-survey/log"
)

// newVote submits an encrypted vote to a survey
// POST /surveys/{surveyId}/votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	surveyID, ok := surveyIDParam(w, r)
	if !ok {
		return
	}
	vote := &Vote{}
	if err := json.NewDecoder(r.Body).Decode(vote); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if err := a.engine.SubmitVotes(vote.Voter, surveyID, vote.Choices, vote.Proof); err != nil {
		engineError(err).Write(w)
		return
	}
	log.Infow("vote accepted", "surveyId", surveyID, "voter", vote.Voter.Hex())
	httpWriteOK(w)
}

// endSurvey deactivates a survey on behalf of its creator
// POST /surveys/{surveyId}/end
func (a *API) endSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID, ok := surveyIDParam(w, r)
	if !ok {
		return
	}
	action := &SurveyAction{}
	if err := json.NewDecoder(r.Body).Decode(action); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	caller, err := ethereum.AddrFromSignature(ActionMessage("endSurvey", surveyID), action.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	if err := a.engine.EndSurvey(caller, surveyID); err != nil {
		engineError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// requestDecryption asks the oracle to decrypt the survey results
// POST /surveys/{surveyId}/decryption
func (a *API) requestDecryption(w http.ResponseWriter, r *http.Request) {
	surveyID, ok := surveyIDParam(w, r)
	if !ok {
		return
	}
	action := &SurveyAction{}
	if err := json.NewDecoder(r.Body).Decode(action); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	caller, err := ethereum.AddrFromSignature(ActionMessage("requestDecryption", surveyID), action.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	if err := a.engine.RequestDecryption(caller, surveyID); err != nil {
		engineError(err).Write(w)
		return
	}
	httpWriteOK(w)
}
