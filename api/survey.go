package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/fhe-survey/crypto/ethereum"
	"github.com/vocdoni/fhe-survey/fhe"
	"github.com/vocdoni/fhe-survey/log"
	"github.com/vocdoni/fhe-survey/survey"
	"github.com/vocdoni/fhe-survey/types"
)

// newSurvey creates a new survey
// POST /surveys
func (a *API) newSurvey(w http.ResponseWriter, r *http.Request) {
	ns := &NewSurvey{}
	if err := json.NewDecoder(r.Body).Decode(ns); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}

	// Extract the creator address from the signature
	msg, err := ns.SignableContent()
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	creator, err := ethereum.AddrFromSignature(msg, ns.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}

	surveyID, err := a.engine.CreateSurvey(creator, ns.Title, ns.Description, ns.Questions)
	if err != nil {
		engineError(err).Write(w)
		return
	}

	log.Infow("new survey", "surveyId", surveyID, "creator", creator.Hex())
	httpWriteJSON(w, &NewSurveyResponse{SurveyID: surveyID, Creator: creator})
}

// surveyList returns the total count and the ids of all surveys
// GET /surveys
func (a *API) surveyList(w http.ResponseWriter, r *http.Request) {
	total, err := a.engine.TotalSurveys()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	ids, err := a.engine.ListSurveys()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &SurveyList{Total: total, Surveys: ids})
}

// surveyInfo returns the full survey record
// GET /surveys/{surveyId}
func (a *API) surveyInfo(w http.ResponseWriter, r *http.Request) {
	surveyID, ok := surveyIDParam(w, r)
	if !ok {
		return
	}
	srv, err := a.engine.Survey(surveyID)
	if err != nil {
		engineError(err).Write(w)
		return
	}
	httpWriteJSON(w, srv)
}

// question returns the text and options of a single question
// GET /surveys/{surveyId}/questions/{questionIndex}
func (a *API) question(w http.ResponseWriter, r *http.Request) {
	surveyID, ok := surveyIDParam(w, r)
	if !ok {
		return
	}
	qi, ok := indexParam(w, r, QuestionURLParam)
	if !ok {
		return
	}
	q, err := a.engine.Question(surveyID, qi)
	if err != nil {
		engineError(err).Write(w)
		return
	}
	httpWriteJSON(w, q)
}

// optionHandle returns the encrypted accumulator handle of an option
// GET /surveys/{surveyId}/questions/{questionIndex}/options/{optionIndex}
func (a *API) optionHandle(w http.ResponseWriter, r *http.Request) {
	surveyID, ok := surveyIDParam(w, r)
	if !ok {
		return
	}
	qi, ok := indexParam(w, r, QuestionURLParam)
	if !ok {
		return
	}
	oi, ok := indexParam(w, r, OptionURLParam)
	if !ok {
		return
	}
	handle, err := a.engine.EncryptedOptionCount(surveyID, qi, oi)
	if err != nil {
		engineError(err).Write(w)
		return
	}
	httpWriteJSON(w, &OptionHandle{Handle: handle})
}

// voted reports whether an address already voted in a survey
// GET /surveys/{surveyId}/voted/{address}
func (a *API) voted(w http.ResponseWriter, r *http.Request) {
	surveyID, ok := surveyIDParam(w, r)
	if !ok {
		return
	}
	addr := chi.URLParam(r, AddressURLParam)
	if !common.IsHexAddress(addr) {
		ErrMalformedParam.Withf("invalid address %q", addr).Write(w)
		return
	}
	voted, err := a.engine.HasVoted(surveyID, common.HexToAddress(addr))
	if err != nil {
		engineError(err).Write(w)
		return
	}
	httpWriteJSON(w, &Voted{Voted: voted})
}

// results returns the decrypted per-option counts of a survey
// GET /surveys/{surveyId}/results
func (a *API) results(w http.ResponseWriter, r *http.Request) {
	surveyID, ok := surveyIDParam(w, r)
	if !ok {
		return
	}
	res, err := a.engine.Results(surveyID)
	if err != nil {
		engineError(err).Write(w)
		return
	}
	httpWriteJSON(w, &Results{
		SurveyID:     res.SurveyID,
		OptionCounts: res.OptionCounts,
		DecryptedAt:  res.DecryptedAt,
	})
}

// auditRoot returns the root of the survey's voter audit tree
// GET /surveys/{surveyId}/audit
func (a *API) auditRoot(w http.ResponseWriter, r *http.Request) {
	surveyID, ok := surveyIDParam(w, r)
	if !ok {
		return
	}
	root, err := a.engine.AuditRoot(surveyID)
	if err != nil {
		engineError(err).Write(w)
		return
	}
	httpWriteJSON(w, &AuditRoot{Root: root})
}

// surveyIDParam parses the surveyId URL parameter, writing the API error
// itself when the parameter is malformed.
func surveyIDParam(w http.ResponseWriter, r *http.Request) (types.SurveyID, bool) {
	raw := chi.URLParam(r, SurveyURLParam)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		ErrMalformedSurveyID.Withf("invalid survey id %q", raw).Write(w)
		return 0, false
	}
	return types.SurveyID(id), true
}

// indexParam parses a non-negative integer URL parameter.
func indexParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := chi.URLParam(r, name)
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		ErrMalformedParam.Withf("invalid %s %q", name, raw).Write(w)
		return 0, false
	}
	return idx, true
}

// engineError maps engine sentinel errors to coded API errors.
func engineError(err error) Error {
	switch {
	case errors.Is(err, survey.ErrSurveyNotFound):
		return ErrSurveyNotFound
	case errors.Is(err, survey.ErrEmptyTitle),
		errors.Is(err, survey.ErrNoQuestions),
		errors.Is(err, survey.ErrTooManyQuestions),
		errors.Is(err, survey.ErrEmptyQuestionText),
		errors.Is(err, survey.ErrTooFewOptions),
		errors.Is(err, survey.ErrTooManyOptions):
		return ErrInvalidSurvey.WithErr(err)
	case errors.Is(err, survey.ErrSurveyInactive):
		return ErrSurveyInactive
	case errors.Is(err, survey.ErrAlreadyVoted):
		return ErrAlreadyVoted
	case errors.Is(err, survey.ErrVoteLengthMismatch), errors.Is(err, fhe.ErrInvalidInputProof):
		return ErrInvalidVote.WithErr(err)
	case errors.Is(err, survey.ErrNotCreator):
		return ErrNotSurveyCreator
	case errors.Is(err, survey.ErrAlreadyEnded):
		return ErrSurveyAlreadyEnded
	case errors.Is(err, survey.ErrStillActive):
		return ErrSurveyStillActive
	case errors.Is(err, survey.ErrAlreadyDecrypted):
		return ErrAlreadyDecrypted
	case errors.Is(err, survey.ErrQuestionIndex), errors.Is(err, survey.ErrOptionIndex):
		return ErrResourceNotFound.WithErr(err)
	case errors.Is(err, survey.ErrResultsNotAvailable):
		return ErrResultsNotAvailable
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
