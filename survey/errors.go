package survey

import "errors"

var (
	// ErrSurveyNotFound is returned when the survey id does not exist.
	ErrSurveyNotFound = errors.New("survey not found")
	// ErrEmptyTitle is returned when a survey is created with no title.
	ErrEmptyTitle = errors.New("survey title cannot be empty")
	// ErrNoQuestions is returned when a survey is created without questions.
	ErrNoQuestions = errors.New("survey must have at least one question")
	// ErrTooManyQuestions is returned when a survey exceeds the question limit.
	ErrTooManyQuestions = errors.New("too many questions")
	// ErrEmptyQuestionText is returned when a question has no text.
	ErrEmptyQuestionText = errors.New("question text cannot be empty")
	// ErrTooFewOptions is returned when a question has less than two options.
	ErrTooFewOptions = errors.New("question must have at least two options")
	// ErrTooManyOptions is returned when a question exceeds the option limit.
	ErrTooManyOptions = errors.New("too many options")
	// ErrSurveyInactive is returned when voting on an ended survey.
	ErrSurveyInactive = errors.New("survey is not active")
	// ErrAlreadyVoted is returned when a voter submits a second vote.
	ErrAlreadyVoted = errors.New("already voted in this survey")
	// ErrVoteLengthMismatch is returned when the number of encrypted choices
	// does not match the survey's question count.
	ErrVoteLengthMismatch = errors.New("encrypted choices length mismatch")
	// ErrNotCreator is returned when a creator-only operation is called by
	// another identity.
	ErrNotCreator = errors.New("caller is not the survey creator")
	// ErrAlreadyEnded is returned when ending an already ended survey.
	ErrAlreadyEnded = errors.New("survey already ended")
	// ErrStillActive is returned when requesting decryption of a survey that
	// has not been ended yet.
	ErrStillActive = errors.New("survey is still active")
	// ErrAlreadyDecrypted is returned when requesting decryption of a survey
	// whose results are already available.
	ErrAlreadyDecrypted = errors.New("results already decrypted")
	// ErrUnknownRequest is returned by the decryption callback when the
	// request id does not match any pending request.
	ErrUnknownRequest = errors.New("unknown decryption request")
	// ErrInvalidCallbackProof is returned when the oracle signature of a
	// decryption callback does not validate.
	ErrInvalidCallbackProof = errors.New("invalid decryption callback proof")
	// ErrCleartextsMismatch is returned when the callback cleartexts do not
	// match the shape recorded at request time.
	ErrCleartextsMismatch = errors.New("cleartexts do not match request shape")
	// ErrQuestionIndex is returned when a question index is out of range.
	ErrQuestionIndex = errors.New("question index out of range")
	// ErrOptionIndex is returned when an option index is out of range.
	ErrOptionIndex = errors.New("option index out of range")
	// ErrResultsNotAvailable is returned when decrypted results are requested
	// before the oracle callback has resolved.
	ErrResultsNotAvailable = errors.New("results not available")
)
