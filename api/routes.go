package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// SurveysEndpoint is the endpoint for creating a survey and listing all of them
	SurveysEndpoint = "/surveys"
	// SurveyEndpoint is the endpoint to get a single survey info
	SurveyURLParam = "surveyId"
	SurveyEndpoint = "/surveys/{" + SurveyURLParam + "}"
	// QuestionEndpoint is the endpoint to get the text and options of a question
	QuestionURLParam = "questionIndex"
	QuestionEndpoint = SurveyEndpoint + "/questions/{" + QuestionURLParam + "}"
	// OptionEndpoint is the endpoint to get the encrypted accumulator handle of an option
	OptionURLParam = "optionIndex"
	OptionEndpoint = QuestionEndpoint + "/options/{" + OptionURLParam + "}"
	// VotedEndpoint is the endpoint to check whether an address already voted
	AddressURLParam = "address"
	VotedEndpoint   = SurveyEndpoint + "/voted/{" + AddressURLParam + "}"
	// ResultsEndpoint is the endpoint to get the decrypted results of a survey
	ResultsEndpoint = SurveyEndpoint + "/results"
	// AuditEndpoint is the endpoint to get the root of the voter audit tree
	AuditEndpoint = SurveyEndpoint + "/audit"
	// VotesEndpoint is the endpoint for submitting an encrypted vote
	VotesEndpoint = SurveyEndpoint + "/votes"
	// EndEndpoint is the endpoint for the creator to end a survey
	EndEndpoint = SurveyEndpoint + "/end"
	// DecryptionEndpoint is the endpoint for the creator to request results decryption
	DecryptionEndpoint = SurveyEndpoint + "/decryption"
)
