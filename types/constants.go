package types

const (
	// MinOptionsPerQuestion is the minimum number of answer options a
	// question must carry.
	MinOptionsPerQuestion = 2
	// MaxOptionsPerQuestion bounds the per-question homomorphic workload of
	// a single vote submission.
	MaxOptionsPerQuestion = 64
	// MaxQuestionsPerSurvey bounds the number of questions of a survey.
	MaxQuestionsPerSurvey = 32
	// HandleSize is the size in bytes of an opaque ciphertext handle.
	HandleSize = 32
)
