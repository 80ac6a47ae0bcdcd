package common

// Business codes carried in the response envelope.
const (
	CodeInvalidJSON       = 10001
	CodeValidation        = 10002
	CodeIdempotencyKey    = 10003
	CodeModelNotFound     = 40002
	CodeCredentialMissing = 40003
	CodeUserKeyRejected   = 40005
	CodeUnauthorized      = 40101
	CodeNotFound          = 40401
	CodeJobNotFound       = 40402
	CodeConflict          = 40901
	CodeRateLimited       = 42901
	CodeUpstream          = 50201
	CodeUpstreamRateLimit = 42902
	CodeInternal          = 50001
	CodePersistence       = 50002
	CodeEnqueue           = 50003
	CodeUnavailable       = 50301
)
