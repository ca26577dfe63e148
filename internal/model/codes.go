package model

// Reason codes shared across stages. Stage-local codes (detector rules,
// normalizer hazards, redactor kinds) live with their stage.
const (
	// Fetch guards.
	CodeSSRFBlocked          = "SSRF_BLOCKED"
	CodeNewSourceApproval    = "NEW_SOURCE_REQUIRES_APPROVAL"
	CodeSizeExceeded         = "SIZE_EXCEEDED"
	CodeNetworkDisabled      = "NETWORK_DISABLED"
	CodeNetworkHostBlocked   = "NETWORK_HOST_BLOCKED"
	CodeUnsupportedURLScheme = "UNSUPPORTED_URL_SCHEME"
	CodeFetchFailed          = "FETCH_FAILED"

	// File guards.
	CodePathTraversal = "PATH_TRAVERSAL"
	CodeFileNotFound  = "FILE_NOT_FOUND"
	CodeInvalidMode   = "INVALID_MODE"

	// Derived and pipeline-level codes.
	CodeSecretExfil   = "SECRET_EXFIL"
	CodeInternalError = "INTERNAL_ERROR"
)
