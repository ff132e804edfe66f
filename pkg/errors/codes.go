package errors

import (
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are prefixed by the module that owns them.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Identifier Error Codes
const (
	ErrCodeInvalidSiret ErrorCode = "ID_001"
	ErrCodeInvalidSiren ErrorCode = "ID_002"
	ErrCodeInvalidUai   ErrorCode = "ID_003"
)

// Certification Error Codes
const (
	ErrCodeCfdNotFound         ErrorCode = "CERT_001"
	ErrCodeRncpNotFound        ErrorCode = "CERT_002"
	ErrCodePeriodeIncoherente  ErrorCode = "CERT_003"
	ErrCodeCertificationSource ErrorCode = "CERT_004"
)

// Organisme Error Codes
const (
	ErrCodeRegistryUnavailable ErrorCode = "ORG_001"
	ErrCodeRegistryRateLimited ErrorCode = "ORG_002"
	ErrCodeRegistryParseError  ErrorCode = "ORG_003"
)

// Formation Error Codes
const (
	ErrCodeCommuneNotFound  ErrorCode = "FORM_001"
	ErrCodeGeoPointInvalid  ErrorCode = "FORM_002"
	ErrCodeInvalidModalite  ErrorCode = "FORM_003"
	ErrCodeSessionUnmatched ErrorCode = "FORM_004"
)

// Messaging Error Codes
const (
	ErrCodeMessagePublishFailed ErrorCode = "MSG_001"
	ErrCodeMessageTooLarge      ErrorCode = "MSG_002"
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",

	ErrCodeInvalidSiret: "invalid siret",
	ErrCodeInvalidSiren: "invalid siren",
	ErrCodeInvalidUai:   "invalid uai",

	ErrCodeCfdNotFound:         "cfd not found",
	ErrCodeRncpNotFound:        "rncp not found",
	ErrCodePeriodeIncoherente:  "validity period ends before it starts",
	ErrCodeCertificationSource: "certification source record unusable",

	ErrCodeRegistryUnavailable: "company registry unavailable",
	ErrCodeRegistryRateLimited: "company registry rate limited",
	ErrCodeRegistryParseError:  "failed to parse company registry response",

	ErrCodeCommuneNotFound:  "commune not found",
	ErrCodeGeoPointInvalid:  "geo point unparsable",
	ErrCodeInvalidModalite:  "invalid modalite",
	ErrCodeSessionUnmatched: "session boundary has no valid counterpart",

	ErrCodeMessagePublishFailed: "failed to publish message",
	ErrCodeMessageTooLarge:      "message too large",
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" && len(parts) > 1 {
		return parts[0]
	}
	return "UNKNOWN"
}

// IsRowFatal reports whether a code aborts the build of a single source row
// without being an infrastructure failure. Such rows are skipped and the batch
// continues.
func IsRowFatal(code ErrorCode) bool {
	switch ModuleForCode(code) {
	case "ID", "CERT", "FORM":
		return code != ErrCodePeriodeIncoherente
	}
	return false
}
