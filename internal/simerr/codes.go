package simerr

import "google.golang.org/grpc/codes"

// #region codes

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified error.
	CodeUnknown Code = "UNKNOWN"

	// Transition and request validation errors
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
	CodeValueOutOfDomain   Code = "VALUE_OUT_OF_DOMAIN"

	// Identifier lookup errors
	CodeUnknownDriver   Code = "UNKNOWN_DRIVER"
	CodeUnknownVariable Code = "UNKNOWN_VARIABLE"

	// Causal model errors
	CodeCausalCycle Code = "CAUSAL_CYCLE"

	// Historical data and artifact errors
	CodeDatasetColumnMissing Code = "DATASET_COLUMN_MISSING"
	CodeArtifactNotFound     Code = "ARTIFACT_NOT_FOUND"
	CodeArtifactCorrupt      Code = "ARTIFACT_CORRUPT"
)

// #endregion codes

// #region grpc-mapping

// GRPCCode maps domain codes to gRPC status codes so a transport layer
// can classify failures without inspecting message strings.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - caller handed the engine something malformed
	case CodeInvariantViolation,
		CodeValueOutOfDomain:
		return codes.InvalidArgument

	// NotFound - identifier or artifact does not exist
	case CodeUnknownDriver,
		CodeUnknownVariable,
		CodeArtifactNotFound:
		return codes.NotFound

	// FailedPrecondition - stored data cannot support the operation
	case CodeDatasetColumnMissing,
		CodeArtifactCorrupt:
		return codes.FailedPrecondition

	default:
		return codes.Internal
	}
}

// #endregion grpc-mapping
