package model

import "errors"

// Sentinel errors shared by the retrieval and agent layers
var (
	// ErrEmbeddingService means the embedding service was unreachable or
	// returned malformed vectors. Fatal at index build time.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrEmbeddingModelMismatch means an index is queried with an embedder
	// other than the one it was built with.
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")

	// ErrPolicyUnavailable means the policy decision point could not answer.
	// The check that raised it is always treated as a deny.
	ErrPolicyUnavailable = errors.New("policy decision point unavailable")

	// ErrAgentStepLimitExceeded means the reasoning loop hit its step bound
	// without producing a final answer.
	ErrAgentStepLimitExceeded = errors.New("agent step limit exceeded")

	// ErrUpstreamModel wraps failures of the language-model service
	ErrUpstreamModel = errors.New("upstream model error")

	// ErrDuplicateDocumentID means two corpus files derive the same id
	ErrDuplicateDocumentID = errors.New("duplicate document id")

	// ErrEmptyCorpus is raised only when empty corpora are configured to be rejected
	ErrEmptyCorpus = errors.New("corpus contains no documents")

	ErrInvalidArgument = errors.New("invalid argument")
)
