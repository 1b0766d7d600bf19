package chat

import "errors"

// Failure taxonomy shared by the store, search and conversation layers.
// Every error is scoped to the single turn or query that raised it; none
// is treated as fatal by the server.
var (
	// ErrValidation marks a message with missing or malformed fields. The
	// message is rejected and nothing is persisted.
	ErrValidation = errors.New("invalid message")

	// ErrStorageUnavailable marks a failed write or scan against the
	// message store. The turn aborts after the failed call.
	ErrStorageUnavailable = errors.New("message store unavailable")

	// ErrCompletionFailed marks a completion provider failure (unreachable,
	// timed out, or a malformed reply). The user turn stays persisted and
	// no assistant turn is appended.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrSearchUnavailable marks a search backend failure, as opposed to a
	// legitimate query with zero hits.
	ErrSearchUnavailable = errors.New("search unavailable")
)
