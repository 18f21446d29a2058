package semtok

import "errors"

var (
	// ErrCancelled is returned to highlight queries that arrived before the
	// document had any tokens.  It is not a failure: the tokens are now
	// available and the caller should issue the query again.
	ErrCancelled = errors.New("highlight query cancelled: tokens arrived, query again")

	// ErrRangeResolution is returned when a screen range cannot be mapped to
	// a document position range, usually because the text changed under it.
	ErrRangeResolution = errors.New("cannot resolve screen range to document positions")

	// ErrNoState is returned by ApplyDelta when the store has never received a
	// full response.  It means requests were sequenced wrongly upstream.
	ErrNoState = errors.New("delta applied before any full token response")

	// ErrMalformedDelta is returned when a delta's edits do not fit the
	// stored token array.  The stored state is left unchanged.
	ErrMalformedDelta = errors.New("malformed semantic token delta")
)
