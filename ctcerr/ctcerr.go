// Package ctcerr defines the error categories shared by every decoding package.
//
// Packages wrap one of the category sentinels into their own specific errors, so
// callers can test either the specific error or the category with errors.Is:
//
//	if errors.Is(err, ctcerr.ErrInput) {
//		// reject this utterance, keep the rest of the batch
//	}
package ctcerr

import "errors"

var (
	// ErrConfiguration reports an invalid decoder construction. It is never recovered.
	ErrConfiguration = errors.New("configuration error")

	// ErrInput reports a malformed utterance or hotword phrase. Only the offending
	// utterance is rejected.
	ErrInput = errors.New("input error")

	// ErrState reports misuse of a decoder state or hotword booster handle.
	ErrState = errors.New("state error")

	// ErrResource reports an unreadable or corrupt external resource such as a language
	// model file.
	ErrResource = errors.New("resource error")
)
