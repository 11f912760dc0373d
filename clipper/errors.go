// CLAUDE:SUMMARY Sentinel errors for the clipper service: missing credentials, unsynced page, empty image refs.
package clipper

import "errors"

// ErrNotConfigured is returned when the Notion credentials are missing.
// Operations failing with it are never queued; retrying cannot help.
var ErrNotConfigured = errors.New("clipper: notion api key and database id are not configured")

// ErrNoOpenAIKey is returned when a chat is requested without an LLM key.
var ErrNoOpenAIKey = errors.New("clipper: openai api key is not configured")

// ErrInvalidInput is returned when a request fails validation.
var ErrInvalidInput = errors.New("clipper: invalid input")
