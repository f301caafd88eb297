package chat

import "strings"

// ErrorMarker is the reserved prefix identifying an assistant message as a
// diagnostic rather than genuine dialogue. Marked messages are excluded from
// future context windows and, when seen mid-stream, terminate the stream.
const ErrorMarker = "⚠️ Error"

// EmptyResponseText replaces an empty final result before persistence and
// display. It deliberately does not carry the error marker, so the turn stays
// visible in future context windows.
const EmptyResponseText = "⚠️ Empty response from the API"

// IsErrorText reports whether text is a marked diagnostic.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, ErrorMarker)
}
