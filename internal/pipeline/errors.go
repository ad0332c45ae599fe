package pipeline

import (
	"fmt"
	"strings"
)

// friendlyErrors maps low-level error substrings to messages a user can
// act on. First match wins, checked in order.
var friendlyErrors = []struct {
	pattern string
	message string
}{
	{"connection refused", "Please make sure the trading gateway is running, then refresh."},
	{"failed to connect", "Please make sure the trading gateway is running, then refresh."},
	{"feed unavailable", "Please make sure the trading gateway is running, then refresh."},
	{"not connected", "The trading gateway isn't responding. Is it open?"},
	{"timeout", "The trading gateway is taking too long to respond. Please try again."},
	{"deadline exceeded", "The trading gateway is taking too long to respond. Please try again."},
	{"no market data", "Couldn't get market data. The market may be closed."},
	{"rate limit", "Too many requests. Please wait a moment and try again."},
	{"429", "Too many requests. Please wait a moment and try again."},
}

// FriendlyError converts a technical error into a short user-facing
// message. Unknown errors are passed through with a generic prefix.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	for _, fe := range friendlyErrors {
		if strings.Contains(lower, fe.pattern) {
			return fe.message
		}
	}
	return fmt.Sprintf("Something went wrong: %v", err)
}
