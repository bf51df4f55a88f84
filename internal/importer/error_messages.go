package importer

// error_messages.go maps technical errors to user-facing messages with codes.
//
// Codes are grouped by category so support staff can tell at a glance where
// a failed run went wrong:
//
//	VAL001-VAL099   option and header validation
//	FILE001-FILE099 reading the input file
//	DB001-DB099     catalog database
//	IMP001-IMP099   import run lifecycle and server limits
//	ERR000          anything unmatched; check the logs for the original error
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Validation
	{
		pattern: "invalid import options",
		msg: UserMessage{
			Message: "Import options are invalid",
			Action:  "Check mode, batch size, delimiter and encoding",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid csv header",
		msg: UserMessage{
			Message: "The header row is not valid",
			Action:  "The first column must be sku, followed by at least one namespace column",
			Code:    "VAL002",
		},
	},
	{
		pattern: "unknown namespace",
		msg: UserMessage{
			Message: "A column names a namespace that does not exist",
			Action:  "Rename the column to an existing namespace or register it first",
			Code:    "VAL003",
		},
	},
	{
		pattern: "empty value",
		msg: UserMessage{
			Message: "No term value was given",
			Action:  "Pass a term name or a 'parent > child' path",
			Code:    "VAL004",
		},
	},

	// File
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "parse error",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Check the delimiter and quoting of the reported line",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8 or pass the correct encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Please provide a CSV file with a header and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "file not found",
		msg: UserMessage{
			Message: "The file does not exist",
			Action:  "Check the path and try again",
			Code:    "FILE006",
		},
	},

	// Database
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the catalog database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "A referenced product or term no longer exists",
			Action:  "Re-run the import; the catalog changed during the run",
			Code:    "DB004",
		},
	},

	// Import lifecycle
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import report not found",
			Action:  "The report may have expired. Check the log directory or re-run the import",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Start a new import when ready",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Import timed out",
			Action:  "Split the file or raise the import timeout",
			Code:    "IMP004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later",
			Code:    "IMP004",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "IMP005",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty message for nil and the default message when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}

// FormatUserError returns a single-line message: "message. action (code)".
func FormatUserError(err error) string {
	msg := MapError(err)
	return fmt.Sprintf("%s. %s (%s)", msg.Message, msg.Action, msg.Code)
}
