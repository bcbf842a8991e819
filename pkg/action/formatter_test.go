package action

import (
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowFormatter_Format(t *testing.T) {
	testCases := []struct {
		name     string
		level    log.Level
		message  string
		fields   log.Fields
		expected string
	}{
		{
			name:     "Should print info as plain text",
			level:    log.InfoLevel,
			message:  "Scan completed successfully",
			expected: "Scan completed successfully\n",
		},
		{
			name:     "Should annotate errors",
			level:    log.ErrorLevel,
			message:  "Found 2 critical vulnerabilities",
			expected: "::error::Found 2 critical vulnerabilities\n",
		},
		{
			name:     "Should annotate warnings with sorted fields",
			level:    log.WarnLevel,
			message:  "Retrying",
			fields:   log.Fields{"delay": "2s", "attempt": 1},
			expected: "::warning::Retrying (attempt=1 delay=2s)\n",
		},
		{
			name:     "Should escape multi line debug messages",
			level:    log.DebugLevel,
			message:  "line 1\nline 2 100%",
			fields:   log.Fields{"error": errors.New("boom")},
			expected: "::debug::line 1%0Aline 2 100%25 (error=boom)\n",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entry := log.WithFields(tc.fields)
			entry.Level = tc.level
			entry.Message = tc.message

			out, err := (&WorkflowFormatter{}).Format(entry)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(out))
		})
	}
}
