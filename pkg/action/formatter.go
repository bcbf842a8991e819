package action

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// WorkflowFormatter renders log entries as GitHub Actions workflow commands so
// that errors and warnings are annotated on the run.
type WorkflowFormatter struct{}

func (f *WorkflowFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b bytes.Buffer

	message := entry.Message
	if fields := formatFields(entry.Data); fields != "" {
		message += " " + fields
	}

	switch entry.Level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		b.WriteString("::error::" + escapeData(message))
	case log.WarnLevel:
		b.WriteString("::warning::" + escapeData(message))
	case log.DebugLevel, log.TraceLevel:
		b.WriteString("::debug::" + escapeData(message))
	default:
		b.WriteString(message)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatFields(data log.Fields) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := data[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return "(" + strings.Join(pairs, " ") + ")"
}

// escapeData escapes the message of a workflow command.
func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}
