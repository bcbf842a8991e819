package action

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/geekwala/security-scan-action/pkg/ext"
)

// AppendSummary adds markdown to the job summary file named by GITHUB_STEP_SUMMARY.
func AppendSummary(ambassador ext.Ambassador, path, markdown string) error {
	if path == "" {
		log.Debug("No step summary file configured, skipping summary")
		return nil
	}
	if !strings.HasSuffix(markdown, "\n") {
		markdown += "\n"
	}
	if err := ambassador.AppendFile(path, []byte(markdown)); err != nil {
		return xerrors.Errorf("writing step summary: %w", err)
	}
	return nil
}

// Mask asks the runner to redact secret from the logs.
func Mask(w io.Writer, secret string) {
	if strings.TrimSpace(secret) == "" {
		return
	}
	_, _ = fmt.Fprintf(w, "::add-mask::%s\n", escapeData(secret))
}
