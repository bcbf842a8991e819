package detector

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/geekwala/security-scan-action/pkg/ext"
)

// NotFoundError is returned when no usable dependency file is available.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func (e *NotFoundError) Tip() string {
	return "Set file-path to one of: " + strings.Join(SupportedNames(), ", ")
}

type Detector struct {
	ambassador ext.Ambassador
}

func New(ambassador ext.Ambassador) *Detector {
	return &Detector{
		ambassador: ambassador,
	}
}

// Detect returns the path of the highest priority dependency file at the top
// level of the workspace.
func (d *Detector) Detect(workspace string) (string, error) {
	type candidate struct {
		path     string
		priority int
	}
	var found []candidate

	for _, p := range Patterns {
		path := filepath.Join(workspace, p.Name)
		if info, err := d.ambassador.Stat(path); err == nil && info.Mode().IsRegular() {
			found = append(found, candidate{path: path, priority: p.Priority})
		}
	}

	entries, err := d.ambassador.ReadDir(workspace)
	if err != nil {
		log.WithError(err).WithField("workspace", workspace).Debug("Cannot list workspace")
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), csprojSuffix) {
			found = append(found, candidate{path: filepath.Join(workspace, entry.Name()), priority: Priority(entry.Name())})
		}
	}

	if len(found) == 0 {
		return "", &NotFoundError{
			Message: fmt.Sprintf("No supported dependency files found in %s. Supported files: %s", workspace, strings.Join(SupportedNames(), ", ")),
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].priority < found[j].priority
	})
	log.WithFields(log.Fields{
		"candidates": len(found),
		"path":       found[0].path,
	}).Debug("Detected dependency file")
	return found[0].path, nil
}

// Validate checks that path names a supported and readable file.
func (d *Detector) Validate(path string) error {
	fileName := filepath.Base(path)
	if !Supported(fileName) {
		return &NotFoundError{
			Message: fmt.Sprintf("Unsupported file: %s. Supported files: %s", fileName, strings.Join(SupportedNames(), ", ")),
		}
	}
	info, err := d.ambassador.Stat(path)
	if err != nil || info.IsDir() {
		return &NotFoundError{Message: fmt.Sprintf("File not found or not readable: %s", path)}
	}
	return nil
}

// Read returns the content of the dependency file.
func (d *Detector) Read(path string) (string, error) {
	content, err := d.ambassador.ReadFile(path)
	if err != nil {
		return "", &NotFoundError{Message: fmt.Sprintf("Failed to read file %s: %v", path, err)}
	}
	return string(content), nil
}
