package ignore

import (
	"errors"
	"io/fs"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/geekwala/security-scan-action/pkg/ext"
)

const (
	// DefaultFile is the ignore file looked up in the workspace root.
	DefaultFile = ".geekwala-ignore.yml"

	missingReason = "No reason provided"
)

// Load reads the ignore file at path. It returns nil without error when the
// file does not exist.
func Load(ambassador ext.Ambassador, path string) (*Config, error) {
	b, err := ambassador.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.WithField("path", path).Debug("Ignore file not found")
			return nil, nil
		}
		return nil, xerrors.Errorf("reading ignore file: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, xerrors.Errorf("parsing ignore file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes an ignore file document:
//
//	ignore:
//	  - id: CVE-2021-23337
//	    reason: Not reachable from our code
//	    expires: 2025-12-31
//
// Entries without a string id are skipped. A document without an ignore list
// yields an empty config.
func Parse(b []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}

	cfg := &Config{Ignore: []Entry{}}
	list := lookup(&doc, "ignore")
	if list == nil || list.Kind != yaml.SequenceNode {
		return cfg, nil
	}

	for _, item := range list.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		id := lookup(item, "id")
		if id == nil || id.Kind != yaml.ScalarNode || id.ShortTag() != "!!str" {
			continue
		}
		entry := Entry{ID: id.Value, Reason: missingReason}
		if reason := lookup(item, "reason"); reason != nil && reason.Kind == yaml.ScalarNode && truthy(reason) {
			entry.Reason = reason.Value
		}
		if expires := lookup(item, "expires"); expires != nil && expires.Kind == yaml.ScalarNode && truthy(expires) {
			value := expires.Value
			entry.Expires = &value
		}
		cfg.Ignore = append(cfg.Ignore, entry)
	}
	return cfg, nil
}

// lookup returns the value node of key in a mapping node, unwrapping documents.
func lookup(node *yaml.Node, key string) *yaml.Node {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func truthy(node *yaml.Node) bool {
	switch node.ShortTag() {
	case "!!null":
		return false
	case "!!bool":
		return node.Value == "true" || node.Value == "True" || node.Value == "TRUE"
	case "!!int", "!!float":
		return node.Value != "0" && node.Value != "0.0"
	}
	return node.Value != ""
}
