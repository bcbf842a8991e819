package ignore

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
)

const (
	// DefaultReason is attached to suppressed vulnerabilities whose entry has no reason.
	DefaultReason = "Ignored"
)

// Entry suppresses a single vulnerability identified by its ID or one of its aliases.
type Entry struct {
	ID     string  `json:"id" yaml:"id"`
	Reason string  `json:"reason" yaml:"reason"`
	// Expires is a calendar date after which the entry no longer applies.
	Expires *string `json:"expires,omitempty" yaml:"expires,omitempty"`
}

type Config struct {
	Ignore []Entry `json:"ignore" yaml:"ignore"`
}

var expiryLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02T15:04:05.000",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// ParseExpiry parses the expiry of an ignore entry. Dates without zone are UTC.
// Forms outside the common layouts are handed to dateparse.
func ParseExpiry(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	if t, err := dateparse.ParseIn(value, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, xerrors.Errorf("invalid expiry date: %q", value)
}

// FilterExpired returns a copy of the config without expired entries.
//
// An entry with an expiry that cannot be parsed is dropped and reported, so a typo
// never keeps a vulnerability suppressed forever.
func FilterExpired(cfg Config, now time.Time) Config {
	return Config{
		Ignore: lo.Filter(cfg.Ignore, func(entry Entry, _ int) bool {
			if entry.Expires == nil {
				return true
			}
			expiry, err := ParseExpiry(*entry.Expires)
			if err != nil {
				log.WithFields(log.Fields{
					"id":      entry.ID,
					"expires": *entry.Expires,
				}).Warnf("Invalid expiry date %q for ignore entry %s, treating as expired", *entry.Expires, entry.ID)
				return false
			}
			if !expiry.After(now) {
				log.WithFields(log.Fields{
					"id":      entry.ID,
					"expires": *entry.Expires,
				}).Debug("Ignore entry expired")
				return false
			}
			return true
		}),
	}
}

// Apply annotates vulnerabilities matching any entry of the config and returns
// the annotated copy of results together with the number of matches.
//
// Matching is case-insensitive on the vulnerability ID and its aliases. When
// several entries match, the first entry in config order wins. Expiry is not
// evaluated here, see FilterExpired.
func Apply(results []geekwala.ScanResult, cfg Config) ([]geekwala.ScanResult, int) {
	if results == nil {
		return nil, 0
	}

	ignored := 0
	annotated := make([]geekwala.ScanResult, len(results))
	for i, result := range results {
		annotated[i] = result
		if result.Vulnerabilities == nil {
			continue
		}
		vulnerabilities := make([]geekwala.Vulnerability, len(result.Vulnerabilities))
		for j, v := range result.Vulnerabilities {
			if entry, ok := match(v, cfg.Ignore); ok {
				v.Ignored = true
				v.IgnoreReason = lo.Ternary(entry.Reason == "", DefaultReason, entry.Reason)
				ignored++
			}
			vulnerabilities[j] = v
		}
		annotated[i].Vulnerabilities = vulnerabilities
	}
	return annotated, ignored
}

// Suppress drops expired entries as of now and applies the rest.
func Suppress(results []geekwala.ScanResult, cfg Config, now time.Time) ([]geekwala.ScanResult, int) {
	return Apply(results, FilterExpired(cfg, now))
}

func match(v geekwala.Vulnerability, entries []Entry) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}
	ids := lo.Associate(v.Identifiers(), func(id string) (string, struct{}) {
		return normalizeID(id), struct{}{}
	})
	return lo.Find(entries, func(entry Entry) bool {
		_, ok := ids[normalizeID(entry.ID)]
		return ok
	})
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
