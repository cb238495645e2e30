// Package ref resolves commit-hash references for restore() (spec
// §4.G.6): a full 64-hex hash, or an unambiguous prefix of at least 8 hex
// characters. It is grounded directly on ivcs/internal/ref.Resolver's
// resolveShortID — a LIKE-prefix query capped at a small limit so
// ambiguity can be detected without scanning the whole table — narrowed
// here to commit hashes only (the teacher resolves across several kinds
// of node).
package ref

import (
	"fmt"

	"github.com/cvc-dev/cvc/internal/cvcerr"
)

const (
	fullHashLen  = 64
	minPrefixLen = 8
	// matchLimit caps the prefix query at one more than needed to report
	// ambiguity without scanning the whole table.
	matchLimit = 11
)

// PrefixMatcher is satisfied by contextdb.DB (and indexdb.DB): a lookup of
// every commit hash beginning with prefix, capped at limit results.
type PrefixMatcher interface {
	MatchPrefix(prefix string, limit int) ([]string, error)
}

// Resolve resolves input to a single 64-hex commit hash. input must be
// either a full 64-character hex hash or a prefix of at least 8 hex
// characters that matches exactly one stored commit.
func Resolve(db PrefixMatcher, input string) (string, error) {
	if !isHex(input) {
		return "", fmt.Errorf("ref: %q is not hexadecimal: %w", input, cvcerr.ErrNotFound)
	}
	if len(input) == fullHashLen {
		matches, err := db.MatchPrefix(input, 1)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			return "", &cvcerr.NotFound{Kind: "commit", ID: input}
		}
		return matches[0], nil
	}
	if len(input) < minPrefixLen {
		return "", fmt.Errorf("ref: short hash %q must be at least %d hex characters: %w", input, minPrefixLen, cvcerr.ErrNotFound)
	}

	matches, err := db.MatchPrefix(input, matchLimit)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", &cvcerr.NotFound{Kind: "commit", ID: input}
	case 1:
		return matches[0], nil
	default:
		if len(matches) > matchLimit-1 {
			matches = matches[:matchLimit-1]
		}
		return "", &cvcerr.Ambiguous{Prefix: input, Matches: matches}
	}
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
