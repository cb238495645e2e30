package ref

import (
	"errors"
	"strings"
	"testing"

	"github.com/cvc-dev/cvc/internal/cvcerr"
)

type fakeMatcher struct {
	hashes []string
}

func (f fakeMatcher) MatchPrefix(prefix string, limit int) ([]string, error) {
	var out []string
	for _, h := range f.hashes {
		if strings.HasPrefix(h, prefix) {
			out = append(out, h)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func TestResolveFullHash(t *testing.T) {
	full := strings.Repeat("a", 64)
	db := fakeMatcher{hashes: []string{full}}
	got, err := Resolve(db, full)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != full {
		t.Fatalf("got %s, want %s", got, full)
	}
}

func TestResolveShortHashBelowMinimumIsRejected(t *testing.T) {
	db := fakeMatcher{hashes: []string{strings.Repeat("a", 64)}}
	_, err := Resolve(db, "abcdefg") // 7 hex chars
	if !errors.Is(err, cvcerr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for a 7-character prefix", err)
	}
}

func TestResolveEightCharPrefixIsAccepted(t *testing.T) {
	full := "abcd1234" + strings.Repeat("0", 56)
	db := fakeMatcher{hashes: []string{full}}
	got, err := Resolve(db, "abcd1234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != full {
		t.Fatalf("got %s, want %s", got, full)
	}
}

func TestResolveAmbiguousPrefix(t *testing.T) {
	db := fakeMatcher{hashes: []string{
		"abcd12341111" + strings.Repeat("0", 52),
		"abcd12342222" + strings.Repeat("0", 52),
	}}
	_, err := Resolve(db, "abcd1234")
	var ambiguous *cvcerr.Ambiguous
	if !errors.As(err, &ambiguous) {
		t.Fatalf("err = %v, want *cvcerr.Ambiguous", err)
	}
	if len(ambiguous.Matches) != 2 {
		t.Fatalf("matches = %v, want 2", ambiguous.Matches)
	}
}

func TestResolveNonHexInputIsRejected(t *testing.T) {
	db := fakeMatcher{hashes: nil}
	_, err := Resolve(db, "not-hex!!")
	if !errors.Is(err, cvcerr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for non-hex input", err)
	}
}

func TestResolveUnmatchedFullHash(t *testing.T) {
	db := fakeMatcher{hashes: nil}
	_, err := Resolve(db, strings.Repeat("f", 64))
	var nf *cvcerr.NotFound
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *cvcerr.NotFound", err)
	}
}
