// Package codec implements the HashCodec: canonical serialization and
// content digests for blobs, metadata, and commits. It mirrors the
// canonical-JSON approach of kai-core/cas (sorted keys, no insignificant
// whitespace) generalized to the domain's own value types, with UTF-8 NFC
// normalization and a fixed numeric representation layered on top per the
// domain's canonicalization rules.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize renders v (any JSON-taggable Go value) as canonical bytes:
// object keys sorted lexicographically, no insignificant whitespace, string
// values normalized to Unicode NFC, numbers in a fixed decimal
// representation, and struct fields tagged `omitempty` that are absent
// omitted entirely rather than nulled.
//
// v is first passed through encoding/json (which honors struct tags and
// omitempty) and the resulting generic tree is then re-encoded canonically.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", ErrEncoding)
	}
	var generic any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", ErrEncoding)
	}
	var buf []byte
	buf, err = appendCanonical(buf, generic)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ErrEncoding is returned by Canonicalize when a value cannot be
// represented (e.g. a non-finite float). Callers should prefer
// cvcerr.ErrEncodingError for control flow; this sentinel exists so codec
// has no import dependency on cvcerr and stays leaf-level.
var ErrEncoding = errEncoding{}

type errEncoding struct{}

func (errEncoding) Error() string { return "codec: value not canonicalizable" }

func appendCanonical(buf []byte, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if t {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case json.Number:
		return appendCanonicalNumber(buf, t)
	case string:
		return appendCanonicalString(buf, t)
	case []any:
		return appendCanonicalArray(buf, t)
	case map[string]any:
		return appendCanonicalObject(buf, t)
	default:
		return nil, fmt.Errorf("codec: unsupported type %T: %w", v, ErrEncoding)
	}
}

func appendCanonicalNumber(buf []byte, n json.Number) ([]byte, error) {
	s := n.String()
	if isPlainInteger(s) {
		// Integral: render as plain decimal, no leading zeros beyond "0".
		return append(buf, s...), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("codec: %w", ErrEncoding)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("codec: non-finite float: %w", ErrEncoding)
	}
	// Shortest round-trip decimal representation.
	return append(buf, strconv.FormatFloat(f, 'g', -1, 64)...), nil
}

// isPlainInteger reports whether s is a bare decimal integer (optional
// leading '-', digits only) rather than something requiring float parsing.
// A json.Number decoded off the wire is always one of these two shapes, but
// this guards against non-digit content (e.g. "NaN") being misclassified as
// integral and passed through unchecked.
func isPlainInteger(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' {
		i++
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func appendCanonicalString(buf []byte, s string) ([]byte, error) {
	normalized := norm.NFC.String(s)
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("codec: string marshal: %w", ErrEncoding)
	}
	return append(buf, encoded...), nil
}

func appendCanonicalArray(buf []byte, arr []any) ([]byte, error) {
	buf = append(buf, '[')
	for i, elem := range arr {
		if i > 0 {
			buf = append(buf, ',')
		}
		var err error
		buf, err = appendCanonical(buf, elem)
		if err != nil {
			return nil, err
		}
	}
	return append(buf, ']'), nil
}

func appendCanonicalObject(buf []byte, obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		var err error
		buf, err = appendCanonicalString(buf, k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, ':')
		buf, err = appendCanonical(buf, obj[k])
		if err != nil {
			return nil, err
		}
	}
	return append(buf, '}'), nil
}

// SHA256Hex returns the lowercase 64-hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// CanonicalHash canonicalizes v and returns its SHA-256 hex digest in one
// step.
func CanonicalHash(v any) (string, []byte, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", nil, err
	}
	return SHA256Hex(b), b, nil
}
