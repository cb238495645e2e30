package codec

import "sort"

// CommitHash implements the domain's hash rule:
//
//	commit_hash = SHA256( sort_lex(parent_hashes) || canonical(ContentBlob) || canonical(metadata) )
//
// contentBlob and metadata are passed as already-canonicalized byte slices
// (callers typically already need those bytes independently to compute
// content_hash) so this function never re-derives them.
func CommitHash(parentHashes []string, canonicalBlob, canonicalMetadata []byte) string {
	sorted := make([]string, len(parentHashes))
	copy(sorted, parentHashes)
	sort.Strings(sorted)

	buf := make([]byte, 0, lenOf(sorted)+len(canonicalBlob)+len(canonicalMetadata))
	for _, h := range sorted {
		buf = append(buf, h...)
	}
	buf = append(buf, canonicalBlob...)
	buf = append(buf, canonicalMetadata...)
	return SHA256Hex(buf)
}

func lenOf(ss []string) int {
	n := 0
	for _, s := range ss {
		n += len(s)
	}
	return n
}
