// Package blobstore implements the content-addressed, Zstandard-compressed
// object store of spec §4.B / §6.2. Writes follow the teacher's atomic
// temp-file-then-rename pattern (kai-cli/internal/graph.WriteObject); the
// on-disk frame format (kind tag, decompressed size, anchor hash, zstd
// frame) is specific to this domain and carries the anchor/delta
// distinction that the teacher's plain object store does not need.
package blobstore

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/cvc-dev/cvc/internal/cvcerr"
	"github.com/cvc-dev/cvc/internal/model"
)

const (
	kindAnchor byte = 0x01
	kindDelta  byte = 0x02

	headerFixedLen = 1 + 8 + 32 // kind + size + anchor hash
)

// Store is the sharded on-disk object store rooted at objectsDir.
type Store struct {
	objectsDir string
	log        *slog.Logger
}

// Open returns a Store rooted at objectsDir, creating it if absent.
func Open(objectsDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(objectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: mkdir %s: %w", objectsDir, cvcerr.ErrIoError)
	}
	return &Store{objectsDir: objectsDir, log: logger.With("component", "blobstore")}, nil
}

func (s *Store) shardPath(contentHash string) (dir, path string) {
	dir = filepath.Join(s.objectsDir, contentHash[:2])
	path = filepath.Join(dir, contentHash[2:])
	return dir, path
}

// Has reports whether contentHash is present.
func (s *Store) Has(contentHash string) bool {
	_, path := s.shardPath(contentHash)
	_, err := os.Stat(path)
	return err == nil
}

// Put writes a blob record under contentHash. Put is idempotent: if the
// destination already exists it is left untouched (writers of the same
// hash are assumed byte-identical, per spec §4.B).
func (s *Store) Put(contentHash string, compressed []byte, decompressedSize int64, kind model.BlobKind, anchorHash string) error {
	if s.Has(contentHash) {
		return nil
	}
	dir, dest := s.shardPath(contentHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("blobstore: mkdir %s: %w", dir, cvcerr.ErrIoError)
	}

	header := make([]byte, headerFixedLen)
	switch kind {
	case model.BlobAnchor:
		header[0] = kindAnchor
	case model.BlobDelta:
		header[0] = kindDelta
	default:
		return fmt.Errorf("blobstore: unknown blob kind %q: %w", kind, cvcerr.ErrInvariantViolation)
	}
	binary.LittleEndian.PutUint64(header[1:9], uint64(decompressedSize))
	if kind == model.BlobDelta {
		anchorBytes, err := hex.DecodeString(anchorHash)
		if err != nil || len(anchorBytes) != 32 {
			return fmt.Errorf("blobstore: bad anchor hash %q: %w", anchorHash, cvcerr.ErrInvariantViolation)
		}
		copy(header[9:41], anchorBytes)
	}

	tmp, err := writeTemp(dir, header, compressed)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("blobstore: rename into place: %w", cvcerr.ErrIoError)
	}
	return nil
}

func writeTemp(dir string, header, body []byte) (string, error) {
	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("blobstore: rand: %w", cvcerr.ErrIoError)
	}
	tmpPath := filepath.Join(dir, "tmp-"+hex.EncodeToString(suffix[:]))

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("blobstore: create tmp: %w", cvcerr.ErrIoError)
	}
	defer f.Close()

	if _, err := f.Write(header); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("blobstore: write header: %w", cvcerr.ErrIoError)
	}
	if _, err := f.Write(body); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("blobstore: write body: %w", cvcerr.ErrIoError)
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("blobstore: fsync: %w", cvcerr.ErrIoError)
	}
	return tmpPath, nil
}

// Delete removes the on-disk record for contentHash. Used to discard a
// blob that failed post-write verification; a missing file is not an
// error.
func (s *Store) Delete(contentHash string) error {
	_, path := s.shardPath(contentHash)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: remove %s: %w", path, cvcerr.ErrIoError)
	}
	return nil
}

// Record is a decoded on-disk blob record.
type Record struct {
	Kind             model.BlobKind
	DecompressedSize int64
	AnchorHash       string // empty for anchors
	Compressed       []byte
}

// Get reads and decodes the on-disk record for contentHash without
// verifying the digest; callers needing integrity verification should hash
// the decompressed bytes themselves (the DeltaEngine does this).
func (s *Store) Get(contentHash string) (Record, error) {
	_, path := s.shardPath(contentHash)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, &cvcerr.NotFound{Kind: "blob", ID: contentHash}
		}
		return Record{}, fmt.Errorf("blobstore: open %s: %w", path, cvcerr.ErrIoError)
	}
	defer f.Close()

	header := make([]byte, headerFixedLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return Record{}, fmt.Errorf("blobstore: read header: %w", cvcerr.ErrIntegrityError)
	}
	var kind model.BlobKind
	switch header[0] {
	case kindAnchor:
		kind = model.BlobAnchor
	case kindDelta:
		kind = model.BlobDelta
	default:
		return Record{}, fmt.Errorf("blobstore: unknown kind tag 0x%02x: %w", header[0], cvcerr.ErrIntegrityError)
	}
	size := int64(binary.LittleEndian.Uint64(header[1:9]))
	var anchorHash string
	if kind == model.BlobDelta {
		anchorHash = hex.EncodeToString(header[9:41])
	}
	body, err := io.ReadAll(f)
	if err != nil {
		return Record{}, fmt.Errorf("blobstore: read body: %w", cvcerr.ErrIoError)
	}
	return Record{Kind: kind, DecompressedSize: size, AnchorHash: anchorHash, Compressed: body}, nil
}

// Iter returns the content hashes of every stored blob, ordered by shard
// then name. The result is a finite snapshot; it is not restartable
// mid-read after store mutation (per spec §4.B).
func (s *Store) Iter() ([]string, error) {
	shards, err := os.ReadDir(s.objectsDir)
	if err != nil {
		return nil, fmt.Errorf("blobstore: readdir %s: %w", s.objectsDir, cvcerr.ErrIoError)
	}
	var hashes []string
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.objectsDir, shard.Name()))
		if err != nil {
			return nil, fmt.Errorf("blobstore: readdir shard %s: %w", shard.Name(), cvcerr.ErrIoError)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if len(e.Name()) >= 4 && e.Name()[:4] == "tmp-" {
				continue
			}
			hashes = append(hashes, shard.Name()+e.Name())
		}
	}
	return hashes, nil
}

// deltaDictID is the fixed raw-dictionary id shared by every anchor used as
// a delta dictionary. The anchor's own decompressed bytes are never a
// trained zstd dictionary (no magic-number header), so encoder and decoder
// must agree to treat them as a raw dictionary under the same id rather
// than going through the trained-dictionary loader.
const deltaDictID = 1

// NewEncoder returns a Zstandard encoder at level, optionally seeded with a
// raw compression dictionary (an anchor's decompressed bytes, for delta
// blobs).
func NewEncoder(level int, dict []byte) (*zstd.Encoder, error) {
	opts := []zstd.EOption{zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level))}
	if dict != nil {
		opts = append(opts, zstd.WithEncoderDictRaw(deltaDictID, dict))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: new zstd encoder: %w", cvcerr.ErrIoError)
	}
	return enc, nil
}

// NewDecoder returns a Zstandard decoder, optionally seeded with a raw
// decompression dictionary (an anchor's decompressed bytes, for delta
// blobs).
func NewDecoder(dict []byte) (*zstd.Decoder, error) {
	var opts []zstd.DOption
	if dict != nil {
		opts = append(opts, zstd.WithDecoderDictRaw(deltaDictID, dict))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: new zstd decoder: %w", cvcerr.ErrIoError)
	}
	return dec, nil
}
