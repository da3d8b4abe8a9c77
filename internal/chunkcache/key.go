package chunkcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"jimaku/internal/timecode"
)

const fingerprintVersion = "jimaku-chunk-v1"

// headBytes is how much of the video file feeds its identity hash.
const headBytes = 1 << 20

// VideoIdentity identifies a video file without hashing all of it.
type VideoIdentity struct {
	Name     string
	Size     int64
	HeadHash string
}

// IdentifyVideo hashes the first MiB of the file at path and records its
// base name and size.
func IdentifyVideo(path string) (VideoIdentity, error) {
	file, err := os.Open(path)
	if err != nil {
		return VideoIdentity{}, fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return VideoIdentity{}, fmt.Errorf("stat video: %w", err)
	}
	hasher := sha256.New()
	if _, err := io.CopyN(hasher, file, headBytes); err != nil && err != io.EOF {
		return VideoIdentity{}, fmt.Errorf("hash video: %w", err)
	}
	return VideoIdentity{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		HeadHash: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// String is the label stored in the video column.
func (v VideoIdentity) String() string {
	hash := v.HeadHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return fmt.Sprintf("%s [%s]", v.Name, hash)
}

// KeyInput lists everything that changes a chunk's transcription.
type KeyInput struct {
	Video         VideoIdentity
	ChunkIndex    int
	Span          timecode.Span
	Model         string
	ContextHash   string
	PromptVersion string
}

// Fingerprint derives the cache key for in.
func Fingerprint(in KeyInput) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%q\n%d\n%s\n%d\n%d\n%d\n%q\n%s\n%q\n",
		fingerprintVersion,
		in.Video.Name,
		in.Video.Size,
		in.Video.HeadHash,
		in.ChunkIndex,
		in.Span.Start.Milliseconds(),
		in.Span.End.Milliseconds(),
		in.Model,
		in.ContextHash,
		in.PromptVersion,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// HashText returns a stable identity for free-form context text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
