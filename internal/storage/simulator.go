package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Simulator is the Archiver used when no bucket is configured: it produces a
// deterministic key without uploading anything.
type Simulator struct {
	bucket string
}

func NewSimulator(bucket string) *Simulator {
	if strings.TrimSpace(bucket) == "" {
		bucket = "codetrack-snapshots"
	}
	return &Simulator{bucket: bucket}
}

func (s *Simulator) ArchiveSnapshot(_ context.Context, platform, username string, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty payload")
	}
	sum := sha256.Sum256([]byte(platform + ":" + username))
	return fmt.Sprintf("%s/snapshots/%s/%s.json", s.bucket, platform, hex.EncodeToString(sum[:8])), nil
}
