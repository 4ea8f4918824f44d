package server

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/a2aruntime/a2a/a2a"
)

// defaultInlineArtifactThreshold is the largest base64 payload, in bytes,
// an artifact may carry inline before it is offloaded to blob storage.
const defaultInlineArtifactThreshold = 64 * 1024

// ArtifactBlobStore offloads oversized inline File artifacts to a backing
// ArtifactStorageProvider (filesystem or MinIO), replacing the inline
// bytes with a retrievable URI. This is a supplementary feature beyond
// the existing artifact operations: large artifacts still round-trip through
// task/get, they just aren't held inline in the task store.
type ArtifactBlobStore struct {
	provider  ArtifactStorageProvider
	threshold int
}

// NewArtifactBlobStore wraps a storage provider with the inlining threshold.
// threshold <= 0 uses the default.
func NewArtifactBlobStore(provider ArtifactStorageProvider, threshold int) *ArtifactBlobStore {
	if threshold <= 0 {
		threshold = defaultInlineArtifactThreshold
	}
	return &ArtifactBlobStore{provider: provider, threshold: threshold}
}

// Offload stores artifact.Data (expected to be a base64 string, mirroring
// FilePart.Bytes) in the backing provider when it exceeds the threshold,
// returning a new Artifact with Data cleared and URI set. Artifacts at or
// under the threshold, or carrying non-string Data, are returned unchanged.
func (s *ArtifactBlobStore) Offload(ctx context.Context, artifact a2a.Artifact) (a2a.Artifact, error) {
	if s == nil || s.provider == nil {
		return artifact, nil
	}

	b64, ok := artifact.Data.(string)
	if !ok || len(b64) <= s.threshold {
		return artifact, nil
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return artifact, nil
	}

	url, err := s.provider.Store(ctx, string(artifact.Id), artifact.Name, strings.NewReader(string(raw)))
	if err != nil {
		return artifact, err
	}

	offloaded := artifact
	offloaded.Data = nil
	offloaded.URI = url
	return offloaded, nil
}
