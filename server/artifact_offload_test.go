package server

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactOffloadSmallPayloadUnchanged(t *testing.T) {
	store := NewArtifactBlobStore(&mockArtifactStorageProvider{}, 1024)
	artifact := a2a.Artifact{Id: "a1", Name: "small.bin", Data: base64.StdEncoding.EncodeToString([]byte("tiny"))}

	out, err := store.Offload(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, artifact.Data, out.Data)
	assert.Empty(t, out.URI)
}

func TestArtifactOffloadLargePayloadMovedToBlobStore(t *testing.T) {
	big := strings.Repeat("x", 2048)
	b64 := base64.StdEncoding.EncodeToString([]byte(big))

	var gotID, gotName string
	provider := &mockArtifactStorageProvider{
		storeFunc: func(ctx context.Context, artifactID, filename string, data io.Reader) (string, error) {
			gotID, gotName = artifactID, filename
			return "https://blob.example/" + artifactID + "/" + filename, nil
		},
	}

	store := NewArtifactBlobStore(provider, 64)
	artifact := a2a.Artifact{Id: "a2", Name: "big.bin", Data: b64}

	out, err := store.Offload(context.Background(), artifact)
	require.NoError(t, err)
	assert.Nil(t, out.Data)
	assert.Equal(t, "https://blob.example/a2/big.bin", out.URI)
	assert.Equal(t, "a2", gotID)
	assert.Equal(t, "big.bin", gotName)
}

func TestArtifactOffloadNilStoreIsNoop(t *testing.T) {
	var store *ArtifactBlobStore
	artifact := a2a.Artifact{Id: "a3", Data: "anything"}

	out, err := store.Offload(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, artifact, out)
}
