package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/storage/config"
)

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(storageConfig.StorageConfig{}))
	assert.Len(t, ClientOptions(storageConfig.StorageConfig{CredentialsFile: "/etc/key.json"}), 1)
	assert.Len(t, ClientOptions(storageConfig.StorageConfig{Endpoint: "http://localhost:4443/storage/v1/", CredentialsFile: "/etc/key.json"}), 2)
}

func TestGCSAdapterAgainstEmulatorEndpoint(t *testing.T) {
	conn, err := NewGCSAdapter(context.Background(), storageConfig.StorageConfig{
		Type:     ProviderType,
		Endpoint: "http://127.0.0.1:1/storage/v1/",
	}, "archive")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "gcs", conn.Type())
	assert.Equal(t, "archive", conn.Name())

	_, err = conn.Download(context.Background(), "", "people.zip")
	assert.ErrorContains(t, err, "no bucket given")
}
