package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

const petstoreSpec = `openapi: 3.0.0
info:
  title: Petstore
  version: 1.0.0
paths:
  /pets:
    get:
      summary: List all pets
      tags: [pets]
      responses:
        "200":
          description: A list of pets
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Pet'
    post:
      summary: Create a pet
      tags: [pets]
      responses:
        "201":
          description: Created
components:
  schemas:
    Pet:
      type: object
      description: A pet in the store
      properties:
        id:
          type: integer
        name:
          type: string
`

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600))
}

func TestNewApp_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeConfig(t, dir, "[storage]\nbackend = \"memory\"\n")

	a, err := newApp(ctx, dir)
	require.NoError(t, err)
	defer a.Close()

	svc := a.Services()
	require.NotNil(t, svc.Fragments)
	require.NotNil(t, svc.Research)
	require.NotNil(t, svc.Specs)
	require.NotNil(t, svc.Settings)
	require.NotNil(t, svc.Scheduler)
	require.NotNil(t, svc.Metrics)

	specPath := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(petstoreSpec), 0o600))

	n, err := svc.Specs.Import(ctx, "petstore", specPath)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	meta, err := svc.Specs.Get(ctx, "petstore")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", meta.Version)
	assert.Equal(t, specPath, meta.SpecLocation)

	report := svc.Research.Research(ctx, domain.ResearchRequest{
		Intent: "list all pets",
		APIID:  "petstore",
	})
	assert.Contains(t, report, "/pets")
	assert.Contains(t, report, "**API Research Results**")

	stats := svc.Fragments.Stats(ctx, "petstore")
	assert.Equal(t, 3, stats.TotalFragments)
}

func TestNewApp_SQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	writeConfig(t, dir, "[storage]\nbackend = \"sqlite\"\ndata_dir = \""+filepath.ToSlash(dataDir)+"\"\n")

	a, err := newApp(context.Background(), dir)
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(filepath.Join(dataDir, "fragments.db"))
	assert.NoError(t, err)
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[storage]\nbackend = \"redis\"\n\n[storage.redis]\naddr = \"127.0.0.1:1\"\n")

	_, err := newApp(context.Background(), dir)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[storage]\nbackend = \"memory\"\n")

	a, err := newApp(context.Background(), dir)
	require.NoError(t, err)

	a.Close()
	a.Close()
}
