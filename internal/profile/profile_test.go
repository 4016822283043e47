package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	p := &Profile{Data: t.TempDir()}
	require.NoError(t, p.Validate())

	require.Equal(t, "dev", p.Mode)
	require.Equal(t, "sqlite", p.Driver)
	require.Equal(t, 1024, p.AIEmbeddingDimensions)
	require.InDelta(t, 0.7, p.SearchHighThreshold, 1e-9)
	require.InDelta(t, 0.4, p.SearchLowThreshold, 1e-9)
	// SQLite DSN defaults into the data directory.
	require.Equal(t, filepath.Join(p.Data, "notectx_dev.db"), p.DSN)
}

func TestValidatePostgresRequiresDSN(t *testing.T) {
	p := &Profile{Driver: "postgres"}
	require.Error(t, p.Validate())

	p.DSN = "postgres://localhost/notectx"
	require.NoError(t, p.Validate())
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	p := &Profile{Driver: "mysql", Data: t.TempDir()}
	require.Error(t, p.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	p := &Profile{Port: 70000, Data: t.TempDir()}
	require.Error(t, p.Validate())
}

func TestValidateRejectsOutOfRangeThreshold(t *testing.T) {
	p := &Profile{Data: t.TempDir(), SearchHighThreshold: 1.5}
	require.Error(t, p.Validate())
}

func TestIsAIEnabled(t *testing.T) {
	require.False(t, (&Profile{AIEnabled: true}).IsAIEnabled())
	require.False(t, (&Profile{AIAPIKey: "k"}).IsAIEnabled())
	require.True(t, (&Profile{AIEnabled: true, AIAPIKey: "k"}).IsAIEnabled())
}
