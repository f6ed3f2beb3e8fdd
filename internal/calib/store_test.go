package calib

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/air-sensor/internal/gas"
)

func TestDefaultsAreValid(t *testing.T) {
	rec := Defaults()
	require.NoError(t, rec.Validate())
	for _, ch := range gas.Channels() {
		assert.Equal(t, 0.0, rec.Zero[ch], "channel %s", ch)
		assert.Equal(t, 1.0, rec.Span[ch], "channel %s", ch)
		assert.Greater(t, rec.Reference[ch], 0.0, "channel %s", ch)
	}
}

func TestValidateRejectsNonPositiveSpan(t *testing.T) {
	rec := Defaults()
	rec.Span[gas.CO] = 0
	assert.Error(t, rec.Validate())

	rec.Span[gas.CO] = -0.5
	assert.Error(t, rec.Validate())
}

func TestValidateRejectsStaleSchema(t *testing.T) {
	rec := Defaults()
	rec.SchemaVersion = SchemaVersion + 1
	assert.Error(t, rec.Validate())
}

func TestFileStoreFreshLoadInstallsAndPersistsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	store := NewFileStore(path, nil)

	rec, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, rec.Validate())

	// The defaults must already be on disk: a second load returns
	// the same values without another default-install.
	raw1, err := os.ReadFile(path)
	require.NoError(t, err)

	rec2, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, rec, rec2)

	raw2, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw1, raw2, "second load must not rewrite the store")
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	store := NewFileStore(path, nil)

	rec := Defaults()
	rec.Reference[gas.NO2] = 0.91
	rec.Zero[gas.CO] = 2.5
	rec.Span[gas.CO] = 1.1
	rec.PM = PMOffsets{PM1: -1, PM25: 0.5, PM10: 2}
	require.NoError(t, store.Save(rec))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestFileStoreSchemaMismatchResetsToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	store := NewFileStore(path, nil)

	rec := Defaults()
	rec.Zero[gas.CO] = 3.3
	require.NoError(t, store.Save(rec))

	// Simulate a record written by an older firmware.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = []byte(strings.Replace(string(data), "schema_version: 1", "schema_version: 0", 1))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got, "stale schema must reset to factory defaults")
}

func TestFileStoreCorruptContentResetsToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	store := NewFileStore(path, nil)
	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

func TestFileStoreSaveRejectsInvalidRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	store := NewFileStore(path, nil)

	rec := Defaults()
	rec.Span[gas.TVOC] = 0
	assert.Error(t, store.Save(rec))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "invalid record must not be written")
}

func TestCloneIsDeep(t *testing.T) {
	rec := Defaults()
	clone := rec.Clone()
	clone.Span[gas.CO] = 2
	assert.Equal(t, 1.0, rec.Span[gas.CO])
}
