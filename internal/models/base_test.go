package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	a := NewULID()
	b := NewULID()

	assert.False(t, a.IsZero())
	assert.NotEqual(t, a.String(), b.String())
	assert.Len(t, a.String(), 26)
}

func TestParseULID(t *testing.T) {
	id := NewULID()

	parsed, err := ParseULID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseULID("not-a-ulid")
	require.Error(t, err)
}

func TestULIDValueScan(t *testing.T) {
	id := NewULID()

	val, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), val)

	var scanned ULID
	require.NoError(t, scanned.Scan(id.String()))
	assert.Equal(t, id, scanned)

	require.NoError(t, scanned.Scan([]byte(id.String())))
	assert.Equal(t, id, scanned)

	// Zero value stores as NULL and scans back to zero.
	var zero ULID
	val, err = zero.Value()
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	assert.Error(t, scanned.Scan(42))
}

func TestULIDJSON(t *testing.T) {
	id := NewULID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var decoded ULID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)

	var zero ULID
	data, err = json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	require.NoError(t, json.Unmarshal([]byte("null"), &decoded))
	assert.True(t, decoded.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &decoded))
}

func TestBeforeCreate(t *testing.T) {
	var m BaseModel
	require.NoError(t, m.BeforeCreate(nil))
	assert.False(t, m.ID.IsZero())

	// An existing ID is preserved.
	existing := m.ID
	require.NoError(t, m.BeforeCreate(nil))
	assert.Equal(t, existing, m.ID)
}

func TestExportJobState(t *testing.T) {
	assert.True(t, ExportJobCompleted.IsTerminal())
	assert.True(t, ExportJobFailed.IsTerminal())
	assert.True(t, ExportJobCancelled.IsTerminal())
	assert.False(t, ExportJobRunning.IsTerminal())
}
