package db

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestCreateAndGetDispatch(t *testing.T) {
	database := newTestDB(t)

	d := &Dispatch{
		Endpoint:     "https://example.net/Prod/AnalyzeOneLog",
		Payload:      `{"messages":[]}`,
		StatusCode:   200,
		ResponseBody: `{"echo":true}`,
		Duration:     150 * time.Millisecond,
	}
	require.NoError(t, CreateDispatch(database, d, 0))
	require.NotEmpty(t, d.ID)
	require.False(t, d.SentAt.IsZero())

	got, err := GetDispatch(database, d.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.Endpoint, got.Endpoint)
	assert.Equal(t, d.Payload, got.Payload)
	assert.Equal(t, 200, got.StatusCode)
	assert.Equal(t, `{"echo":true}`, got.ResponseBody)
	assert.Equal(t, 150*time.Millisecond, got.Duration)
	assert.True(t, d.SentAt.Equal(got.SentAt))
}

func TestGetDispatchErrors(t *testing.T) {
	database := newTestDB(t)

	_, err := GetDispatch(database, "nope")
	assert.ErrorIs(t, err, ErrRecordMissing)

	require.NoError(t, CreateDispatch(database, &Dispatch{ID: "abc-1", Endpoint: "e", Payload: "p"}, 0))
	require.NoError(t, CreateDispatch(database, &Dispatch{ID: "abc-2", Endpoint: "e", Payload: "p"}, 0))

	_, err = GetDispatch(database, "abc")
	assert.ErrorIs(t, err, ErrAmbiguousID)
}

func TestGetDispatchPrefixIsLiteral(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, CreateDispatch(database, &Dispatch{ID: "abc-1", Endpoint: "e", Payload: "p"}, 0))

	for _, prefix := range []string{"%", "_bc", "a%", "ab_", ""} {
		_, err := GetDispatch(database, prefix)
		assert.ErrorIs(t, err, ErrRecordMissing, "prefix %q", prefix)
	}

	got, err := GetDispatch(database, "abc-")
	require.NoError(t, err)
	assert.Equal(t, "abc-1", got.ID)
}

func TestCreateDispatchKeepsNewest(t *testing.T) {
	database := newTestDB(t)
	base := time.Date(2025, 10, 19, 14, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := CreateDispatch(database, &Dispatch{
			ID:       fmt.Sprintf("d%d", i),
			Endpoint: "e",
			Payload:  "p",
			SentAt:   base.Add(time.Duration(i) * time.Minute),
		}, 3)
		require.NoError(t, err)
	}

	dispatches, err := ListDispatches(database, 0)
	require.NoError(t, err)
	require.Len(t, dispatches, 3)
	assert.Equal(t, "d4", dispatches[0].ID)
	assert.Equal(t, "d3", dispatches[1].ID)
	assert.Equal(t, "d2", dispatches[2].ID)
}

func TestListDispatchesLimit(t *testing.T) {
	database := newTestDB(t)
	for i := 0; i < 4; i++ {
		require.NoError(t, CreateDispatch(database, &Dispatch{Endpoint: "e", Payload: "p"}, 0))
	}

	dispatches, err := ListDispatches(database, 2)
	require.NoError(t, err)
	assert.Len(t, dispatches, 2)
}

func TestTransportFailureRecorded(t *testing.T) {
	database := newTestDB(t)

	d := &Dispatch{Endpoint: "e", Payload: "p", Error: "connection refused"}
	require.NoError(t, CreateDispatch(database, d, 0))

	got, err := GetDispatch(database, d.ID)
	require.NoError(t, err)
	assert.Zero(t, got.StatusCode)
	assert.Equal(t, "connection refused", got.Error)
}

func TestDeleteAndClear(t *testing.T) {
	database := newTestDB(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, CreateDispatch(database, &Dispatch{ID: id, Endpoint: "e", Payload: "p"}, 0))
	}

	require.NoError(t, DeleteDispatch(database, "a"))
	assert.ErrorIs(t, DeleteDispatch(database, "a"), ErrRecordMissing)

	removed, err := ClearDispatches(database)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	dispatches, err := ListDispatches(database, 0)
	require.NoError(t, err)
	assert.Empty(t, dispatches)
}

func TestPruneDispatches(t *testing.T) {
	database := newTestDB(t)
	base := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, CreateDispatch(database, &Dispatch{
			Endpoint: "e",
			Payload:  "p",
			SentAt:   base.Add(time.Duration(i) * time.Second),
		}, 0))
	}

	removed, err := PruneDispatches(database, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}
