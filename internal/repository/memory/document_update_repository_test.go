package memory

import (
	"context"
	"testing"
	"time"

	"collab-editor-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentUpdateRepository_AppendAndFind(t *testing.T) {
	repo := NewDocumentUpdateRepository(time.Hour)
	ctx := context.Background()

	first := &entity.DocumentUpdate{Document: "doc-1", Payload: []byte(`{"ops":[]}`)}
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, &entity.DocumentUpdate{Document: "doc-1", Payload: []byte(`{"ops":[1]}`)}))
	require.NoError(t, repo.Append(ctx, &entity.DocumentUpdate{Document: "doc-2", Payload: []byte(`{}`)}))

	assert.Equal(t, int64(1), first.Sequence)
	assert.NotEmpty(t, first.Id)
	assert.False(t, first.CreatedAt.IsZero())

	log, err := repo.FindByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, int64(1), log[0].Sequence)
	assert.Equal(t, int64(2), log[1].Sequence)
	assert.Equal(t, `{"ops":[1]}`, string(log[1].Payload))

	// Returned entries are copies.
	log[0].Payload[0] = 'x'
	again, err := repo.FindByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, `{"ops":[]}`, string(again[0].Payload))

	count, err := repo.Count(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDocumentUpdateRepository_Compact(t *testing.T) {
	repo := NewDocumentUpdateRepository(0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Append(ctx, &entity.DocumentUpdate{Document: "doc-1", Payload: []byte(`{}`)}))
	}
	snapshot := &entity.DocumentUpdate{Document: "doc-1", Payload: []byte(`{"ops":["all"]}`)}
	require.NoError(t, repo.Compact(ctx, snapshot))

	log, err := repo.FindByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.True(t, log[0].Snapshot)
	assert.Equal(t, int64(4), log[0].Sequence)

	next := &entity.DocumentUpdate{Document: "doc-1", Payload: []byte(`{}`)}
	require.NoError(t, repo.Append(ctx, next))
	assert.Equal(t, int64(5), next.Sequence)
}

func TestDocumentUpdateRepository_DeleteAndCancelled(t *testing.T) {
	repo := NewDocumentUpdateRepository(time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, &entity.DocumentUpdate{Document: "doc-1", Payload: []byte(`{}`)}))
	require.NoError(t, repo.DeleteByDocument(ctx, "doc-1"))

	count, err := repo.Count(ctx, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, repo.Append(cancelled, &entity.DocumentUpdate{Document: "doc-1"}), context.Canceled)
}
