package dialogue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobStore emulates the durable repository through full serialization, so
// cache tests also cover round-trip fidelity.
type blobStore struct {
	blobs map[string][]byte
	loads int
	saves int

	failLoad error
	failSave error
}

func newBlobStore() *blobStore {
	return &blobStore{blobs: map[string][]byte{}}
}

func (s *blobStore) Load(_ context.Context, conversationID string) (*ConversationContext, error) {
	s.loads++
	if s.failLoad != nil {
		return nil, s.failLoad
	}
	blob, ok := s.blobs[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return UnmarshalContext(blob)
}

func (s *blobStore) Save(_ context.Context, c *ConversationContext) error {
	s.saves++
	if s.failSave != nil {
		return s.failSave
	}
	blob, err := c.Marshal()
	if err != nil {
		return err
	}
	s.blobs[c.ConversationID] = blob
	return nil
}

func TestCachedRepositorySkipsStoreOnHit(t *testing.T) {
	store := newBlobStore()
	repo := NewCachedRepository(store)

	c := NewConversationContext("conv-1", "user-1")
	require.NoError(t, repo.Save(context.Background(), c))

	_, err := repo.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	_, err = repo.Load(context.Background(), "conv-1")
	require.NoError(t, err)

	assert.Equal(t, 0, store.loads, "saved entries should be served from cache")
	assert.Equal(t, 1, store.saves)
}

func TestCachedRepositoryMissFallsThrough(t *testing.T) {
	store := newBlobStore()
	seed := NewConversationContext("conv-1", "user-1")
	require.NoError(t, store.Save(context.Background(), seed))

	repo := NewCachedRepository(store)
	got, err := repo.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.Equal(t, 1, store.loads)

	// Second load is a hit.
	_, err = repo.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)
}

func TestCachedRepositorySaveWritesThrough(t *testing.T) {
	store := newBlobStore()
	repo := NewCachedRepository(store)

	store.failSave = errors.New("db down")
	c := NewConversationContext("conv-1", "user-1")
	err := repo.Save(context.Background(), c)
	require.Error(t, err)

	// A failed write-through must not populate the cache.
	store.failSave = nil
	_, err = repo.Load(context.Background(), "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedRepositoryPropagatesTransientLoadErrors(t *testing.T) {
	store := newBlobStore()
	store.failLoad = errors.New("connection reset")
	repo := NewCachedRepository(store)

	_, err := repo.Load(context.Background(), "conv-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestCachedRepositoryEntriesAreNotAliased(t *testing.T) {
	store := newBlobStore()
	repo := NewCachedRepository(store)

	c := NewConversationContext("conv-1", "user-1")
	c.MergeEntities(map[string]string{SlotSymptom: "fever"})
	require.NoError(t, repo.Save(context.Background(), c))

	loaded, err := repo.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	loaded.Slots[SlotAge] = "2岁" // caller-side mutation

	again, err := repo.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	_, leaked := again.Slots[SlotAge]
	assert.False(t, leaked, "cache must hand out copies")
}
