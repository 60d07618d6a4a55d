package studio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *[]*fakePreview) {
	previews := &[]*fakePreview{}
	return NewRegistry(func() Dependencies {
		p := &fakePreview{}
		*previews = append(*previews, p)
		return Dependencies{Preview: p, Logger: discardLogger()}
	}), previews
}

func TestRegistry_CreateFind(t *testing.T) {
	r, _ := newTestRegistry()

	s := r.Create()
	require.NotNil(t, s)
	assert.Contains(t, s.ID(), "session-")

	found, err := r.Find(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, found)

	_, err = r.Find("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_Delete(t *testing.T) {
	r, previews := newTestRegistry()
	s := r.Create()

	require.NoError(t, r.Delete(context.Background(), s.ID()))
	assert.True(t, (*previews)[0].closed)

	_, err := r.Find(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Delete(context.Background(), s.ID()), ErrSessionNotFound)
}

func TestRegistry_List(t *testing.T) {
	r, _ := newTestRegistry()
	a := r.Create()
	b := r.Create()

	list := r.List()
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{a.ID(), b.ID()}, []string{list[0].ID(), list[1].ID()})
}

func TestRegistry_Close(t *testing.T) {
	r, previews := newTestRegistry()
	r.Create()
	r.Create()

	require.NoError(t, r.Close(context.Background()))
	assert.Empty(t, r.List())
	for _, p := range *previews {
		assert.True(t, p.closed)
	}
}
