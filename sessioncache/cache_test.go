package sessioncache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string) SessionEntry {
	return SessionEntry{SessionID: id, CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
}

func TestInsertIntoEmptyCacheCreatesSinglePage(t *testing.T) {
	c := NewCache()
	inserted, err := c.InsertIfAbsent(entry("s1"))
	require.NoError(t, err)
	require.True(t, inserted)

	pages := c.Pages()
	require.Len(t, pages, 1)
	require.Len(t, pages[0].Data, 1)
	assert.Equal(t, "s1", pages[0].Data[0].SessionID)
}

func TestInsertPrependsToFirstPageOnly(t *testing.T) {
	c := NewCache()
	c.SetPages([]Page{
		{Data: []SessionEntry{entry("a"), entry("b")}, Meta: PageMeta{Page: 1, TotalCount: 4}},
		{Data: []SessionEntry{entry("c"), entry("d")}, Meta: PageMeta{Page: 2, TotalCount: 4}},
	})
	inserted, err := c.InsertIfAbsent(entry("new"))
	require.NoError(t, err)
	require.True(t, inserted)

	pages := c.Pages()
	assert.Equal(t, []string{"new", "a", "b"}, sessionIDs(pages[0]))
	assert.Equal(t, []string{"c", "d"}, sessionIDs(pages[1]), "other pages are untouched")
}

func TestInsertDuplicateIsNoOp(t *testing.T) {
	c := NewCache()
	c.SetPages([]Page{
		{Data: []SessionEntry{entry("a")}, Meta: PageMeta{Page: 1}},
		{Data: []SessionEntry{entry("b")}, Meta: PageMeta{Page: 2}},
	})

	// Duplicate on a later page: no insertion, no reordering.
	inserted, err := c.InsertIfAbsent(entry("b"))
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = c.InsertIfAbsent(entry("b"))
	require.NoError(t, err)
	assert.False(t, inserted)

	pages := c.Pages()
	assert.Equal(t, []string{"a"}, sessionIDs(pages[0]))
	assert.Equal(t, []string{"b"}, sessionIDs(pages[1]))
}

func TestInsertRequiresSessionID(t *testing.T) {
	c := NewCache()
	_, err := c.InsertIfAbsent(SessionEntry{})
	require.ErrorIs(t, err, ErrEmptySessionID)
}

func TestRemoveFiltersAcrossAllPages(t *testing.T) {
	c := NewCache()
	c.SetPages([]Page{
		{Data: []SessionEntry{entry("a"), entry("x")}, Meta: PageMeta{Page: 1, TotalCount: 3}},
		{Data: []SessionEntry{entry("x")}, Meta: PageMeta{Page: 2, TotalCount: 3}},
	})
	removed, err := c.Remove("x")
	require.NoError(t, err)
	require.True(t, removed)

	pages := c.Pages()
	assert.Equal(t, []string{"a"}, sessionIDs(pages[0]))
	assert.Empty(t, pages[1].Data)
}

func TestRemoveMissingIsFalse(t *testing.T) {
	c := NewCache()
	removed, err := c.Remove("ghost")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPagesSnapshotIsIsolated(t *testing.T) {
	c := NewCache()
	_, err := c.InsertIfAbsent(entry("s1"))
	require.NoError(t, err)
	snap := c.Pages()
	snap[0].Data[0].SessionID = "mutated"
	assert.Equal(t, "s1", c.Pages()[0].Data[0].SessionID)
}

func sessionIDs(p Page) []string {
	out := make([]string, 0, len(p.Data))
	for _, e := range p.Data {
		out = append(out, e.SessionID)
	}
	return out
}
