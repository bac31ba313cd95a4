package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netmirror/internal/twin"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "twind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rep := &twin.Report{
		Items: []twin.Item{
			{Kind: twin.ItemLinkDown, Subject: "s1<->s2", OK: true},
			{Kind: twin.ItemHostAdd, Subject: "aa:bb:cc:dd:ee:ff", OK: true, Detail: "twin_h3"},
			{Kind: twin.ItemUnsupported, Subject: "s1<->s3", OK: false, Detail: "new inter-switch links cannot be created"},
		},
		Applied:  2,
		Skipped:  1,
		Failures: 0,
	}

	require.NoError(t, j.Record(ctx, 1, 2, rep))
	require.NoError(t, j.Record(ctx, 2, 4, &twin.Report{Applied: 0, Skipped: 0, Failures: 1}))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, uint64(4), entries[0].ToVersion)
	assert.Equal(t, 1, entries[0].Failures)
	assert.Equal(t, uint64(1), entries[1].FromVersion)
	assert.Equal(t, uint64(2), entries[1].ToVersion)
	assert.Equal(t, 2, entries[1].Applied)
	assert.Equal(t, 1, entries[1].Skipped)
}

func TestRecentLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, uint64(i), uint64(i+1), &twin.Report{}))
	}

	entries, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, uint64(5), entries[0].ToVersion)
}

func TestRecentEmpty(t *testing.T) {
	j := openTestJournal(t)

	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
