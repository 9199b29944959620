package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"subwatch/internal/fetch"
)

func TestBuildPostNodesFullDetail(t *testing.T) {
	t.Parallel()
	svc := newTestService(newMemStore(), newFakeFetcher(), &fakeRenderer{}, newFakeAdapter())

	snap := postSnap("alice", 556, time.Unix(1700000000, 0), detailWithEverything)
	nodes, err := svc.buildPostNodes(context.Background(), snap)
	require.NoError(t, err)

	// rendered image, "content" label + excerpt, "images" label + 2 attachments
	require.Len(t, nodes, 6)
	require.Equal(t, "https://img.test/rendered.png", nodes[0].ImageURL)
	require.Equal(t, "Post content:", nodes[1].Text)
	require.Equal(t, "hello from the test account", nodes[2].Text)
	require.Equal(t, "Post images:", nodes[3].Text)
	require.Equal(t, "https://img.test/a.png", nodes[4].ImageURL)
	require.Equal(t, "https://img.test/b.png", nodes[5].ImageURL)

	for i, n := range nodes {
		require.Equal(t, "alice", n.Author, "node %d author", i)
		require.EqualValues(t, nodeTag, n.Tag, "node %d tag", i)
	}
}

func TestBuildPostNodesOmitsAbsentSections(t *testing.T) {
	t.Parallel()
	svc := newTestService(newMemStore(), newFakeFetcher(), &fakeRenderer{}, newFakeAdapter())

	tests := []struct {
		name   string
		detail string
		want   int
	}{
		{name: "empty detail", detail: `{}`, want: 1},
		{name: "text only", detail: `{"modules":{"module_dynamic":{"desc":{"text":"hi"}}}}`, want: 3},
		{name: "images only", detail: `{"modules":{"module_dynamic":{"major":{"draw":{"items":[{"src":"x.png"}]}}}}}`, want: 3},
		{name: "empty text ignored", detail: `{"modules":{"module_dynamic":{"desc":{"text":""}}}}`, want: 1},
		{name: "empty image list ignored", detail: `{"modules":{"module_dynamic":{"major":{"draw":{"items":[]}}}}}`, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := postSnap("alice", 1, time.Unix(1700000000, 0), tt.detail)
			nodes, err := svc.buildPostNodes(context.Background(), snap)
			require.NoError(t, err)
			require.Len(t, nodes, tt.want)
		})
	}
}

func TestBuildLiveTextRequiresCover(t *testing.T) {
	t.Parallel()
	snap := &fetch.LiveSnapshot{Status: fetch.StatusOnline, Title: "t", RoomID: 7, Author: "bob"}
	_, err := buildLiveText(snap, "https://live.test/7")
	require.ErrorIs(t, err, ErrNoCover)

	snap.Cover = "https://img.test/cover.png"
	text, err := buildLiveText(snap, "https://live.test/7")
	require.NoError(t, err)
	require.Contains(t, text, "bob is live!")
	require.Contains(t, text, "t")
	require.Contains(t, text, "https://img.test/cover.png")
	require.Contains(t, text, "https://live.test/7")
}
