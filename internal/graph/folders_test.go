package graph

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func folderTreeHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/mailFolders":
			_, _ = io.WriteString(w, `{"value":[
				{"id":"inbox-id","displayName":"Inbox","childFolderCount":1,"unreadItemCount":3,"totalItemCount":10},
				{"id":"archive-id","displayName":"Archive","childFolderCount":0}
			]}`)
		case "/me/mailFolders/inbox-id/childFolders":
			_, _ = io.WriteString(w, `{"value":[{"id":"receipts-id","displayName":"Receipts","childFolderCount":1}]}`)
		case "/me/mailFolders/receipts-id/childFolders":
			_, _ = io.WriteString(w, `{"value":[{"id":"y2024-id","displayName":"2024","childFolderCount":0}]}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestListFolders_Recursive(t *testing.T) {
	c, _ := newTestClient(t, folderTreeHandler(t))

	folders, err := c.ListFolders(context.Background())

	require.NoError(t, err)
	names := make([]string, len(folders))
	for i, f := range folders {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Inbox", "Inbox/Receipts", "Inbox/Receipts/2024", "Archive"}, names)
	assert.Equal(t, 3, folders[0].UnreadItemCount)
	assert.Equal(t, "2024", folders[2].DisplayName)

	depths := make([]int, len(folders))
	for i, f := range folders {
		depths[i] = f.Depth
	}
	assert.Equal(t, []int{0, 1, 2, 0}, depths)
}

func TestListFolders_SlashInDisplayName(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/mailFolders", r.URL.Path)
		_, _ = io.WriteString(w, `{"value":[{"id":"ab-id","displayName":"A/B Tests","childFolderCount":0}]}`)
	})

	folders, err := c.ListFolders(context.Background())

	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "A/B Tests", folders[0].Name)
	assert.Equal(t, 0, folders[0].Depth)
}

func TestResolveFolder(t *testing.T) {
	c, _ := newTestClient(t, folderTreeHandler(t))

	id, err := c.ResolveFolder(context.Background(), "Junk")
	require.NoError(t, err)
	assert.Equal(t, "junkemail", id)

	id, err = c.ResolveFolder(context.Background(), "inbox/receipts")
	require.NoError(t, err)
	assert.Equal(t, "receipts-id", id)

	_, err = c.ResolveFolder(context.Background(), "Nowhere")
	assert.EqualError(t, err, "folder 'Nowhere' not found")
}

func TestGetFolder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/mailFolders/junkemail", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"jid","displayName":"Junk Email","unreadItemCount":2}`)
	})

	f, err := c.GetFolder(context.Background(), "junkemail")

	require.NoError(t, err)
	assert.Equal(t, "Junk Email", f.Name)
	assert.Equal(t, 2, f.UnreadItemCount)
}

func TestNormalizeFolder(t *testing.T) {
	tests := map[string]string{
		"inbox":        "inbox",
		"INBOX":        "inbox",
		"sent":         "sentitems",
		"SentItems":    "sentitems",
		"draft":        "drafts",
		"drafts":       "drafts",
		"trash":        "deleteditems",
		"deleted":      "deleteditems",
		"deleteditems": "deleteditems",
		"spam":         "junkemail",
		"junk":         "junkemail",
		"JunkEmail":    "junkemail",
		"Archive":      "archive",
		"outbox":       "outbox",
		" Receipts ":   "receipts",
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, NormalizeFolder(in))
		})
	}
}

func TestListCategories(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/outlook/masterCategories", r.URL.Path)
		_, _ = io.WriteString(w, `{"value":[{"id":"1","displayName":"Red category","color":"preset0"}]}`)
	})

	cats, err := c.ListCategories(context.Background())

	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Red category", cats[0].DisplayName)
	assert.Equal(t, "preset0", cats[0].Color)
}
