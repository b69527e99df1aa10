package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messagesPage(ids []string, next string) string {
	msgs := make([]map[string]any, len(ids))
	for i, id := range ids {
		msgs[i] = map[string]any{
			"id":      id,
			"subject": "Subject " + id,
			"from":    map[string]any{"emailAddress": map[string]string{"name": "Sender", "address": "s@example.com"}},
		}
	}
	body := map[string]any{"value": msgs}
	if next != "" {
		body["@odata.nextLink"] = next
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func TestListMessages_FollowsNextLinkUntilMax(t *testing.T) {
	var srv *httptest.Server
	var requests []string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		switch r.URL.Path {
		case "/me/mailFolders/inbox/messages":
			q := r.URL.Query()
			assert.Equal(t, "3", q.Get("$top"))
			assert.Equal(t, "receivedDateTime desc", q.Get("$orderby"))
			assert.Empty(t, q.Get("$filter"))
			assert.Equal(t, listSelect, q.Get("$select"))
			_, _ = io.WriteString(w, messagesPage([]string{"m1", "m2"}, srv.URL+"/page2"))
		case "/page2":
			_, _ = io.WriteString(w, messagesPage([]string{"m3", "m4"}, srv.URL+"/page3"))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	})

	msgs, err := c.ListMessages(context.Background(), "inbox", false, 3)

	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[2].ID)
	assert.Equal(t, "Sender <s@example.com>", msgs[0].FromString())
	assert.Equal(t, []string{"/me/mailFolders/inbox/messages", "/page2"}, requests)
}

func TestListMessages_UnreadOnlyOmitsOrderBy(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "isRead eq false", q.Get("$filter"))
		assert.Empty(t, q.Get("$orderby"))
		_, _ = io.WriteString(w, messagesPage([]string{"m1"}, ""))
	})

	msgs, err := c.ListMessages(context.Background(), "inbox", true, 10)

	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestListMessages_EmptyFolder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"value":[]}`)
	})

	msgs, err := c.ListMessages(context.Background(), "archive", false, 10)

	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestPageSize(t *testing.T) {
	assert.Equal(t, 10, pageSize(10))
	assert.Equal(t, maxPageSize, pageSize(5000))
	assert.Equal(t, maxPageSize, pageSize(0))
}

func TestSearchMessages_QuotesQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages", r.URL.Path)
		assert.Equal(t, `"from:bob \"weekly\""`, r.URL.Query().Get("$search"))
		_, _ = io.WriteString(w, messagesPage([]string{"m1"}, ""))
	})

	msgs, err := c.SearchMessages(context.Background(), `from:bob "weekly"`, 5)

	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestGetMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages/AAMk=1", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("$select"), "internetMessageHeaders")
		_, _ = io.WriteString(w, `{
			"id": "AAMk=1",
			"subject": "Newsletter",
			"toRecipients": [{"emailAddress": {"address": "a@example.com"}}, {"emailAddress": {"address": "b@example.com"}}],
			"body": {"contentType": "html", "content": "<p>hi</p>"},
			"internetMessageHeaders": [{"name": "List-Unsubscribe", "value": "<https://example.com/u>"}]
		}`)
	})

	msg, err := c.GetMessage(context.Background(), "AAMk=1")

	require.NoError(t, err)
	assert.Equal(t, "a@example.com, b@example.com", msg.ToString())
	assert.Equal(t, "<p>hi</p>", msg.BodyText())
	v, ok := msg.Header("list-unsubscribe")
	assert.True(t, ok)
	assert.Equal(t, "<https://example.com/u>", v)
}

func TestGetMIME(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: hi\r\n\r\nbody"
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages/m1/$value", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, raw)
	})

	data, err := c.GetMIME(context.Background(), "m1")

	require.NoError(t, err)
	assert.Equal(t, raw, string(data))
}

func TestMoveOperations(t *testing.T) {
	tests := []struct {
		name string
		move func(c *Client) (*Message, error)
		dest string
	}{
		{"archive", func(c *Client) (*Message, error) { return c.Archive(context.Background(), "m1") }, "archive"},
		{"spam", func(c *Client) (*Message, error) { return c.MarkSpam(context.Background(), "m1") }, "junkemail"},
		{"unspam", func(c *Client) (*Message, error) { return c.Unspam(context.Background(), "m1") }, "inbox"},
		{"trash", func(c *Client) (*Message, error) { return c.Trash(context.Background(), "m1") }, "deleteditems"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/me/messages/m1/move", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, tt.dest, body["destinationId"])

				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, `{"id":"m1-moved"}`)
			})

			moved, err := tt.move(c)

			require.NoError(t, err)
			assert.Equal(t, "m1-moved", moved.ID)
		})
	}
}

// categoryServer serves a message with the given categories and records PATCH bodies.
func categoryServer(t *testing.T, categories []string) (*Client, *[][]string) {
	t.Helper()
	var patches [][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			data, _ := json.Marshal(map[string]any{"id": "m1", "categories": categories})
			_, _ = w.Write(data)
		case http.MethodPatch:
			var body struct {
				Categories []string `json:"categories"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			patches = append(patches, body.Categories)
			_, _ = io.WriteString(w, `{"id":"m1"}`)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})
	return c, &patches
}

func TestAddCategory(t *testing.T) {
	c, patches := categoryServer(t, []string{"Work"})

	changed, err := c.AddCategory(context.Background(), "m1", "Receipts")

	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, *patches, 1)
	assert.Equal(t, []string{"Work", "Receipts"}, (*patches)[0])
}

func TestAddCategory_AlreadyPresent(t *testing.T) {
	c, patches := categoryServer(t, []string{"Work"})

	changed, err := c.AddCategory(context.Background(), "m1", "work")

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, *patches)
}

func TestRemoveCategory(t *testing.T) {
	c, patches := categoryServer(t, []string{"Work", "receipts", "Travel"})

	err := c.RemoveCategory(context.Background(), "m1", "Receipts")

	require.NoError(t, err)
	require.Len(t, *patches, 1)
	assert.Equal(t, []string{"Work", "Travel"}, (*patches)[0])
}

func TestSetCategories_NilClears(t *testing.T) {
	c, patches := categoryServer(t, nil)

	require.NoError(t, c.SetCategories(context.Background(), "m1", nil))

	require.Len(t, *patches, 1)
	assert.NotNil(t, (*patches)[0])
	assert.Empty(t, (*patches)[0])
}

func TestMarkReadAndUnread(t *testing.T) {
	for _, read := range []bool{true, false} {
		t.Run(fmt.Sprintf("read=%v", read), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPatch, r.Method)
				var body map[string]bool
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, read, body["isRead"])
				_, _ = io.WriteString(w, `{"id":"m1"}`)
			})

			var err error
			if read {
				err = c.MarkRead(context.Background(), "m1")
			} else {
				err = c.MarkUnread(context.Background(), "m1")
			}
			assert.NoError(t, err)
		})
	}
}

func TestSendMail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/sendMail", r.URL.Path)

		var req sendMailRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.SaveToSentItems)
		assert.Equal(t, "Hello", req.Message.Subject)
		assert.Equal(t, "html", req.Message.Body.ContentType)
		assert.Len(t, req.Message.ToRecipients, 2)
		assert.Equal(t, "Jane Doe", req.Message.ToRecipients[0].EmailAddress.Name)
		assert.Equal(t, "jane@example.com", req.Message.ToRecipients[0].EmailAddress.Address)
		assert.Equal(t, "bob@example.com", req.Message.ToRecipients[1].EmailAddress.Address)
		assert.Empty(t, req.Message.CcRecipients)
		assert.Len(t, req.Message.BccRecipients, 1)

		w.WriteHeader(http.StatusAccepted)
	})

	err := c.SendMail(context.Background(), SendOptions{
		To:      []string{"Jane Doe <jane@example.com>", "bob@example.com"},
		Bcc:     []string{"audit@example.com"},
		Subject: "Hello",
		Body:    "<b>hi</b>",
		HTML:    true,
	})

	assert.NoError(t, err)
}

func TestSendMail_Validation(t *testing.T) {
	c := NewClient(nil)

	err := c.SendMail(context.Background(), SendOptions{Subject: "no recipients"})
	assert.Error(t, err)

	err = c.SendMail(context.Background(), SendOptions{To: []string{"not an address <"}})
	assert.Error(t, err)
}

func TestParseRecipients_CommaList(t *testing.T) {
	got, err := ParseRecipients([]string{"a@example.com, B <b@example.com>", " "})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a@example.com", got[0].EmailAddress.Address)
	assert.Equal(t, "B <b@example.com>", got[1].EmailAddress.String())
}
