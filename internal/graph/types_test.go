package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailAddress_String(t *testing.T) {
	assert.Equal(t, "Jane <jane@example.com>", EmailAddress{Name: "Jane", Address: "jane@example.com"}.String())
	assert.Equal(t, "jane@example.com", EmailAddress{Address: "jane@example.com"}.String())
	assert.Equal(t, "Jane", EmailAddress{Name: "Jane"}.String())
}

func TestMessage_FromString(t *testing.T) {
	assert.Equal(t, "", (&Message{}).FromString())

	m := &Message{From: &Recipient{EmailAddress: EmailAddress{Address: "x@example.com"}}}
	assert.Equal(t, "x@example.com", m.FromString())
}

func TestMessage_ToStringSkipsEmpty(t *testing.T) {
	m := &Message{ToRecipients: []Recipient{
		{EmailAddress: EmailAddress{Address: "a@example.com"}},
		{EmailAddress: EmailAddress{Name: "No Address"}},
		{EmailAddress: EmailAddress{Address: "b@example.com"}},
	}}

	assert.Equal(t, "a@example.com, b@example.com", m.ToString())
}

func TestMessage_BodyTextFallsBackToPreview(t *testing.T) {
	m := &Message{BodyPreview: "preview"}
	assert.Equal(t, "preview", m.BodyText())

	m.Body = &ItemBody{ContentType: "text", Content: "full"}
	assert.Equal(t, "full", m.BodyText())
}

func TestMessage_HeaderMissing(t *testing.T) {
	m := &Message{InternetMessageHeaders: []MessageHeader{{Name: "Subject", Value: "x"}}}

	_, ok := m.Header("List-Unsubscribe")
	assert.False(t, ok)
}

func TestUser_Email(t *testing.T) {
	assert.Equal(t, "mail@example.com", (&User{Mail: "mail@example.com", UserPrincipalName: "upn@example.com"}).Email())
	assert.Equal(t, "upn@example.com", (&User{UserPrincipalName: "upn@example.com"}).Email())
}
