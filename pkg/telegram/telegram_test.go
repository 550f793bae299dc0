package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "555", r.PostForm.Get("chat_id"))
		assert.Equal(t, "Your login code: *1234*", r.PostForm.Get("text"))
		assert.Equal(t, "Markdown", r.PostForm.Get("parse_mode"))
		assert.Empty(t, r.PostForm.Get("disable_notification"))

		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77,"date":1700000000}}`))
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL+"/", time.Second)
	msg, err := c.SendMessage(context.Background(), SendMessageParams{
		ChatID:    "555",
		Text:      "Your login code: *1234*",
		ParseMode: "Markdown",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), msg.MessageID)
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	_, err := NewClient("123:abc", srv.URL, time.Second).SendMessage(context.Background(), SendMessageParams{ChatID: "1", Text: "hi"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.ErrorCode)
	assert.Contains(t, apiErr.Description, "blocked")
}

func TestSendMessageTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient("123:secret-token", srv.URL, time.Second).SendMessage(context.Background(), SendMessageParams{ChatID: "1", Text: "hi"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestSendMessageWithoutToken(t *testing.T) {
	_, err := NewClient("", "", time.Second).SendMessage(context.Background(), SendMessageParams{ChatID: "1", Text: "hi"})
	assert.ErrorIs(t, err, ErrNoToken)
}

func widgetFields(authDate time.Time) map[string]string {
	return map[string]string{
		"id":         "123456789",
		"first_name": "Anna",
		"username":   "anna_k",
		"auth_date":  strconv.FormatInt(authDate.Unix(), 10),
	}
}

func TestVerifyLogin(t *testing.T) {
	const token = "123:abc"
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	fields := widgetFields(now.Add(-time.Minute))
	fields["hash"] = SignLogin(fields, token)

	user, err := VerifyLogin(fields, token, 24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), user.ID)
	assert.Equal(t, "Anna", user.FirstName)
	assert.Equal(t, "anna_k", user.Username)

	tampered := map[string]string{}
	for k, v := range fields {
		tampered[k] = v
	}
	tampered["username"] = "mallory"
	_, err = VerifyLogin(tampered, token, 24*time.Hour, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = VerifyLogin(fields, "other:token", 24*time.Hour, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = VerifyLogin(fields, token, 24*time.Hour, now.Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrLoginExpired)

	delete(fields, "hash")
	_, err = VerifyLogin(fields, token, 0, now)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestLoginFields(t *testing.T) {
	dec := json.NewDecoder(bytes.NewReader([]byte(`{"id":123456789012,"first_name":"Anna","auth_date":1700000000,"hash":"ab","is_bot":false,"photo_url":null}`)))
	dec.UseNumber()
	var raw map[string]any
	require.NoError(t, dec.Decode(&raw))

	fields := LoginFields(raw)
	assert.Equal(t, map[string]string{
		"id":         "123456789012",
		"first_name": "Anna",
		"auth_date":  "1700000000",
		"hash":       "ab",
		"is_bot":     "false",
	}, fields)
}
