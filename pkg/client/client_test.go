package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLoginSetsToken(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw123456" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-1","refreshToken":"ref-1","user":{"id":1,"email":"alice@example.com","name":"Alice"}}`))
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":1,"email":"alice@example.com","name":"Alice"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL + "/")
	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid credentials", apiErr.Message)
	assert.Empty(t, c.Token())

	res, err := c.Login(context.Background(), "alice@example.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "Alice", res.User.Name)
	assert.Equal(t, "tok-1", c.Token())

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(1), me.ID)
	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestClientMessageEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`[{"id":1,"content":"hi","role":"user"}]`))
			return
		}
		var req SendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "avancado", req.Level)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"userMessage":{"id":2,"content":"` + req.Content + `","role":"user"},"botMessage":{"id":3,"content":"answer","role":"assistant"}}`))
	})
	mux.HandleFunc("/messages/3/like", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"likes":4}`))
	})
	mux.HandleFunc("/messages/3/dislike", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dislikes":1}`))
	})
	mux.HandleFunc("/saved-messages/9", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	ctx := context.Background()

	msgs, err := c.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	res, err := c.SendMessage(ctx, SendRequest{Content: "question", Level: "avancado"})
	require.NoError(t, err)
	assert.Equal(t, "question", res.UserMessage.Content)
	assert.Equal(t, "answer", res.BotMessage.Content)

	likes, err := c.Like(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, likes)
	dislikes, err := c.Dislike(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, dislikes)

	err = c.Unsave(ctx, 9)
	assert.Equal(t, http.StatusForbidden, StatusOf(err))
}

func TestClientErrorWithoutJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).ListSuggestions(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}

func TestClientLogoutSendsRefreshToken(t *testing.T) {
	var bodies []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/logout", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body := map[string]string{}
		if r.ContentLength > 0 {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		}
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	require.NoError(t, c.Logout(context.Background(), "ref"))
	assert.Empty(t, c.Token())

	c.SetToken("tok")
	require.NoError(t, c.Logout(context.Background(), ""))

	require.Len(t, bodies, 2)
	assert.Equal(t, "ref", bodies[0]["refreshToken"])
	assert.Empty(t, bodies[1])
}
