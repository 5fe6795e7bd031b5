package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Verbs(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/objects/{collection}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Last-Modified", "123")
		w.Write([]byte(`[]`))
	})
	router.Put("/objects/{collection}", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `[{"k":1}]`, string(body))
		w.WriteHeader(http.StatusCreated)
	})
	router.Delete("/objects/{collection}/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second})
	ctx := context.Background()

	resp, err := client.Get(ctx, "objects", "notes")
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "123", resp.Header.Get("X-Last-Modified"))
	assert.Equal(t, `[]`, string(resp.Body))

	resp, err = client.Put(ctx, []byte(`[{"k":1}]`), "objects", "notes")
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp, err = client.Delete(ctx, "objects", "notes", "abc")
	require.NoError(t, err)
	assert.True(t, resp.OK())
}

func TestClient_GetWithQuery(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := client.GetWithQuery(context.Background(), url.Values{"mtime": {"42"}}, "objects", "notes")
	require.NoError(t, err)
	assert.Equal(t, "42", gotQuery.Get("mtime"))
}

func TestClient_NonOKIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})
	resp, err := client.Get(context.Background(), "objects", "notes")
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestClient_TransportErrorIsAnError(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	_, err := client.Get(context.Background(), "objects", "notes")
	assert.Error(t, err)
}

func TestJoinPath_EscapesSegments(t *testing.T) {
	assert.Equal(t, "/objects/a%2Fb", joinPath([]string{"objects", "a/b"}))
	assert.Equal(t, "/control/id-1", joinPath([]string{"control", "id-1"}))
}

func TestResponse_OK(t *testing.T) {
	assert.True(t, (&Response{Code: 200}).OK())
	assert.True(t, (&Response{Code: 204}).OK())
	assert.False(t, (&Response{Code: 300}).OK())
	assert.False(t, (&Response{Code: 500}).OK())

	var nilResp *Response
	assert.False(t, nilResp.OK())
}
