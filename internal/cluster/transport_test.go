package cluster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := postJSON(context.Background(), srv.URL, map[string]string{"k": "v"}, &out)
	require.NoError(t, err)
	require.True(t, out.OK)
}

func TestDoJSONHonorsMethod(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer srv.Close()

	err := doJSON(context.Background(), http.MethodDelete, srv.URL, nil, nil)
	require.NoError(t, err)
	require.Equal(t, http.MethodDelete, gotMethod)
}

func TestDoJSONErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := postJSON(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
}

func TestSendWithRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	peer := Peer{ID: 1, Address: strings.TrimPrefix(srv.URL, "http://")}
	err := sendWithRetry(context.Background(), peer, "/", nil, nil, 3)
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestSendWithRetryExhausts(t *testing.T) {
	peer := Peer{ID: 1, Address: "127.0.0.1:1"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sendWithRetry(ctx, peer, "/", nil, nil, 2)
	require.Error(t, err)
}

func TestFireAndForgetSwallowsErrors(t *testing.T) {
	peers := []Peer{{ID: 1, Address: "127.0.0.1:1"}}
	require.NotPanics(t, func() {
		fireAndForget(peers, "/replicate", map[string]string{"op": "SET"}, 200*time.Millisecond, "test")
		time.Sleep(300 * time.Millisecond) // let the goroutine finish before the test exits
	})
}
