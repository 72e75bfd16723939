package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"durakv/internal/cluster"
	"durakv/internal/store"
)

func newTestPrimaryRouter(t *testing.T) (*gin.Engine, *cluster.ClusterNode) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)

	n := cluster.NewClusterNode(1, s, nil) // no peers: self-promotes to leader
	n.Start()
	t.Cleanup(func() { _ = n.Stop() })

	r := gin.New()
	RegisterPrimaryCluster(r, n)
	return r, n
}

func TestPrimaryHandlersSetGetAsLeader(t *testing.T) {
	r, n := newTestPrimaryRouter(t)
	require.Eventually(t, func() bool {
		h := n.Health()
		return h.IsLeader
	}, time.Second, 10*time.Millisecond)

	rec := doJSON(r, http.MethodPost, "/set", setBody{Key: "foo", Value: "bar"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/get/foo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPrimaryHandlersHealthReportsLeader(t *testing.T) {
	r, n := newTestPrimaryRouter(t)
	require.Eventually(t, func() bool { return n.Health().IsLeader }, time.Second, 10*time.Millisecond)

	rec := doJSON(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPrimaryHandlersElectionEndpointsDontPanic(t *testing.T) {
	r, _ := newTestPrimaryRouter(t)

	rec := doJSON(r, http.MethodPost, "/election", electionBody{From: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodPost, "/coordinator", coordinatorBody{LeaderID: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodPost, "/heartbeat", heartbeatBody{LeaderID: 2})
	require.Equal(t, http.StatusOK, rec.Code)
}
