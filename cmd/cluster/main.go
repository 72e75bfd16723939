// cmd/cluster runs one member of the fixed 3-node cluster topology, under
// either replication scheme (§4.6 primary-election, §4.7 masterless LWW).
//
// Example — three terminals, primary scheme:
//
//	./cluster --node-id 1 --port 9001 --mode primary
//	./cluster --node-id 2 --port 9002 --mode primary
//	./cluster --node-id 3 --port 9003 --mode primary
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"durakv/internal/api"
	"durakv/internal/cluster"
	"durakv/internal/log"
	"durakv/internal/store"
)

// topology is the fixed in-code 3-node cluster, per spec.md §6 ("Cluster
// driver takes --node-id --port and reads a fixed in-code 3-node
// topology"). Node ids 1..3 map to localhost ports 9001..9003.
var topology = []cluster.Peer{
	{ID: 1, Address: "localhost:9001"},
	{ID: 2, Address: "localhost:9002"},
	{ID: 3, Address: "localhost:9003"},
}

func main() {
	nodeID := flag.Int("node-id", 1, "this node's id within the fixed topology (1-3)")
	port := flag.Int("port", 9001, "listen port")
	mode := flag.String("mode", "primary", "replication scheme: primary or masterless")
	dataDir := flag.String("data-dir", "", "data directory (default /tmp/durakv-cluster/<node-id>)")
	flag.Parse()

	log.Init(log.Config{Level: "info", JSON: true})
	logger := log.WithNode("main", strconv.Itoa(*nodeID))

	dir := *dataDir
	if dir == "" {
		dir = fmt.Sprintf("/tmp/durakv-cluster/%d", *nodeID)
	}

	s, err := store.Open(dir, store.Options{})
	if err != nil {
		logger.Error().Err(err).Msg("failed to open store")
		os.Exit(1)
	}

	var peers []cluster.Peer
	for _, p := range topology {
		if p.ID != *nodeID {
			peers = append(peers, p)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.RequestID(), api.Logger(), api.Recovery())

	var stop func() error

	switch *mode {
	case "primary":
		node := cluster.NewClusterNode(*nodeID, s, peers)
		api.RegisterPrimaryCluster(router, node)
		node.Start()
		stop = node.Stop
	case "masterless":
		node := cluster.NewMasterlessNode(strconv.Itoa(*nodeID), s, peers)
		api.RegisterMasterlessCluster(router, node)
		stop = node.Close
	default:
		logger.Error().Str("mode", *mode).Msg("unknown mode, expected primary or masterless")
		os.Exit(1)
	}

	addr := "0.0.0.0:" + strconv.Itoa(*port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Str("mode", *mode).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	if err := stop(); err != nil {
		logger.Error().Err(err).Msg("node stop error")
		os.Exit(1)
	}
}
