// cmd/server is the single-node entrypoint: one KVStore behind the HTTP
// surface described in spec.md §6, no cluster coordination.
//
// Example:
//
//	./server --host 0.0.0.0 --port 8080 --data-dir /var/kvstore/node1
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"durakv/internal/api"
	"durakv/internal/log"
	"durakv/internal/store"
)

func main() {
	host := flag.String("host", "0.0.0.0", "listen host")
	port := flag.Int("port", 8080, "listen port")
	dataDir := flag.String("data-dir", "/tmp/durakv", "directory for WAL, snapshot, and indexes")
	debug := flag.Bool("debug", false, "enable debug-level logging (the snapshot-skip test hook is set per write by the request's debug field)")
	flag.Parse()

	log.Init(log.Config{Level: levelFor(*debug), JSON: true})
	logger := log.Component("main")

	s, err := store.Open(*dataDir, store.Options{})
	if err != nil {
		logger.Error().Err(err).Msg("failed to open store")
		os.Exit(1)
	}
	defer s.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.RequestID(), api.Logger(), api.Recovery())
	api.RegisterStore(router, s)

	addr := *host + ":" + strconv.Itoa(*port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("listening")
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
	if err := s.Close(); err != nil {
		logger.Error().Err(err).Msg("store close error")
		os.Exit(1)
	}
}

func levelFor(debug bool) string {
	if debug {
		return "debug"
	}
	return "info"
}

