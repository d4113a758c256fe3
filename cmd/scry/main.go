// Command scry runs the Scry MCP server: the whiteboard/whiteboard_list
// tools over stdio, plus an optional gallery web server for viewing boards
// live. Tracing must go to stderr — stdout carries the MCP JSON-RPC
// transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/tobert/scry-mcp/board"
	"github.com/tobert/scry-mcp/gallery"
	scrymcp "github.com/tobert/scry-mcp/mcp"
)

const version = "0.1.0"

func main() {
	address := flag.String("address", "127.0.0.1", "gallery web server bind address")
	port := flag.Int("port", 0, "gallery web server port (0, the default, disables the gallery)")
	outputDir := flag.String("output-dir", "", "directory for best-effort PNG/SVG file output (disabled if empty)")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)

	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0o755); err != nil {
			log.WithError(err).Fatal("failed to create output directory")
		}
	}

	store := board.NewStore(log)

	var galleryURL scrymcp.GalleryURL
	var httpServer *http.Server
	if *port != 0 {
		base := fmt.Sprintf("http://%s:%d", *address, *port)
		galleryURL = func(name string) string { return gallery.URLFor(base, name) }

		httpServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", *address, *port),
			Handler:           gallery.Router(store, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		ln, err := net.Listen("tcp", httpServer.Addr)
		if err != nil {
			log.WithError(err).Fatal("failed to bind gallery address")
		}
		go func() {
			log.WithField("addr", httpServer.Addr).Info("gallery listening")
			if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("gallery server error")
			}
		}()
	}

	toolServer := scrymcp.NewServer(store, *outputDir, galleryURL, log)

	srv := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "scry-mcp",
		Title:   "Scry — Computational Scrying Glass",
		Version: version,
	}, &mcpsdk.ServerOptions{
		HasTools:     true,
		Instructions: "Scry: computational scrying glass. Use 'whiteboard' to execute JavaScript " + "that generates SVG visuals. Call svg('<svg>...</svg>') in your code to render. Variables persist per board.",
	})
	toolServer.Register(srv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{"address": *address, "port": *port}).Info("Scry MCP starting")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Run(ctx, mcpsdk.NewStdioTransport())
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("MCP serve error")
		} else {
			log.Info("MCP session ended")
		}
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("gallery graceful shutdown failed")
		}
	}
}
