package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "",
		"path to a YAML configuration file; defaults to ./globemesh.yaml if present")
	collections := flag.String("collections", "",
		"comma-separated list of collection=filepath, each being a GeoJSON feature collection that will be served as meshes")
	listen := flag.String("listen", "", "address to listen on, such as :8080")
	publicPath := flag.String("public-path", "",
		"public URL prefix of the server, used in links; must end in /")
	flag.Parse()

	overrides := make(map[string]interface{})
	if *listen != "" {
		overrides["server.listen"] = *listen
	}
	if *publicPath != "" {
		overrides["server.public_path"] = *publicPath
	}

	cfg, err := LoadConfig(*configPath, overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *collections != "" {
		coll, err := parseCollections(*collections)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg.Collections = coll
	}
	if len(cfg.Collections) == 0 {
		fmt.Fprintln(os.Stderr, "no collections configured; pass something like -collections=countries=path/to/countries.geojson")
		os.Exit(2)
	}

	logger := setupLogging(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *Config, logger *slog.Logger) error {
	index, err := MakeIndex(cfg.Collections)
	if err != nil {
		return err
	}
	defer index.Close()

	server, err := MakeWebServer(index, cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      server,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Listen, "collections", index.GetCollections())
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
