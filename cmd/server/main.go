package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-session-host/catalog"
	"github.com/jrsteele09/go-session-host/directory"
	"github.com/jrsteele09/go-session-host/directory/memdirectory"
	"github.com/jrsteele09/go-session-host/directory/sqlitedirectory"
	"github.com/jrsteele09/go-session-host/internal/config"
	"github.com/jrsteele09/go-session-host/internal/metrics"
	"github.com/jrsteele09/go-session-host/relay"
	"github.com/jrsteele09/go-session-host/server"
	"github.com/jrsteele09/go-session-host/session"
	"github.com/jrsteele09/go-session-host/spawn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	characters, err := loadCatalog(c.GetCatalogPath())
	if err != nil {
		return err
	}

	relayClient, err := relay.NewLocal(c)
	if err != nil {
		return fmt.Errorf("relay.NewLocal: %w", err)
	}

	lobby, err := openDirectory(c)
	if err != nil {
		return err
	}
	defer lobby.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hub := server.NewHub()
	director, err := spawn.NewDirector(characters, hub, c.GetSpawnSpread(), spawn.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("spawn.NewDirector: %w", err)
	}

	coordinator, err := session.NewCoordinator(session.Deps{
		Relay:     relayClient,
		Directory: lobby,
		Spawner:   director,
		Scenes:    hub,
	}, session.SettingsFromConfig(c, c), session.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("session.NewCoordinator: %w", err)
	}

	handler, err := server.New(c, server.Deps{
		Coordinator: coordinator,
		Hub:         hub,
		Tokens:      relayClient,
		Directory:   lobby,
		Gatherer:    registry,
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepDirectory(sweepCtx, lobby, c.GetDirectoryEntryTTL())

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go func() {
		if err := listenAndServe(httpServer); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	waitForStopSignal()
	stopSweep()

	return shutdown(httpServer, coordinator, hub)
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// loadCatalog reads the character catalog. A missing file yields an empty
// catalog; every selection is then skipped at spawn time.
func loadCatalog(path string) (*catalog.Memory, error) {
	characters, err := catalog.LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("character catalog not found, no characters will spawn")
		return catalog.NewMemory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog.LoadFile: %w", err)
	}
	log.Info().Str("path", path).Int("characters", len(characters.List())).Msg("character catalog loaded")
	return characters, nil
}

// lobbyDirectory is a directory store that can purge expired entries.
type lobbyDirectory interface {
	directory.Store
	DeleteExpired(ctx context.Context) (int64, error)
	Close() error
}

// memoryLobby adapts the in-memory directory to lobbyDirectory.
type memoryLobby struct {
	*memdirectory.InMemoryDirectory
}

func (m memoryLobby) DeleteExpired(ctx context.Context) (int64, error) {
	return int64(m.InMemoryDirectory.DeleteExpired()), nil
}

func (m memoryLobby) Close() error {
	return nil
}

// openDirectory uses SQLite when DIRECTORY_PATH is set and memory otherwise.
func openDirectory(c config.DirectoryConfig) (lobbyDirectory, error) {
	ttl := c.GetDirectoryEntryTTL()
	path := c.GetDirectoryPath()
	if path == "" {
		log.Info().Dur("ttl", ttl).Msg("using in-memory directory")
		return memoryLobby{memdirectory.NewInMemoryDirectory(ttl)}, nil
	}

	store, err := sqlitedirectory.Open(path, ttl)
	if err != nil {
		return nil, fmt.Errorf("sqlitedirectory.Open: %w", err)
	}
	log.Info().Str("path", path).Dur("ttl", ttl).Msg("using sqlite directory")
	return store, nil
}

func sweepDirectory(ctx context.Context, lobby lobbyDirectory, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := lobby.DeleteExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("directory sweep failed")
				continue
			}
			if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("expired directory entries removed")
			}
		}
	}
}

func listenAndServe(httpServer *http.Server) error {
	log.Info().Msgf("Server listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

// shutdown tears the session down before the HTTP server so the directory
// entry and relay allocation are released while clients are still connected.
func shutdown(httpServer *http.Server, coordinator *session.Coordinator, hub *server.Hub) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if sessionErr := coordinator.Shutdown(ctx); sessionErr != nil {
		err = multierr.Append(err, fmt.Errorf("coordinator.Shutdown: %w", sessionErr))
	}
	hub.CloseAll("host shutting down")
	if serverErr := httpServer.Shutdown(ctx); serverErr != nil {
		err = multierr.Append(err, fmt.Errorf("server.Shutdown: %w", serverErr))
	}
	return err
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
