package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/motorsim/motorsim/internal/api"
	"github.com/motorsim/motorsim/internal/config"
	"github.com/motorsim/motorsim/internal/storage"
	"github.com/motorsim/motorsim/internal/storage/memory"
	pgstorage "github.com/motorsim/motorsim/internal/storage/postgres"
	sqlitestorage "github.com/motorsim/motorsim/internal/storage/sqlite"
	wsstorage "github.com/motorsim/motorsim/internal/storage/websocket"
	"github.com/spf13/viper"
)

func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend selected")
		return pgstorage.New(logger), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     storageCfg.SQLite.DumpPath,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend selected")
		return backend, nil

	case "websocket":
		wsURL := viper.GetString("websocket.url")
		if server := viper.GetString("api.serverUrl"); server != "" {
			wsURL = httpToWS(server) + "/api"
		}
		secret := viper.GetString("websocket.secret")
		if secret == "" {
			secret = viper.GetString("api.apiKey")
		}
		logger.Info("WebSocket storage backend selected", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: secret,
		}, logger), nil

	case "none":
		logger.Info("Command journal disabled")
		return storage.Nop{}, nil

	case "", "memory":
		logger.Info("Memory storage backend selected")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// uploadTranscript sends the transcript of an exportable backend to the
// collector named by api.serverUrl. Nothing happens when no URL is set.
func uploadTranscript(backend storage.Backend, logger *slog.Logger) {
	exp, ok := backend.(storage.Exportable)
	server := viper.GetString("api.serverUrl")
	if !ok || server == "" {
		return
	}
	client := api.New(server, viper.GetString("api.apiKey"))
	if err := client.Healthcheck(); err != nil {
		logger.Warn("Transcript collector unreachable, keeping local copy", "error", err, "path", exp.ExportedFilePath())
		return
	}
	if err := client.UploadExport(exp); err != nil {
		logger.Error("Failed to upload transcript", "error", err, "path", exp.ExportedFilePath())
		return
	}
	logger.Info("Transcript uploaded", "path", exp.ExportedFilePath())
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
