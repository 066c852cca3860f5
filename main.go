package main

import (
	"embed"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"sitespeak/internal/config"
	"sitespeak/internal/sitewriter"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	envFile := pflag.String("env-file", "", "path to a .env file loaded before startup")
	logLevel := pflag.String("log-level", "info", "log level: debug, info, warn, error")
	pflag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			slog.Error("failed to load env file", "path", *envFile, "error", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	app := NewApp(log)

	err = wails.Run(&options.App{
		Title:  "sitespeak",
		Width:  1100,
		Height: 760,
		AssetServer: &assetserver.Options{
			Assets: assets,
			// Generated sites live outside the embedded bundle; URLs handed
			// back in the transcript resolve through this handler.
			Handler: sitewriter.New(cfg.Sites.Dir, cfg.Sites.PublicBase).Handler(),
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
