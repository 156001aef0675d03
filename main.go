package main

import (
	"embed"
	"flag"
	"os"

	"github.com/chazu/furnish/pkg/config"
	colorable "github.com/mattn/go-colorable"
	log "github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	configFile := flag.String("config", "furnish.yaml", "Path to furnish.yaml")
	catalogFile := flag.String("catalog", "", "Prototype YAML (default: built-in palette)")
	grid := flag.Float64("grid", 0, "Ground snap grid size (default: from config)")
	level := flag.String("log", "", "Log level (default: from config)")
	flag.Parse()

	log.SetOutput(colorable.NewColorableStdout())
	log.SetFormatter(&log.TextFormatter{ForceColors: true})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	cfg.Resolve(config.Flags{GridSize: *grid, Catalog: *catalogFile, LogLevel: *level})
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid settings")
	}
	log.SetLevel(cfg.Level())

	cat, err := cfg.LoadCatalog()
	if err != nil {
		log.WithError(err).Fatal("loading catalog")
	}
	log.WithField("prototypes", cat.Len()).Info("catalog loaded")

	app := NewApp(cfg, cat)
	err = wails.Run(&options.App{
		Title:  "furnish",
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup: app.startup,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.WithError(err).Error("wails")
		os.Exit(1)
	}
}
