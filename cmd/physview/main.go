package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/physync/config"
	"github.com/milk9111/physync/sim"
)

func main() {
	configPath := flag.String("config", "", "YAML config overlaid on the embedded defaults")
	sceneName := flag.String("scene", "", "scene file (defaults to the config's scene)")
	scale := flag.Float64("scale", 32, "pixels per world unit")
	watch := flag.Bool("watch", false, "reload -config when it changes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	s, err := sim.New(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	name := *sceneName
	if name == "" {
		name = cfg.Scene
	}
	scene, err := config.LoadScene(name)
	if err != nil {
		log.Fatal(err)
	}
	if _, err := s.Spawn(scene); err != nil {
		log.Fatal(err)
	}

	game := NewGame(s, logger, *scale)
	if *watch {
		if *configPath == "" {
			log.Fatal("-watch needs -config")
		}
		w, err := config.NewWatcher(*configPath, logger)
		if err != nil {
			log.Fatal(err)
		}
		defer w.Close()
		game.watcher = w
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("physview")

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
