package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/milk9111/physync/config"
	"github.com/milk9111/physync/sim"
)

func main() {
	configPath := flag.String("config", "", "YAML config overlaid on the embedded defaults")
	sceneName := flag.String("scene", "", "scene file (defaults to the config's scene)")
	frames := flag.Int("frames", 600, "number of frames to simulate")
	fps := flag.Int("fps", 60, "simulated frames per second")
	watch := flag.Bool("watch", false, "reload -config between frames when it changes")
	realtime := flag.Bool("realtime", false, "sleep between frames to run at -fps")
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

	var watcher *config.Watcher
	if *watch {
		if *configPath == "" {
			log.Fatal("-watch needs -config")
		}
		watcher, err = config.NewWatcher(*configPath, logger)
		if err != nil {
			log.Fatal(err)
		}
		defer watcher.Close()
	}

	if *fps <= 0 {
		log.Fatalf("invalid -fps %d", *fps)
	}
	delta := time.Second / time.Duration(*fps)
	for i := 0; i < *frames; i++ {
		if watcher != nil {
			poll(s, watcher, logger)
		}
		if err := s.Frame(delta); err != nil {
			log.Fatal(err)
		}
		if *realtime {
			time.Sleep(delta)
		}
	}

	report(s)
}

// poll applies a reloaded config if one is waiting.
func poll(s *sim.Sim, w *config.Watcher, logger *slog.Logger) {
	select {
	case cfg := <-w.Configs:
		if err := s.Apply(cfg); err != nil {
			logger.Error("physsim: apply config", "err", err)
			return
		}
		logger.Info("physsim: config applied", "backend", cfg.Backend, "frame", s.Frames())
	case err := <-w.Errors:
		logger.Warn("physsim: config rejected", "err", err)
	default:
	}
}

func report(s *sim.Sim) {
	fmt.Printf("%d frames, %v simulated, backend %s\n", s.Frames(), s.Elapsed(), s.Config().Backend)
	for _, name := range s.Names() {
		e, ok := s.Entity(name)
		if !ok {
			continue
		}
		state, err := s.Runner().BodyState(e)
		if err != nil {
			fmt.Printf("%-10s unbound: %v\n", name, err)
			continue
		}
		p, v := state.Position, state.LinearVelocity
		fmt.Printf("%-10s %-18s pos (%7.3f, %7.3f, %7.3f) vel (%7.3f, %7.3f, %7.3f)\n",
			name, state.Kind, p.X(), p.Y(), p.Z(), v.X(), v.Y(), v.Z())
	}
}
