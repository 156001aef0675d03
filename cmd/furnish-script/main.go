// Command furnish-script runs a placement script against an empty room
// and prints what happened. Script coordinates are floor coordinates
// unless -camera is set, in which case they are viewport pixels.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chazu/furnish/pkg/config"
	"github.com/chazu/furnish/pkg/engine"
	"github.com/chazu/furnish/pkg/events"
	"github.com/chazu/furnish/pkg/picking"
	"github.com/chazu/furnish/pkg/session"
	"github.com/chazu/furnish/pkg/snapshot"
	colorable "github.com/mattn/go-colorable"
	log "github.com/sirupsen/logrus"
)

func main() {
	configFile := flag.String("config", "furnish.yaml", "Path to furnish.yaml")
	catalogFile := flag.String("catalog", "", "Prototype YAML (default: built-in palette)")
	grid := flag.Float64("grid", 0, "Ground snap grid size (default: from config)")
	level := flag.String("log", "", "Log level (default: from config)")
	camera := flag.Bool("camera", false, "Treat script coordinates as viewport pixels of the configured camera")
	out := flag.String("snapshot", "", "Write a WebP floor plan to this path")
	timeout := flag.Duration("timeout", engine.EvalTimeout, "Script time limit")
	flag.Parse()

	log.SetOutput(colorable.NewColorableStderr())
	log.SetFormatter(&log.TextFormatter{ForceColors: true})

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: furnish-script [flags] script.lisp")
		flag.PrintDefaults()
		os.Exit(2)
	}
	source, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading script: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{GridSize: *grid, Catalog: *catalogFile, LogLevel: *level})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.Level())

	cat, err := cfg.LoadCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	rec := events.Record(bus)
	var ctrl *session.Controller
	if *camera {
		p := picking.NewPicker(cfg.PickCamera(), cfg.Camera.FloorSize, nil)
		ctrl = session.NewController(cat, p, nil, nil, bus, cfg.Options())
		p.Bounds = ctrl.Scene()
	} else {
		p := &picking.PlanPicker{FloorSize: cfg.Camera.FloorSize}
		ctrl = session.NewController(cat, p, nil, nil, bus, cfg.Options())
		p.Bounds = ctrl.Scene()
	}
	eng := engine.NewEngine(ctrl)
	eng.Timeout = *timeout

	start := time.Now()
	res, evalErrs, err := eng.Run(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, e := range evalErrs {
		fmt.Fprintf(os.Stderr, "%s: %s\n", flag.Arg(0), e)
	}

	if res != nil {
		for _, s := range res.Steps {
			fmt.Printf("%-12s %s\n", s.Op, s.Result)
		}
		if res.Value != "" {
			fmt.Printf("=> %s\n", res.Value)
		}
	}
	fmt.Println("------------------------------------------------------------")
	summarize(ctrl, rec, time.Since(start))

	if *out != "" {
		if err := snapshot.WriteFile(*out, ctrl.Scene(), cat, cfg.SnapshotOptions()); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Snapshot: %s\n", *out)
	}
	if len(evalErrs) > 0 {
		os.Exit(1)
	}
}

// summarize prints the room and what the bus saw.
func summarize(ctrl *session.Controller, rec *events.Recorder, elapsed time.Duration) {
	s := ctrl.Scene()
	fmt.Printf("Objects: %d in %d stacks (%s)\n", s.Len(), len(s.Roots()), elapsed.Round(time.Millisecond))
	for _, h := range s.Handles() {
		o := s.Get(h)
		p := o.Pose.Position
		on := ""
		if o.RestingOn != 0 {
			on = " on " + o.RestingOn.String()
		}
		fmt.Printf("  %-5s %-14s (%6.2f, %5.2f, %6.2f) %-6s%s\n", h, o.Prototype, p.X, p.Y, p.Z, o.Pose.Yaw, on)
	}
	for _, t := range []string{
		events.ObjectPlaced{}.Type(),
		events.PlacementRejected{}.Type(),
		events.ObjectsRemoved{}.Type(),
	} {
		fmt.Printf("%-18s %d\n", t+":", rec.Count(t))
	}
	if m, ok := rec.Last(events.PlacementRejected{}.Type()).(events.PlacementRejected); ok {
		fmt.Printf("Last rejection: %s at (%.2f, %.2f, %.2f) hits %v\n",
			m.Prototype, m.Position.X, m.Position.Y, m.Position.Z, m.Collisions)
	}
}
