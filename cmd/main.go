package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/stuarthighley/doomrender/config"
	"github.com/stuarthighley/doomrender/fixed"
	"github.com/stuarthighley/doomrender/level"
	"github.com/stuarthighley/doomrender/render"
	"github.com/stuarthighley/doomrender/sight"
	"github.com/stuarthighley/doomrender/wad"
	"github.com/stuarthighley/doomrender/zone"
)

type flags struct {
	config  string
	wad     string
	mapName string
	out     string
	angle   int
	sight   bool
	tree    bool
	watch   bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "YAML settings file")
	flag.StringVar(&f.wad, "wad", "", "WAD file, overriding the settings")
	flag.StringVar(&f.mapName, "map", "", "map to draw, such as E1M1 or MAP01")
	flag.StringVar(&f.out, "out", "", "PNG file to write")
	flag.IntVar(&f.angle, "angle", -1, "view angle in degrees; the player start's when negative")
	flag.BoolVar(&f.sight, "sight", false, "list the things the player can see")
	flag.BoolVar(&f.tree, "tree", false, "print the BSP tree")
	flag.BoolVar(&f.watch, "watch", false, "draw again whenever the WAD or settings change")
	flag.Parse()

	// Set loggers
	l := log.New(os.Stdout, "", log.LstdFlags)
	wad.SetLogger(l)
	level.SetLogger(l)
	zone.SetLogger(l)
	render.SetLogger(l)

	cfg, err := loadConfig(&f)
	if err != nil {
		log.Fatalln(err)
	}
	if err := draw(cfg, &f); err != nil {
		log.Fatalln(err)
	}
	if !f.watch {
		return
	}

	files := []string{cfg.WAD}
	if f.config != "" {
		files = append(files, f.config)
	}
	w, err := NewWatcher(files...)
	if err != nil {
		log.Fatalln(err)
	}
	defer w.Close()
	log.Println("Watching", files)

	for {
		select {
		case name, ok := <-w.Events:
			if !ok {
				return
			}
			log.Println("Changed:", name)
			// A bad edit is reported and the next one tried.
			cfg, err := loadConfig(&f)
			if err != nil {
				log.Println(err)
				continue
			}
			if err := draw(cfg, &f); err != nil {
				log.Println(err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Println("Watch:", err)
		}
	}
}

// loadConfig reads the settings file, if any, and applies the flags over it.
func loadConfig(f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return nil, err
		}
	}
	if f.wad != "" {
		cfg.WAD = f.wad
	}
	if f.mapName != "" {
		cfg.Map = f.mapName
	}
	if f.out != "" {
		cfg.Output.PNG = f.out
	}
	if f.angle >= 0 {
		cfg.View.Angle = &f.angle
	}
	if cfg.WAD == "" {
		return nil, errors.New("no WAD file given")
	}
	return cfg, cfg.Validate()
}

// draw loads the map named in cfg and writes the view from the player start.
func draw(cfg *config.Config, f *flags) error {
	z := zone.New(cfg.ZoneSize)
	w, err := wad.NewWAD(cfg.WAD, z)
	if err != nil {
		return err
	}
	defer w.Close()

	data, err := render.NewData(w, z)
	if err != nil {
		return err
	}

	opts := cfg.LevelOptions()
	opts.Resolver = data
	st, err := level.Load(w, cfg.Map, z, opts)
	if err != nil {
		return err
	}
	if f.tree {
		st.PrintTree(os.Stdout)
	}
	if f.sight {
		listVisible(st, sight.NewChecker(st, cfg.SightOptions()))
	}

	r, err := render.New(data, cfg.RenderOptions())
	if err != nil {
		return err
	}
	r.SetViewSize(cfg.Screen.Blocks)
	r.SetLevel(st)

	v := render.ViewerOf(st.Player)
	if cfg.View.Angle != nil {
		v.Angle = fixed.DegreesToAngle(*cfg.View.Angle)
	}
	fb := render.NewFramebuffer(cfg.Screen.Width, cfg.Screen.Height)
	if err := r.RenderPlayerView(v, fb); err != nil {
		return err
	}
	if w.Palettes == nil {
		return errors.New("no PLAYPAL")
	}

	img := scaled(paletted(fb, &w.Palettes[0]), cfg.Output.Scale)
	if err := writePNG(cfg.Output.PNG, img); err != nil {
		return err
	}
	log.Printf("Wrote %v (%v, %vx%v)", cfg.Output.PNG, cfg.Map, img.Rect.Dx(), img.Rect.Dy())
	return nil
}

// listVisible prints every thing in line of sight of the player.
func listVisible(st *level.State, c *sight.Checker) {
	for _, mo := range st.Mobjs {
		if mo == st.Player || !c.CheckSight(st.Player, mo) {
			continue
		}
		fmt.Printf("Visible: type %v (%v) at %v,%v\n", mo.Type, mo.Info.Sprite, mo.X.Int(), mo.Y.Int())
	}
}
