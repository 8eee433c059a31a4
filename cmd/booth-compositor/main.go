package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	boothcompositor "github.com/menta2k/booth-compositor"
	"github.com/menta2k/booth-compositor/internal/config"
	"github.com/menta2k/booth-compositor/internal/utils"
	"github.com/menta2k/booth-compositor/pkg/filters"
	"github.com/menta2k/booth-compositor/pkg/gallery"
	"github.com/menta2k/booth-compositor/pkg/processing"
	"github.com/menta2k/booth-compositor/pkg/session"
	"github.com/menta2k/booth-compositor/pkg/stickers"
	"github.com/menta2k/booth-compositor/pkg/templates"
	"github.com/menta2k/booth-compositor/pkg/types"
)

// stickerFlags collects repeated -sticker values
type stickerFlags []string

func (s *stickerFlags) String() string     { return strings.Join(*s, " ") }
func (s *stickerFlags) Set(v string) error { *s = append(*s, v); return nil }

func main() {
	var cfgPath, templateID, templatesFile, frame, photos, photoDir string
	var filterName, outDir, format, galleryPath, detect, stickerFile string
	var quality, history, previewSize int
	var lossless, list, debug, verbose, initConfig bool
	var stickerArgs stickerFlags

	flag.StringVar(&cfgPath, "config", "", "config file (default: "+config.GetConfigPath()+" when present)")
	flag.BoolVar(&initConfig, "init-config", false, "write the default config to -config or the default path and exit")

	flag.StringVar(&templateID, "template", "comic-boom", "template id")
	flag.StringVar(&templatesFile, "templates", "", "JSON file with custom templates")
	flag.StringVar(&frame, "frame", "", "frame image path or URL, overrides the template frame")
	flag.StringVar(&photos, "photos", "", "comma separated photo paths or URLs")
	flag.StringVar(&photoDir, "dir", "", "directory of photos, used in name order")

	flag.StringVar(&filterName, "filter", "", "filter: none|noir|slime|blood|ghost (default from config)")
	flag.Var(&stickerArgs, "sticker", "sticker as GLYPH@X,Y[,SCALE[,ROTATION]], repeatable; GLYPH may be a catalog label")
	flag.StringVar(&stickerFile, "stickers", "", "JSON sticker layer to load")

	flag.StringVar(&outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&format, "ext", "", "output format: png|jpg|webp (default from config)")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP quality (1-100, default from config)")
	flag.BoolVar(&lossless, "lossless", false, "WebP lossless mode")
	flag.StringVar(&galleryPath, "gallery", "", "also save into this sqlite gallery")
	flag.IntVar(&history, "history", 0, "list the newest N gallery entries and exit")
	flag.IntVar(&previewSize, "preview", 0, "also write a filtered preview with this long side (px)")

	flag.BoolVar(&list, "list", false, "list templates, filters and stickers and exit")
	flag.StringVar(&detect, "detect", "", "print the transparent slots of a frame image and exit")
	flag.BoolVar(&debug, "debug", false, "write slot overlay images")
	flag.BoolVar(&verbose, "verbose", false, "log compositor details to stderr")

	flag.Parse()

	if verbose {
		boothcompositor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if initConfig {
		path := cfgPath
		if path == "" {
			path = config.GetConfigPath()
		}
		if err := config.Default().SaveToFile(path); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", path)
		return
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if outDir != "" {
		cfg.Output.OutputDir = outDir
	}
	if format != "" {
		cfg.Output.DefaultFormat = format
	}
	if quality != 0 {
		cfg.Output.Quality = quality
	}
	if lossless {
		cfg.Output.Lossless = true
	}
	if galleryPath != "" {
		cfg.Gallery.Enabled = true
		cfg.Gallery.Path = galleryPath
	}
	if filterName != "" {
		cfg.Flatten.DefaultFilter = filterName
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if history > 0 {
		if err := printHistory(ctx, cfg.Gallery.Path, history); err != nil {
			log.Fatal(err)
		}
		return
	}

	catalog := templates.All()
	if templatesFile != "" {
		if catalog, err = templates.LoadFile(templatesFile); err != nil {
			log.Fatal(err)
		}
	}
	if list {
		printCatalog(catalog)
		return
	}

	bc, err := boothcompositor.NewWithConfig(options(cfg))
	if err != nil {
		log.Fatal(err)
	}
	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		log.Fatal(err)
	}

	if detect != "" {
		if err := detectSlots(ctx, bc, cfg, detect, debug); err != nil {
			log.Fatal(err)
		}
		return
	}

	tmpl, ok := templates.Find(catalog, templateID)
	if !ok {
		log.Fatalf("unknown template %q (use -list)", templateID)
	}
	if frame != "" {
		tmpl.FrameURL = frame
	}

	refs, err := photoRefs(photos, photoDir)
	if err != nil {
		log.Fatal(err)
	}
	if len(refs) == 0 {
		log.Fatalf("usage: %s -template ID -photos a.jpg,b.jpg|-dir shots/ [-filter noir] [-sticker 👻@80,12] [-out dir] [-ext png|jpg|webp]", filepath.Base(os.Args[0]))
	}

	sess, err := bc.NewSession(tmpl, refs)
	if err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	res, err := sess.Compose(ctx)
	if err != nil {
		log.Fatalf("compose failed: %v", err)
	}
	b := res.Image.Bounds()
	log.Printf("template=%s mode=%s size=%dx%d photos=%d slots=%d in %s",
		tmpl.ID, res.Mode, b.Dx(), b.Dy(), res.PhotosUsed, len(res.Slots), time.Since(start).Round(time.Millisecond))
	for _, w := range res.Warnings {
		log.Printf("warning: %v", w)
	}

	filter, _ := filters.Parse(cfg.Flatten.DefaultFilter)
	if err := sess.SetFilter(filter); err != nil {
		log.Fatal(err)
	}

	if stickerFile != "" {
		data, err := os.ReadFile(stickerFile)
		if err != nil {
			log.Fatal(err)
		}
		if err := json.Unmarshal(data, sess.Stickers); err != nil {
			log.Fatalf("failed to read sticker layer: %v", err)
		}
	}
	for _, arg := range stickerArgs {
		if err := addSticker(sess.Stickers, arg); err != nil {
			log.Fatal(err)
		}
	}

	prefix := cfg.Output.Prefix + "-" + utils.SanitizeFilename(tmpl.ID) + "-"

	if debug && len(res.Slots) > 0 {
		path := utils.OutputFilename(cfg.Output.OutputDir, prefix, "slots", "png")
		if err := processing.SaveImage(processing.CreateDebugOverlay(res.Image, res.Slots), path, "png", 0, false); err != nil {
			log.Printf("debug overlay save failed: %v", err)
		} else {
			log.Printf("wrote %s", path)
		}
	}

	if previewSize > 0 {
		data, err := sess.Preview(previewSize)
		if err != nil {
			log.Fatal(err)
		}
		path := utils.OutputFilename(cfg.Output.OutputDir, prefix, "preview", "png")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s (%s)", path, utils.FormatFileSize(int64(len(data))))
	}

	dir := gallery.NewDirSink(cfg.Output.OutputDir, cfg.Output.DefaultFormat, cfg.Output.Quality, cfg.Output.Lossless)
	dir.Prefix = cfg.Output.Prefix
	sinks := multiSink{dir}

	var store *gallery.Store
	var stored *gallery.TemplateSink
	if cfg.Gallery.Enabled {
		if store, err = gallery.NewStore(cfg.Gallery.Path); err != nil {
			log.Fatal(err)
		}
		defer store.Close()
		stored = store.ForTemplate(tmpl.ID)
		sinks = append(sinks, stored)
	}

	if err := sess.Finish(ctx, sinks); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", dir.LastPath())
	if stored != nil {
		if p, ok := stored.Last(); ok {
			log.Printf("gallery entry %d (%dx%d)", p.ID, p.Width, p.Height)
		}
	}

	if sess.Stickers.Len() > 0 {
		js, _ := json.MarshalIndent(sess.Stickers, "", "  ")
		path := utils.OutputFilename(cfg.Output.OutputDir, prefix, "stickers", "json")
		_ = os.WriteFile(path, js, 0o644)
	}
}

// loadConfig reads path, or the default config file when it exists
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if def := config.GetConfigPath(); utils.FileExists(def) {
		return config.LoadFromFile(def)
	}
	return config.Default(), nil
}

// options converts the file configuration into component settings
func options(cfg *config.Config) boothcompositor.Config {
	opts := boothcompositor.DefaultConfig()

	opts.Detection.MaxDimension = cfg.Detector.MaxDimension
	opts.Detection.AlphaThreshold = uint8(cfg.Detector.AlphaThreshold)
	opts.Detection.MinAreaRatio = cfg.Detector.MinAreaRatio

	opts.Composer.Background = cfg.Composer.Background
	opts.Composer.Gap = cfg.Composer.Gap
	opts.Composer.Header = cfg.Composer.Header
	opts.Composer.Footer = cfg.Composer.Footer
	opts.Composer.Title = cfg.Composer.Title
	opts.Composer.Brand = cfg.Composer.Brand
	opts.Composer.QRSize = cfg.Composer.QRSize
	opts.Resample = cfg.Composer.Resample

	opts.Flatten.BaseGlyphSize = cfg.Flatten.BaseGlyphSize
	opts.Flatten.GlyphColor = cfg.Flatten.GlyphColor
	if cfg.Flatten.FontPath != "" {
		opts.GlyphFonts = []string{cfg.Flatten.FontPath}
	}

	opts.Loader.BaseDir = cfg.Loader.BaseDir
	opts.Loader.Timeout = time.Duration(cfg.Loader.TimeoutSeconds) * time.Second
	if cfg.Loader.UserAgent != "" {
		opts.Loader.UserAgent = cfg.Loader.UserAgent
	}
	if cfg.Loader.MaxBytes > 0 {
		opts.Loader.MaxBytes = cfg.Loader.MaxBytes
	}
	return opts
}

// photoRefs merges the -photos list with the image files of -dir
func photoRefs(list, dir string) ([]string, error) {
	var refs []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			refs = append(refs, p)
		}
	}
	if dir != "" {
		if !utils.DirExists(dir) {
			return nil, fmt.Errorf("photo directory %s does not exist", dir)
		}
		files, err := utils.ListImageFiles(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		refs = append(refs, files...)
	}
	return refs, nil
}

// parseSticker reads GLYPH@X,Y[,SCALE[,ROTATION]]
func parseSticker(arg string) (stickers.Sticker, error) {
	s := stickers.Sticker{X: stickers.DefaultX, Y: stickers.DefaultY, Scale: 1}

	glyph, pos, hasPos := strings.Cut(arg, "@")
	if a, ok := stickers.Lookup(glyph); ok {
		glyph = a.Glyph
	}
	if glyph == "" {
		return s, fmt.Errorf("sticker %q has no glyph", arg)
	}
	s.Glyph = glyph
	if !hasPos {
		return s, nil
	}

	parts := strings.Split(pos, ",")
	if len(parts) < 2 || len(parts) > 4 {
		return s, fmt.Errorf("sticker %q: expected X,Y[,SCALE[,ROTATION]]", arg)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return s, fmt.Errorf("sticker %q: %w", arg, err)
		}
		vals[i] = v
	}
	s.X, s.Y = vals[0], vals[1]
	if len(vals) > 2 {
		s.Scale = vals[2]
	}
	if len(vals) > 3 {
		s.Rotation = vals[3]
	}
	return s, nil
}

// addSticker places a parsed sticker on the layer
func addSticker(layer *stickers.Layer, arg string) error {
	want, err := parseSticker(arg)
	if err != nil {
		return err
	}
	s := layer.Add(want.Glyph)
	if err := layer.Move(s.ID, want.X, want.Y); err != nil {
		return err
	}
	if err := layer.SetScale(s.ID, want.Scale); err != nil {
		return fmt.Errorf("sticker %q: %w", arg, err)
	}
	return layer.SetRotation(s.ID, want.Rotation)
}

// multiSink commits to every sink in order and stops at the first error
type multiSink []session.Sink

func (m multiSink) Commit(ctx context.Context, final []byte, decision types.Decision) error {
	for _, s := range m {
		if err := s.Commit(ctx, final, decision); err != nil {
			return err
		}
	}
	return nil
}

func detectSlots(ctx context.Context, bc *boothcompositor.Compositor, cfg *config.Config, ref string, debug bool) error {
	img, err := bc.LoadImage(ctx, ref)
	if err != nil {
		return err
	}
	slots := bc.DetectSlots(img)
	js, _ := json.MarshalIndent(slots, "", "  ")
	fmt.Println(string(js))

	if debug {
		name := strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
		path := utils.OutputFilename(cfg.Output.OutputDir, cfg.Output.Prefix+"-", name+"-slots", "png")
		if err := processing.SaveImage(processing.CreateDebugOverlay(img, slots), path, "png", 0, false); err != nil {
			return err
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

func printCatalog(list []types.Template) {
	fmt.Println("Templates:")
	for _, t := range list {
		kind := string(t.Layout)
		if t.FrameURL != "" {
			kind = "frame"
		}
		fmt.Printf("  %-18s %s %-18s %d photos, %s\n", t.ID, t.Icon, t.Name, t.PhotoCount, kind)
	}
	fmt.Println("Filters:")
	for _, f := range filters.Names() {
		fmt.Printf("  %s\n", f)
	}
	fmt.Println("Stickers:")
	for _, a := range stickers.Catalog() {
		fmt.Printf("  %s  %s\n", a.Glyph, a.Label)
	}
}

func printHistory(ctx context.Context, path string, n int) error {
	store, err := gallery.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	photos, err := store.List(ctx, n)
	if err != nil {
		return err
	}
	for _, p := range photos {
		fmt.Printf("%6d  %-18s %5dx%-5d %s\n", p.ID, p.TemplateID, p.Width, p.Height, p.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
