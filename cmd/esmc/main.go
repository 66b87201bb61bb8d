package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/alienzhou/esm.sh/internal/compiler"
	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
	"github.com/alienzhou/esm.sh/internal/compiler/source"
	"github.com/alienzhou/esm.sh/internal/config"
	"github.com/alienzhou/esm.sh/internal/data/store"
	"github.com/alienzhou/esm.sh/internal/server"
	"github.com/alienzhou/esm.sh/internal/shared/observability"
	"github.com/alienzhou/esm.sh/internal/watcher"
)

var (
	configPath = flag.String("config", "./esmc.toml", "Path to config file")
	serve      = flag.Bool("serve", false, "Serve transformed modules over HTTP")
	watch      = flag.Bool("watch", false, "Rebuild on file changes")
	dev        = flag.Bool("dev", false, "Development mode (fast-refresh instrumentation)")
	sourcemap  = flag.Bool("sourcemap", false, "Emit source maps")
	outDir     = flag.String("out", "", "Output directory for one-shot and watch builds (default: stdout)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("esmc v%s\n", VERSION)
		os.Exit(0)
	}

	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) && *configPath == "./esmc.toml" {
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}
	if *dev {
		cfg.Transform.Development = true
	}
	if *sourcemap {
		cfg.Transform.SourceMap = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(ctx, cfg.Tracing.Endpoint, VERSION)
		if err != nil {
			slog.Error("failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	switch {
	case *serve:
		if err := runServe(ctx, cfg); err != nil {
			slog.Error("serve mode failed", "error", err)
			os.Exit(1)
		}
	case *watch:
		if err := runWatch(ctx, cfg); err != nil {
			slog.Error("watch mode failed", "error", err)
			os.Exit(1)
		}
	default:
		if flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "usage: esmc [flags] <file...>")
			os.Exit(2)
		}
		if err := runOnce(ctx, cfg, flag.Args()); err != nil {
			slog.Error("compile failed", "error", err)
			os.Exit(1)
		}
	}
}

func newDriver(cfg *config.Config) (*resolver.ImportMap, error) {
	return resolver.NewImportMap(
		cfg.Resolver.CDNOrigin, cfg.Resolver.LocalOrigin,
		cfg.Resolver.Imports, cfg.Resolver.Pins, cfg.Resolver.Externals)
}

func transformOptions(cfg *config.Config) compiler.Options {
	return compiler.Options{
		JSXImportSource:    cfg.Transform.JSXImportSource,
		JSXFactory:         cfg.Transform.JSXFactory,
		JSXFragmentFactory: cfg.Transform.JSXFragmentFactory,
		DevelopmentMode:    cfg.Transform.Development,
		SourceMap:          cfg.Transform.SourceMap,
	}
}

func runOnce(ctx context.Context, cfg *config.Config, files []string) error {
	driver, err := newDriver(cfg)
	if err != nil {
		return err
	}
	opts := transformOptions(cfg)

	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		res := resolver.New(file, driver)
		out, err := compiler.Compile(ctx, file, src, source.FromPath(file), res, opts)
		if err != nil {
			return err
		}
		if err := emit(file, out); err != nil {
			return err
		}
		for _, dep := range out.Deps {
			slog.Debug("dependency", "module", file, "specifier", dep.Specifier, "dynamic", dep.Dynamic)
		}
	}
	return nil
}

// emit writes one build to the output directory, or stdout when none is
// configured.
func emit(file string, out *compiler.Result) error {
	if *outDir == "" {
		_, err := os.Stdout.WriteString(out.Code)
		return err
	}

	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + ".js"
	target := filepath.Join(*outDir, base)
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(target, []byte(out.Code), 0o644); err != nil {
		return err
	}
	if out.SourceMap != "" {
		if err := os.WriteFile(target+".map", []byte(out.SourceMap), 0o644); err != nil {
			return err
		}
	}
	slog.Info("built", "module", file, "output", target)
	return nil
}

func runWatch(ctx context.Context, cfg *config.Config) error {
	driver, err := newDriver(cfg)
	if err != nil {
		return err
	}
	opts := transformOptions(cfg)

	rebuild := func(paths []string) {
		for _, file := range paths {
			src, err := os.ReadFile(file)
			if err != nil {
				slog.Warn("skipping unreadable file", "path", file, "error", err)
				continue
			}
			res := resolver.New(file, driver)
			out, err := compiler.Compile(ctx, file, src, source.FromPath(file), res, opts)
			if err != nil {
				slog.Error("rebuild failed", "path", file, "error", err)
				continue
			}
			if err := emit(file, out); err != nil {
				slog.Error("write failed", "path", file, "error", err)
			}
		}
	}

	w, err := watcher.New(cfg.Watch.Debounce, cfg.Watch.Exclude, rebuild)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(cfg.Watch.Paths); err != nil {
		return err
	}
	slog.Info("watching", "paths", cfg.Watch.Paths)

	<-ctx.Done()
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	var st *store.Store
	if cfg.Store.Enabled {
		var err error
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	srv, err := server.New(cfg, root, st, slog.Default())
	if err != nil {
		return err
	}

	if *watch {
		w, err := watcher.New(cfg.Watch.Debounce, cfg.Watch.Exclude, srv.Invalidate)
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Watch([]string{root}); err != nil {
			return err
		}
		slog.Info("invalidating cache on change", "root", root)
	}

	return srv.ListenAndServe(ctx)
}
