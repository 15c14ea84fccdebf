// Package main is the entry point for the walld server.
//
// walld is the backend of a small social wall: users register, publish
// short posts with images, comment and like. Durable state is two flat
// JSON documents plus stored image files, all under a single data
// directory, optionally versioned as a git repository. Configuration is
// read from CLI flags with a .env overlay in the data directory.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/invopop/jsonschema"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/wgwall/walld/internal/gitlog"
	"github.com/wgwall/walld/internal/jsondb"
	"github.com/wgwall/walld/internal/server"
	"github.com/wgwall/walld/internal/users"
	"github.com/wgwall/walld/internal/wall"
	"github.com/wgwall/walld/internal/wall/images"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "walld: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	dumpSchema := flag.Bool("dump-schema", false, "Print the JSON Schema of the stored documents and exit")
	httpAddr := flag.String("http", "localhost:8017", "Address to listen on (e.g., localhost:8017, :8017, 0.0.0.0:8017)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	jwtSecret := flag.String("jwt-secret", "", "JWT signing secret; generated and saved to .env when empty")
	gitHistory := flag.Bool("git-history", true, "Keep a git commit trail of the data documents")
	cacheTTL := flag.Duration("cache-ttl", wall.DefaultCacheTTL, "Max staleness of the sorted posts view")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}
	if *dumpSchema {
		return printSchema()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	setupLogging(ll)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: data directories are 0o755
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["http"] {
		if v := env["HTTP"]; v != "" {
			*httpAddr = v
		}
	}
	if !set["log-level"] {
		if v := env["LOG_LEVEL"]; v != "" {
			*logLevel = v
		}
	}
	if !set["jwt-secret"] {
		if v := env["JWT_SECRET"]; v != "" {
			*jwtSecret = v
		}
	}
	if *jwtSecret == "" {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		*jwtSecret = secret
		env["JWT_SECRET"] = secret
		if err := saveDotEnv(*dataDir, env); err != nil {
			return fmt.Errorf("failed to save .env: %w", err)
		}
		slog.Info("Generated JWT secret", "path", filepath.Join(*dataDir, ".env"))
	}

	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	// ":8017" becomes "localhost:8017".
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	postsDoc, err := jsondb.Open[*wall.Post](filepath.Join(*dataDir, "posts.json"))
	if err != nil {
		return fmt.Errorf("failed to open posts document: %w", err)
	}
	usersDoc, err := jsondb.Open[*users.User](filepath.Join(*dataDir, "users.json"))
	if err != nil {
		return fmt.Errorf("failed to open users document: %w", err)
	}
	imgStore, err := images.NewStore(filepath.Join(*dataDir, "img"), "img")
	if err != nil {
		return err
	}
	portraitStore, err := images.NewStore(filepath.Join(*dataDir, "portrait-img"), "portrait-img")
	if err != nil {
		return err
	}

	wallSvc := wall.NewService(postsDoc, imgStore, filepath.Join(*dataDir, "cache.json"))
	wallSvc.SetCacheTTL(*cacheTTL)
	userSvc := users.NewService(usersDoc)

	if *gitHistory {
		history, err := gitlog.Open(*dataDir)
		if err != nil {
			return fmt.Errorf("failed to open history repo: %w", err)
		}
		wallSvc.SetRecorder(history)
		userSvc.SetRecorder(history)
	}

	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}
	if err := watchDocuments(ctx, *dataDir, postsDoc, usersDoc, wallSvc); err != nil {
		return fmt.Errorf("failed to watch documents: %w", err)
	}

	buildVersion, _, _, _ := getBuildInfo()
	srv := server.New(server.Config{
		Version:   buildVersion,
		JWTSecret: []byte(*jwtSecret),
	}, server.Services{
		Wall:        wallSvc,
		Users:       userSvc,
		Portraits:   portraitStore,
		ImageDir:    filepath.Join(*dataDir, "img"),
		PortraitDir: filepath.Join(*dataDir, "portrait-img"),
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "dataDir", *dataDir, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// setupLogging installs a tinted slog handler on stderr.
func setupLogging(ll *slog.LevelVar) {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Localhost IPs are noise.
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case uint64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("walld %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// printSchema prints the JSON Schema of the two stored documents.
func printSchema() error {
	r := &jsonschema.Reflector{DoNotReference: false}
	schemas := map[string]*jsonschema.Schema{
		"posts": r.Reflect(&wall.Post{}),
		"users": r.Reflect(&users.User{}),
	}
	out, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func loadDotEnv(dataDir string) (map[string]string, error) {
	env := make(map[string]string)
	envContent, err := os.ReadFile(filepath.Join(dataDir, ".env")) //nolint:gosec // G304: path comes from the data-dir flag
	if err != nil {
		if os.IsNotExist(err) {
			return env, nil
		}
		return nil, err
	}
	for line := range strings.SplitSeq(string(envContent), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if strings.HasPrefix(val, "\"") {
			unquoted, err := strconv.Unquote(val)
			if err != nil {
				return nil, fmt.Errorf("failed to unquote %s: %w", key, err)
			}
			val = unquoted
		}
		env[key] = val
	}
	return env, nil
}

func saveDotEnv(dataDir string, env map[string]string) error {
	var lines []string
	for k, v := range env {
		if v != "" {
			lines = append(lines, fmt.Sprintf("%s=%s", k, v))
		}
	}
	return os.WriteFile(filepath.Join(dataDir, ".env"), []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}

// watchExecutable watches the running binary and triggers a graceful
// shutdown when it is replaced. Enables seamless restarts during
// development.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}

// watchDocuments reloads the documents and drops the cached view when
// the JSON files change out-of-band (manual edits, another process).
// The directory is watched because saves replace the files by rename.
func watchDocuments(ctx context.Context, dataDir string, postsDoc *jsondb.Doc[*wall.Post], usersDoc *jsondb.Doc[*users.User], wallSvc *wall.Service) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dataDir); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				switch filepath.Base(event.Name) {
				case "posts.json":
					if err := postsDoc.Reload(); err != nil {
						slog.WarnContext(ctx, "Failed to reload posts", "err", err)
					}
					wallSvc.InvalidateView()
				case "users.json":
					if err := usersDoc.Reload(); err != nil {
						slog.WarnContext(ctx, "Failed to reload users", "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching documents", "err", err)
			}
		}
	}()
	return nil
}
