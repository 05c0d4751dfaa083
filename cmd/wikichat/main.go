// Package main is the wikichat CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/wikichat/internal/bot"
	"github.com/hyperjump/wikichat/internal/chat"
	"github.com/hyperjump/wikichat/internal/cli"
	"github.com/hyperjump/wikichat/internal/config"
	"github.com/hyperjump/wikichat/internal/indexer"
	"github.com/hyperjump/wikichat/internal/models"
	"github.com/hyperjump/wikichat/internal/pagefile"
	"github.com/hyperjump/wikichat/internal/scraper"
	"github.com/hyperjump/wikichat/internal/server"
	"github.com/hyperjump/wikichat/internal/storage"
	"github.com/hyperjump/wikichat/internal/watcher"
	"github.com/hyperjump/wikichat/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/wikichat/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

var errServerUnavailable = errors.New("server unavailable")

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadDotEnv reads .env from the working directory. A missing file is fine.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
}

func main() {
	loadDotEnv()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "init":
		runInit()
	case "scrape":
		runScrape()
	case "index":
		runIndex()
	case "bot":
		runBot()
	case "serve", "server":
		runServe()
	case "ask":
		runAsk()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("wikichat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every command.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, bool) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger, debugMode
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *path)
}

// writeDefaultConfig saves a config holding every default to path. An existing file is
// kept unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

func runScrape() {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	maxPages := fs.Int("max-pages", 0, "maximum pages to visit (default from config)")
	out := fs.String("out", "", "page file to write (default from config)")
	index := fs.Bool("index", false, "index the scraped pages after writing the page file")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	if *maxPages <= 0 {
		*maxPages = cfg.Wiki.MaxPages
	}
	if *out == "" {
		*out = cfg.Wiki.OutputPath
	}

	s := scraper.New(cfg.Wiki.BaseURL,
		scraper.WithLogger(logger),
		scraper.WithHTTPClient(&http.Client{Timeout: seconds(cfg.Wiki.TimeoutSecs)}),
		scraper.WithRateLimit(cfg.Wiki.RequestsPerSecond),
		scraper.WithUserAgent(cfg.Wiki.UserAgent),
		scraper.WithLinkFilter(cfg.Wiki.ArticlePrefix, cfg.Wiki.ExcludePrefixes),
		scraper.WithContainerClass(cfg.Wiki.ContainerClass),
	)

	ctx, stop := signalContext()
	defer stop()
	pages, err := s.Scrape(ctx, cfg.Wiki.StartPage, *maxPages)
	if err != nil {
		logger.Warn("scrape interrupted; writing pages collected so far", zap.Int("pages", len(pages)), zap.Error(err))
	}
	if err := pagefile.WriteFile(*out, pages); err != nil {
		logger.Fatal("Failed to write page file", zap.String("path", *out), zap.Error(err))
	}
	fmt.Printf("Scraped %d pages into %s\n", len(pages), *out)

	if !*index || ctx.Err() != nil {
		return
	}
	components, err := initializeComponents(cfg, logger, debugMode, true)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	build, err := components.Indexer.IndexPages(ctx, *out, pages)
	if err != nil {
		logger.Fatal("Indexing failed", zap.Error(err))
	}
	cli.WriteBuild(os.Stdout, build)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	reset := fs.Bool("reset", false, "clear the collection before indexing")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	path := cfg.Wiki.OutputPath
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	components, err := initializeComponents(cfg, logger, debugMode, true)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signalContext()
	defer stop()
	build, err := components.Indexer.Rebuild(ctx, path, *reset)
	if err != nil {
		if build != nil {
			fmt.Fprintf(os.Stderr, "Build %s aborted after %d chunks\n", build.ID, build.Chunks)
		}
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	cli.WriteBuild(os.Stdout, build)
}

// startWatcher rebuilds the collection from scratch whenever the page file settles
// after a change. Returns nil when watching is disabled.
func startWatcher(ctx context.Context, cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger, debug bool) *watcher.Watcher {
	if !cfg.Watch.Enabled {
		return nil
	}
	opts := []watcher.WatcherOption{
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond),
	}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	w := watcher.NewWatcher(cfg.Wiki.OutputPath, func(path string) {
		build, err := idx.Rebuild(ctx, path, true)
		if err != nil {
			logger.Error("rebuild after page file change failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("index rebuilt", zap.String("path", path), zap.Int("pages", build.Pages), zap.Int("chunks", build.Chunks))
	}, opts...)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	logger.Info("watching page file", zap.String("path", w.Path()))
	return w
}

func runBot() {
	fs := flag.NewFlagSet("bot", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (every chat message is logged)")
	channel := fs.String("channel", "", "channel to join (overrides config and TWITCH_CHANNEL)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()
	if *channel != "" {
		cfg.Chat.Channel = *channel
	}

	components, err := initializeComponents(cfg, logger, debugMode, true)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	resp, err := newResponder(cfg, components, logger)
	if err != nil {
		logger.Fatal("Failed to initialize responder", zap.Error(err))
	}
	transport, err := chat.NewTwitch(chat.TwitchConfig{
		Username: cfg.Chat.Username,
		Token:    cfg.Chat.Token(),
		Channel:  cfg.Chat.Channel,
	}, chat.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to initialize chat", zap.Error(err))
	}
	b := bot.New(resp, transport, bot.Config{
		Nick:          cfg.Chat.Username,
		Prefix:        cfg.Chat.Prefix,
		Command:       cfg.Chat.Command,
		FallbackReply: cfg.Chat.FallbackReply,
		QueueSize:     cfg.Chat.QueueSize,
	}, bot.WithLogger(logger))

	ctx, stop := signalContext()
	defer stop()
	if w := startWatcher(ctx, cfg, components.Indexer, logger, debugMode); w != nil {
		defer w.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return transport.Run(gctx, b.Deliver) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Shutting down...")
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	resp, err := newResponder(cfg, components, logger)
	if err != nil {
		logger.Fatal("Failed to initialize responder", zap.Error(err))
	}

	ctx, stop := signalContext()
	defer stop()
	if w := startWatcher(ctx, cfg, components.Indexer, logger, debugMode); w != nil {
		defer w.Stop()
	}

	srv := server.NewServer(components.Engine, resp, components.Indexer, components.Storage, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL; empty or unreachable means answer locally")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: wikichat ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	question := joinArgs(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		var answer models.Answer
		err := postJSON(*serverURL+"/api/v1/ask", map[string]string{"question": question}, &answer)
		if err == nil {
			exitOnOutputError(cli.WriteAnswer(os.Stdout, &answer, format))
			return
		}
		if !errors.Is(err, errServerUnavailable) {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Server not reachable at %s; answering locally\n", *serverURL)
	}

	cfg, logger, debugMode := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, debugMode, true)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	resp, err := newResponder(cfg, components, logger)
	if err != nil {
		logger.Fatal("Failed to initialize responder", zap.Error(err))
	}
	answer, err := resp.Answer(context.Background(), question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	exitOnOutputError(cli.WriteAnswer(os.Stdout, answer, format))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL; empty or unreachable means search locally")
	limit := fs.Int("limit", 5, "number of results")
	mode := fs.String("mode", models.SearchModeSemantic, "search mode: semantic, keyword or hybrid")
	fuzzy := fs.Bool("fuzzy", false, "typo tolerant keyword matching")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: wikichat search [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := &models.SearchQuery{Query: joinArgs(fs.Args()), Limit: *limit, Mode: *mode, Fuzzy: *fuzzy}
	if err := query.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid search: %v\n", err)
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		var response models.SearchResponse
		err := postJSON(*serverURL+"/api/v1/search", query, &response)
		if err == nil {
			exitOnOutputError(cli.WriteSearchResults(os.Stdout, &response, format))
			return
		}
		if !errors.Is(err, errServerUnavailable) {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Server not reachable at %s; searching locally\n", *serverURL)
	}

	cfg, logger, debugMode := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, debugMode, query.Mode != models.SearchModeKeyword)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	response, err := components.Engine.Search(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	exitOnOutputError(cli.WriteSearchResults(os.Stdout, response, format))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL; empty or unreachable means read local storage")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		var status models.Status
		err := getJSON(*serverURL+"/api/v1/status", &status)
		if err == nil {
			exitOnOutputError(cli.WriteStatus(os.Stdout, &status, format))
			return
		}
		if !errors.Is(err, errServerUnavailable) {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, logger, debugMode := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, debugMode, false)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	status, err := localStatus(context.Background(), cfg, components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	exitOnOutputError(cli.WriteStatus(os.Stdout, status, format))
}

func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*models.Status, error) {
	status, err := c.Indexer.Status(ctx)
	if err != nil {
		return nil, err
	}
	status.VectorType = cfg.Index.VectorType
	status.EmbeddingModel = cfg.Embedding.Model
	status.ChatModel = cfg.Completion.Model
	if n, err := storageUsage(cfg); err == nil {
		status.DiskUsageBytes = n
	}
	return status, nil
}

func storageUsage(cfg *config.Config) (int64, error) {
	return storage.DiskUsageBytes(
		cfg.Storage.DatabasePath,
		cfg.Storage.KeywordIndexPath,
		cfg.Storage.VectorIndexPath,
	)
}

func exitOnOutputError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// joinArgs joins positional args with spaces so multi-word input works with or
// without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that appear after the positional arguments to the front so
// flag.Parse sees them; the flag package stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

var httpClient = &http.Client{Timeout: 2 * time.Minute}

func postJSON(url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", errServerUnavailable, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("%w: %v", errServerUnavailable, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`wikichat - answer chat questions from a scraped wiki

Usage:
  wikichat init [--config path] [--force]
                                     Write a config file holding every default
  wikichat scrape [flags]            Crawl the wiki and write the page file
  wikichat index [flags] [file]      Chunk, embed and index the page file
  wikichat bot [flags]               Join the chat channel and answer !ror2 questions
  wikichat serve [flags]             Start the HTTP API
  wikichat ask [flags] <question>    Answer one question from the command line
  wikichat search [flags] <query>    Show the chunks a query retrieves
  wikichat status [flags]            Show collection size and last build
  wikichat version                   Show version
  wikichat help                      Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/wikichat/config.yaml,
                     or ./config.yaml when present)
  --debug            Enable debug logging

Scrape Flags:
  --max-pages int    Pages to visit, including the start page (default from config: 5)
  --out string       Page file path (default from config: ./wiki_data.txt)
  --index            Index the pages right after scraping

Index Flags:
  --reset            Clear the collection first (otherwise chunks are added again)

Bot Flags:
  --channel string   Channel to join (overrides TWITCH_CHANNEL)

Ask / Search / Status Flags:
  --server string    Server URL (default: http://localhost:8080). Falls back to local
                     storage when the server is not reachable; use --server "" to skip it.
  --output string    Output format: text or json (default: text)
  --limit int        (search) Number of results (default: 5)
  --mode string      (search) semantic, keyword or hybrid (default: semantic)
  --fuzzy            (search) Typo tolerant keyword matching

Environment:
  OPENAI_API_KEY, TWITCH_BOT_TOKEN, TWITCH_BOT_USERNAME, TWITCH_CHANNEL
  (read from the environment or a .env file in the working directory)

Examples:
  wikichat scrape --max-pages 50 --index
  wikichat index --reset
  wikichat bot --channel mystream
  wikichat ask "What is the best item?"
  wikichat search --mode keyword --fuzzy "tougher tims"
  wikichat status --output json`)
}
