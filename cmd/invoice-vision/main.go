package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-vision/internal/extraction"
	"github.com/zombor/invoice-vision/internal/scanning"
	"github.com/zombor/invoice-vision/internal/tool"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// envFile finds --env-file before flag parsing so the file can feed the env.
func envFile(args []string) string {
	for i, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--env-file="):
			return strings.TrimPrefix(arg, "--env-file=")
		case strings.HasPrefix(arg, "-env-file="):
			return strings.TrimPrefix(arg, "-env-file=")
		case (arg == "--env-file" || arg == "-env-file") && i+1 < len(args):
			return args[i+1]
		}
	}
	return ".env"
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(envFile(os.Args[1:])); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading env file: %v\n", err)
		os.Exit(1)
	}

	flags := ff.NewFlagSet("invoice-vision")
	var (
		_               = flags.StringLong("env-file", ".env", "Optional .env file loaded before reading the environment")
		mode            = flags.StringLong("mode", "http", "Run mode: 'http' for the web API or 'mcp' for MCP tools over stdio")
		port            = flags.IntLong("port", 8080, "HTTP server port")
		dbPath          = flags.StringLong("db", "invoice-vision.db", "Database file path")
		storagePath     = flags.StringLong("storage", "./invoices", "Storage directory path")
		scannerType     = flags.StringLong("scanner", "openrouter", "Scanner type: 'gemini', 'ollama' or 'openrouter'")
		geminiKey       = flags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = flags.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL       = flags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = flags.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")
		openrouterKey   = flags.StringLong("openrouter-key", "", "OpenRouter API key (or set OPENROUTER_API_KEY env var)")
		openrouterURL   = flags.StringLong("openrouter-url", scanning.DefaultOpenRouterURL, "OpenRouter API base URL")
		openrouterModel = flags.StringLong("openrouter-model", scanning.DefaultOpenRouterModel, "OpenRouter vision model name")
		siteURL         = flags.StringLong("site-url", "", "Site URL sent to OpenRouter for rankings (optional)")
		siteName        = flags.StringLong("site-name", "", "Site name sent to OpenRouter for rankings (optional)")
		temperature     = flags.Float64Long("temperature", scanning.DefaultTemperature, "Sampling temperature, 0 to 1")
		maxTokens       = flags.IntLong("max-tokens", scanning.DefaultMaxTokens, "Maximum tokens in the model reply, 500 to 4000")
		authUser        = flags.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = flags.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion     = flags.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_VISION"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "mcp":
		if err := tool.Run(ctx, version); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP server error", "error", err)
			os.Exit(1)
		}
		return
	case "http":
	default:
		slog.Error("Invalid mode", "mode", *mode, "valid", "http or mcp")
		os.Exit(1)
	}

	sampling := scanning.Sampling{
		Temperature: float32(*temperature),
		MaxTokens:   *maxTokens,
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := extraction.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel, sampling)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel, sampling)
	case "openrouter":
		apiKey := *openrouterKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENROUTER_API_KEY")
		}
		slog.Info("Initializing OpenRouter scanner...", "url", *openrouterURL, "model", *openrouterModel)
		scanner, err = scanning.NewOpenRouter(scanning.OpenRouterConfig{
			BaseURL:  *openrouterURL,
			APIKey:   apiKey,
			Model:    *openrouterModel,
			SiteURL:  *siteURL,
			SiteName: *siteName,
			Sampling: sampling,
		})
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, ollama or openrouter")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := extraction.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := extraction.NewService(db, scanner, store, extraction.NewSession())

	server := extraction.NewServer(service, extraction.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")
}
