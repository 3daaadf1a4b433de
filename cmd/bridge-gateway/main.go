// ABOUTME: Entry point for the bridge-gateway server
// ABOUTME: Exposes LangGraph agents to MCP and REST chat clients

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/bridge-gateway/internal/config"
	"github.com/2389/bridge-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _          _     _                        _
| |__  _ __(_) __| | __ _  ___        __ _| |_ _____      ____ _ _   _
| '_ \| '__| |/ _' |/ _' |/ _ \_____ / _' | __/ _ \ \ /\ / / _' | | | |
| |_) | |  | | (_| | (_| |  __/_____| (_| | ||  __/\ V  V / (_| | |_| |
|_.__/|_|  |_|\__,_|\__, |\___|      \__, |\__\___| \_/\_/ \__,_|\__, |
                    |___/            |___/                       |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: BRIDGE_CONFIG env var > XDG_CONFIG_HOME/bridge/gateway.yaml > ~/.config/bridge/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BRIDGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "bridge", "gateway.yaml")
}

func main() {
	// Local .env files carry upstream URLs and secrets during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: bridge-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve        Start the gateway server")
		fmt.Println("  health       Check gateway health")
		fmt.Println("  credentials  Generate an OAuth client credential pair")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "credentials":
		err = runCredentials()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Upstream:  %s\n", cfg.Upstream.BaseURL)
	if cfg.Server.HTTPAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if !cfg.Auth.Enabled {
		yellow.Println("    ▶ Auth:      disabled")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting bridge-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"upstream", cfg.Upstream.BaseURL,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runCredentials generates a client id and secret pair and prints the YAML
// snippet to paste into the config. The secret is stored as a bcrypt hash,
// so the plaintext is shown exactly once.
func runCredentials() error {
	var clientID string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--id":
			if i+1 >= len(args) {
				return fmt.Errorf("--id requires a value")
			}
			clientID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--id="):
			clientID = strings.TrimPrefix(arg, "--id=")
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if clientID == "" {
		clientID = "client-" + uuid.NewString()[:8]
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing secret: %w", err)
	}

	apiKeyBytes := make([]byte, 24)
	if _, err := rand.Read(apiKeyBytes); err != nil {
		return fmt.Errorf("generating API key: %w", err)
	}
	apiKey := "bk-" + base64.RawURLEncoding.EncodeToString(apiKeyBytes)

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	green.Println("  Generated client credentials")
	fmt.Println()
	fmt.Printf("  Client ID:     %s\n", clientID)
	fmt.Printf("  Client Secret: %s\n", secret)
	fmt.Printf("  API Key:       %s\n", apiKey)
	fmt.Println()
	yellow.Println("  The secret is not recoverable from the config. Save it now.")
	fmt.Println()
	cyan.Println("  Add to gateway.yaml under auth:")
	fmt.Println()
	fmt.Printf("    api_keys: %q\n", apiKey)
	fmt.Println("    clients:")
	fmt.Printf("      - id: %q\n", clientID)
	fmt.Printf("        secret: %q\n", string(hash))
	fmt.Println()

	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = &colorHandler{level: level}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs), then record attrs
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
