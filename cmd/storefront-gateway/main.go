// ABOUTME: Entry point for the storefront-gateway server
// ABOUTME: Runs tenant chat bots, order coordination and broadcasts, plus small operator commands

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	_ "time/tzdata" // tenant timezones must resolve on minimal images

	"github.com/fatih/color"

	"github.com/2389/storefront-gateway/internal/config"
	"github.com/2389/storefront-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _                  __                 _
 ___| |_ ___  _ __ ___ / _|_ __ ___  _ __ | |_
/ __| __/ _ \| '__/ _ \ |_| '__/ _ \| '_ \| __|
\__ \ || (_) | | |  __/  _| | | (_) | | | | |_
|___/\__\___/|_|  \___|_| |_|  \___/|_| |_|\__|
`

func usage() {
	fmt.Println("Usage: storefront-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the gateway server")
	fmt.Println("  init      Create a config file and tenant catalogue interactively")
	fmt.Println("  health    Check gateway health")
	fmt.Println("  tenants   List tenants from the catalogue")
	fmt.Println("  reload    Ask a running gateway to reload its tenants")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "tenants":
		err = runTenants()
	case "reload":
		err = runReload(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	configPath, err := config.DefaultPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Tenants:   %s\n", cfg.Tenants.Path)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("State:     %s\n", cfg.State.Backend)
	if cfg.Server.HTTPAddr != "" && !cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	green.Print("    ▶ ")
	if cfg.Server.PublicBaseURL != "" {
		fmt.Printf("Delivery:  webhook via %s\n", cfg.Server.PublicBaseURL)
	} else if cfg.Tailscale.Enabled && cfg.Tailscale.Funnel {
		fmt.Println("Delivery:  webhook via tailscale funnel")
	} else {
		fmt.Print("Delivery:  ")
		yellow.Println("long polling")
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

	logger.Info("starting storefront-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// baseURL is where the local CLI reaches a running gateway.
func baseURL(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		return "http://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Server.HTTPAddr
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(cfg)+"/health/ready", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d (%s)", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	color.Green("healthy: %s", strings.TrimSpace(string(body)))
	return nil
}

func runTenants() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := config.LoadTenants(cfg.Tenants.Path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tHOURS\tZONE\tOPERATOR CHAT")
	for _, t := range cat.Tenants {
		status := color.GreenString("active")
		if !t.IsActive() {
			status = color.HiBlackString("inactive")
		}
		hours := "always"
		if t.Open != "" {
			tz := t.Timezone
			if tz == "" {
				tz = "UTC"
			}
			hours = fmt.Sprintf("%s-%s %s", t.Open, t.Close, tz)
		}
		zone := "anywhere"
		if n := len(t.DeliveryZone); n > 0 {
			zone = fmt.Sprintf("%d vertices", n)
		}
		operator := "-"
		if t.OperatorChatID != 0 {
			operator = fmt.Sprint(t.OperatorChatID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, status, hours, zone, operator)
	}
	return w.Flush()
}

func runReload(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.AdminToken == "" {
		return fmt.Errorf("auth.admin_token is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL(cfg)+"/api/admin/reload", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Auth.AdminToken)
	if user := os.Getenv("USER"); user != "" {
		req.Header.Set("X-Storefront-Actor", user)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reload failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out gateway.ReloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	color.Green("reloaded %d tenant(s)", out.Tenants)
	for _, s := range out.Sessions {
		fmt.Printf("  %-20s %s\n", s.TenantID, s.Mode)
	}
	return nil
}
