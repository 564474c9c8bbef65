// ABOUTME: Interactive init command writing a starter gateway.yaml and tenants.toml
// ABOUTME: Generates the login token secret and admin token so a fresh install is usable

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/2389/storefront-gateway/internal/config"
)

// starterConfig mirrors the YAML layout of config.Config with only the keys
// init asks about, so the written file stays short.
type starterConfig struct {
	Server struct {
		HTTPAddr      string `yaml:"http_addr"`
		PublicBaseURL string `yaml:"public_base_url,omitempty"`
	} `yaml:"server"`
	Tailscale *struct {
		Enabled   bool   `yaml:"enabled"`
		Hostname  string `yaml:"hostname"`
		Ephemeral bool   `yaml:"ephemeral"`
		Funnel    bool   `yaml:"funnel"`
	} `yaml:"tailscale,omitempty"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		AdminToken string `yaml:"admin_token"`
	} `yaml:"auth"`
	WebApp struct {
		BaseURL string `yaml:"base_url,omitempty"`
	} `yaml:"webapp"`
	State struct {
		Backend   string `yaml:"backend"`
		RedisAddr string `yaml:"redis_addr,omitempty"`
	} `yaml:"state"`
	Tenants struct {
		Path string `yaml:"path"`
	} `yaml:"tenants"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	cyan.Println("storefront-gateway configuration setup")
	cyan.Println("======================================")
	fmt.Println()

	defaultConfigPath, err := config.DefaultPath()
	if err != nil {
		defaultConfigPath = "gateway.yaml"
	}

	outputFile := prompt(reader, "Config file path", defaultConfigPath)
	if _, err := os.Stat(outputFile); err == nil {
		if !isYes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var cfg starterConfig

	fmt.Println("\n--- Server ---")
	cfg.Server.HTTPAddr = prompt(reader, "HTTP address", "0.0.0.0:8080")
	cfg.Server.PublicBaseURL = prompt(reader, "Public HTTPS base URL for webhooks (empty = long polling)", "")

	fmt.Println("\n--- Tailscale ---")
	if isYes(prompt(reader, "Enable Tailscale?", "no")) {
		cfg.Tailscale = &struct {
			Enabled   bool   `yaml:"enabled"`
			Hostname  string `yaml:"hostname"`
			Ephemeral bool   `yaml:"ephemeral"`
			Funnel    bool   `yaml:"funnel"`
		}{Enabled: true}
		cfg.Tailscale.Hostname = prompt(reader, "Tailscale hostname", "storefront")
		cfg.Tailscale.Ephemeral = isYes(prompt(reader, "Ephemeral node?", "no"))
		cfg.Tailscale.Funnel = isYes(prompt(reader, "Enable Funnel (public HTTPS for webhooks)?", "yes"))
	}

	fmt.Println("\n--- Storage ---")
	cfg.Database.Path = prompt(reader, "SQLite database path (relative to the config file)", "storefront.db")
	cfg.State.Backend = prompt(reader, "Conversation state backend (memory/redis)", config.StateBackendMemory)
	if cfg.State.Backend == config.StateBackendRedis {
		cfg.State.RedisAddr = prompt(reader, "Redis address", "localhost:6379")
	}

	fmt.Println("\n--- Web app ---")
	cfg.WebApp.BaseURL = prompt(reader, "Web storefront base URL (menu links)", "")

	cfg.Auth.JWTSecret, err = randomSecret()
	if err != nil {
		return err
	}
	cfg.Auth.AdminToken = uuid.NewString()

	fmt.Println("\n--- Logging ---")
	cfg.Logging.Level = prompt(reader, "Log level (debug/info/warn/error)", "info")
	cfg.Logging.Format = prompt(reader, "Log format (text/json)", "text")

	fmt.Println("\n--- First tenant ---")
	tenant := config.TenantSpec{
		ID:       prompt(reader, "Tenant id", "main"),
		Name:     prompt(reader, "Storefront name", "My Shop"),
		BotToken: prompt(reader, "Bot token (or ${VAR} reference)", "${MAIN_BOT_TOKEN}"),
		Open:     prompt(reader, "Opening time HH:MM (empty = always open)", ""),
		Timezone: prompt(reader, "Timezone", "UTC"),
	}
	if tenant.Open != "" {
		tenant.Close = prompt(reader, "Closing time HH:MM", "22:00")
	}
	if chat := prompt(reader, "Operator group chat id (empty = none)", ""); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return fmt.Errorf("operator chat id: %w", err)
		}
		tenant.OperatorChatID = id
	}
	catalogue := config.Catalogue{Tenants: []config.TenantSpec{tenant}}
	if err := catalogue.Validate(); err != nil {
		return err
	}

	configDir := filepath.Dir(outputFile)
	tenantsFile := filepath.Join(configDir, "tenants.toml")
	cfg.Tenants.Path = "tenants.toml"

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	header := "# storefront-gateway configuration\n# Generated by storefront-gateway init\n\n"
	// the file holds secrets
	if err := os.WriteFile(outputFile, append([]byte(header), out...), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	f, err := os.OpenFile(tenantsFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("writing tenants file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString("# storefront-gateway tenants\n\n"); err != nil {
		return fmt.Errorf("writing tenants file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(catalogue); err != nil {
		return fmt.Errorf("encoding tenants file: %w", err)
	}

	fmt.Println()
	green.Printf("  ✓ Config written to %s\n", outputFile)
	green.Printf("  ✓ Tenants written to %s\n", tenantsFile)
	fmt.Printf("  Admin token: %s\n", cfg.Auth.AdminToken)
	fmt.Println("\nTo start the server:")
	fmt.Println("  storefront-gateway serve")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
