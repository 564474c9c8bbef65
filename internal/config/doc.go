// Package config handles configuration loading for storefront-gateway.
//
// # Overview
//
// Two files drive the gateway: a YAML process configuration and a TOML tenant
// catalogue. Both support ${VAR} expansion so secrets stay in the environment.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from STOREFRONT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/storefront/gateway.yaml
//  3. ~/.config/storefront/gateway.yaml
//
// Relative paths inside the file (database, tenants, tailscale state) are
// resolved against the file's directory.
//
// # Environment Overrides
//
// After the file is parsed, STOREFRONT_* variables replace individual fields
// (STOREFRONT_HTTP_ADDR, STOREFRONT_ADMIN_TOKEN, STOREFRONT_REDIS_ADDR, ...).
// Empty variables are ignored.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  public_base_url: "https://shop.example.com"  # empty = long polling
//
//	database:
//	  path: "storefront.db"
//
//	auth:
//	  jwt_secret: "${STOREFRONT_JWT_SECRET}"  # signs catalogue login tokens
//	  admin_token: "${STOREFRONT_ADMIN_TOKEN}"
//	  login_token_ttl: "720h"
//
//	webapp:
//	  base_url: "https://app.example.com"
//
//	dialogue:
//	  state_ttl: "24h"
//	  reset_cooldown: "5m"
//
//	state:
//	  backend: "memory"  # memory, redis
//	  redis_addr: "localhost:6379"
//
//	broadcast:
//	  poll_interval: "30s"
//	  rate_per_second: 25
//	  use_lease: false
//
//	tenants:
//	  path: "tenants.toml"
//
//	tailscale:
//	  enabled: false
//	  hostname: "storefront"
//	  funnel: true  # public HTTPS for webhooks
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Tenant Catalogue
//
//	[[tenant]]
//	id = "plov"
//	name = "Plov House"
//	bot_token = "${PLOV_BOT_TOKEN}"
//	operator_chat_id = -1001234567890
//	open = "09:00"
//	close = "23:00"
//	timezone = "Asia/Tashkent"
//	delivery_zone = [[41.20, 69.10], [41.20, 69.40], [41.40, 69.40]]
//
// Unknown keys are rejected. A tenant without delivery_zone serves everywhere;
// one without open/close never closes.
package config
