// Package main mints admin bearer tokens for the presence API. The token is
// signed with the admin secret from the same configuration the server loads,
// so it only works against a server sharing that secret.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"presence/internal/platform/config"
	"presence/pkg/platform/middleware/admin"
)

const defaultTokenTTL = 15 * time.Minute

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	Actor     string            `json:"actor"`
	ExpiresAt time.Time         `json:"expires_at"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)
	configPath := adminCmd.String("config", os.Getenv("PRESENCE_CONFIG"), "path to a YAML config file")
	actor := adminCmd.String("actor", "ops", "Actor recorded in audit events for admin calls")
	ttl := adminCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	jsonOutput := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "admin":
		_ = adminCmd.Parse(os.Args[2:])
		if err := generateAdminToken(*configPath, *actor, *ttl, *jsonOutput); err != nil {
			fmt.Fprintln(os.Stderr, "tokengen:", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate admin tokens for the presence API

Usage:
  tokengen admin [flags]

Examples:
  # Token for the dev secret, valid 15 minutes
  tokengen admin

  # Token for a configured deployment, named actor, one hour
  tokengen admin -config presence.yaml -actor alice -ttl 1h

  # Output as JSON
  tokengen admin -json`)
}

func generateAdminToken(configPath, actor string, ttl time.Duration, jsonOutput bool) error {
	if actor == "" {
		return fmt.Errorf("actor is required")
	}
	cfg, errs := config.Load(configPath)
	if len(errs) > 0 {
		return fmt.Errorf("load config: %w", errs[0])
	}

	now := time.Now()
	token, err := admin.NewAuthenticator(cfg.Admin.JWTSecret, cfg.Admin.Audience).Issue(actor, now, ttl)
	if err != nil {
		return err
	}

	out := tokenOutput{
		Token:     token,
		Type:      "Bearer",
		Actor:     actor,
		ExpiresAt: now.Add(ttl).UTC(),
		Usage: map[string]string{
			"revoke": fmt.Sprintf(`curl -X POST -H "Authorization: Bearer %s" -H "Content-Type: application/json" -d '{"reason":"..."}' http://localhost:8080/credentials/{id}/revoke`, token),
		},
	}
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Println(token)
	return nil
}
