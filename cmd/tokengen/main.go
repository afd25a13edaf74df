// Command tokengen mints bearer tokens for local development and testing.
// Tokens signed with the dev key will NOT validate against a production
// deployment with a real signing key.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"scorepass/internal/tokens"
	id "scorepass/pkg/domain"
)

// Matches config.go when SCOREPASS_JWT_SIGNING_KEY is not set.
const devSigningKey = "dev-secret-key-change-in-production"

type tokenOutput struct {
	Token     string    `json:"token"`
	Principal string    `json:"principal"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	var (
		principal  = flag.String("principal", "0xdev", "principal to embed in the token")
		signingKey = flag.String("key", devSigningKey, "JWT signing key")
		ttl        = flag.Duration("ttl", 24*time.Hour, "token lifetime")
		asJSON     = flag.Bool("json", false, "print the full token record as JSON")
	)
	flag.Parse()

	now := time.Now()
	manager := tokens.New(*signingKey, *ttl)
	token, err := manager.Issue(id.Principal(*principal), now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}

	if !*asJSON {
		fmt.Println(token)
		return
	}
	out := tokenOutput{
		Token:     token,
		Principal: *principal,
		ExpiresAt: now.Add(*ttl),
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
