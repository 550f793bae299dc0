// Command servicetoken prints a signed service token for the admin item
// endpoints, e.g. for a mint script:
//
//	TOKEN=$(go run ./cmd/servicetoken -sub ops@cloudmarket -ttl 1h)
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cloudmarket/backend/pkg/auth"
	"github.com/cloudmarket/backend/pkg/config"
	"github.com/cloudmarket/backend/pkg/logger"
)

func main() {
	cfg := config.Load()

	subject := flag.String("sub", "ops", "Token subject, usually the operator")
	scopes := flag.String("scopes", auth.ScopeMint, "Space separated scopes")
	ttl := flag.Duration("ttl", cfg.Auth.ServiceTokenTTL, "Token lifetime")
	flag.Parse()

	if cfg.Auth.JWTSecret == "" {
		logger.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.NewServiceToken(*subject, strings.Fields(*scopes), cfg.Auth.JWTSecret, *ttl)
	if err != nil {
		logger.Error("Failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
