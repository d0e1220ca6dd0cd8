// Command tokengen mints an API bearer token for a given identity, signed
// with the same key the server validates against. Intended for local
// development and operator tooling.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "govvault/internal/jwt_token"
	"govvault/pkg/domain"
)

func main() {
	var (
		signingKey = flag.String("signing-key", os.Getenv("GOVVAULT_JWT_SIGNING_KEY"), "JWT signing key (defaults to GOVVAULT_JWT_SIGNING_KEY)")
		address    = flag.String("address", "", "0x-prefixed identity the token authenticates")
		ttl        = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if err := run(*signingKey, *address, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(signingKey, address string, ttl time.Duration) error {
	if signingKey == "" {
		return fmt.Errorf("signing key is required")
	}
	subject, err := domain.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}

	token, err := jwttoken.NewJWTService(signingKey, ttl).GenerateAccessToken(subject, time.Now())
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Println(token)
	return nil
}
