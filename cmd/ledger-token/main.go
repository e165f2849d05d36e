// Command ledger-token mints a bearer token for an owner. Issuing tokens is
// outside the API; operators use this to hand out access.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"finledger/internal/auth"
)

func main() {
	_ = godotenv.Load()

	owner := flag.Int64("owner", 0, "owner id the token authenticates as")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 16 {
		log.Fatalf("set JWT_SECRET (at least 16 characters) to the server's signing secret")
	}
	if *owner <= 0 {
		log.Fatalf("-owner must be a positive id")
	}

	tok, err := auth.Issue(secret, *owner, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(tok)
	fmt.Fprintf(os.Stderr, "Token for owner %d expires at %s\n", *owner, time.Now().Add(*ttl).UTC().Format(time.RFC3339))
}
