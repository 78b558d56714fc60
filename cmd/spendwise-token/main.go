// Command spendwise-token prints a signed bearer token for local development,
// standing in for the identity provider.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	user := flag.String("user", "", "user id to put in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "AUTH_JWT_SECRET is not set")
		os.Exit(1)
	}
	if *user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	tok, err := auth.NewVerifier(secret).IssueToken(*user, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
