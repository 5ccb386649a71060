// Command devtoken prints a signed bearer token for local testing.
//
//	go run ./cmd/devtoken -user alice -role partner
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "", "user id placed in the token (required)")
	role := flag.String("role", auth.RoleUser, "role: user, partner or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to $JWT_SECRET)")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "devtoken: -user is required")
		flag.Usage()
		os.Exit(2)
	}
	if !slices.Contains([]string{auth.RoleUser, auth.RolePartner, auth.RoleAdmin}, *role) {
		fmt.Fprintf(os.Stderr, "devtoken: unknown role %q\n", *role)
		os.Exit(2)
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "devtoken: no secret, set JWT_SECRET or pass -secret")
		os.Exit(2)
	}

	token, err := auth.New(*secret).Issue(*user, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
