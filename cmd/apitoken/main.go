package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"voicehub/internal/infra"
	"voicehub/internal/middleware"
)

// apitoken mints a bearer token for a user, for local testing and support.
func main() {
	var (
		idFlag  string
		ttlFlag time.Duration
	)
	flag.StringVar(&idFlag, "id", "", "user ID to issue the token for")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(idFlag)
	if userID == "" {
		fmt.Fprintln(os.Stderr, "-id is required")
		os.Exit(1)
	}
	if ttlFlag <= 0 {
		fmt.Fprintln(os.Stderr, "-ttl must be positive")
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	token, err := middleware.SignJWT(cfg.JWTSecret, cfg.JWTIssuer, userID, ttlFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
