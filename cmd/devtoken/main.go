package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	jwtsvc "gamelend/internal/pkg/jwt"
)

// devtoken prints a backend-shaped bearer token for local runs against a
// stub backend. Signed with JWT_SECRET when set.
func main() {
	viewer := flag.Int64("viewer", 1, "viewer id")
	username := flag.String("username", "dev", "username claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *viewer <= 0 {
		log.Fatal("viewer must be > 0")
	}

	token, err := jwtsvc.New(os.Getenv("JWT_SECRET"), *ttl).GenerateToken(*viewer, *username)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
