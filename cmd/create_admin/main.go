package main

import (
	"context"
	"fmt"
	"log"

	"jnsite/internal/config"
	"jnsite/internal/database"
	"jnsite/internal/services"
)

// create_admin performs the startup admin upsert without starting the server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := services.NewAuthService(db, &cfg.Admin).EnsureAdmin(context.Background()); err != nil {
		log.Fatalf("Failed to upsert admin credential: %v", err)
	}

	fmt.Println("Admin credential stored.")
	fmt.Printf("Username: %s\n", cfg.Admin.Username)
	fmt.Println("Password: taken from ADMIN_PASSWORD")
}
