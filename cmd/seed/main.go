package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/delivio/user-service/config"
	"github.com/delivio/user-service/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	username := "demo"
	password := "password123"
	email := "demo@example.com"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id int64
	err = db.QueryRow(`
		INSERT INTO users (username, email, password, phone_number, name, location, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, username, email, hash, "+10000000000", "Demo User", "NY", "standard user").Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	fmt.Printf("seeded user: id=%d username=%s email=%s password=%s\n", id, username, email, password)

	jwt := helpers.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	token, exp, err := jwt.Generate(username)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	fmt.Printf("bearer token (expires %s): %s\n", exp.Format("2006-01-02 15:04:05"), token)
}
