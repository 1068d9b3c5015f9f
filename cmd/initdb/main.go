// cmd/initdb/main.go
package main

import (
	"context"
	"log"

	_ "github.com/joho/godotenv/autoload"

	"github.com/rechess/server/internal/store"
)

// Applies the document table schema to the configured database.
func main() {
	ctx := context.Background()

	st, err := store.ConnectPostgres(ctx)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer st.Pool.Close()

	if _, err := st.Pool.Exec(ctx, store.Schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}
	log.Println("schema applied")
}
