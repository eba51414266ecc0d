package main

import (
	"log"
	"os"

	"construction-chatbot-be/internal/model"
	"construction-chatbot-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// 3. Extensions first, AutoMigrate does not handle them
	log.Println("Step 1: Setting up Extensions...")
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}
	for _, stmt := range setupSQL {
		if err := db.Exec(stmt).Error; err != nil {
			log.Fatalf("Error executing setup SQL (%s): %v", stmt, err)
		}
	}

	// 4. Schema
	log.Println("Step 2: Migrating tables...")
	if err := db.AutoMigrate(&model.RagExample{}); err != nil {
		log.Fatalf("Error migrating schema: %v", err)
	}

	// 5. Vector index for cosine retrieval
	log.Println("Step 3: Creating vector index...")
	indexSQL := `CREATE INDEX IF NOT EXISTS idx_rag_examples_embedding
		ON rag_examples USING ivfflat (embedding_value vector_cosine_ops) WITH (lists = 100);`
	if err := db.Exec(indexSQL).Error; err != nil {
		// ivfflat needs data to build meaningful lists; a failure here is
		// not fatal, retrieval falls back to a sequential scan.
		log.Printf("Warning: could not create vector index: %v", err)
	}

	log.Println("Migration completed!")
}
