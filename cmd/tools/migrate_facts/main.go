// Command migrate_facts loads every <subject>.json document in a facts
// directory into the subject_facts table, so a deployment that used
// FACTS_DIR can switch to database-backed facts.
//
// Usage:
//
//	go run cmd/tools/migrate_facts/main.go [dir]
//
// Requires DATABASE_URL. The directory defaults to FACTS_DIR.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jonathan/recommendation-writer/internal/db"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "ERROR: DATABASE_URL environment variable not set")
		os.Exit(1)
	}
	dir := os.Getenv("FACTS_DIR")
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	if dir == "" {
		fmt.Fprintln(os.Stderr, "ERROR: pass a facts directory or set FACTS_DIR")
		os.Exit(1)
	}

	ctx := context.Background()

	database, err := db.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to apply schema: %v\n", err)
		os.Exit(1)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to read %s: %v\n", dir, err)
		os.Exit(1)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	fmt.Println("=== Facts Migration ===")
	fmt.Println()

	if len(files) == 0 {
		fmt.Printf("No fact documents found in %s.\n", dir)
		return
	}

	stored := 0
	failed := 0
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Printf("  ✗ %s: %v\n", name, err)
			failed++
			continue
		}
		raw, err := database.Facts().Put(ctx, data)
		if err != nil {
			fmt.Printf("  ✗ %s: %v\n", name, err)
			failed++
			continue
		}
		if want := strings.TrimSuffix(name, ".json"); raw.SubjectID != want {
			fmt.Printf("  • %s: stored as %s (file name does not match subject_id)\n", name, raw.SubjectID)
		} else {
			fmt.Printf("  ✓ %s (%d repositories)\n", raw.SubjectID, len(raw.Repositories))
		}
		stored++
	}

	fmt.Println()
	fmt.Println("=== Migration Summary ===")
	fmt.Printf("  Stored: %d\n", stored)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Printf("  Total: %d\n", len(files))

	if failed > 0 {
		os.Exit(1)
	}
}
