// The collector uploads captured bank offer payloads to the backend. Point
// it at JSON response bodies saved from the banks' offer pages; it runs the
// per-bank normalizers, batches the results, and posts them one card group
// at a time.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"card-offers-api/internal/auth"
	"card-offers-api/internal/collector"
	"card-offers-api/internal/models"
	"card-offers-api/internal/normalize"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Backend base URL")
	token := flag.String("token", "", "Bearer token (default: mint one from JWT_SECRET for -user)")
	user := flag.String("user", "", "User id to mint a token for when -token is not given")
	source := flag.String("source", "", "Bank source for all files (amex|chase|citi); otherwise inferred from file name prefix")
	dir := flag.String("dir", "", "Directory of captured *.json payloads (alternative to file arguments)")
	debounce := flag.Duration("debounce", 800*time.Millisecond, "Batch debounce window")
	flag.Parse()

	_ = godotenv.Load()

	files := flag.Args()
	if *dir != "" {
		matched, err := filepath.Glob(filepath.Join(*dir, "*.json"))
		if err != nil {
			log.Fatalf("Failed to list %s: %v", *dir, err)
		}
		files = append(files, matched...)
	}
	if len(files) == 0 {
		log.Fatal("No payload files given; pass file arguments or -dir")
	}

	bearer := *token
	if bearer == "" {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" || *user == "" {
			log.Fatal("Need -token, or JWT_SECRET and -user to mint one")
		}
		var err error
		bearer, err = auth.NewVerifier(secret, false).SignToken(*user, time.Hour)
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
	}

	uploader := collector.NewUploader(*server, bearer, collector.UploaderOptions{})
	queue := collector.NewQueue(uploader, collector.QueueOptions{
		Debounce: *debounce,
		OnStatus: func(status string) { log.Print(status) },
	})

	collectedAt := time.Now().UTC()
	pushed := 0

	for _, file := range files {
		src := *source
		if src == "" {
			src = sourceFromName(file)
		}
		if !models.KnownSource(src) {
			log.Printf("Skipping %s: cannot determine source (use -source)", file)
			continue
		}

		normalizer, err := normalize.ForSource(src)
		if err != nil {
			log.Printf("Skipping %s: %v", file, err)
			continue
		}

		payload, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", file, err)
		}

		offers, err := normalizer.Extract(payload, collectedAt)
		if err != nil {
			log.Printf("Skipping %s: %v", file, err)
			continue
		}

		for _, offer := range offers {
			queue.Push(offer)
		}
		pushed += len(offers)
		log.Printf("%s: %d offers (%s)", file, len(offers), src)
	}

	queue.Close()
	fmt.Printf("Done: pushed %d offers from %d files\n", pushed, len(files))
}

// sourceFromName infers the bank from a capture file name like
// "amex-gold-2024-06.json".
func sourceFromName(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, src := range []string{models.SourceAmex, models.SourceChase, models.SourceCiti} {
		if strings.HasPrefix(name, src) {
			return src
		}
	}
	return ""
}
