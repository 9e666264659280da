// Command seed uploads a directory of text or HTML files into the archive of
// a running detection server, one document per file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"

	"simcheck/client"
)

const workerCount = 5

func main() {
	_ = godotenv.Load()

	serverURL := flag.String("url", getEnvOrDefault("SIMCHECK_URL", "http://localhost:8080"), "Detection server URL")
	dir := flag.String("dir", "", "Directory of .txt/.md/.html files (required)")
	owner := flag.String("owner", "seed", "Owner of the uploaded documents")
	public := flag.Bool("public", true, "Mark documents as public")
	category := flag.String("category", "", "Category assigned to every document")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: seed -dir <path> [-url http://host:port] [-owner id]")
		os.Exit(2)
	}

	files, err := collectFiles(*dir)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *dir, err)
	}
	log.Printf("Uploading %d documents to %s", len(files), *serverURL)

	c := client.NewClient(*serverURL)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if err := c.Health(ctx); err != nil {
		log.Fatalf("Server not healthy: %v", err)
	}

	var (
		wg       sync.WaitGroup
		uploaded atomic.Int64
		indexed  atomic.Int64
	)
	fileChan := make(chan string)

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for path := range fileChan {
				doc, id, err := readDocument(path, *owner, *public, *category)
				if err != nil {
					log.Printf("[Worker %d] Skipping %s: %v", workerID, path, err)
					continue
				}
				res, err := c.PutDocument(ctx, id, doc)
				if err != nil {
					log.Printf("[Worker %d] Failed to upload %s: %v", workerID, id, err)
					continue
				}
				uploaded.Add(1)
				if res.Indexed {
					indexed.Add(1)
				}
				log.Printf("✓ Uploaded: %s", id)
			}
		}(i)
	}

	for _, f := range files {
		fileChan <- f
	}
	close(fileChan)
	wg.Wait()

	log.Printf("✅ Uploaded %d/%d documents (%d indexed)", uploaded.Load(), len(files), indexed.Load())
}

func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md", ".html", ".htm":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// readDocument derives the document id from the file name without extension.
func readDocument(path, owner string, public bool, category string) (client.Document, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return client.Document{}, "", err
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	id := strings.TrimSuffix(base, ext)

	contentType := "text/plain"
	if e := strings.ToLower(ext); e == ".html" || e == ".htm" {
		contentType = "text/html"
	}
	return client.Document{
		OwnerID:     owner,
		IsPublic:    public,
		Title:       id,
		Category:    category,
		ContentType: contentType,
		Content:     string(data),
	}, id, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
