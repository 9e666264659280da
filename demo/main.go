package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"simcheck/demo/tui"
)

func main() {
	_ = godotenv.Load()

	serverURL := flag.String("url", envOrDefault("SIMCHECK_URL", "http://localhost:8080"), "Detection server URL")
	documentID := flag.String("doc", "", "Document to monitor (required)")
	userID := flag.String("user", envOrDefault("SIMCHECK_USER", ""), "User submitting and cancelling jobs")
	flag.Parse()

	if *documentID == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: demo -doc <document-id> -user <user-id> [-url http://host:port]")
		os.Exit(2)
	}

	program := tea.NewProgram(tui.NewModel(*serverURL, *documentID, *userID))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
