// Command atelier-browse is a terminal browser for one live catalog view.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Atelier server base URL")
	view := flag.String("view", "gallery", "View to browse")
	token := flag.String("token", os.Getenv("ATELIER_TOKEN"), "Bearer token for admin views")
	logPath := flag.String("log", "", "Write logs to this file")
	flag.Parse()

	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	c, err := dial(*server, *view, *token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	p := tea.NewProgram(NewModel(*view, c), tea.WithAltScreen())
	go c.listen(p)

	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m, ok := final.(Model); ok && m.closed != nil {
		log.Printf("stream closed: %v", m.closed)
		fmt.Fprintf(os.Stderr, "Disconnected: %v\n", m.closed)
	}
}
