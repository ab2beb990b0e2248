// cmd/postdeck/main.go
//
// This is the entry point for the Postdeck TUI.
// When you run `postdeck` from a project directory, this is what executes.
//
// Flow:
// 1. Resolve the project directory (argument or cwd)
// 2. Initialize the .postdeck folder (config + logs)
// 3. Launch the TUI

package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kingrea/postdeck/internal/config"
	"github.com/kingrea/postdeck/internal/tui"
)

func main() {
	dir, err := projectDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving project directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitPostdeckDir(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .postdeck directory: %v\n", err)
		os.Exit(1)
	}

	app, err := tui.NewApp(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting postdeck: %v\n", err)
		os.Exit(1)
	}

	// tea.NewProgram creates a new bubbletea application.
	p := tea.NewProgram(
		app,
		tea.WithAltScreen(), // Use alternate screen buffer (like vim does)
	)

	// Run blocks until the user quits
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// projectDir returns the directory postdeck operates in: the first
// argument when given, the working directory otherwise.
func projectDir() (string, error) {
	if len(os.Args) > 1 {
		return filepath.Abs(os.Args[1])
	}
	return os.Getwd()
}
