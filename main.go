// ABOUTME: Entry point for the live dubbing client
// ABOUTME: Parses CLI flags and starts the capture, dubbing and playback application
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/livedub/livedub-go/internal/app"
	"github.com/livedub/livedub-go/internal/config"
	"github.com/livedub/livedub-go/internal/ui"
	"github.com/livedub/livedub-go/internal/version"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	configFile = flag.String("config", "", "YAML config file (default $"+config.EnvConfigFile+")")
	logFile    = flag.String("log-file", "livedub.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, start a session immediately and log to stdout")
	streamLogs = flag.Bool("stream-logs", false, "Alias for -no-tui")
	check      = flag.Bool("check", false, "Check backend translation providers and exit")
	duration   = flag.Duration("duration", 0, "Stop the session after this long (headless mode only)")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	path := configPath(os.Args[1:])
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if *showVer {
		fmt.Println(version.UserAgent())
		return
	}

	// Determine if we should use TUI or streaming logs
	useTUI := !(*noTUI || *streamLogs || *check)

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if !useTUI {
		log.Printf("Starting %s %s", version.Product, version.Version)
		log.Printf("Languages: %s -> %s", cfg.Session.SourceLang, cfg.Session.TargetLang)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// TUI setup
	var tuiProg *tea.Program
	var controls *ui.Controls

	if useTUI {
		controls = ui.NewControls()
		tuiProg, err = ui.Run(controls, cfg.Session.SourceLang, cfg.Session.TargetLang)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go tuiProg.Run()
	}

	// Helper to update TUI
	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	client, err := app.New(ctx, app.Config{
		Settings: cfg,
		OnUpdate: updateTUI,
	})
	if err != nil {
		if tuiProg != nil {
			tuiProg.Quit()
		}
		log.Fatalf("Failed to create client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing client: %v", err)
		}
	}()

	if *check {
		if _, err := client.Check(ctx); err != nil {
			log.Printf("Backend check failed: %v", err)
			os.Exit(1)
		}
		log.Printf("Backend check passed")
		return
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTUI {
		go client.HandleControls(ctx, controls)
		go client.StatsLoop(ctx)

		// Wait for quit signal from TUI or OS
		select {
		case <-controls.Quit:
			log.Printf("Received quit signal from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
			tuiProg.Quit()
		}
	} else {
		runHeadless(ctx, client, sigChan)
	}

	log.Printf("Client stopped")
}

// runHeadless starts one session and stops it on a signal or after -duration
func runHeadless(ctx context.Context, client *app.App, sigChan <-chan os.Signal) {
	if err := client.Start(ctx); err != nil {
		log.Printf("Start failed: %v", err)
		return
	}

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}

	select {
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case <-timeout:
		log.Printf("Session duration %v reached", *duration)
	}

	result, err := client.Stop(ctx)
	if err != nil {
		log.Printf("Stop failed: %v", err)
	}
	if result != nil && result.FinalURL != "" {
		log.Printf("Final video: %s", result.FinalURL)
		log.Printf("Subtitles: %s", result.SRTURL)
	}

	// Let already queued dubbed audio finish
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.WaitPlayback(waitCtx); err != nil {
		log.Printf("Playback did not drain: %v", err)
	}
}

// configPath finds -config ahead of flag parsing so the file can seed flag defaults
func configPath(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv(config.EnvConfigFile)
}
