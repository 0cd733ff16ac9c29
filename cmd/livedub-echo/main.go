// ABOUTME: Entry point for the echo dubbing backend
// ABOUTME: Parses CLI flags and serves the backend API until interrupted
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/livedub/livedub-go/internal/echo"
)

var (
	addr      = flag.String("addr", ":8000", "HTTP listen address")
	name      = flag.String("name", "", "Backend friendly name (default: hostname-livedub-echo)")
	storage   = flag.String("storage", "", "Directory for uploaded and rendered files (default: temp dir)")
	logFile   = flag.String("log-file", "livedub-echo.log", "Log file path")
	noMDNS    = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	threshold = flag.Float64("silence", echo.DefaultSilenceThreshold, "RMS level below which a chunk is silent")
)

func main() {
	flag.Parse()

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	// Determine backend name
	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-livedub-echo", hostname)
	}

	srv, err := echo.New(echo.Config{
		Addr:             *addr,
		Name:             serverName,
		StorageDir:       *storage,
		EnableMDNS:       !*noMDNS,
		SilenceThreshold: *threshold,
	})
	if err != nil {
		log.Fatalf("Failed to create backend: %v", err)
	}

	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
