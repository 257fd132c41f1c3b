// Command rooms prints the room list published by a matchmaker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/stealthdragons/dragon-server/internal/config"
	"github.com/stealthdragons/dragon-server/internal/logging"
	"github.com/stealthdragons/dragon-server/internal/matchmaker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	addr := flag.String("matchmaker", "", "matchmaker UDP address (overrides matchmaker.address)")
	timeout := flag.Duration("timeout", 0, "how long to wait for the room list (overrides matchmaker.discovery_timeout)")
	asJSON := flag.Bool("json", false, "print JSON instead of a table")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Matchmaker.Address = *addr
	}
	if *timeout > 0 {
		cfg.Matchmaker.DiscoveryTimeout = *timeout
	}
	cfg.Logging.Level = "warn"

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Matchmaker.DiscoveryTimeout+time.Second)
	defer cancel()

	rooms, err := matchmaker.NewClient(cfg.Matchmaker, logger).GetRooms(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No response from matchmaker at %s: %v\n", cfg.Matchmaker.Address, err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rooms)
		return
	}

	if len(rooms) == 0 {
		fmt.Println("No rooms available.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tSTATUS\tPLAYERS")
	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/2\n", r.Name, r.Endpoint(), r.Status, r.PlayerCount)
	}
	w.Flush()
}
