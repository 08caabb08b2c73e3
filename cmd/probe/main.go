// Command probe queries the ANA service for one station and prints what a run
// would see: inventory rows, measurement counts and the cleaned latest reading.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"cotas/internal/api"
	"cotas/internal/config"
	"cotas/internal/models"
	"cotas/internal/series"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: probe <station code>")
		os.Exit(2)
	}
	code := os.Args[1]

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	client := api.NewANAClient(api.ClientParams{
		BaseURL:             cfg.ANA.BaseURL,
		UserAgent:           cfg.ANA.UserAgent,
		InventoryTimeout:    cfg.ANA.InventoryTimeout,
		MeasurementsTimeout: cfg.ANA.MeasurementsTimeout,
	})
	ctx := context.Background()

	fmt.Println("=== Inventory ===")
	fmt.Println(client.BuildInventoryURL(code))
	rows, err := client.Inventory(ctx, code)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
	} else {
		jsonData, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(jsonData))
	}

	loc := cfg.Location()
	window := models.NewWindow(time.Now().In(loc), cfg.ANA.PastDays, cfg.ANA.LookaheadDays)

	fmt.Println("\n=== Measurements ===")
	fmt.Println(client.BuildMeasurementsURL(code, window))
	measurements, err := client.Measurements(ctx, code, window)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	s, report := series.Clean(code, measurements, loc)
	fmt.Printf("Raw rows: %d\n", report.Raw)
	fmt.Printf("Kept: %d (bad timestamp: %d, bad level: %d)\n", report.Kept, report.BadTimestamp, report.BadLevel)
	if latest, ok := s.Latest(); ok {
		fmt.Printf("Latest: %s %.0f cm\n", latest.Time.Format("02/01/06 15:04"), latest.Level)
	}
}
