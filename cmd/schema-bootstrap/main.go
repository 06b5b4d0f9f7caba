package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"techmarket-bootstrap/internal/bootstrap"
	"techmarket-bootstrap/internal/config"
	"techmarket-bootstrap/internal/database"
	"techmarket-bootstrap/internal/runner"
	"techmarket-bootstrap/internal/schema"
)

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()

	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	dbType := flag.String("db", "mongo", "database type (mongo, postgres, mysql, or memory)")
	reset := flag.Bool("reset", false, "drop the schema before bootstrapping")
	seedCustomer := flag.Bool("seed", true, "insert the seed customer")
	fakeCustomers := flag.Int("fake-customers", 0, "number of fake customers to insert")
	fakeProducts := flag.Int("fake-products", 0, "number of fake products to insert")
	fakePayments := flag.Int("fake-payments", 0, "number of fake payments to insert")
	verify := flag.Bool("verify", false, "verify collections, indexes, query plans and seed data after bootstrap")
	probe := flag.Bool("probe", false, "measure latency of the indexed queries after bootstrap")
	concurrency := flag.Int("concurrency", 0, "number of concurrent probe workers")
	duration := flag.Duration("duration", 0, "duration of each probe")

	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
		exitCode = 1
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		exitCode = 1
		return
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Bootstrap.Seed = *seedCustomer
		case "fake-customers":
			cfg.Bootstrap.Fake.Customers = *fakeCustomers
		case "fake-products":
			cfg.Bootstrap.Fake.Products = *fakeProducts
		case "fake-payments":
			cfg.Bootstrap.Fake.Payments = *fakePayments
		case "concurrency":
			cfg.Probe.Concurrency = *concurrency
		case "duration":
			cfg.Probe.Duration = *duration
		}
	})

	driver, dbName, err := database.NewDriver(*dbType, cfg.Databases)
	if err != nil {
		log.Printf("Failed to select database: %v", err)
		exitCode = 1
		return
	}
	defer driver.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	b := bootstrap.New(driver, logger, bootstrap.Options{
		Database:    dbName,
		CallTimeout: cfg.Bootstrap.CallTimeout,
		Reset:       *reset,
		Seed:        cfg.Bootstrap.Seed,
		Fake:        cfg.Bootstrap.Fake,
	})

	if err := b.Run(ctx); err != nil {
		log.Printf("Bootstrap failed: %v", err)
		exitCode = 1
		return
	}

	if *verify {
		report := b.Verify(ctx)
		if !report.OK() {
			log.Printf("Verification failed: %d of %d checks", len(report.Failed()), len(report.Checks))
			exitCode = 1
			return
		}
	}

	if *probe {
		results, err := probeQueries(ctx, driver, cfg.Probe, logger)
		if err != nil {
			log.Printf("Probe failed: %v", err)
			exitCode = 1
			return
		}

		jsonOutput, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			log.Printf("Failed to marshal results: %v", err)
			exitCode = 1
			return
		}
		fmt.Println(string(jsonOutput))
	}
}

func probeQueries(ctx context.Context, driver database.SchemaDriver, cfg config.Probe, logger *log.Logger) ([]*runner.Result, error) {
	var results []*runner.Result
	for _, q := range schema.IndexedQueries() {
		if cfg.Limit > 0 && q.Limit > cfg.Limit {
			q.Limit = cfg.Limit
		}
		logger.Printf("Probing %s for %s with %d workers", q.Name, cfg.Duration, cfg.Concurrency)

		result, err := runner.Run(ctx, driver, q, cfg.Concurrency, cfg.Duration, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.Name, err)
		}
		results = append(results, result)
	}
	return results, nil
}
