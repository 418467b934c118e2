package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/chromatrace/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Check if YAML file exists
	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	// Load YAML configuration
	configData, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}
	if err := configData.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration is invalid: %v\n", err)
		os.Exit(1)
	}

	printConfigSummary(configData)
	if *dryRun {
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	if err := provider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Conversion complete")
}

func printConfigSummary(c *config.ConfigData) {
	fmt.Println("Configuration summary:")
	fmt.Printf("  REST server: %s:%d (TLS: %t)\n", c.REST.ListenAddr, c.REST.Port, c.REST.Cert != "")
	fmt.Printf("  Cache: enabled=%t addr=%s ttl=%s\n", c.Cache.Enabled, c.Cache.Addr, c.Cache.TTL)
	fmt.Printf("  Queue: enabled=%t brokers=%v workers=%d\n", c.Queue.Enabled, c.Queue.Brokers, c.Queue.Workers)
	fmt.Printf("  Analysis: channel=%s e1=%g path=%g cm smoothing=%ds\n",
		c.Analysis.DefaultChannel, c.Analysis.E1Percent, c.Analysis.PathLength, c.Analysis.SmoothingSeconds)
}
