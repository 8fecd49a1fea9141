package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/metrics"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "surreal-sync",
	Short:   "Change-data-capture engine that mirrors heterogeneous sources into SurrealDB",
	Long:    `surreal-sync ingests PostgreSQL, MySQL, MongoDB, Neo4j, Kafka, and bulk CSV/JSONL files and lands them into a SurrealDB target, full-sync or incremental.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Address to serve /metrics, /health and /ready on (empty disables)")

	cobra.OnInitialize(initLogging, initMetricsServer)

	rootCmd.AddCommand(fromPostgresqlTriggerCmd)
	rootCmd.AddCommand(fromPostgresqlLogicalCmd)
	rootCmd.AddCommand(fromMysqlCmd)
	rootCmd.AddCommand(fromMongodbCmd)
	rootCmd.AddCommand(fromNeo4jCmd)
	rootCmd.AddCommand(fromKafkaCmd)
	rootCmd.AddCommand(fromCSVCmd)
	rootCmd.AddCommand(fromJSONLCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func initMetricsServer() {
	addr, _ := rootCmd.PersistentFlags().GetString("metrics-addr")
	if addr == "" {
		return
	}

	metrics.SetVersion(Version)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server exited", err)
		}
	}()
	log.Info(fmt.Sprintf("metrics endpoint listening on http://%s/metrics", addr))
}
