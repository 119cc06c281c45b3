package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/argus-scan/argus/internal/engine"
)

var statsServe bool
var statsAddr string

var statsCmd = &cobra.Command{
	Use:   "stats <project-path>",
	Short: "Report memory engine health and per-namespace counts",
	Args:  cobra.ArbitraryArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsServe, "serve", false, "Serve the Prometheus metrics endpoint on --addr instead of printing once (loopback only)")
	statsCmd.Flags().StringVar(&statsAddr, "addr", "127.0.0.1:9090", "Listen address for --serve, loopback only")
}

type statsReport struct {
	Health     interface{}      `json:"health"`
	Namespaces map[string]int64 `json:"namespaces"`
}

func runStats(cmd *cobra.Command, args []string) error {
	if _, err := requireProjectPath(args); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := engine.Init(cfg)
	if err != nil {
		return internalErr(err)
	}
	defer h.Shutdown()

	if statsServe {
		fmt.Printf("serving metrics on http://%s/metrics (loopback only, pulled not pushed)\n", statsAddr)
		return http.ListenAndServe(statsAddr, h.Metrics.Handler())
	}

	health := h.Store.Health()
	namespaces, err := h.Store.ListNamespaces()
	if err != nil {
		return internalErr(err)
	}
	counts := make(map[string]int64, len(namespaces))
	for _, ns := range namespaces {
		n, err := h.Store.Count(ns)
		if err != nil {
			continue
		}
		counts[ns] = n
	}

	report := statsReport{Health: health, Namespaces: counts}
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Printf("health: %+v\n", health)
	for ns, n := range counts {
		fmt.Printf("  %s: %d\n", ns, n)
	}
	return nil
}
