// Command gateway-mock serves a fixture-backed imitation of the billing
// gateway's customer and payment endpoints for local runs.
package main

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

//go:embed fixtures.json
var defaultFixtures []byte

var (
	addr         string
	fixturesPath string
	apiKey       string
	failRate     float64
	maxDelay     time.Duration
)

func main() {
	cmd := &cobra.Command{
		Use:           "gateway-mock",
		Short:         "Fake billing gateway serving fixture customers and payments",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().StringVar(&addr, "addr", ":8085", "Listen address")
	cmd.Flags().StringVar(&fixturesPath, "fixtures", "", "Fixtures JSON file (defaults to the embedded set)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Require this access_token header when set")
	cmd.Flags().Float64Var(&failRate, "fail-rate", 0, "Fraction of requests answered with 500")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", 0, "Upper bound of random latency added to each request")

	if err := cmd.Execute(); err != nil {
		slog.Error("gateway-mock failed", "error", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// the real gateway sends amounts as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	f, err := loadFixtures(fixturesPath, defaultFixtures)
	if err != nil {
		return err
	}

	handler := newHandler(f, apiKey)
	handler = chaosMiddleware(chaos{failRate: failRate, maxDelay: maxDelay}, handler)
	handler = countMiddleware(newCounter(), logger, handler)
	handler = loggingMiddleware(logger, handler)

	logger.Info("Serving fake gateway", "addr", addr, "customers", len(f.Customers), "payments", len(f.Payments))
	return http.ListenAndServe(addr, handler)
}
