package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/engine"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/repository/postgres"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/service"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/pkg/logger"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "engine",
		Usage: "Run stock transfer analysis against the network",
		Commands: []*cli.Command{
			{
				Name:  "analyze",
				Usage: "Run one full analysis and print the recommendations",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full run result as JSON",
					},
					&cli.BoolFlag{
						Name:  "simulate",
						Usage: "Mark the run as a simulation",
						Value: true,
					},
					&cli.Float64Flag{
						Name:  "max-value",
						Usage: "Autonomous value ceiling before approval is required",
					},
					&cli.Float64Flag{
						Name:  "min-roi",
						Usage: "Minimum ROI percent for a viable transfer",
					},
					&cli.IntFlag{
						Name:  "timeout",
						Usage: "Run timeout in seconds",
					},
				},
				Action: runAnalyze,
			},
			{
				Name:   "health",
				Usage:  "Check database connectivity and outlet count",
				Flags:  []cli.Flag{newDBURLFlag()},
				Action: runHealth,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newService(c *cli.Context) (*service.TransferService, *postgres.DB, error) {
	db, err := postgres.Open("pgx", c.String("db-url"))
	if err != nil {
		return nil, nil, err
	}

	cfg := config.Load()
	repo := postgres.NewNetworkRepository(db, cfg.Engine.VelocityWindowDays)
	return service.NewTransferService(repo, cfg.Engine, nil, nil), db, nil
}

func runAnalyze(c *cli.Context) error {
	logger.SetLevel("warn")

	svc, db, err := newService(c)
	if err != nil {
		return err
	}
	defer db.Close()

	overrides := &service.RunOverrides{}
	if c.IsSet("simulate") {
		simulate := c.Bool("simulate")
		overrides.SimulationMode = &simulate
	}
	if c.IsSet("max-value") {
		maxValue := c.Float64("max-value")
		overrides.MaxAutonomousValue = &maxValue
	}
	if c.IsSet("min-roi") {
		minROI := c.Float64("min-roi")
		overrides.MinROIPercent = &minROI
	}
	if c.IsSet("timeout") {
		timeout := c.Int("timeout")
		overrides.RunTimeoutSeconds = &timeout
	}

	result, err := svc.Analyze(c.Context, overrides)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	printResult(result)
	return nil
}

func runHealth(c *cli.Context) error {
	logger.SetLevel("warn")

	svc, db, err := newService(c)
	if err != nil {
		return err
	}
	defer db.Close()

	health := svc.HealthCheck(c.Context)
	fmt.Printf("status:          %s\n", health.Status)
	fmt.Printf("database:        %v\n", health.Database)
	fmt.Printf("active outlets:  %d\n", health.ActiveOutlets)
	if health.Error != "" {
		fmt.Printf("error:           %s\n", health.Error)
		return cli.Exit("unhealthy", 1)
	}
	return nil
}

func printResult(result *engine.RunResult) {
	fmt.Printf("session %s  state=%s  partial=%v  duration=%dms\n",
		result.SessionID, result.State, result.Partial, result.DurationMS)
	if result.Message != "" {
		fmt.Println(result.Message)
	}

	fmt.Printf("network: %d outlets, %d lines, %d overstock, %d understock\n",
		result.Network.OutletCount, result.Network.LineCount,
		result.Network.OverstockCount, result.Network.UnderstockCount)

	for _, rec := range result.Recommendations {
		printRecommendation(rec, "")
	}
	for _, rec := range result.PendingApproval {
		printRecommendation(rec, " [needs approval]")
	}

	fmt.Printf("total: %d recommendations, $%.2f value, $%.2f net benefit\n",
		result.Executive.TotalRecommendations,
		result.Executive.TotalValue,
		result.Executive.EstimatedNetBenefit)
}

func printRecommendation(rec domain.Recommendation, suffix string) {
	fmt.Printf("  [%s] %s -> %s  %d items  $%.2f  ship $%.2f  conf %.2f  %s%s\n",
		rec.Priority, rec.Source.Name, rec.Target.Name,
		rec.Logistics.TotalItems, rec.Financial.TotalValue,
		rec.Financial.ShippingCost, rec.Decision.Confidence,
		rec.Action, suffix)
}
