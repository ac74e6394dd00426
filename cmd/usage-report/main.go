// usage-report prints the monthly execution usage recorded in DynamoDB.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"codesync-backend/internal/database"
	"codesync-backend/internal/env"
	"codesync-backend/internal/logger"
	executionservice "codesync-backend/internal/service/execution"
)

type report struct {
	Month       string         `yaml:"month"`
	PeriodStart string         `yaml:"periodStart"`
	PeriodEnd   string         `yaml:"periodEnd"`
	Total       int            `yaml:"total"`
	Failed      int            `yaml:"failed"`
	ByLanguage  map[string]int `yaml:"byLanguage"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env.Load()

	flagSet := pflag.NewFlagSet("usage-report", pflag.ContinueOnError)
	month := flagSet.String("month", "", "month to report, YYYY-MM (default current month)")
	timeout := flagSet.Duration("timeout", 30*time.Second, "overall deadline")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	logger.Setup(env.GetOrDefault(env.LogLevel, "warn"), "text")

	cfg := database.ConfigFromEnv()
	if !cfg.Enabled() {
		return fmt.Errorf("%s is not set", env.AWSRegion)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.NewDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db init failed: %w", err)
	}

	svc := executionservice.New(nil, db, nil)
	usage, err := svc.GetUsage(ctx, *month)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(report{
		Month:       usage.Month,
		PeriodStart: usage.PeriodStart.Format(time.RFC3339),
		PeriodEnd:   usage.PeriodEnd.Format(time.RFC3339),
		Total:       usage.Total,
		Failed:      usage.Failed,
		ByLanguage:  usage.ByLanguage,
	})
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
