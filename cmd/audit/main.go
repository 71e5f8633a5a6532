package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"saas-billing/internal/config"
	pg "saas-billing/internal/infra/db/postgres"
	"saas-billing/internal/infra/logging"
	"saas-billing/internal/usecase"
)

// One-shot ledger audit for cron and operators. Exits non-zero when the
// three money projections disagree beyond the configured epsilon.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	auditUC := usecase.NewAuditUseCase(pg.NewAuditQueries(pool), cfg.Billing.AuditEpsilon, logger)
	report, err := auditUC.Run(ctx)
	if err != nil {
		log.Fatalf("audit run: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	if !report.Consistent {
		os.Exit(1)
	}
}
