package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"saas-billing/internal/config"
	pg "saas-billing/internal/infra/db/postgres"
	"saas-billing/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planRepo := pg.NewPlanRepo(pool)
	planUC := usecase.NewPlanUseCase(planRepo)

	// If plans already exist, do nothing
	plans, err := planUC.ListActive(ctx)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (monthly=%d, yearly=%d, setup=%d %s)\n", p.Name, p.MonthlyPrice, p.YearlyPrice, p.SetupFee, p.Currency)
		}
		return
	}

	// A starter catalog for exercising the payment flow. Prices are minor units.
	seed := []struct {
		Name     string
		Monthly  int64
		Yearly   int64
		SetupFee int64
		Features []string
	}{
		{"Starter", 2499, 24_990, 0, []string{"1 seat", "community support"}},
		{"Team", 9_900, 99_000, 0, []string{"5 seats", "email support"}},
		{"Business", 29_900, 299_000, 10_000, []string{"25 seats", "priority support", "SSO"}},
	}

	for _, s := range seed {
		p, err := planUC.Create(ctx, s.Name, s.Monthly, s.Yearly, s.SetupFee, "USD", s.Features)
		if err != nil {
			log.Fatalf("create plan %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, monthly=%d, yearly=%d %s)\n", p.Name, p.ID, p.MonthlyPrice, p.YearlyPrice, p.Currency)
	}

	fmt.Println("Seeding complete.")
}
