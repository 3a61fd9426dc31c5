package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"crm_automation_backend/internal/events"
	"crm_automation_backend/internal/governance"
	"crm_automation_backend/internal/governance/repository"
	"crm_automation_backend/internal/governance/service"
	"crm_automation_backend/platform/config"
	"crm_automation_backend/platform/db"
	"crm_automation_backend/platform/logger"
)

func main() {
	batchSize := flag.Int("batch", 100, "leads per batch")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting lead classification backfill", "batch", *batchSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	leadLocker, closeLocker, err := governance.NewLeadLocker(cfg, log)
	if err != nil {
		log.Error("failed to initialize lead locker", "error", err)
		panic("failed to initialize lead locker: " + err.Error())
	}
	defer closeLocker()

	eventBus := events.NewInMemoryBus(log)
	orchestrator, err := governance.NewOrchestrator(pool, eventBus, cfg, leadLocker, nil, log)
	if err != nil {
		log.Error("failed to initialize governance orchestrator", "error", err)
		panic("failed to initialize governance orchestrator: " + err.Error())
	}
	repo := repository.New(pool)

	total := 0
	for ctx.Err() == nil {
		ids, err := repo.ListUnclassified(ctx, *batchSize)
		if err != nil {
			log.Error("failed to list leads", "error", err)
			return
		}
		if len(ids) == 0 {
			log.Info("no leads left to classify", "classified", total)
			return
		}

		progress := false
		for _, id := range ids {
			derived, err := orchestrator.DetectAndClassify(ctx, id, service.ClassifyInput{})
			if err != nil {
				log.Error("classification failed", "leadId", id, "error", err)
				continue
			}
			if derived.Persisted {
				progress = true
				total++
			}
			log.Info("lead classified", "leadId", id, "classification", derived.Classification, "country", derived.Country)
		}

		if !progress {
			log.Info("no classification progress in batch, stopping", "classified", total)
			return
		}
	}

	eventBus.Wait()
}
