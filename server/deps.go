package server

import (
	"worker-render/config"
	"worker-render/repository"
	"worker-render/service"
)

type deps struct {
	store    repository.JobStore
	ledger   repository.CreditLedger
	projects repository.ProjectStore
	writer   *service.JobWriter
	executor *service.FFmpegExecutor
}

func buildDeps(cfg *config.Config) (*deps, error) {
	store, err := repository.NewJobStore(cfg.Store.Backend, cfg.DB, cfg.Redis)
	if err != nil {
		return nil, err
	}

	var ledger repository.CreditLedger
	var projects repository.ProjectStore
	if cfg.Store.Backend == "postgres" {
		if ledger, err = repository.NewPostgresLedger(cfg.DB); err != nil {
			return nil, err
		}
		if projects, err = repository.NewPostgresProjects(cfg.DB); err != nil {
			return nil, err
		}
	} else {
		ledger = repository.NewMemoryLedger(nil)
		projects = repository.NewMemoryProjects()
	}

	writer := service.NewJobWriter(store)
	payload := service.NewHTTPPayloadSource(cfg.Render.PayloadURL, cfg.Render.PayloadSecret)
	executor := service.NewFFmpegExecutor(
		writer,
		payload,
		cfg.Storage,
		cfg.Render.Bucket,
		cfg.Render.PublicBaseURL,
		cfg.Render.TempDir,
		cfg.Render.WatermarkFile,
	)

	return &deps{
		store:    store,
		ledger:   ledger,
		projects: projects,
		writer:   writer,
		executor: executor,
	}, nil
}

func exemptPolicy(users []string) service.SpendExemptPolicy {
	if len(users) == 0 {
		return nil
	}
	set := make(map[string]bool, len(users))
	for _, u := range users {
		set[u] = true
	}
	return func(userId string) bool {
		return set[userId]
	}
}
