package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"reports/internal/blob"
	"reports/internal/config"
	"reports/internal/dbclient"
	"reports/internal/domain"
	"reports/internal/report"
	"reports/internal/secret"
	"reports/internal/service"
	"reports/internal/storage"
)

// runtime holds the open connections of one command invocation.
type runtime struct {
	svc     *service.ReportService
	closers []func() error
}

// openRuntime connects to the survey database and the report catalog and
// builds the report service on top of them.
func openRuntime(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	secrets, err := secret.New(cfg.Secrets.Backend)
	if err != nil {
		return nil, err
	}

	pw, err := secret.Password(secrets, cfg.Source.PasswordKey)
	if err != nil {
		return nil, err
	}
	src, err := dbclient.Open(ctx, &cfg.Source, pw)
	if err != nil {
		return nil, fmt.Errorf("open source database: %w", err)
	}
	rt.closers = append(rt.closers, src.Close)
	log.Debug("source database open", zap.String("driver", string(cfg.Source.Driver)))

	catalog, err := rt.openCatalog(ctx, cfg, src, secrets)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.NewDir(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}

	gen := &report.Generator{
		Questions: storage.NewQuestionStore(src),
		Responses: storage.NewResponseStore(src),
		Reports:   catalog,
		Blobs:     blobs,
		Logger:    log,
		Workers:   cfg.Report.Workers,
		PhotoDir:  cfg.Output.PhotoDir,
	}
	rt.svc = service.NewReportService(gen, storage.NewFormStore(src), blobs, service.LogEmitter{Log: log}, log)
	return rt, nil
}

func (rt *runtime) openCatalog(ctx context.Context, cfg *config.Config, src *storage.DB, secrets secret.SecretStore) (domain.ReportStore, error) {
	if cfg.Catalog.Driver == config.CatalogSource {
		if err := src.EnsureCatalog(ctx); err != nil {
			return nil, err
		}
		return storage.NewReportStore(src), nil
	}

	pw, err := secret.Password(secrets, cfg.Catalog.PasswordKey)
	if err != nil {
		return nil, err
	}
	if cfg.Catalog.Driver == domain.DatabaseDriverMongoDB {
		store, err := dbclient.NewMongoReportStore(ctx, &cfg.Catalog, pw)
		if err != nil {
			return nil, fmt.Errorf("open report catalog: %w", err)
		}
		rt.closers = append(rt.closers, func() error { return store.Close(context.Background()) })
		return store, nil
	}

	db, err := dbclient.Open(ctx, &cfg.Catalog, pw)
	if err != nil {
		return nil, fmt.Errorf("open report catalog: %w", err)
	}
	rt.closers = append(rt.closers, db.Close)
	if err := db.EnsureCatalog(ctx); err != nil {
		return nil, err
	}
	return storage.NewReportStore(db), nil
}

// Close releases connections in reverse order of opening.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
