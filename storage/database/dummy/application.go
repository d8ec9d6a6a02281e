package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/intake"
)

type applicationRepository struct {
	db *applicationTable
}

var _ intake.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) intake.Repository {
	return &applicationRepository{db: db.application}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app intake.Application, exec ...core.DBExecutor) (intake.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	app.ID = uuid.New().String()
	repo.db.table = append(repo.db.table, &app)
	return app, nil
}

func (repo *applicationRepository) QueryApplications(ctx context.Context, limit int, exec ...core.DBExecutor) ([]intake.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	apps := make([]intake.Application, 0, limit)
	for i := len(repo.db.table) - 1; i >= 0 && len(apps) < limit; i-- {
		apps = append(apps, *repo.db.table[i])
	}
	return apps, nil
}
