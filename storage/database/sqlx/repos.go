package sqlxrepos

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/hagwon/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// repository provides the default executor and the per-call override hook
// shared by all repos.
type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}
