// Package store implements the pipeline's storage interfaces on Postgres.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/chat"
	"mia/apps/backend/internal/clinic"
	"mia/apps/backend/internal/redflag"
	"mia/apps/backend/internal/vademecum"
)

var ErrNotFound = errors.New("not found")

// Postgres is backed by a pgx pool. One value serves every store interface.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var (
	_ catalog.Store          = (*Postgres)(nil)
	_ redflag.Repository     = (*Postgres)(nil)
	_ chat.PromptRepository  = (*Postgres)(nil)
	_ chat.FAQStore          = (*Postgres)(nil)
	_ chat.ConversationStore = (*Postgres)(nil)
	_ vademecum.Store        = (*Postgres)(nil)
	_ clinic.Store           = (*Postgres)(nil)
)

func New(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

// queryBuilder collects positional arguments while a statement is assembled.
type queryBuilder struct {
	args []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// likeArg binds a term that containsExpr will match literally.
func (b *queryBuilder) likeArg(term string) string {
	return b.arg(escapeLike(term))
}

// containsExpr is the SQL twin of textnorm.ContainsKeyword. The bound term
// must already be escaped, see likeArg.
func containsExpr(column, param string) string {
	return fmt.Sprintf(`unaccent(lower(%s)) LIKE '%%' || unaccent(lower(%s::text)) || '%%' ESCAPE '\'`, column, param)
}

func limitClause(b *queryBuilder, limit int) string {
	if limit <= 0 {
		return ""
	}
	return " LIMIT " + b.arg(limit)
}

func orJoin(parts []string) string {
	return "(" + strings.Join(parts, " OR ") + ")"
}
