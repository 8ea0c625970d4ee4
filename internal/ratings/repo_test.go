package ratings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendortrack/vendorperf/internal/ratings/domain"
)

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	execs []execCall
	tag   pgconn.CommandTag
	err   error
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return f.tag, f.err
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func intp(v int) *int { return &v }

func TestUpsert(t *testing.T) {
	t.Run("conflicts on rating id, never on project id", func(t *testing.T) {
		db := &fakeQuerier{tag: pgconn.NewCommandTag("INSERT 0 1")}
		repo := &Repo{db: db}

		rt := &domain.Rating{
			ID:        "rat-1",
			ProjectID: "prj-1",
			Success:   intp(4),
			RaterID:   "user-1",
			CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, repo.Upsert(context.Background(), rt))

		require.Len(t, db.execs, 1)
		sql := strings.ToLower(db.execs[0].sql)
		assert.Contains(t, sql, "on conflict (id)")
		assert.NotContains(t, sql, "on conflict (project_id)",
			"the table holds multiple rows per project until reconciliation resolves them")
		assert.Equal(t, "rat-1", db.execs[0].args[0])
	})

	t.Run("ratings for the same project land as distinct rows", func(t *testing.T) {
		db := &fakeQuerier{tag: pgconn.NewCommandTag("INSERT 0 1")}
		repo := &Repo{db: db}

		imported := &domain.Rating{ID: "rat-old", ProjectID: "prj-1", RaterID: domain.ImportedRaterID, CreatedAt: time.Now()}
		live := &domain.Rating{ID: "rat-new", ProjectID: "prj-1", RaterID: "user-1", CreatedAt: time.Now()}

		require.NoError(t, repo.Upsert(context.Background(), imported))
		require.NoError(t, repo.Upsert(context.Background(), live))

		require.Len(t, db.execs, 2)
		assert.Equal(t, "rat-old", db.execs[0].args[0])
		assert.Equal(t, "rat-new", db.execs[1].args[0])
	})

	t.Run("fills a missing creation time", func(t *testing.T) {
		db := &fakeQuerier{tag: pgconn.NewCommandTag("INSERT 0 1")}
		repo := &Repo{db: db}

		rt := &domain.Rating{ID: "rat-1", ProjectID: "prj-1", RaterID: "user-1"}
		require.NoError(t, repo.Upsert(context.Background(), rt))
		assert.False(t, rt.CreatedAt.IsZero())
	})
}

func TestDeleteByIDs(t *testing.T) {
	t.Run("empty set touches nothing", func(t *testing.T) {
		db := &fakeQuerier{}
		repo := &Repo{db: db}

		n, err := repo.DeleteByIDs(context.Background(), nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, db.execs)
	})

	t.Run("reports deleted rows", func(t *testing.T) {
		db := &fakeQuerier{tag: pgconn.NewCommandTag("DELETE 3")}
		repo := &Repo{db: db}

		n, err := repo.DeleteByIDs(context.Background(), []string{"rat-1", "rat-2", "rat-3"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}
