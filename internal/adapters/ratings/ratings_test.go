package ratings_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/ratings"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
)

var cols = model.Columns{User: "user id", Item: "post_id", Rating: "score"}

func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratings.db")
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	db.MustExec(`CREATE TABLE ratings ("user id" INTEGER, post_id TEXT, score REAL)`)
	db.MustExec(`INSERT INTO ratings VALUES (1, 'p1', 5), (1, 'p2', 3.5), (2, 'p1', 4), (3, NULL, 2)`)
	return path
}

func TestSQLiteSource(t *testing.T) {
	path := seedSQLite(t)
	ctx := context.Background()

	src, err := ratings.Open(ctx, ratings.Config{
		Kind:   ratings.KindSQLite,
		DSN:    path,
		Schema: "main",
		Table:  "ratings",
		Pool:   ratings.DefaultPool(),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	got, err := src.Load(ctx, cols)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Rating{
		{User: "1", Item: "p1", Value: 5},
		{User: "1", Item: "p2", Value: 3.5},
		{User: "2", Item: "p1", Value: 4},
	}, got)
}

func TestSQLiteSourceRejectsBlankColumns(t *testing.T) {
	path := seedSQLite(t)
	ctx := context.Background()
	src, err := ratings.Open(ctx, ratings.Config{Kind: "SQLite", DSN: path, Table: "ratings"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	_, err = src.Load(ctx, model.Columns{User: "", Item: "post_id", Rating: "score"})
	require.Error(t, err)
}

func TestSQLiteSourceMissingTable(t *testing.T) {
	path := seedSQLite(t)
	ctx := context.Background()
	src, err := ratings.Open(ctx, ratings.Config{Kind: ratings.KindSQLite, DSN: path, Table: "missing"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	_, err = src.Load(ctx, cols)
	require.Error(t, err)
}

func TestSQLQueryQuotesIdentifiers(t *testing.T) {
	src := ratings.NewSQLSource(nil, "public", `ra"tings`, ratings.Pool{}, nil)
	q := src.Query(model.Columns{User: "user", Item: "item", Rating: "rating"})
	assert.True(t, strings.HasPrefix(q, `SELECT "user" AS user_id, "item" AS item_id, "rating" AS rating FROM "public"."ra""tings"`))
	assert.Contains(t, q, `"rating" IS NOT NULL`)
}

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"user id,post_id,score,extra\n"+
			"1,p1,5,x\n"+
			"2, p2 ,2.5,y\n"+
			"3,,4,z\n",
	), 0o600))

	src, err := ratings.Open(context.Background(), ratings.Config{Kind: ratings.KindCSV, Path: path}, nil)
	require.NoError(t, err)
	defer src.Close()

	got, err := src.Load(context.Background(), cols)
	require.NoError(t, err)
	assert.Equal(t, []model.Rating{
		{User: "1", Item: "p1", Value: 5},
		{User: "2", Item: "p2", Value: 2.5},
	}, got)
}

func TestReadCSVErrors(t *testing.T) {
	ctx := context.Background()

	_, err := ratings.ReadCSV(ctx, strings.NewReader("a,b,c\n"), cols)
	assert.ErrorIs(t, err, ratings.ErrMissingColumn)

	_, err = ratings.ReadCSV(ctx, strings.NewReader("user id,post_id,score\n1,p1,five\n"), cols)
	assert.ErrorIs(t, err, ratings.ErrBadRow)

	_, err = ratings.ReadCSV(ctx, strings.NewReader(""), cols)
	assert.Error(t, err)

	_, err = ratings.NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"), nil).Load(ctx, cols)
	assert.Error(t, err)
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := ratings.Open(context.Background(), ratings.Config{Kind: "parquet"}, nil)
	assert.ErrorIs(t, err, ratings.ErrUnknownKind)
}
