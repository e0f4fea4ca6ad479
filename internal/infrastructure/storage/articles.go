package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/taoi11/somenewsfound/internal/domain"
	"github.com/taoi11/somenewsfound/internal/ports"
)

// ArticleStore manages the per-source article tables. Tables are addressed by
// the identifier recorded on the owning source and created lazily.
type ArticleStore struct {
	db *sql.DB
}

var _ ports.ArticleStore = (*ArticleStore)(nil)

// NewArticleStore wires a pooled database handle.
func NewArticleStore(db *sql.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// EnsureTable creates the per-source table if absent. Idempotent; safe to
// call on every run. The identifier is validated before it reaches DDL.
func (s *ArticleStore) EnsureTable(ctx context.Context, tableID string) error {
	if !ValidTableID(tableID) {
		return &domain.StorageError{Op: "ensure table", Err: fmt.Errorf("invalid table identifier %q", tableID)}
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    url TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    date_added TIMESTAMPTZ NOT NULL,
    scrape_check INTEGER NOT NULL DEFAULT 0,
    content TEXT,
    summary TEXT
)`, tableID)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return storageErr("ensure table "+tableID, err)
	}
	return nil
}

// UpsertArticles inserts feed items or, on URL conflict, refreshes title and
// date_added only. Enrichment state (content, scrape_check, summary) is never
// touched, so re-ingesting a feed cannot erase work already done. The whole
// batch commits in one transaction or not at all.
func (s *ArticleStore) UpsertArticles(ctx context.Context, tableID string, articles []domain.Article) error {
	if !ValidTableID(tableID) {
		return &domain.StorageError{Op: "upsert articles", Err: fmt.Errorf("invalid table identifier %q", tableID)}
	}
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin upsert "+tableID, err)
	}
	defer tx.Rollback()

	for _, a := range articles {
		query, args, err := upsertArticleSQL(tableID, a)
		if err != nil {
			return storageErr("build upsert "+tableID, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return storageErr("upsert article "+a.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit upsert "+tableID, err)
	}
	return nil
}

func upsertArticleSQL(tableID string, a domain.Article) (string, []interface{}, error) {
	return psql.Insert(tableID).
		Columns("url", "title", "date_added").
		Values(a.URL, a.Title, a.DateAdded).
		Suffix(`ON CONFLICT (url) DO UPDATE SET title = EXCLUDED.title, date_added = EXCLUDED.date_added`).
		ToSql()
}

// FetchPending returns up to limit articles still awaiting content, newest
// first, so one slow source cannot monopolize a run.
func (s *ArticleStore) FetchPending(ctx context.Context, tableID string, limit int) ([]domain.Article, error) {
	if !ValidTableID(tableID) {
		return nil, &domain.StorageError{Op: "fetch pending", Err: fmt.Errorf("invalid table identifier %q", tableID)}
	}

	query, args, err := pendingSQL(tableID, limit)
	if err != nil {
		return nil, storageErr("build pending query "+tableID, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("fetch pending "+tableID, err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		var (
			a       domain.Article
			content sql.NullString
			summary sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.DateAdded, &a.ScrapeCheck, &content, &summary); err != nil {
			return nil, storageErr("scan pending "+tableID, err)
		}
		if content.Valid {
			a.Content = &content.String
		}
		if summary.Valid {
			a.Summary = &summary.String
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate pending "+tableID, err)
	}
	return out, nil
}

func pendingSQL(tableID string, limit int) (string, []interface{}, error) {
	return psql.Select("id", "url", "title", "date_added", "scrape_check", "content", "summary").
		From(tableID).
		Where(sq.Expr("content IS NULL")).
		OrderBy("date_added DESC").
		Limit(uint64(limit)).
		ToSql()
}

// WriteContent records the enriched body for one article and flags it as
// scraped. The guard on content IS NULL makes the transition one-way: a row
// already enriched is left untouched.
func (s *ArticleStore) WriteContent(ctx context.Context, tableID string, articleID int64, content string) error {
	if !ValidTableID(tableID) {
		return &domain.StorageError{Op: "write content", Err: fmt.Errorf("invalid table identifier %q", tableID)}
	}

	query, args, err := writeContentSQL(tableID, articleID, content)
	if err != nil {
		return storageErr("build content update "+tableID, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return storageErr(fmt.Sprintf("write content %s id=%d", tableID, articleID), err)
	}
	return nil
}

func writeContentSQL(tableID string, articleID int64, content string) (string, []interface{}, error) {
	return psql.Update(tableID).
		Set("content", content).
		Set("scrape_check", 1).
		Where(sq.Eq{"id": articleID}).
		Where(sq.Expr("content IS NULL")).
		ToSql()
}
