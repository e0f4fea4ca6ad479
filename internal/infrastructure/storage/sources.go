package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/taoi11/somenewsfound/internal/domain"
	"github.com/taoi11/somenewsfound/internal/ports"
)

const tablePrefix = "articles_"

const uniqueViolation = pq.ErrorCode("23505")

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	nonAlnum     = regexp.MustCompile(`[^a-z0-9]+`)
	validTableID = regexp.MustCompile(`^articles_[a-z0-9]+(_[a-z0-9]+)*$`)
)

// SourceRegistry owns the sources table and the feed-endpoint-to-table
// mapping.
type SourceRegistry struct {
	db *sql.DB
}

var _ ports.SourceRegistry = (*SourceRegistry)(nil)

// NewSourceRegistry wires a pooled database handle.
func NewSourceRegistry(db *sql.DB) *SourceRegistry {
	return &SourceRegistry{db: db}
}

// EnsureSchema creates the sources table if absent. Idempotent.
func (r *SourceRegistry) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sources (
    id BIGSERIAL PRIMARY KEY,
    url TEXT UNIQUE NOT NULL,
    channel_name TEXT UNIQUE NOT NULL,
    table_identifier TEXT UNIQUE NOT NULL
)`)
	if err != nil {
		return storageErr("ensure sources table", err)
	}
	return nil
}

// Resolve upserts the source record for a feed endpoint and returns it.
//
// The table identifier is assigned once, on first insert, and is immutable
// afterwards: a feed that renames its channel keeps its original table, only
// channel_name is refreshed. A distinct channel title that sanitizes to an
// already-taken identifier surfaces as a StorageError from the unique
// constraint rather than being silently disambiguated.
func (r *SourceRegistry) Resolve(ctx context.Context, feedURL, channelTitle string) (domain.Source, error) {
	tableID := DeriveTableID(channelTitle, feedURL)

	query, args, err := psql.Insert("sources").
		Columns("url", "channel_name", "table_identifier").
		Values(feedURL, channelTitle, tableID).
		Suffix(`ON CONFLICT (url) DO UPDATE SET channel_name = EXCLUDED.channel_name
                RETURNING id, url, channel_name, table_identifier`).
		ToSql()
	if err != nil {
		return domain.Source{}, storageErr("build source upsert", err)
	}

	var src domain.Source
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&src.ID, &src.URL, &src.ChannelName, &src.TableID); err != nil {
		return domain.Source{}, storageErr("resolve source", err)
	}
	return src, nil
}

// ListSources returns every registered source, oldest first.
func (r *SourceRegistry) ListSources(ctx context.Context) ([]domain.Source, error) {
	query, args, err := psql.Select("id", "url", "channel_name", "table_identifier").
		From("sources").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, storageErr("build source list", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list sources", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.ID, &src.URL, &src.ChannelName, &src.TableID); err != nil {
			return nil, storageErr("scan source", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate sources", err)
	}
	return out, nil
}

// DeriveTableID turns a channel title into a storage-table identifier:
// lowercase, runs of non-alphanumerics collapsed to single underscores, no
// leading or trailing underscores, prefixed to stay clear of reserved names.
// A title that sanitizes to nothing falls back to a hash of the feed URL so
// two title-less feeds never collapse onto one table.
func DeriveTableID(channelTitle, feedURL string) string {
	t := strings.ToLower(channelTitle)
	t = strings.ReplaceAll(t, "<![cdata[", "")
	t = strings.ReplaceAll(t, "]]>", "")
	t = nonAlnum.ReplaceAllString(t, "_")
	t = strings.Trim(t, "_")
	if t == "" {
		sum := sha256.Sum256([]byte(feedURL))
		t = "feed_" + hex.EncodeToString(sum[:])[:12]
	}
	return tablePrefix + t
}

// ValidTableID reports whether an identifier is safe to interpolate into DDL
// and queries.
func ValidTableID(tableID string) bool {
	return validTableID.MatchString(tableID)
}

func storageErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		op = fmt.Sprintf("%s (unique constraint %s)", op, pqErr.Constraint)
	}
	return &domain.StorageError{Op: op, Err: err}
}
