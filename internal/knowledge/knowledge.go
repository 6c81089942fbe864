package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

const DefaultTTL = 7 * 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS store_products (
	domain        TEXT PRIMARY KEY,
	platform      TEXT NOT NULL DEFAULT '',
	method        TEXT NOT NULL DEFAULT '',
	products_json TEXT NOT NULL DEFAULT '[]',
	updated_at    TEXT NOT NULL
);
`

// Entry is a previously learned product list for a store domain.
type Entry struct {
	Domain    string
	Platform  string
	Method    string
	Products  []evidence.Product
	UpdatedAt time.Time
}

type row struct {
	Domain    string `db:"domain"`
	Platform  string `db:"platform"`
	Method    string `db:"method"`
	Products  string `db:"products_json"`
	UpdatedAt string `db:"updated_at"`
}

// Store keeps product lists of stores whose products were extracted before.
// It is consulted when a live fetch succeeds but yields no products.
type Store struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

func Open(path string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("knowledge base path is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the entry stored for the domain of rawURL. Entries older than
// the TTL are ignored. A missing entry yields (nil, nil).
func (s *Store) Lookup(ctx context.Context, rawURL string) (*Entry, error) {
	domain := Key(rawURL)
	if domain == "" {
		return nil, nil
	}

	var r row
	err := s.db.GetContext(ctx, &r, `SELECT domain, platform, method, products_json, updated_at FROM store_products WHERE domain = ?`, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", domain, err)
	}

	updated, err := time.Parse(time.RFC3339Nano, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for %s: %w", domain, err)
	}
	if s.now().Sub(updated) > s.ttl {
		return nil, nil
	}

	var products []evidence.Product
	if err := json.Unmarshal([]byte(r.Products), &products); err != nil {
		return nil, fmt.Errorf("decode products for %s: %w", domain, err)
	}

	return &Entry{
		Domain:    r.Domain,
		Platform:  r.Platform,
		Method:    r.Method,
		Products:  products,
		UpdatedAt: updated,
	}, nil
}

// Save records products for the domain of rawURL, replacing any previous
// entry. Empty product lists are not stored.
func (s *Store) Save(ctx context.Context, rawURL, platform, method string, products []evidence.Product) error {
	domain := Key(rawURL)
	if domain == "" || len(products) == 0 {
		return nil
	}

	payload, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode products for %s: %w", domain, err)
	}

	_, err = s.db.NamedExecContext(ctx, `
INSERT INTO store_products (domain, platform, method, products_json, updated_at)
VALUES (:domain, :platform, :method, :products_json, :updated_at)
ON CONFLICT(domain) DO UPDATE SET
	platform = excluded.platform,
	method = excluded.method,
	products_json = excluded.products_json,
	updated_at = excluded.updated_at`, row{
		Domain:    domain,
		Platform:  platform,
		Method:    method,
		Products:  string(payload),
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", domain, err)
	}

	return nil
}

// Key returns the knowledge base key for a store URL: its host without "www.".
func Key(rawURL string) string {
	return evidence.Host(rawURL)
}
