package bytecache

import (
	"database/sql"
	"embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/tilevista/go-deepzoom/tile"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteCache stores tile bytes in a single local database file, keyed by
// (z, x, y) = (level, col, row).
type SQLiteCache struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteCache(path string, logger *zap.Logger) (*SQLiteCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	c := &SQLiteCache{db: db, logger: logger}
	if err := c.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite byte cache initialized", zap.String("path", path))

	return c, nil
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(c.db, "migrations")
}

var _ Cache = (*SQLiteCache)(nil)

func (c *SQLiteCache) Get(k tile.Key) ([]byte, bool, error) {
	query := `SELECT tile_data
	FROM tile_cache
	WHERE x = ? AND y = ? AND z = ?`

	var data []byte
	err := c.db.QueryRow(query, k.Col, k.Row, k.Level).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		c.logger.Error("sqlite byte cache get failed",
			zap.Int("level", k.Level), zap.Int("col", k.Col), zap.Int("row", k.Row),
			zap.Error(err))
		return nil, false, err
	}
	return data, true, nil
}

func (c *SQLiteCache) Set(k tile.Key, data []byte) error {
	query := `INSERT INTO tile_cache (x, y, z, tile_data)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(x, y, z) DO UPDATE SET tile_data = excluded.tile_data`

	if _, err := c.db.Exec(query, k.Col, k.Row, k.Level, data); err != nil {
		c.logger.Error("sqlite byte cache set failed",
			zap.Int("level", k.Level), zap.Int("col", k.Col), zap.Int("row", k.Row),
			zap.Error(err))
		return err
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
