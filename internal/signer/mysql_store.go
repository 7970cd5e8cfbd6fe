package signer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLConfig 描述 MySQL 密钥存储的连接参数。
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// SQLStore persists session keyed signer material in MySQL.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the store using the provided connection settings.
func NewSQLStore(ctx context.Context, cfg MySQLConfig) (*SQLStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

func openDatabase(ctx context.Context, cfg MySQLConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}
	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	const schema = `CREATE TABLE IF NOT EXISTS signer_keys (
	session VARCHAR(128) NOT NULL PRIMARY KEY,
	address CHAR(42) NOT NULL,
	private_key VARCHAR(128) NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化签名者密钥表失败: %w", err)
	}
	return nil
}

// Close releases the underlying database connection pool.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, session string) (*Signer, error) {
	const query = `SELECT private_key FROM signer_keys WHERE session = ?`
	row := s.db.QueryRowContext(ctx, query, strings.TrimSpace(session))
	var hexKey string
	if err := row.Scan(&hexKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSignerNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询签名者密钥失败")
	}
	return FromHex(hexKey)
}

// Put implements Store by upserting the key material for the session.
func (s *SQLStore) Put(ctx context.Context, session string, sg *Signer) error {
	session = strings.TrimSpace(session)
	if session == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "会话标识不能为空")
	}
	if sg == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "签名者不能为空")
	}
	now := time.Now().Unix()
	const upsert = `INSERT INTO signer_keys (session, address, private_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE address = VALUES(address), private_key = VALUES(private_key), updated_at = VALUES(updated_at)`
	if _, err := s.db.ExecContext(ctx, upsert, session, strings.ToLower(sg.Address().Hex()), sg.KeyHex(), now, now); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存签名者密钥失败")
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, session string) error {
	const del = `DELETE FROM signer_keys WHERE session = ?`
	if _, err := s.db.ExecContext(ctx, del, strings.TrimSpace(session)); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "删除签名者密钥失败")
	}
	return nil
}

var _ Store = (*SQLStore)(nil)
