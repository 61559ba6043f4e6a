package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "pacebot/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadSudo(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM sudo ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: sudo: %v", ErrCorrupt, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) SaveSudo(ctx context.Context, ids []int64) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sudo`); err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sudo(user_id) VALUES(?)`, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqliteStore) LoadChats(ctx context.Context) (ChatState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, known, delay FROM chats ORDER BY chat_id`)
	if err != nil {
		return ChatState{}, err
	}
	defer rows.Close()

	st := ChatState{Delays: map[int64]float64{}}
	for rows.Next() {
		var (
			id    int64
			known bool
			delay sql.NullFloat64
		)
		if err := rows.Scan(&id, &known, &delay); err != nil {
			return ChatState{}, fmt.Errorf("%w: chats: %v", ErrCorrupt, err)
		}
		if known {
			st.Known = append(st.Known, id)
		}
		if delay.Valid {
			st.Delays[id] = delay.Float64
		}
	}
	return st, rows.Err()
}

func (s *sqliteStore) SaveChats(ctx context.Context, st ChatState) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
			return err
		}
		for _, id := range st.Known {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chats(chat_id, known) VALUES(?, 1)
				 ON CONFLICT(chat_id) DO UPDATE SET known = 1`, id); err != nil {
				return err
			}
		}
		for id, d := range st.Delays {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chats(chat_id, known, delay) VALUES(?, 0, ?)
				 ON CONFLICT(chat_id) DO UPDATE SET delay = excluded.delay`, id, d); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor_id, actor_username, chat_id, client, command, args, ok, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.ActorID, nullStr(e.ActorUsername), e.ChatID, e.Client,
		e.Command, nullStr(e.Args), e.OK, nullStr(e.Error), e.TookMS,
	)
	return err
}

func (s *sqliteStore) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
