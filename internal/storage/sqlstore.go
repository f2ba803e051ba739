/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	applog "positron/internal/log"
)

// SQLStore implements Store on database/sql. Queries are written with ?
// placeholders and rebound for dialects that number them.
type SQLStore struct {
	db      *sql.DB
	dialect string
	log     *slog.Logger
}

func newSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		log:     applog.WithComponent("storage").With(slog.String("driver", dialect)),
	}
}

// DB exposes the underlying handle for maintenance tasks and tests.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) bind(q string) string {
	if s.dialect != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveSlot writes data into slot. The previous payload moves to the backup
// table, which is pruned to MaxBackups entries.
func (s *SQLStore) SaveSlot(ctx context.Context, slot string, data []byte) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	l := applog.WithOperation(s.log, "save").With(slog.String("slot", slot))
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO slot_backups(slot, data, saved_at) SELECT slot, data, updated_at FROM slots WHERE slot=?`, []any{slot}},
		{`INSERT INTO slots(slot, data, updated_at) VALUES(?, ?, ?)
			ON CONFLICT(slot) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`, []any{slot, data, now}},
		{`DELETE FROM slot_backups WHERE slot=? AND id NOT IN (
			SELECT id FROM slot_backups WHERE slot=? ORDER BY id DESC LIMIT ?)`, []any{slot, slot, MaxBackups}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, s.bind(st.q), st.args...); err != nil {
			_ = tx.Rollback()
			l.Error("save failed", slog.Any("err", err))
			return fmt.Errorf("save slot %s: %w", slot, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit slot %s: %w", slot, err)
	}
	l.Info("slot saved", slog.Int("bytes", len(data)))
	return nil
}

// LoadSlot returns the payload of slot or ErrSlotEmpty.
func (s *SQLStore) LoadSlot(ctx context.Context, slot string) ([]byte, error) {
	if err := validSlot(slot); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT data FROM slots WHERE slot=?`), slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(data) == 0) {
		return nil, fmt.Errorf("%w: %s", ErrSlotEmpty, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}
	return data, nil
}

// Previous returns the most recent backup of slot or ErrSlotEmpty.
func (s *SQLStore) Previous(ctx context.Context, slot string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		s.bind(`SELECT data FROM slot_backups WHERE slot=? ORDER BY id DESC LIMIT 1`), slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no backup of %s", ErrSlotEmpty, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("load backup of %s: %w", slot, err)
	}
	return data, nil
}

// DeleteSlot removes slot and its backups. Deleting an empty slot is not an
// error.
func (s *SQLStore) DeleteSlot(ctx context.Context, slot string) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	for _, q := range []string{`DELETE FROM slots WHERE slot=?`, `DELETE FROM slot_backups WHERE slot=?`} {
		if _, err := tx.ExecContext(ctx, s.bind(q), slot); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete slot %s: %w", slot, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete %s: %w", slot, err)
	}
	s.log.Info("slot deleted", slog.String("slot", slot))
	return nil
}

// Slots lists the non-empty slots ordered by name.
func (s *SQLStore) Slots(ctx context.Context) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot, LENGTH(data), updated_at FROM slots ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []SlotInfo
	for rows.Next() {
		var (
			si SlotInfo
			ts string
		)
		if err := rows.Scan(&si.Slot, &si.Size, &ts); err != nil {
			return nil, err
		}
		si.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, si)
	}
	return out, rows.Err()
}

// Ping checks that the backend is reachable.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
