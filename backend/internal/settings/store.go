package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"thermonode/backend/pkg/utils"
)

// Namespace is the key/value namespace the settings live in.
const Namespace = "settings"

// Store persists Settings as one row per key in the preferences table.
type Store struct {
	l   *slog.Logger
	db  *sql.DB
	mac net.HardwareAddr
}

// NewStore creates a store over a migrated database. mac seeds the default name.
func NewStore(l *slog.Logger, db *sql.DB, mac net.HardwareAddr) *Store {
	return &Store{
		l:   l.With(slog.String("component", "settings-store")),
		db:  db,
		mac: mac,
	}
}

// Load reads the settings. Absent or unparsable keys resolve to their defaults; only an
// unavailable database is an error.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	out := Defaults(s.mac)

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences WHERE namespace = ?`, Namespace)
	if err != nil {
		return Settings{}, &StorageError{Op: "load", Err: err}
	}

	defer utils.LogOnError(s.l, rows.Close, "failed to close preferences rows")

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, &StorageError{Op: "load", Err: err}
		}

		if err := out.apply(key, value); err != nil {
			s.l.Warn("ignoring stored value, using default", slog.String("key", key), utils.ErrAttr(err))
		}
	}

	if err := rows.Err(); err != nil {
		return Settings{}, &StorageError{Op: "load", Err: err}
	}

	return out, nil
}

// Save replaces all seven keys in a single transaction.
func (s *Store) Save(ctx context.Context, in Settings) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}

	defer func() {
		if err == nil {
			return
		}

		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.l.Error("failed to roll back settings write", utils.ErrAttr(rbErr))
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM preferences WHERE namespace = ?`, Namespace); err != nil {
		return &StorageError{Op: "save", Err: err}
	}

	for _, kv := range in.encode() {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO preferences (namespace, key, value) VALUES (?, ?, ?)`,
			Namespace, kv[0], kv[1],
		); err != nil {
			return &StorageError{Op: "save", Err: fmt.Errorf("key %s: %w", kv[0], err)}
		}
	}

	if err = tx.Commit(); err != nil {
		return &StorageError{Op: "save", Err: err}
	}

	s.l.Info("settings saved", slog.String("name", in.Name))

	return nil
}

// Reset removes every key so the next Load returns defaults.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE namespace = ?`, Namespace); err != nil {
		return &StorageError{Op: "reset", Err: err}
	}

	s.l.Info("settings reset to defaults")

	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s Settings) encode() [][2]string {
	return [][2]string{
		{KeyName, s.Name},
		{KeyActivateReporting, strconv.FormatBool(s.ActivateReporting)},
		{KeyReportAddress, s.ReportAddress},
		{KeyIntervalSecs, strconv.FormatUint(uint64(s.IntervalSecs), 10)},
		{KeyPassive, strconv.FormatBool(s.Passive)},
		{KeyReportBattery, strconv.FormatBool(s.ReportBattery)},
		{KeyReportBatteryAddress, s.ReportBatteryAddress},
	}
}

func (s *Settings) apply(key, value string) error {
	var err error

	switch key {
	case KeyName:
		s.Name = value
	case KeyActivateReporting:
		s.ActivateReporting, err = parseBool(value, s.ActivateReporting)
	case KeyReportAddress:
		s.ReportAddress = value
	case KeyIntervalSecs:
		var v uint64
		if v, err = strconv.ParseUint(value, 10, 32); err == nil {
			s.IntervalSecs = uint32(v)
		}
	case KeyPassive:
		s.Passive, err = parseBool(value, s.Passive)
	case KeyReportBattery:
		s.ReportBattery, err = parseBool(value, s.ReportBattery)
	case KeyReportBatteryAddress:
		s.ReportBatteryAddress = value
	default:
		return fmt.Errorf("unknown key %q", key)
	}

	return err
}

func parseBool(value string, fallback bool) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, err
	}

	return b, nil
}
