package credential

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgQuerier is the subset of *pgxpool.Pool and *pgx.Conn used by PostgresStore.
type PgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ErrInvalidTable is returned for table names that are not plain lowercase identifiers.
var ErrInvalidTable = errors.New("invalid credential table name")

// PostgresStore keeps one row per session with nullable columns for each credential.
// Reads and writes are single statements, which gives per-session atomicity.
// Clear follows its update with a delete of the row once both columns are empty.
type PostgresStore struct {
	db     PgQuerier
	table  string
	sealer *Sealer
}

// NewPostgresStore returns a store over db using table (default "goguard_credentials").
func NewPostgresStore(db PgQuerier, table string, sealer *Sealer) (*PostgresStore, error) {
	if table == "" {
		table = "goguard_credentials"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, ErrInvalidTable
	}
	return &PostgresStore{db: db, table: table, sealer: sealer}, nil
}

// EnsureSchema creates the credential table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
	session_id TEXT PRIMARY KEY,
	refresh_credential TEXT,
	access_credential TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func column(kind Kind) string {
	if kind == KindRefresh {
		return "refresh_credential"
	}
	return "access_credential"
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string, kind Kind) (string, bool, error) {
	if err := checkArgs(sessionID, kind); err != nil {
		return "", false, err
	}

	var raw *string
	err := s.db.QueryRow(ctx,
		`SELECT `+column(kind)+` FROM `+s.table+` WHERE session_id = $1`,
		sessionID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if raw == nil || *raw == "" {
		return "", false, nil
	}

	value, err := s.sealer.open(sessionID, kind, *raw)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, sessionID string, kind Kind, value string) error {
	if err := checkArgs(sessionID, kind); err != nil {
		return err
	}
	if value == "" {
		return s.Clear(ctx, sessionID, kind)
	}

	sealed, err := s.sealer.seal(sessionID, kind, value)
	if err != nil {
		return err
	}

	col := column(kind)
	_, err = s.db.Exec(ctx,
		`INSERT INTO `+s.table+` (session_id, `+col+`, updated_at) VALUES ($1, $2, now())
ON CONFLICT (session_id) DO UPDATE SET `+col+` = EXCLUDED.`+col+`, updated_at = now()`,
		sessionID, sealed,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) SetPair(ctx context.Context, sessionID, refresh, access string) error {
	if sessionID == "" {
		return ErrEmptySession
	}

	var sealedRefresh, sealedAccess *string
	if refresh != "" {
		v, err := s.sealer.seal(sessionID, KindRefresh, refresh)
		if err != nil {
			return err
		}
		sealedRefresh = &v
	}
	if access != "" {
		v, err := s.sealer.seal(sessionID, KindAccess, access)
		if err != nil {
			return err
		}
		sealedAccess = &v
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.table+` (session_id, refresh_credential, access_credential, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (session_id) DO UPDATE SET
	refresh_credential = EXCLUDED.refresh_credential,
	access_credential = EXCLUDED.access_credential,
	updated_at = now()`,
		sessionID, sealedRefresh, sealedAccess,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, sessionID string, kind Kind) error {
	if err := checkArgs(sessionID, kind); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`UPDATE `+s.table+` SET `+column(kind)+` = NULL, updated_at = now() WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	// A session with neither credential is gone, as in the other stores. The
	// predicate is re-checked under the row lock, so a concurrent Set wins.
	_, err = s.db.Exec(ctx,
		`DELETE FROM `+s.table+` WHERE session_id = $1 AND refresh_credential IS NULL AND access_credential IS NULL`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) ClearAll(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM `+s.table+` WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
