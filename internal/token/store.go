package token

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/authpipe/authpipe/internal/pipeline"
)

// Store authenticates reference tokens against a SQL table and records
// revocations. Tokens are stored hashed; the presented token is hashed the
// same way and looked up by primary key.
type Store struct {
	db *sqlx.DB
}

var _ Authenticator = (*Store)(nil)
var _ Revoker = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	token_hash  TEXT PRIMARY KEY,
	subject     TEXT NOT NULL,
	token_type  TEXT NOT NULL DEFAULT 'Bearer',
	scopes      TEXT NOT NULL DEFAULT '[]',
	audiences   TEXT NOT NULL DEFAULT '[]',
	presenters  TEXT NOT NULL DEFAULT '[]',
	claims      TEXT NOT NULL DEFAULT '{}',
	expires_at  TIMESTAMP,
	revoked     INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// OpenStore opens (creating if needed) the token store at the given SQLite
// DSN. Use ":memory:" for tests.
func OpenStore(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	for _, stmt := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA foreign_keys=ON;"} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record is one stored reference token.
type Record struct {
	Token      string
	Subject    string
	TokenType  string
	Scopes     []string
	Audiences  []string
	Presenters []string
	Claims     pipeline.Params
	ExpiresAt  time.Time
}

type tokenRow struct {
	TokenHash  string       `db:"token_hash"`
	Subject    string       `db:"subject"`
	TokenType  string       `db:"token_type"`
	Scopes     string       `db:"scopes"`
	Audiences  string       `db:"audiences"`
	Presenters string       `db:"presenters"`
	Claims     string       `db:"claims"`
	ExpiresAt  sql.NullTime `db:"expires_at"`
	Revoked    bool         `db:"revoked"`
}

// HashToken derives the storage key for a token string.
func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// Insert persists a reference token. Claim values survive a round-trip as
// single strings; list-valued claims are stored as their first value.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	if rec.TokenType == "" {
		rec.TokenType = "Bearer"
	}
	claims := make(map[string]string, len(rec.Claims))
	for name, p := range rec.Claims {
		claims[name] = p.String()
	}

	scopes, err := json.Marshal(rec.Scopes)
	if err != nil {
		return fmt.Errorf("failed to encode scopes: %w", err)
	}
	audiences, err := json.Marshal(rec.Audiences)
	if err != nil {
		return fmt.Errorf("failed to encode audiences: %w", err)
	}
	presenters, err := json.Marshal(rec.Presenters)
	if err != nil {
		return fmt.Errorf("failed to encode presenters: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to encode claims: %w", err)
	}

	var expires any
	if !rec.ExpiresAt.IsZero() {
		expires = rec.ExpiresAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tokens (token_hash, subject, token_type, scopes, audiences, presenters, claims, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		HashToken(rec.Token), rec.Subject, rec.TokenType,
		string(scopes), string(audiences), string(presenters), string(claimsJSON), expires,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// Authenticate looks the presented token up by hash and rebuilds its
// principal. Expiration is evaluated against the current time; revoked
// tokens report the same failure reason as expired ones.
func (s *Store) Authenticate(ctx context.Context, tok string) (*pipeline.Principal, error) {
	if tok == "" {
		return nil, &AuthFailure{Reason: FailureMissing}
	}

	var row tokenRow
	err := s.db.GetContext(ctx, &row, `
		SELECT token_hash, subject, token_type, scopes, audiences, presenters, claims, expires_at, revoked
		FROM tokens WHERE token_hash = ?`, HashToken(tok))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &AuthFailure{Reason: FailureMalformed, Detail: "unknown token"}
	}
	if err != nil {
		return nil, &AuthFailure{Reason: FailureSignature, Detail: err.Error()}
	}

	if row.Revoked {
		return nil, &AuthFailure{Reason: FailureExpired, Detail: "token revoked"}
	}
	if row.ExpiresAt.Valid && time.Now().After(row.ExpiresAt.Time) {
		return nil, &AuthFailure{Reason: FailureExpired}
	}

	var scopes, audiences, presenters []string
	var claims map[string]string
	for _, dec := range []struct {
		raw string
		dst any
	}{
		{row.Scopes, &scopes},
		{row.Audiences, &audiences},
		{row.Presenters, &presenters},
		{row.Claims, &claims},
	} {
		if err := json.Unmarshal([]byte(dec.raw), dec.dst); err != nil {
			return nil, &AuthFailure{Reason: FailureMalformed, Detail: "corrupt token record"}
		}
	}

	claimParams := make(pipeline.Params, len(claims))
	for name, v := range claims {
		claimParams[name] = pipeline.StringParam(v)
	}

	p := &pipeline.Principal{
		Subject:    row.Subject,
		TokenType:  row.TokenType,
		Scopes:     scopes,
		Audiences:  audiences,
		Presenters: presenters,
		Claims:     claimParams,
	}
	if row.ExpiresAt.Valid {
		p.ExpiresAt = row.ExpiresAt.Time
	}
	return p, nil
}

// Revoke marks the token revoked and reports whether a row matched.
func (s *Store) Revoke(ctx context.Context, tok string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE tokens SET revoked = 1 WHERE token_hash = ?`, HashToken(tok))
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read revocation result: %w", err)
	}
	return n > 0, nil
}
