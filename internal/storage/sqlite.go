package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Mutating calls are serialized per the all-or-nothing call contract;
	// a single connection keeps sqlite's writer lock out of the picture.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Ledger balances, base-10 strings in token base units
	CREATE TABLE IF NOT EXISTS balances (
		address TEXT PRIMARY KEY,
		amount TEXT NOT NULL DEFAULT '0'
	);

	-- Single-row total supply
	CREATE TABLE IF NOT EXISTS supply (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total TEXT NOT NULL DEFAULT '0'
	);
	INSERT OR IGNORE INTO supply (id, total) VALUES (1, '0');

	-- Registered users
	CREATE TABLE IF NOT EXISTS users (
		address TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		total_rewards TEXT NOT NULL DEFAULT '0',
		successful_matches INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT DEFAULT (datetime('now'))
	);

	-- Verifier set
	CREATE TABLE IF NOT EXISTS verifiers (
		address TEXT PRIMARY KEY,
		added_at TEXT DEFAULT (datetime('now'))
	);

	-- Matches
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY,
		matchmaker TEXT NOT NULL,
		peer1 TEXT NOT NULL,
		peer2 TEXT NOT NULL,
		reward TEXT NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL DEFAULT 0
	);

	-- Protocol counters
	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO counters (name, value) VALUES ('matches_created', 0);
	INSERT OR IGNORE INTO counters (name, value) VALUES ('matches_verified', 0);

	-- Identity keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		is_owner INTEGER NOT NULL DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now')),
		last_used_at TEXT,
		revoked_at TEXT
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_matches_matchmaker ON matches(matchmaker);
	CREATE INDEX IF NOT EXISTS idx_api_keys_address ON api_keys(address);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// balanceTx reads an address balance inside a transaction; 0 when unknown.
func balanceTx(tx *sql.Tx, address string) (*big.Int, error) {
	var amount string
	err := tx.QueryRow("SELECT amount FROM balances WHERE address = ?", address).Scan(&amount)
	if err == sql.ErrNoRows {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(amount)
}

// setBalanceTx upserts an address balance inside a transaction.
func setBalanceTx(tx *sql.Tx, address string, amount *big.Int) error {
	_, err := tx.Exec(`
		INSERT INTO balances (address, amount) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET amount = excluded.amount
	`, address, amount.String())
	return err
}

// GetBalance returns the balance of an address; 0 for unknown addresses.
func (s *SQLiteStore) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var amount string
	err := s.db.QueryRowContext(ctx, "SELECT amount FROM balances WHERE address = ?", address).Scan(&amount)
	if err == sql.ErrNoRows {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(amount)
}

// TotalSupply returns the total minted supply.
func (s *SQLiteStore) TotalSupply(ctx context.Context) (*big.Int, error) {
	var total string
	if err := s.db.QueryRowContext(ctx, "SELECT total FROM supply WHERE id = 1").Scan(&total); err != nil {
		return nil, err
	}
	return parseAmount(total)
}

// Mint credits an address and grows the total supply.
func (s *SQLiteStore) Mint(ctx context.Context, to string, amount *big.Int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := balanceTx(tx, to)
		if err != nil {
			return err
		}
		if err := setBalanceTx(tx, to, new(big.Int).Add(balance, amount)); err != nil {
			return err
		}

		var total string
		if err := tx.QueryRow("SELECT total FROM supply WHERE id = 1").Scan(&total); err != nil {
			return err
		}
		supply, err := parseAmount(total)
		if err != nil {
			return err
		}
		_, err = tx.Exec("UPDATE supply SET total = ? WHERE id = 1", new(big.Int).Add(supply, amount).String())
		return err
	})
}

// Burn debits an address and shrinks the total supply.
func (s *SQLiteStore) Burn(ctx context.Context, from string, amount *big.Int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := balanceTx(tx, from)
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		if err := setBalanceTx(tx, from, new(big.Int).Sub(balance, amount)); err != nil {
			return err
		}

		var total string
		if err := tx.QueryRow("SELECT total FROM supply WHERE id = 1").Scan(&total); err != nil {
			return err
		}
		supply, err := parseAmount(total)
		if err != nil {
			return err
		}
		_, err = tx.Exec("UPDATE supply SET total = ? WHERE id = 1", new(big.Int).Sub(supply, amount).String())
		return err
	})
}

// Transfer moves amount between two addresses, conserving the total supply.
func (s *SQLiteStore) Transfer(ctx context.Context, from, to string, amount *big.Int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return transferTx(tx, from, to, amount)
	})
}

// transferTx performs the balance move inside an open transaction.
func transferTx(tx *sql.Tx, from, to string, amount *big.Int) error {
	fromBalance, err := balanceTx(tx, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := balanceTx(tx, to)
	if err != nil {
		return err
	}
	if err := setBalanceTx(tx, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return setBalanceTx(tx, to, new(big.Int).Add(toBalance, amount))
}

// addVerifierTx adds an address to the verifier set inside an open
// transaction. Re-adding is a no-op; membership is never removed.
func addVerifierTx(tx *sql.Tx, address string) error {
	_, err := tx.Exec("INSERT OR IGNORE INTO verifiers (address) VALUES (?)", address)
	return err
}

// CreateUser inserts a user record, adding it to the verifier set in the
// same transaction when asVerifier is set.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User, asVerifier bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM users WHERE address = ?", user.Address).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return ErrAlreadyExists
		}
		rewards := "0"
		if user.TotalRewardsEarned != nil {
			rewards = user.TotalRewardsEarned.String()
		}
		if _, err := tx.Exec(`
			INSERT INTO users (address, role, total_rewards, successful_matches, active, created_at)
			VALUES (?, ?, ?, ?, ?, datetime('now'))
		`, user.Address, user.Role, rewards, user.SuccessfulMatches, user.Active); err != nil {
			return err
		}
		if asVerifier {
			return addVerifierTx(tx, user.Address)
		}
		return nil
	})
}

// GetUser retrieves a user by address
func (s *SQLiteStore) GetUser(ctx context.Context, address string) (*User, error) {
	query := `
		SELECT address, role, total_rewards, successful_matches, active, created_at
		FROM users
		WHERE address = ?
	`
	var u User
	var rewards string
	err := s.db.QueryRowContext(ctx, query, address).Scan(
		&u.Address, &u.Role, &rewards, &u.SuccessfulMatches, &u.Active, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.TotalRewardsEarned, err = parseAmount(rewards)
	return &u, err
}

// UpdateUserRole overwrites a user's role, adding the address to the
// verifier set in the same transaction when asVerifier is set.
func (s *SQLiteStore) UpdateUserRole(ctx context.Context, address, role string, asVerifier bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec("UPDATE users SET role = ? WHERE address = ?", role, address)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if asVerifier {
			return addVerifierTx(tx, address)
		}
		return nil
	})
}

// IsVerifier reports whether an address is in the verifier set
func (s *SQLiteStore) IsVerifier(ctx context.Context, address string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM verifiers WHERE address = ?", address).Scan(&count)
	return count > 0, err
}

// CreateMatch inserts a match with the next sequential id
func (s *SQLiteStore) CreateMatch(ctx context.Context, m *Match) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRow("SELECT value FROM counters WHERE name = 'matches_created'").Scan(&id); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO matches (id, matchmaker, peer1, peer2, reward, verified, created_at, completed_at)
			VALUES (?, ?, ?, ?, ?, 0, ?, 0)
		`, id, m.Matchmaker, m.Peer1, m.Peer2, m.Reward.String(), m.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec("UPDATE counters SET value = value + 1 WHERE name = 'matches_created'")
		return err
	})
	return id, err
}

// GetMatch retrieves a match by id
func (s *SQLiteStore) GetMatch(ctx context.Context, id int64) (*Match, error) {
	query := `
		SELECT id, matchmaker, peer1, peer2, reward, verified, created_at, completed_at
		FROM matches
		WHERE id = ?
	`
	var m Match
	var reward string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Matchmaker, &m.Peer1, &m.Peer2, &reward, &m.Verified, &m.CreatedAt, &m.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Reward, err = parseAmount(reward)
	return &m, err
}

// VerifyMatch flips a match to verified and distributes its reward atomically.
func (s *SQLiteStore) VerifyMatch(ctx context.Context, id int64, registryAddr string, completedAt int64) (*Match, error) {
	var m Match
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var reward string
		err := tx.QueryRow(`
			SELECT id, matchmaker, peer1, peer2, reward, verified, created_at
			FROM matches
			WHERE id = ?
		`, id).Scan(&m.ID, &m.Matchmaker, &m.Peer1, &m.Peer2, &reward, &m.Verified, &m.CreatedAt)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if m.Verified {
			return ErrAlreadyVerified
		}
		if m.Reward, err = parseAmount(reward); err != nil {
			return err
		}

		// Reward payout aborts the whole verification when the registry
		// cannot cover it.
		if err := transferTx(tx, registryAddr, m.Matchmaker, m.Reward); err != nil {
			return err
		}

		if _, err := tx.Exec("UPDATE matches SET verified = 1, completed_at = ? WHERE id = ?", completedAt, id); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE counters SET value = value + 1 WHERE name = 'matches_verified'"); err != nil {
			return err
		}

		var rewards string
		if err := tx.QueryRow("SELECT total_rewards FROM users WHERE address = ?", m.Matchmaker).Scan(&rewards); err != nil {
			return err
		}
		earned, err := parseAmount(rewards)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE users
			SET total_rewards = ?, successful_matches = successful_matches + 1
			WHERE address = ?
		`, new(big.Int).Add(earned, m.Reward).String(), m.Matchmaker)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.Verified = true
	m.CompletedAt = completedAt
	return &m, nil
}

// GetCounters returns the protocol aggregate counters
func (s *SQLiteStore) GetCounters(ctx context.Context) (int64, int64, error) {
	var created, verified int64
	if err := s.db.QueryRowContext(ctx, "SELECT value FROM counters WHERE name = 'matches_created'").Scan(&created); err != nil {
		return 0, 0, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT value FROM counters WHERE name = 'matches_verified'").Scan(&verified); err != nil {
		return 0, 0, err
	}
	return created, verified, nil
}

// CreateAPIKey creates a new identity key bound to an address. Owner keys
// seed the address into the verifier set so a fresh deployment's operator
// can verify matches.
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name, address string, owner bool) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO api_keys (id, key_hash, name, address, is_owner, created_at)
			VALUES (?, ?, ?, ?, ?, datetime('now'))
		`, id, hash, name, address, owner); err != nil {
			return err
		}
		if owner {
			return addVerifierTx(tx, address)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an identity key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key_hash, name, address, is_owner, created_at
		FROM api_keys
		WHERE key_hash = ? AND revoked_at IS NULL
	`, hash).Scan(&ak.ID, &ak.KeyHash, &ak.Name, &ak.Address, &ak.Owner, &ak.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = datetime('now') WHERE id = ?", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all active identity keys
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, is_owner, created_at, last_used_at
		FROM api_keys
		WHERE revoked_at IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &k.Address, &k.Owner, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.String
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an identity key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = datetime('now') WHERE id = ?", id)
	return err
}
