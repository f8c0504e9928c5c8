package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
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
	INSERT INTO supply (id, total) VALUES (1, '0') ON CONFLICT (id) DO NOTHING;

	-- Registered users
	CREATE TABLE IF NOT EXISTS users (
		address TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		total_rewards TEXT NOT NULL DEFAULT '0',
		successful_matches BIGINT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	-- Verifier set
	CREATE TABLE IF NOT EXISTS verifiers (
		address TEXT PRIMARY KEY,
		added_at TIMESTAMPTZ DEFAULT NOW()
	);

	-- Matches
	CREATE TABLE IF NOT EXISTS matches (
		id BIGINT PRIMARY KEY,
		matchmaker TEXT NOT NULL,
		peer1 TEXT NOT NULL,
		peer2 TEXT NOT NULL,
		reward TEXT NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		completed_at BIGINT NOT NULL DEFAULT 0
	);

	-- Protocol counters
	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value BIGINT NOT NULL DEFAULT 0
	);
	INSERT INTO counters (name, value) VALUES ('matches_created', 0) ON CONFLICT (name) DO NOTHING;
	INSERT INTO counters (name, value) VALUES ('matches_verified', 0) ON CONFLICT (name) DO NOTHING;

	-- Identity keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		is_owner BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
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
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
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

// pgBalanceTx reads a balance row with a row lock; 0 when unknown.
func pgBalanceTx(tx *sql.Tx, address string) (*big.Int, error) {
	var amount string
	err := tx.QueryRow("SELECT amount FROM balances WHERE address = $1 FOR UPDATE", address).Scan(&amount)
	if err == sql.ErrNoRows {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(amount)
}

func pgSetBalanceTx(tx *sql.Tx, address string, amount *big.Int) error {
	_, err := tx.Exec(`
		INSERT INTO balances (address, amount) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET amount = EXCLUDED.amount
	`, address, amount.String())
	return err
}

// GetBalance returns the balance of an address; 0 for unknown addresses.
func (s *PostgresStore) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var amount string
	err := s.db.QueryRowContext(ctx, "SELECT amount FROM balances WHERE address = $1", address).Scan(&amount)
	if err == sql.ErrNoRows {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(amount)
}

// TotalSupply returns the total minted supply.
func (s *PostgresStore) TotalSupply(ctx context.Context) (*big.Int, error) {
	var total string
	if err := s.db.QueryRowContext(ctx, "SELECT total FROM supply WHERE id = 1").Scan(&total); err != nil {
		return nil, err
	}
	return parseAmount(total)
}

// Mint credits an address and grows the total supply.
func (s *PostgresStore) Mint(ctx context.Context, to string, amount *big.Int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := pgBalanceTx(tx, to)
		if err != nil {
			return err
		}
		if err := pgSetBalanceTx(tx, to, new(big.Int).Add(balance, amount)); err != nil {
			return err
		}

		var total string
		if err := tx.QueryRow("SELECT total FROM supply WHERE id = 1 FOR UPDATE").Scan(&total); err != nil {
			return err
		}
		supply, err := parseAmount(total)
		if err != nil {
			return err
		}
		_, err = tx.Exec("UPDATE supply SET total = $1 WHERE id = 1", new(big.Int).Add(supply, amount).String())
		return err
	})
}

// Burn debits an address and shrinks the total supply.
func (s *PostgresStore) Burn(ctx context.Context, from string, amount *big.Int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := pgBalanceTx(tx, from)
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		if err := pgSetBalanceTx(tx, from, new(big.Int).Sub(balance, amount)); err != nil {
			return err
		}

		var total string
		if err := tx.QueryRow("SELECT total FROM supply WHERE id = 1 FOR UPDATE").Scan(&total); err != nil {
			return err
		}
		supply, err := parseAmount(total)
		if err != nil {
			return err
		}
		_, err = tx.Exec("UPDATE supply SET total = $1 WHERE id = 1", new(big.Int).Sub(supply, amount).String())
		return err
	})
}

// Transfer moves amount between two addresses, conserving the total supply.
func (s *PostgresStore) Transfer(ctx context.Context, from, to string, amount *big.Int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return pgTransferTx(tx, from, to, amount)
	})
}

func pgTransferTx(tx *sql.Tx, from, to string, amount *big.Int) error {
	fromBalance, err := pgBalanceTx(tx, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := pgBalanceTx(tx, to)
	if err != nil {
		return err
	}
	if err := pgSetBalanceTx(tx, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return pgSetBalanceTx(tx, to, new(big.Int).Add(toBalance, amount))
}

// pgAddVerifierTx adds an address to the verifier set inside an open
// transaction. Re-adding is a no-op; membership is never removed.
func pgAddVerifierTx(tx *sql.Tx, address string) error {
	_, err := tx.Exec("INSERT INTO verifiers (address) VALUES ($1) ON CONFLICT (address) DO NOTHING", address)
	return err
}

// CreateUser inserts a user record, adding it to the verifier set in the
// same transaction when asVerifier is set.
func (s *PostgresStore) CreateUser(ctx context.Context, user *User, asVerifier bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM users WHERE address = $1", user.Address).Scan(&exists); err != nil {
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
			INSERT INTO users (address, role, total_rewards, successful_matches, active)
			VALUES ($1, $2, $3, $4, $5)
		`, user.Address, user.Role, rewards, user.SuccessfulMatches, user.Active); err != nil {
			return err
		}
		if asVerifier {
			return pgAddVerifierTx(tx, user.Address)
		}
		return nil
	})
}

// GetUser retrieves a user by address
func (s *PostgresStore) GetUser(ctx context.Context, address string) (*User, error) {
	query := `
		SELECT address, role, total_rewards, successful_matches, active, created_at::TEXT
		FROM users
		WHERE address = $1
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
func (s *PostgresStore) UpdateUserRole(ctx context.Context, address, role string, asVerifier bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec("UPDATE users SET role = $1 WHERE address = $2", role, address)
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
			return pgAddVerifierTx(tx, address)
		}
		return nil
	})
}

// IsVerifier reports whether an address is in the verifier set
func (s *PostgresStore) IsVerifier(ctx context.Context, address string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM verifiers WHERE address = $1", address).Scan(&count)
	return count > 0, err
}

// CreateMatch inserts a match with the next sequential id
func (s *PostgresStore) CreateMatch(ctx context.Context, m *Match) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRow("SELECT value FROM counters WHERE name = 'matches_created' FOR UPDATE").Scan(&id); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO matches (id, matchmaker, peer1, peer2, reward, verified, created_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6, 0)
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
func (s *PostgresStore) GetMatch(ctx context.Context, id int64) (*Match, error) {
	query := `
		SELECT id, matchmaker, peer1, peer2, reward, verified, created_at, completed_at
		FROM matches
		WHERE id = $1
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
func (s *PostgresStore) VerifyMatch(ctx context.Context, id int64, registryAddr string, completedAt int64) (*Match, error) {
	var m Match
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var reward string
		err := tx.QueryRow(`
			SELECT id, matchmaker, peer1, peer2, reward, verified, created_at
			FROM matches
			WHERE id = $1
			FOR UPDATE
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

		if err := pgTransferTx(tx, registryAddr, m.Matchmaker, m.Reward); err != nil {
			return err
		}

		if _, err := tx.Exec("UPDATE matches SET verified = TRUE, completed_at = $1 WHERE id = $2", completedAt, id); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE counters SET value = value + 1 WHERE name = 'matches_verified'"); err != nil {
			return err
		}

		var rewards string
		if err := tx.QueryRow("SELECT total_rewards FROM users WHERE address = $1 FOR UPDATE", m.Matchmaker).Scan(&rewards); err != nil {
			return err
		}
		earned, err := parseAmount(rewards)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE users
			SET total_rewards = $1, successful_matches = successful_matches + 1
			WHERE address = $2
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
func (s *PostgresStore) GetCounters(ctx context.Context) (int64, int64, error) {
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
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name, address string, owner bool) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO api_keys (id, key_hash, name, address, is_owner)
			VALUES ($1, $2, $3, $4, $5)
		`, id, hash, name, address, owner); err != nil {
			return err
		}
		if owner {
			return pgAddVerifierTx(tx, address)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an identity key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key_hash, name, address, is_owner, created_at::TEXT
		FROM api_keys
		WHERE key_hash = $1 AND revoked_at IS NULL
	`, hash).Scan(&ak.ID, &ak.KeyHash, &ak.Name, &ak.Address, &ak.Owner, &ak.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all active identity keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, is_owner, created_at::TEXT, last_used_at::TEXT
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
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id = $1", id)
	return err
}
