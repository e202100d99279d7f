package repository

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepository maps client retry keys to the booking they produced.
// A key is claimed atomically before the booking is created: of two racing
// requests with the same key, exactly one wins the claim and creates the
// booking, the other observes the claim and waits for (or returns) the
// winner's booking.
type IdempotencyRepository interface {
	// Claim reserves key for this request. claimed is true when this caller
	// won; otherwise bookingID carries the winner's booking, or 0 when the
	// winner is still mid-create.
	Claim(ctx context.Context, key string) (claimed bool, bookingID int64, err error)
	// Attach records the created booking under a previously claimed key.
	Attach(ctx context.Context, key string, bookingID int64) error
	// Release frees a claim whose create failed, so a retry can claim again.
	// Claims already attached to a booking are left alone.
	Release(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type idempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) IdempotencyRepository {
	return &idempotencyRepository{pool: pool}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum)
}

func (r *idempotencyRepository) Claim(ctx context.Context, key string) (bool, int64, error) {
	keyHash := hashKey(key)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// The insert and the duplicate check must be one statement: a SELECT
	// followed by an INSERT would let two racing requests both see no row
	// and both create a booking.
	const claimQuery = `
		INSERT INTO booking_idempotency (key_hash, booking_id, expires_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (key_hash) DO NOTHING
		RETURNING booking_id`

	var id int64
	err := r.pool.QueryRow(ctx, claimQuery, keyHash, time.Now().Add(24*time.Hour)).Scan(&id)
	if err == nil {
		return true, 0, nil
	}
	if err != pgx.ErrNoRows {
		return false, 0, err
	}

	// Lost the claim; report what the winner recorded so far.
	const winnerQuery = `SELECT booking_id FROM booking_idempotency WHERE key_hash = $1`
	err = r.pool.QueryRow(ctx, winnerQuery, keyHash).Scan(&id)
	if err == pgx.ErrNoRows {
		// Winner's claim expired and was cleaned between the two queries.
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	return false, id, nil
}

func (r *idempotencyRepository) Attach(ctx context.Context, key string, bookingID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	const query = `UPDATE booking_idempotency SET booking_id = $2 WHERE key_hash = $1`
	_, err := r.pool.Exec(ctx, query, hashKey(key), bookingID)
	return err
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	const query = `DELETE FROM booking_idempotency WHERE key_hash = $1 AND booking_id = 0`
	_, err := r.pool.Exec(ctx, query, hashKey(key))
	return err
}

func (r *idempotencyRepository) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	const query = `DELETE FROM booking_idempotency WHERE expires_at < now()`
	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
