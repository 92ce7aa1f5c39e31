package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cheese-kart/internal/domain/auth"
)

const (
	getCustomerByHashSQL = `SELECT id, name, email, token_hash
		FROM customers WHERE token_hash = $1 AND active = TRUE`

	getAddressSQL = `SELECT id, customer_id, label, street, city, postal_code, country
		FROM addresses WHERE id = $1 AND customer_id = $2`

	upsertCustomerSQL = `INSERT INTO customers (id, name, email, token_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, token_hash = EXCLUDED.token_hash, active = TRUE`

	upsertAddressSQL = `INSERT INTO addresses (id, customer_id, label, street, city, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label, street = EXCLUDED.street, city = EXCLUDED.city,
			postal_code = EXCLUDED.postal_code, country = EXCLUDED.country`
)

var _ auth.Repository = (*CustomerRepository)(nil)

// CustomerRepository provides customer and address lookups backed by
// PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindByTokenHash looks up an active customer by the HMAC hash of their token.
func (r *CustomerRepository) FindByTokenHash(ctx context.Context, hash string) (*auth.Customer, error) {
	var c auth.Customer
	err := r.pool.QueryRow(ctx, getCustomerByHashSQL, hash).Scan(&c.ID, &c.Name, &c.Email, &c.TokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, errors.Wrap(err, "find customer by token hash")
	}
	return &c, nil
}

// FindAddress returns the address only when it belongs to customerID.
func (r *CustomerRepository) FindAddress(ctx context.Context, customerID, addressID string) (*auth.Address, error) {
	var a auth.Address
	err := r.pool.QueryRow(ctx, getAddressSQL, addressID, customerID).Scan(
		&a.ID, &a.CustomerID, &a.Label, &a.Street, &a.City, &a.PostalCode, &a.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find address %q", addressID)
	}
	return &a, nil
}

// UpsertCustomer stores a customer with its addresses.
func (r *CustomerRepository) UpsertCustomer(ctx context.Context, c auth.Customer, addresses []auth.Address) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertCustomerSQL, c.ID, c.Name, c.Email, c.TokenHash); err != nil {
			return errors.Wrapf(err, "upsert customer %q", c.ID)
		}
		for _, a := range addresses {
			if _, err := tx.Exec(ctx, upsertAddressSQL,
				a.ID, c.ID, a.Label, a.Street, a.City, a.PostalCode, a.Country,
			); err != nil {
				return errors.Wrapf(err, "upsert address %q", a.ID)
			}
		}
		return nil
	})
}
