package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/domain/coupon"
	"github.com/xenking/cheese-kart/internal/domain/order"
	"github.com/xenking/cheese-kart/internal/money"
)

const (
	takeStockSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	getStockSQL = `SELECT stock FROM products WHERE id = $1`

	createOrderSQL = `INSERT INTO orders (id, customer_id, address_id, guest, items, coupon_code,
			payment_method, subtotal, discount, shipping, surcharge, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order in one transaction: stock is taken for every
// item and the coupon is redeemed before the row is inserted. Items and guest
// details are stored as JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, it := range o.Items {
			if err := takeStock(ctx, tx, it); err != nil {
				return err
			}
		}

		if o.CouponCode != "" {
			tag, err := tx.Exec(ctx, redeemCouponSQL, o.CouponCode)
			if err != nil {
				return errors.Wrapf(err, "redeem coupon %q", o.CouponCode)
			}
			if tag.RowsAffected() == 0 {
				return coupon.ErrCouponUsageLimitReached
			}
		}

		var guest []byte
		if o.Guest != nil {
			guest = checkout.EncodeGuest(*o.Guest)
		}
		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, nullable(o.CustomerID), nullable(o.AddressID), guest, encodeItems(o.Items), nullable(o.CouponCode),
			string(o.PaymentMethod), o.Totals.Subtotal, o.Totals.Discount, o.Totals.Shipping, o.Totals.Surcharge,
			o.Totals.Final, o.Status, o.CreatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "insert order %q", o.ID)
		}
		return nil
	})
}

func takeStock(ctx context.Context, tx pgx.Tx, it order.OrderItem) error {
	tag, err := tx.Exec(ctx, takeStockSQL, it.ProductID, it.Quantity)
	if err != nil {
		return errors.Wrapf(err, "take stock of %q", it.ProductID)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var available int
	if err := tx.QueryRow(ctx, getStockSQL, it.ProductID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &order.ProductNotFoundError{ProductID: it.ProductID}
		}
		return errors.Wrapf(err, "get stock of %q", it.ProductID)
	}
	return &order.OutOfStockError{ProductID: it.ProductID, Available: available}
}

func encodeItems(items []order.OrderItem) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unit_price")
		money.WriteFixed(&e, it.UnitPrice)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
