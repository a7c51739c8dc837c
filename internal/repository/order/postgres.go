package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"storefront-core/internal/db"
	"storefront-core/internal/domain"
)

const orderColumns = `o.id::text, o.user_id, o.order_number, o.total_amount::text, o.status, o.payment_session_id, o.shipping_address, o.notes, o.stock_reserved, o.checkout, o.created_at, o.updated_at`

const itemColumns = `i.id::text, i.order_id::text, i.product_id::text, i.quantity, i.price_at_time::text, i.size, i.created_at`

// notes is append-only; an empty entry leaves it untouched.
const appendNotes = `CASE WHEN $%[1]d = '' THEN notes WHEN notes = '' THEN $%[1]d ELSE notes || E'\n' || $%[1]d END`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &postgresRepo{pool: pool, logger: logger.With(slog.String("repo", "order"))}
}

func (r *postgresRepo) Create(ctx context.Context, order domain.Order) (*domain.Order, error) {
	conn := db.Conn(ctx, r.pool)
	q := `
INSERT INTO orders AS o (id, user_id, order_number, total_amount, status, shipping_address, notes, checkout)
VALUES ($1::uuid, $2, $3, $4::numeric, $5, $6, $7, $8)
RETURNING ` + orderColumns
	created, err := scanOrder(conn.QueryRow(ctx, q,
		order.ID,
		order.UserID,
		order.OrderNumber,
		order.TotalAmount.StringFixed(2),
		string(order.Status),
		order.ShippingAddress,
		order.Notes,
		order.Checkout,
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.ErrorContext(ctx, "insert order", slog.String("user_id", order.UserID), slog.Any("error", err))
		return nil, err
	}

	itemQuery := `
INSERT INTO order_items AS i (order_id, product_id, quantity, price_at_time, size)
VALUES ($1::uuid, $2::uuid, $3, $4::numeric, $5)
RETURNING ` + itemColumns
	for _, it := range order.Items {
		item, err := scanItem(conn.QueryRow(ctx, itemQuery, created.ID, it.ProductID, it.Quantity, it.PriceAtTime.StringFixed(2), it.Size))
		if err != nil {
			r.logger.ErrorContext(ctx, "insert order item", slog.String("order_id", created.ID), slog.Any("error", err))
			return nil, err
		}
		created.Items = append(created.Items, item)
	}

	r.logger.InfoContext(ctx, "created order",
		slog.String("id", created.ID),
		slog.String("order_number", created.OrderNumber),
		slog.Int("items", len(created.Items)),
	)
	return created, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string, forUpdate bool) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id::text = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	o, err := scanOrder(db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "get order", slog.String("id", id), slog.Any("error", err))
		return nil, err
	}
	orders := []domain.Order{*o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *postgresRepo) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filter.CheckoutOnly {
		where = append(where, "o.checkout")
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(o.order_number ILIKE $%[1]d OR o.notes ILIKE $%[1]d)", len(args)))
	}

	q := `SELECT ` + orderColumns + ` FROM orders o`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY o.created_at DESC, o.id`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "list orders", slog.Any("error", err))
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, entry string) (*domain.Order, error) {
	q := `
UPDATE orders AS o
SET status = $3, notes = ` + fmt.Sprintf(appendNotes, 4) + `, updated_at = now()
WHERE o.id::text = $1 AND o.status = $2
RETURNING ` + orderColumns
	o, err := scanOrder(db.Conn(ctx, r.pool).QueryRow(ctx, q, id, string(from), string(to), entry))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "status compare-and-set missed",
				slog.String("id", id), slog.String("from", string(from)), slog.String("to", string(to)))
			return nil, fmt.Errorf("%w: order %s is no longer %s", domain.ErrInvalidTransition, id, from)
		}
		r.logger.ErrorContext(ctx, "update status", slog.String("id", id), slog.Any("error", err))
		return nil, err
	}
	orders := []domain.Order{*o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "order status changed",
		slog.String("id", id), slog.String("from", string(from)), slog.String("to", string(to)))
	return &orders[0], nil
}

func (r *postgresRepo) AppendNote(ctx context.Context, id, entry string) error {
	q := `UPDATE orders SET notes = ` + fmt.Sprintf(appendNotes, 2) + `, updated_at = now() WHERE id::text = $1`
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, id, entry)
	if err != nil {
		r.logger.ErrorContext(ctx, "append note", slog.String("id", id), slog.Any("error", err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) SetPaymentSession(ctx context.Context, id, sessionID string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE orders SET payment_session_id = $2, updated_at = now() WHERE id::text = $1`, id, sessionID)
	if err != nil {
		r.logger.ErrorContext(ctx, "set payment session", slog.String("id", id), slog.Any("error", err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) SetStockReserved(ctx context.Context, id string, reserved bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE orders SET stock_reserved = $2, updated_at = now() WHERE id::text = $1`, id, reserved)
	if err != nil {
		r.logger.ErrorContext(ctx, "set stock reserved", slog.String("id", id), slog.Any("error", err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Statistics(ctx context.Context, since time.Time) (domain.OrderStatistics, error) {
	const q = `
SELECT status,
       count(*),
       COALESCE(sum(total_amount), 0)::text,
       COALESCE(sum(total_amount) FILTER (WHERE created_at >= $1), 0)::text
FROM orders
GROUP BY status`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, since)
	if err != nil {
		r.logger.ErrorContext(ctx, "order statistics", slog.Any("error", err))
		return domain.OrderStatistics{}, err
	}
	defer rows.Close()

	stats := domain.NewOrderStatistics()
	revenueOrders := 0
	for rows.Next() {
		var (
			status        string
			count         int
			total, recent string
		)
		if err := rows.Scan(&status, &count, &total, &recent); err != nil {
			return domain.OrderStatistics{}, err
		}
		st := domain.OrderStatus(status)
		stats.OrdersByStatus[st] = count
		stats.TotalOrders += count
		if !st.Booked() {
			continue
		}
		totalDec, err := decimal.NewFromString(total)
		if err != nil {
			return domain.OrderStatistics{}, err
		}
		recentDec, err := decimal.NewFromString(recent)
		if err != nil {
			return domain.OrderStatistics{}, err
		}
		stats.TotalRevenue = stats.TotalRevenue.Add(totalDec)
		stats.RecentRevenue30Days = stats.RecentRevenue30Days.Add(recentDec)
		revenueOrders += count
	}
	if err := rows.Err(); err != nil {
		return domain.OrderStatistics{}, err
	}
	if revenueOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(revenueOrders))).Round(2)
	}
	stats.Complete()
	return stats, nil
}

func (r *postgresRepo) loadItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []domain.OrderItem{}
	}

	q := `SELECT ` + itemColumns + ` FROM order_items i WHERE i.order_id::text = ANY($1) ORDER BY i.created_at, i.id`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, ids)
	if err != nil {
		r.logger.ErrorContext(ctx, "load order items", slog.Any("error", err))
		return err
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return err
		}
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		total  string
		status string
	)
	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.OrderNumber,
		&total,
		&status,
		&o.PaymentSessionID,
		&o.ShippingAddress,
		&o.Notes,
		&o.StockReserved,
		&o.Checkout,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total for order %s: %w", o.ID, err)
	}
	o.TotalAmount = amount
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func scanItem(row pgx.Row) (domain.OrderItem, error) {
	var (
		it    domain.OrderItem
		price string
	)
	if err := row.Scan(
		&it.ID,
		&it.OrderID,
		&it.ProductID,
		&it.Quantity,
		&price,
		&it.Size,
		&it.CreatedAt,
	); err != nil {
		return domain.OrderItem{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("parse price for order item %s: %w", it.ID, err)
	}
	it.PriceAtTime = p
	return it, nil
}
