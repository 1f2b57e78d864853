package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ordersChannel = "orders_changed"

// OrderStore keeps each order as a JSONB document next to the columns queries filter on.
// Writes fire a NOTIFY on orders_changed, which Subscribe listens to on a dedicated
// connection.
type OrderStore struct {
	db  *sql.DB
	dsn string
}

func NewOrderStore(db *sql.DB, dsn string) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &OrderStore{db: db, dsn: dsn}, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", orders.ErrStoreUnavailable, err)
}

func (s *OrderStore) Create(ctx context.Context, o orders.Order) (orders.Order, error) {
	if err := orders.CheckStatus(o); err != nil {
		return orders.Order{}, err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Version = 1
	doc, err := json.Marshal(o)
	if err != nil {
		return orders.Order{}, fmt.Errorf("encoding order: %w", err)
	}

	query := `
		INSERT INTO orders (id, user_id, status, payment_status, created_at, version, doc)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, o.ID, o.UserID, string(o.Status), string(o.PaymentStatus),
		nullTime(o.CreatedAt), doc)
	if err != nil {
		return orders.Order{}, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return orders.Order{}, unavailable(err)
	}
	if n == 0 {
		return orders.Order{}, fmt.Errorf("%w: order %s already exists", orders.ErrConflict, o.ID)
	}
	return o, nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (orders.Order, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT doc, version FROM orders WHERE id = $1`, id).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrNotFound, id)
		}
		return orders.Order{}, unavailable(err)
	}
	return decodeOrder(doc, version)
}

// decodeOrder rejects documents whose status is outside the enumeration, so a bad row
// surfaces as an error instead of flowing into the lifecycle.
func decodeOrder(doc []byte, version int64) (orders.Order, error) {
	var o orders.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return orders.Order{}, fmt.Errorf("decoding order: %w", err)
	}
	o.Version = version
	return o, nil
}

// filterClause renders f as a WHERE clause with positional arguments.
func filterClause(f orders.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query returns matching orders newest first; undated orders sort last.
func (s *OrderStore) Query(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	where, args := filterClause(f)
	query := `SELECT doc, version FROM orders` + where + ` ORDER BY created_at DESC NULLS LAST, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := make([]orders.Order, 0)
	for rows.Next() {
		var (
			doc     []byte
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, unavailable(err)
		}
		o, err := decodeOrder(doc, version)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *OrderStore) Update(ctx context.Context, id string, expectedVersion int64, o orders.Order) (orders.Order, error) {
	if err := orders.CheckStatus(o); err != nil {
		return orders.Order{}, err
	}
	o.ID = id
	o.Version = expectedVersion + 1
	doc, err := json.Marshal(o)
	if err != nil {
		return orders.Order{}, fmt.Errorf("encoding order: %w", err)
	}

	query := `
		UPDATE orders
		SET user_id = $2, status = $3, payment_status = $4, created_at = $5, doc = $6, version = version + 1
		WHERE id = $1 AND version = $7
	`
	res, err := s.db.ExecContext(ctx, query, id, o.UserID, string(o.Status), string(o.PaymentStatus),
		nullTime(o.CreatedAt), doc, expectedVersion)
	if err != nil {
		return orders.Order{}, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return orders.Order{}, unavailable(err)
	}
	if n == 1 {
		return o, nil
	}

	var current int64
	err = s.db.QueryRowContext(ctx, `SELECT version FROM orders WHERE id = $1`, id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrNotFound, id)
	case err != nil:
		return orders.Order{}, unavailable(err)
	}
	return orders.Order{}, fmt.Errorf("%w: %s at version %d, expected %d", orders.ErrConflict, id, current, expectedVersion)
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", orders.ErrNotFound, id)
	}
	return nil
}

// Subscribe listens for change notifications and re-runs the query after each one.
func (s *OrderStore) Subscribe(ctx context.Context, f orders.Filter, onChange func([]orders.Order)) error {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return unavailable(err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+ordersChannel); err != nil {
		return unavailable(err)
	}

	list, err := s.Query(ctx, f)
	if err != nil {
		return err
	}
	onChange(list)

	for {
		if _, err := conn.WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("order change feed lost",
				slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
				slog.String(logkey.ERROR, err.Error()))
			return unavailable(err)
		}
		list, err := s.Query(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		onChange(list)
	}
}
