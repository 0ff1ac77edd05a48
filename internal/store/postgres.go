package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore is a Store backed by PostgreSQL via database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against the given DSN.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the tables this service owns if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id          TEXT PRIMARY KEY,
			payment_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			addr_name         TEXT NOT NULL DEFAULT '',
			addr_phone        TEXT NOT NULL DEFAULT '',
			addr_email        TEXT NOT NULL DEFAULT '',
			addr_line1        TEXT NOT NULL DEFAULT '',
			addr_city         TEXT NOT NULL DEFAULT '',
			addr_state        TEXT NOT NULL DEFAULT '',
			addr_postal_code  TEXT NOT NULL DEFAULT '',
			addr_country      TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS shipments (
			order_id        TEXT PRIMARY KEY REFERENCES orders(order_id),
			awb_no          TEXT NOT NULL DEFAULT '',
			tracking_id     TEXT NOT NULL DEFAULT '',
			courier         TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			shipping_status TEXT NOT NULL,
			consignee_name  TEXT NOT NULL DEFAULT '',
			consignee_phone TEXT NOT NULL DEFAULT '',
			consignee_email TEXT NOT NULL DEFAULT '',
			weight_kg       DOUBLE PRECISION NOT NULL DEFAULT 0,
			attempt_count   INTEGER NOT NULL DEFAULT 0,
			last_error      TEXT NOT NULL DEFAULT '',
			generated_at    TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_status ON shipments(status)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, payment_confirmed, addr_name, addr_phone, addr_email,
		       addr_line1, addr_city, addr_state, addr_postal_code, addr_country, created_at
		FROM orders WHERE order_id = $1`, orderID)

	var o Order
	err := row.Scan(&o.OrderID, &o.PaymentConfirmed,
		&o.ShippingAddress.Name, &o.ShippingAddress.Phone, &o.ShippingAddress.Email,
		&o.ShippingAddress.Line1, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) PutOrder(ctx context.Context, order *Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, payment_confirmed, addr_name, addr_phone, addr_email,
		                    addr_line1, addr_city, addr_state, addr_postal_code, addr_country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO UPDATE SET
			payment_confirmed = EXCLUDED.payment_confirmed,
			addr_name = EXCLUDED.addr_name,
			addr_phone = EXCLUDED.addr_phone,
			addr_email = EXCLUDED.addr_email,
			addr_line1 = EXCLUDED.addr_line1,
			addr_city = EXCLUDED.addr_city,
			addr_state = EXCLUDED.addr_state,
			addr_postal_code = EXCLUDED.addr_postal_code,
			addr_country = EXCLUDED.addr_country`,
		order.OrderID, order.PaymentConfirmed,
		order.ShippingAddress.Name, order.ShippingAddress.Phone, order.ShippingAddress.Email,
		order.ShippingAddress.Line1, order.ShippingAddress.City, order.ShippingAddress.State,
		order.ShippingAddress.PostalCode, order.ShippingAddress.Country, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting order: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShipment(ctx context.Context, orderID string) (*Shipment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, awb_no, tracking_id, courier, status, shipping_status,
		       consignee_name, consignee_phone, consignee_email, weight_kg,
		       attempt_count, last_error, generated_at, created_at, updated_at
		FROM shipments WHERE order_id = $1`, orderID)

	sh, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning shipment: %w", err)
	}
	return sh, nil
}

func (s *PostgresStore) CreateShipment(ctx context.Context, shipment *Shipment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shipments (order_id, awb_no, tracking_id, courier, status, shipping_status,
		                       consignee_name, consignee_phone, consignee_email, weight_kg,
		                       attempt_count, last_error, generated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		shipment.OrderID, shipment.AWBNo, shipment.TrackingID, shipment.Courier,
		shipment.Status, shipment.ShippingStatus,
		shipment.ConsigneeName, shipment.ConsigneePhone, shipment.ConsigneeEmail, shipment.WeightKg,
		shipment.AttemptCount, shipment.LastError, shipment.GeneratedAt,
		shipment.CreatedAt, shipment.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting shipment: %w", err)
	}
	return nil
}

// UpdateShipment overwrites the row inside a transaction guarded on
// the current status, so the database backstops the label state
// machine when multiple instances race past the in-process locks.
func (s *PostgresStore) UpdateShipment(ctx context.Context, shipment *Shipment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning shipment update: %w", err)
	}
	defer tx.Rollback()

	var current LabelStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM shipments WHERE order_id = $1 FOR UPDATE`,
		shipment.OrderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locking shipment: %w", err)
	}
	if !transitionAllowed(current, shipment.Status) {
		return ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE shipments SET
			awb_no = $2, tracking_id = $3, courier = $4, status = $5, shipping_status = $6,
			consignee_name = $7, consignee_phone = $8, consignee_email = $9, weight_kg = $10,
			attempt_count = $11, last_error = $12, generated_at = $13, updated_at = $14
		WHERE order_id = $1`,
		shipment.OrderID, shipment.AWBNo, shipment.TrackingID, shipment.Courier,
		shipment.Status, shipment.ShippingStatus,
		shipment.ConsigneeName, shipment.ConsigneePhone, shipment.ConsigneeEmail, shipment.WeightKg,
		shipment.AttemptCount, shipment.LastError, shipment.GeneratedAt, shipment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating shipment: %w", err)
	}
	return tx.Commit()
}

// ListPendingShipments runs one query so the page and the total come
// from the same snapshot.
func (s *PostgresStore) ListPendingShipments(ctx context.Context, offset, limit int) ([]PendingShipment, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.order_id, o.payment_confirmed, o.addr_name, o.addr_phone, o.addr_email,
		       o.addr_line1, o.addr_city, o.addr_state, o.addr_postal_code, o.addr_country, o.created_at,
		       sh.order_id, sh.awb_no, sh.tracking_id, sh.courier, sh.status, sh.shipping_status,
		       sh.consignee_name, sh.consignee_phone, sh.consignee_email, sh.weight_kg,
		       sh.attempt_count, sh.last_error, sh.generated_at, sh.created_at, sh.updated_at,
		       COUNT(*) OVER() AS total
		FROM shipments sh
		JOIN orders o ON o.order_id = sh.order_id
		WHERE sh.status IN ($1, $2)
		ORDER BY o.created_at ASC
		OFFSET $3 LIMIT $4`,
		LabelNotCreated, LabelFailed, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing pending shipments: %w", err)
	}
	defer rows.Close()

	items := []PendingShipment{}
	total := 0
	for rows.Next() {
		var p PendingShipment
		var generatedAt sql.NullTime
		err := rows.Scan(
			&p.Order.OrderID, &p.Order.PaymentConfirmed,
			&p.Order.ShippingAddress.Name, &p.Order.ShippingAddress.Phone, &p.Order.ShippingAddress.Email,
			&p.Order.ShippingAddress.Line1, &p.Order.ShippingAddress.City, &p.Order.ShippingAddress.State,
			&p.Order.ShippingAddress.PostalCode, &p.Order.ShippingAddress.Country, &p.Order.CreatedAt,
			&p.Shipment.OrderID, &p.Shipment.AWBNo, &p.Shipment.TrackingID, &p.Shipment.Courier,
			&p.Shipment.Status, &p.Shipment.ShippingStatus,
			&p.Shipment.ConsigneeName, &p.Shipment.ConsigneePhone, &p.Shipment.ConsigneeEmail,
			&p.Shipment.WeightKg, &p.Shipment.AttemptCount, &p.Shipment.LastError,
			&generatedAt, &p.Shipment.CreatedAt, &p.Shipment.UpdatedAt, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning pending shipment: %w", err)
		}
		if generatedAt.Valid {
			t := generatedAt.Time
			p.Shipment.GeneratedAt = &t
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing pending shipments: %w", err)
	}

	// OFFSET past the last row returns no rows, so the window total is
	// lost; fetch it separately in that case.
	if len(items) == 0 {
		row := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM shipments WHERE status IN ($1, $2)`,
			LabelNotCreated, LabelFailed)
		if err := row.Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("counting pending shipments: %w", err)
		}
	}
	return items, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*Shipment, error) {
	var sh Shipment
	var generatedAt sql.NullTime
	err := row.Scan(&sh.OrderID, &sh.AWBNo, &sh.TrackingID, &sh.Courier,
		&sh.Status, &sh.ShippingStatus,
		&sh.ConsigneeName, &sh.ConsigneePhone, &sh.ConsigneeEmail, &sh.WeightKg,
		&sh.AttemptCount, &sh.LastError, &generatedAt, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if generatedAt.Valid {
		t := generatedAt.Time
		sh.GeneratedAt = &t
	}
	return &sh, nil
}

var _ Store = (*PostgresStore)(nil)
