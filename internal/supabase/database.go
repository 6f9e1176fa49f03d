package supabase

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"reprography-backend/internal/models"
)

// DatabaseClient is the CRUD facade over the orders and push_subscriptions
// tables in the Supabase-hosted Postgres.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) CreateOrder(order *models.Order) (*models.Order, error) {
	var created models.Order
	err := d.db.QueryRow(`
		INSERT INTO orders (id, user_id, guest_session_id, file_name, file_path, quantity, paper_size, color_mode, total_cost, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, user_id, guest_session_id, file_name, file_path, quantity, paper_size, color_mode, total_cost, status, created_at
	`, order.ID, order.UserID, order.GuestSessionID, order.FileName, order.FilePath,
		order.Quantity, order.PaperSize, order.ColorMode, order.TotalCost, order.Status).Scan(
		&created.ID, &created.UserID, &created.GuestSessionID, &created.FileName, &created.FilePath,
		&created.Quantity, &created.PaperSize, &created.ColorMode, &created.TotalCost, &created.Status, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return &created, nil
}

// ListUserOrders returns the orders owned by an authenticated user, newest
// first. The guest_session_id IS NULL check keeps the owner partition
// strict even if a guest token string ever matched a user id.
func (d *DatabaseClient) ListUserOrders(userID string) ([]models.Order, error) {
	return d.listOrders(`
		SELECT id, user_id, guest_session_id, file_name, file_path, quantity, paper_size, color_mode, total_cost, status, created_at
		FROM orders
		WHERE user_id = $1 AND guest_session_id IS NULL
		ORDER BY created_at DESC
	`, userID)
}

// ListGuestOrders returns the orders tied to a guest session token, newest
// first.
func (d *DatabaseClient) ListGuestOrders(guestSessionID string) ([]models.Order, error) {
	return d.listOrders(`
		SELECT id, user_id, guest_session_id, file_name, file_path, quantity, paper_size, color_mode, total_cost, status, created_at
		FROM orders
		WHERE user_id IS NULL AND guest_session_id = $1
		ORDER BY created_at DESC
	`, guestSessionID)
}

// ListAllOrders returns every order, newest first. Admin view only.
func (d *DatabaseClient) ListAllOrders() ([]models.Order, error) {
	return d.listOrders(`
		SELECT id, user_id, guest_session_id, file_name, file_path, quantity, paper_size, color_mode, total_cost, status, created_at
		FROM orders
		ORDER BY created_at DESC
	`)
}

func (d *DatabaseClient) listOrders(query string, args ...interface{}) ([]models.Order, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID, &order.UserID, &order.GuestSessionID, &order.FileName, &order.FilePath,
			&order.Quantity, &order.PaperSize, &order.ColorMode, &order.TotalCost, &order.Status, &order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// UpdateOrderStatus sets the order's status and returns the updated row so
// the caller can see the owner and file name for notification dispatch.
func (d *DatabaseClient) UpdateOrderStatus(orderID uuid.UUID, status string) (*models.Order, error) {
	var order models.Order
	err := d.db.QueryRow(`
		UPDATE orders
		SET status = $1
		WHERE id = $2
		RETURNING id, user_id, guest_session_id, file_name, file_path, quantity, paper_size, color_mode, total_cost, status, created_at
	`, status, orderID).Scan(
		&order.ID, &order.UserID, &order.GuestSessionID, &order.FileName, &order.FilePath,
		&order.Quantity, &order.PaperSize, &order.ColorMode, &order.TotalCost, &order.Status, &order.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	return &order, nil
}

// UpsertPushSubscription stores the subscription blob for a user, replacing
// any prior registration. Last write wins.
func (d *DatabaseClient) UpsertPushSubscription(userID, subscription string) error {
	_, err := d.db.Exec(`
		INSERT INTO push_subscriptions (user_id, subscription, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET subscription = EXCLUDED.subscription, created_at = EXCLUDED.created_at
	`, userID, subscription)
	if err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	return nil
}

// GetPushSubscription returns the stored subscription blob for a user, or
// sql.ErrNoRows when the user never subscribed.
func (d *DatabaseClient) GetPushSubscription(userID string) (string, error) {
	var subscription string
	err := d.db.QueryRow(`
		SELECT subscription
		FROM push_subscriptions
		WHERE user_id = $1
	`, userID).Scan(&subscription)
	if err != nil {
		return "", err
	}
	return subscription, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
