// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/kiosk-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRestaurantNotFound возвращается, если ресторан с указанным slug не найден.
var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrOrderNotFound возвращается, если живой заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotFinished возвращается при попытке архивировать заказ не в статусе FINISHED.
	// Проверка продублирована внутри транзакции архивации: между чтением статуса
	// сервисом и удалением строки мог вклиниться другой запрос.
	ErrOrderNotFinished = errors.New("order is not finished")
	// ErrProductNotFound возвращается, если продукт отсутствует в каталоге ресторана.
	ErrProductNotFound = errors.New("product not found in catalog")
)

// PostgresRepository предоставляет доступ к хранилищу данных киоска в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при временных ошибках БД: сбоях сериализации,
// дедлоках и обрывах соединения. Операция должна быть atomarна, чтобы повтор был безопасен.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetRestaurantBySlug возвращает ресторан по его slug.
func (r *PostgresRepository) GetRestaurantBySlug(ctx context.Context, slug string) (*model.Restaurant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, slug, name, created_at FROM restaurants WHERE slug = $1`,
		slug,
	)

	var rest model.Restaurant
	if err := row.Scan(&rest.ID, &rest.Slug, &rest.Name, &rest.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}

	return &rest, nil
}

// GetMenu возвращает категории меню ресторана вместе с продуктами.
func (r *PostgresRepository) GetMenu(ctx context.Context, restaurantID uuid.UUID) ([]model.MenuCategory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name, p.id, p.name, p.description, p.price
		 FROM menu_categories c
		 LEFT JOIN products p ON p.category_id = c.id
		 WHERE c.restaurant_id = $1
		 ORDER BY c.name, p.name`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("select menu: %w", err)
	}
	defer rows.Close()

	var categories []model.MenuCategory
	index := make(map[uuid.UUID]int)

	for rows.Next() {
		var (
			categoryID   uuid.UUID
			categoryName string
			productID    *uuid.UUID
			productName  *string
			description  *string
			priceCents   *int64
		)
		if err := rows.Scan(&categoryID, &categoryName, &productID, &productName, &description, &priceCents); err != nil {
			return nil, fmt.Errorf("scan menu row: %w", err)
		}

		i, ok := index[categoryID]
		if !ok {
			categories = append(categories, model.MenuCategory{ID: categoryID, Name: categoryName})
			i = len(categories) - 1
			index[categoryID] = i
		}

		if productID == nil {
			continue
		}

		p := model.Product{
			ID:         *productID,
			CategoryID: categoryID,
			Name:       *productName,
			PriceCents: *priceCents,
		}
		if description != nil {
			p.Description = *description
		}
		categories[i].Products = append(categories[i].Products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

// GetProductPrices возвращает текущие цены продуктов ресторана по их идентификаторам.
// Продукты, отсутствующие в каталоге этого ресторана, в карту не попадают.
func (r *PostgresRepository) GetProductPrices(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, price FROM products WHERE restaurant_id = $1 AND id = ANY($2)`,
		restaurantID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select product prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[uuid.UUID]int64, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var price int64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scan product price: %w", err)
		}
		prices[id] = price
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return prices, nil
}

// NewOrder описывает данные для создания заказа.
type NewOrder struct {
	RestaurantID      uuid.UUID
	ConsumptionMethod model.ConsumptionMethod
	PickupName        *string
	TableNumber       *int
	TotalCents        int64
	Items             []model.OrderItem
}

// CreateOrder сохраняет заказ вместе с позициями в одной транзакции
// и возвращает идентификатор нового заказа.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o NewOrder) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (restaurant_id, status, total, consumption_method, pickup_name, table_number)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		o.RestaurantID, string(model.OrderStatusPending), o.TotalCents,
		string(o.ConsumptionMethod), o.PickupName, o.TableNumber,
	).Scan(&orderID)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(
			`INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4)`,
			orderID, it.ProductID, it.Quantity, it.PriceCents,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return orderID, nil
}

// GetOrder возвращает живой заказ без позиций.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, restaurant_id, status, total, consumption_method, pickup_name, table_number, created_at, updated_at
		 FROM orders
		 WHERE id = $1`,
		id,
	)

	var o model.Order
	var status, method string
	err := row.Scan(&o.ID, &o.RestaurantID, &status, &o.TotalCents, &method,
		&o.PickupName, &o.TableNumber, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	o.Status = model.OrderStatus(status)
	o.ConsumptionMethod = model.ConsumptionMethod(method)

	return &o, nil
}

// UpdateOrderStatus обновляет статус заказа на месте и возвращает обновлённую запись.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE orders
		 SET status = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING id, restaurant_id, status, total, consumption_method, pickup_name, table_number, created_at, updated_at`,
		id, string(status),
	)

	var o model.Order
	var st, method string
	err := row.Scan(&o.ID, &o.RestaurantID, &st, &o.TotalCents, &method,
		&o.PickupName, &o.TableNumber, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	o.Status = model.OrderStatus(st)
	o.ConsumptionMethod = model.ConsumptionMethod(method)

	return &o, nil
}

// ArchiveOrder атомарно переносит заказ в архив выданных: создаёт архивную
// запись, копирует позиции с зафиксированными ценами и удаляет живой заказ.
// Частичный архив невозможен: любой сбой откатывает транзакцию целиком.
func (r *PostgresRepository) ArchiveOrder(ctx context.Context, id int64) error {
	return r.withRetry(ctx, func() error {
		return r.archiveOrderOnce(ctx, id)
	})
}

func (r *PostgresRepository) archiveOrderOnce(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку заказа: статус мог измениться после проверки в сервисе.
	row := tx.QueryRow(ctx,
		`SELECT restaurant_id, status, consumption_method, pickup_name
		 FROM orders
		 WHERE id = $1
		 FOR UPDATE`,
		id,
	)

	var restaurantID uuid.UUID
	var status, method string
	var pickupName *string
	if err := row.Scan(&restaurantID, &status, &method, &pickupName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("select order for archive: %w", err)
	}

	if model.OrderStatus(status) != model.OrderStatusFinished {
		return ErrOrderNotFinished
	}

	itemRows, err := tx.Query(ctx,
		`SELECT product_id, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id`,
		id,
	)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}

	var items []model.OrderItem
	for itemRows.Next() {
		var it model.OrderItem
		if err := itemRows.Scan(&it.ProductID, &it.Quantity, &it.PriceCents); err != nil {
			itemRows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	deliveredID := uuid.New()
	_, err = tx.Exec(ctx,
		`INSERT INTO delivered_orders (id, order_id, restaurant_id, pickup_name, consumption_method)
		 VALUES ($1, $2, $3, $4, $5)`,
		deliveredID, id, restaurantID, pickupName, method,
	)
	if err != nil {
		return fmt.Errorf("insert delivered order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`INSERT INTO delivered_order_items (delivered_order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4)`,
			deliveredID, it.ProductID, it.Quantity, it.PriceCents,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert delivered order items: %w", err)
	}

	// Позиции живого заказа удаляются каскадно.
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// IsOrderArchived сообщает, существует ли архивная запись с указанным номером заказа.
func (r *PostgresRepository) IsOrderArchived(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM delivered_orders WHERE order_id = $1)`,
		orderID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check archived order: %w", err)
	}
	return exists, nil
}

// ListInProgress возвращает заказы в статусах PENDING и IN_PREPARATION,
// отсортированные по времени создания: старые первыми.
func (r *PostgresRepository) ListInProgress(ctx context.Context, restaurantID uuid.UUID) ([]model.QueueOrder, error) {
	var res []model.QueueOrder

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, status, total, created_at
			 FROM orders
			 WHERE restaurant_id = $1 AND status IN ($2, $3)
			 ORDER BY created_at`,
			restaurantID,
			string(model.OrderStatusPending),
			string(model.OrderStatusInPreparation),
		)
		if err != nil {
			return fmt.Errorf("select in-progress orders: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		var ids []int64
		for rows.Next() {
			var o model.QueueOrder
			var status string
			if err := rows.Scan(&o.ID, &status, &o.TotalCents, &o.CreatedAt); err != nil {
				return fmt.Errorf("scan order: %w", err)
			}
			o.Status = model.OrderStatus(status)
			res = append(res, o)
			ids = append(ids, o.ID)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		lines, err := r.orderLines(ctx, ids)
		if err != nil {
			return err
		}
		for i := range res {
			res[i].Items = lines[res[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ListReady возвращает заказы в статусе FINISHED, ожидающие выдачи.
func (r *PostgresRepository) ListReady(ctx context.Context, restaurantID uuid.UUID) ([]model.ReadyOrder, error) {
	var res []model.ReadyOrder

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, pickup_name, consumption_method, table_number, created_at
			 FROM orders
			 WHERE restaurant_id = $1 AND status = $2 AND consumption_method IN ($3, $4)
			 ORDER BY created_at`,
			restaurantID,
			string(model.OrderStatusFinished),
			string(model.ConsumptionTakeaway),
			string(model.ConsumptionDineIn),
		)
		if err != nil {
			return fmt.Errorf("select ready orders: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		var ids []int64
		for rows.Next() {
			var o model.ReadyOrder
			var method string
			if err := rows.Scan(&o.ID, &o.PickupName, &method, &o.TableNumber, &o.CreatedAt); err != nil {
				return fmt.Errorf("scan order: %w", err)
			}
			o.ConsumptionMethod = model.ConsumptionMethod(method)
			res = append(res, o)
			ids = append(ids, o.ID)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		lines, err := r.orderLines(ctx, ids)
		if err != nil {
			return err
		}
		for i := range res {
			res[i].Items = lines[res[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// orderLines возвращает позиции живых заказов в виде "название + количество".
func (r *PostgresRepository) orderLines(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderLine, error) {
	lines := make(map[int64][]model.OrderLine, len(orderIDs))
	if len(orderIDs) == 0 {
		return lines, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT oi.order_id, p.name, oi.quantity
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = ANY($1)
		 ORDER BY oi.id`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var line model.OrderLine
		if err := rows.Scan(&orderID, &line.Name, &line.Quantity); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines[orderID] = append(lines[orderID], line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// ListDelivered возвращает последние выданные заказы из архива: новые первыми.
func (r *PostgresRepository) ListDelivered(ctx context.Context, restaurantID uuid.UUID, limit int) ([]model.DeliveredView, error) {
	var res []model.DeliveredView

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, pickup_name, consumption_method, delivered_at
			 FROM delivered_orders
			 WHERE restaurant_id = $1 AND consumption_method IN ($2, $3)
			 ORDER BY delivered_at DESC
			 LIMIT $4`,
			restaurantID,
			string(model.ConsumptionTakeaway),
			string(model.ConsumptionDineIn),
			limit,
		)
		if err != nil {
			return fmt.Errorf("select delivered orders: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		var ids []uuid.UUID
		for rows.Next() {
			var o model.DeliveredView
			var method string
			if err := rows.Scan(&o.ID, &o.PickupName, &method, &o.DeliveredAt); err != nil {
				return fmt.Errorf("scan delivered order: %w", err)
			}
			o.ConsumptionMethod = model.ConsumptionMethod(method)
			res = append(res, o)
			ids = append(ids, o.ID)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		if len(ids) == 0 {
			return nil
		}

		lineRows, err := r.pool.Query(ctx,
			`SELECT doi.delivered_order_id, p.name, doi.quantity
			 FROM delivered_order_items doi
			 JOIN products p ON p.id = doi.product_id
			 WHERE doi.delivered_order_id = ANY($1)
			 ORDER BY doi.id`,
			ids,
		)
		if err != nil {
			return fmt.Errorf("select delivered order lines: %w", err)
		}
		defer lineRows.Close()

		lines := make(map[uuid.UUID][]model.OrderLine, len(ids))
		for lineRows.Next() {
			var deliveredID uuid.UUID
			var line model.OrderLine
			if err := lineRows.Scan(&deliveredID, &line.Name, &line.Quantity); err != nil {
				return fmt.Errorf("scan delivered order line: %w", err)
			}
			lines[deliveredID] = append(lines[deliveredID], line)
		}
		if err := lineRows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		for i := range res {
			res[i].Items = lines[res[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}
