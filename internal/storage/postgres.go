package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avolkov/shopcore/internal/errs"
	"github.com/avolkov/shopcore/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is the unit of work handed to services inside InTx. Every method
// runs on the same database transaction; locked reads and the
// conditional stock update serialize concurrent access to wallets and
// products.
type Tx interface {
	GetUserByID(ctx context.Context, id int) (model.User, error)
	GetProductByID(ctx context.Context, id int) (model.Product, error)

	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	GetOrderForUpdate(ctx context.Context, id int) (model.Order, error)
	SetOrderStatus(ctx context.Context, orderID int, status model.OrderStatus, paidAt *time.Time) error

	CreateWallet(ctx context.Context, w model.Wallet) (model.Wallet, error)
	GetWalletForUpdate(ctx context.Context, userID int) (model.Wallet, error)
	UpdateWalletBalance(ctx context.Context, userID int, balance float64) error
	AppendTransaction(ctx context.Context, t model.Transaction) (model.Transaction, error)

	DecrementStock(ctx context.Context, productID, quantity int) error
	RestoreStock(ctx context.Context, productID, quantity int) error
}

type PostgresStorage struct {
	db *pgxpool.Pool
}

func (store *PostgresStorage) initSchema(ctx context.Context) error {
	const initSchemaQuery = `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		login TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMP DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS categories (
		id SERIAL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		category_id INT NOT NULL REFERENCES categories(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL,
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		created_at TIMESTAMP DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS reviews (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL REFERENCES users(id),
		product_id INT NOT NULL REFERENCES products(id),
		rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW(),
		UNIQUE (user_id, product_id)
	);
	CREATE TABLE IF NOT EXISTS wallets (
		id SERIAL PRIMARY KEY,
		user_id INT UNIQUE NOT NULL REFERENCES users(id),
		balance NUMERIC NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL REFERENCES users(id),
		total_price NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMP DEFAULT NOW(),
		paid_at TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id INT NOT NULL REFERENCES orders(id),
		product_id INT NOT NULL REFERENCES products(id),
		quantity INT NOT NULL CHECK (quantity > 0),
		price NUMERIC NOT NULL
	);
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL REFERENCES users(id),
		type TEXT NOT NULL,
		amount NUMERIC NOT NULL CHECK (amount > 0),
		order_id INT REFERENCES orders(id),
		description TEXT NOT NULL DEFAULT '',
		balance_after NUMERIC NOT NULL,
		created_at TIMESTAMP DEFAULT NOW()
	);`

	_, err := store.db.Exec(ctx, initSchemaQuery)
	return err
}

func NewPostgreStorage(ctx context.Context, DatabaseURI string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, DatabaseURI)
	if err != nil {
		return nil, err
	}

	storage := &PostgresStorage{db: db}

	if err := storage.Ping(ctx); err != nil {
		return nil, err
	}

	if err := storage.initSchema(ctx); err != nil {
		return nil, err
	}

	return storage, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

// InTx runs fn inside one transaction; any error rolls back every
// mutation fn made.
func (s *PostgresStorage) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (store *PostgresStorage) CreateUser(ctx context.Context, login, passwordHash string, role model.Role) error {
	const insertUserQuery = `INSERT INTO users (login, password_hash, role) VALUES ($1, $2, $3)`

	_, err := store.db.Exec(ctx, insertUserQuery, login, passwordHash, role)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			// 23505 — уникальное ограничение нарушено
			return errs.ErrLoginAlreadyExists
		}
		return err
	}

	return nil
}

func (s *PostgresStorage) GetUserByLogin(ctx context.Context, login string) (model.User, string, error) {
	const query = `SELECT id, login, role, password_hash FROM users WHERE login = $1`

	var user model.User
	var hash string

	err := s.db.QueryRow(ctx, query, login).Scan(&user.ID, &user.Login, &user.Role, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, "", errs.ErrUserNotFound
		}
		return model.User{}, "", fmt.Errorf("get user by login: %w", err)
	}

	return user, hash, nil
}

func (s *PostgresStorage) GetUserByID(ctx context.Context, id int) (model.User, error) {
	return getUserByID(ctx, s.db, id)
}

func (s *PostgresStorage) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	const query = `INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`

	err := s.db.QueryRow(ctx, query, c.Name, c.Description).Scan(&c.ID)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return model.Category{}, fmt.Errorf("category %q: %w", c.Name, errs.ErrCategoryAlreadyExists)
		}
		return model.Category{}, fmt.Errorf("insert category: %w", err)
	}

	return c, nil
}

func (s *PostgresStorage) UpdateCategory(ctx context.Context, c model.Category) error {
	const query = `UPDATE categories SET name = $1, description = $2 WHERE id = $3`

	cmdTag, err := s.db.Exec(ctx, query, c.Name, c.Description, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrCategoryNotFound
	}

	return nil
}

func (s *PostgresStorage) DeleteCategory(ctx context.Context, id int) error {
	const query = `DELETE FROM categories WHERE id = $1`

	cmdTag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23503" {
			return errs.ErrCategoryInUse
		}
		return fmt.Errorf("delete category: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrCategoryNotFound
	}

	return nil
}

func (s *PostgresStorage) GetCategoryByID(ctx context.Context, id int) (model.Category, error) {
	const query = `SELECT id, name, description FROM categories WHERE id = $1`

	var c model.Category
	err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Category{}, errs.ErrCategoryNotFound
		}
		return model.Category{}, fmt.Errorf("get category: %w", err)
	}

	return c, nil
}

func (s *PostgresStorage) ListCategories(ctx context.Context) ([]model.Category, error) {
	const query = `SELECT id, name, description FROM categories ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var list []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		list = append(list, c)
	}

	return list, rows.Err()
}

func (s *PostgresStorage) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	const query = `
		INSERT INTO products (category_id, name, description, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.db.QueryRow(ctx, query, p.CategoryID, p.Name, p.Description, p.Price, p.Stock).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23503" {
			return model.Product{}, errs.ErrCategoryNotFound
		}
		return model.Product{}, fmt.Errorf("insert product: %w", err)
	}

	return p, nil
}

func (s *PostgresStorage) UpdateProduct(ctx context.Context, p model.Product) error {
	const query = `
		UPDATE products
		SET category_id = $1, name = $2, description = $3, price = $4, stock = $5
		WHERE id = $6`

	cmdTag, err := s.db.Exec(ctx, query, p.CategoryID, p.Name, p.Description, p.Price, p.Stock, p.ID)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23503" {
			return errs.ErrCategoryNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrProductNotFound
	}

	return nil
}

func (s *PostgresStorage) DeleteProduct(ctx context.Context, id int) error {
	const query = `DELETE FROM products WHERE id = $1`

	cmdTag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23503" {
			return errs.ErrProductInUse
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrProductNotFound
	}

	return nil
}

func (s *PostgresStorage) GetProductByID(ctx context.Context, id int) (model.Product, error) {
	return getProductByID(ctx, s.db, id)
}

var productSortColumns = map[string]string{
	"price": "price",
	"name":  "name",
	"stock": "stock",
}

func (s *PostgresStorage) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	var (
		conds []string
		args  []any
	)

	query := `SELECT id, category_id, name, description, price, stock, created_at FROM products`

	if f.Keyword != "" {
		args = append(args, "%"+f.Keyword+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(name ILIKE $"+n+" OR description ILIKE $"+n+")")
	}
	if f.CategoryID != 0 {
		args = append(args, f.CategoryID)
		conds = append(conds, "category_id = $"+strconv.Itoa(len(args)))
	}
	if f.MinPrice != nil {
		args = append(args, *f.MinPrice)
		conds = append(conds, "price >= $"+strconv.Itoa(len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		conds = append(conds, "price <= $"+strconv.Itoa(len(args)))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// sort column comes from a fixed map, never from the request string
	if col, ok := productSortColumns[f.SortBy]; ok {
		query += " ORDER BY " + col
		if strings.EqualFold(f.SortOrder, "desc") {
			query += " DESC"
		}
	} else {
		query += " ORDER BY id"
	}

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
		if f.Page > 1 {
			args = append(args, (f.Page-1)*f.Limit)
			query += " OFFSET $" + strconv.Itoa(len(args))
		}
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var list []model.Product
	for rows.Next() {
		var p model.Product
		err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}

	return list, rows.Err()
}

func (s *PostgresStorage) CreateReview(ctx context.Context, r model.Review) (model.Review, error) {
	const query = `
		INSERT INTO reviews (user_id, product_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRow(ctx, query, r.UserID, r.ProductID, r.Rating, r.Comment).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			switch pgErr.Code {
			case "23505":
				return model.Review{}, errs.ErrReviewAlreadyExists
			case "23503":
				return model.Review{}, errs.ErrProductNotFound
			}
		}
		return model.Review{}, fmt.Errorf("insert review: %w", err)
	}

	return r, nil
}

func (s *PostgresStorage) UpdateReview(ctx context.Context, r model.Review) error {
	const query = `UPDATE reviews SET rating = $1, comment = $2, updated_at = NOW() WHERE id = $3`

	cmdTag, err := s.db.Exec(ctx, query, r.Rating, r.Comment, r.ID)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrReviewNotFound
	}

	return nil
}

func (s *PostgresStorage) DeleteReview(ctx context.Context, id int) error {
	const query = `DELETE FROM reviews WHERE id = $1`

	cmdTag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrReviewNotFound
	}

	return nil
}

func (s *PostgresStorage) GetReviewByID(ctx context.Context, id int) (model.Review, error) {
	const query = `
		SELECT id, user_id, product_id, rating, comment, created_at, updated_at
		FROM reviews WHERE id = $1`

	var r model.Review
	err := s.db.QueryRow(ctx, query, id).
		Scan(&r.ID, &r.UserID, &r.ProductID, &r.Rating, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Review{}, errs.ErrReviewNotFound
		}
		return model.Review{}, fmt.Errorf("get review: %w", err)
	}

	return r, nil
}

func (s *PostgresStorage) ListReviewsByProduct(ctx context.Context, productID int) ([]model.Review, error) {
	const query = `
		SELECT id, user_id, product_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC`

	return s.listReviews(ctx, query, productID)
}

func (s *PostgresStorage) ListReviewsByUser(ctx context.Context, userID int) ([]model.Review, error) {
	const query = `
		SELECT id, user_id, product_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE user_id = $1
		ORDER BY created_at DESC`

	return s.listReviews(ctx, query, userID)
}

func (s *PostgresStorage) listReviews(ctx context.Context, query string, arg any) ([]model.Review, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var list []model.Review
	for rows.Next() {
		var r model.Review
		err := rows.Scan(&r.ID, &r.UserID, &r.ProductID, &r.Rating, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		list = append(list, r)
	}

	return list, rows.Err()
}

func (s *PostgresStorage) GetProductRating(ctx context.Context, productID int) (float64, int, error) {
	const query = `SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE product_id = $1`

	var avg float64
	var count int
	if err := s.db.QueryRow(ctx, query, productID).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("product rating: %w", err)
	}

	return avg, count, nil
}

func (s *PostgresStorage) GetOrderByID(ctx context.Context, id int) (model.Order, error) {
	const query = `
		SELECT id, user_id, total_price, status, created_at, paid_at
		FROM orders WHERE id = $1`

	return getOrder(ctx, s.db, query, id)
}

func (s *PostgresStorage) ListOrdersByUser(ctx context.Context, userID int) ([]model.Order, error) {
	const query = `
		SELECT id, user_id, total_price, status, created_at, paid_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}

	return s.scanOrders(ctx, rows)
}

func (s *PostgresStorage) ListAllOrders(ctx context.Context) ([]model.Order, error) {
	const query = `
		SELECT id, user_id, total_price, status, created_at, paid_at
		FROM orders
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return s.scanOrders(ctx, rows)
}

func (s *PostgresStorage) scanOrders(ctx context.Context, rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var list []model.Order
	for rows.Next() {
		var o model.Order
		err := rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.CreatedAt, &o.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}

	for i := range list {
		items, err := orderItems(ctx, s.db, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Items = items
	}

	return list, nil
}

func (s *PostgresStorage) GetWalletByUser(ctx context.Context, userID int) (model.Wallet, error) {
	const query = `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1`

	var w model.Wallet
	err := s.db.QueryRow(ctx, query, userID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Wallet{}, errs.ErrWalletNotFound
		}
		return model.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}

	return w, nil
}

func (s *PostgresStorage) ListTransactions(ctx context.Context, userID int) ([]model.Transaction, error) {
	const query = `
		SELECT id, user_id, type, amount, order_id, description, balance_after, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var list []model.Transaction
	for rows.Next() {
		var t model.Transaction
		err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.OrderID, &t.Description, &t.BalanceAfter, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		list = append(list, t)
	}

	return list, rows.Err()
}

// queryer is the subset of pgxpool.Pool and pgx.Tx shared by reads
// used on both sides of a transaction boundary.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getUserByID(ctx context.Context, q queryer, id int) (model.User, error) {
	const query = `SELECT id, login, role FROM users WHERE id = $1`

	var user model.User
	err := q.QueryRow(ctx, query, id).Scan(&user.ID, &user.Login, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, errs.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

func getProductByID(ctx context.Context, q queryer, id int) (model.Product, error) {
	const query = `
		SELECT id, category_id, name, description, price, stock, created_at
		FROM products WHERE id = $1`

	var p model.Product
	err := q.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, errs.ErrProductNotFound
		}
		return model.Product{}, fmt.Errorf("get product: %w", err)
	}

	return p, nil
}

func getOrder(ctx context.Context, q queryer, query string, id int) (model.Order, error) {
	var o model.Order
	err := q.QueryRow(ctx, query, id).
		Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, errs.ErrOrderNotFound
		}
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}

	items, err := orderItems(ctx, q, o.ID)
	if err != nil {
		return model.Order{}, err
	}
	o.Items = items

	return o, nil
}

func orderItems(ctx context.Context, q queryer, orderID int) ([]model.OrderItem, error) {
	const query = `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetUserByID(ctx context.Context, id int) (model.User, error) {
	return getUserByID(ctx, t.tx, id)
}

func (t *pgTx) GetProductByID(ctx context.Context, id int) (model.Product, error) {
	return getProductByID(ctx, t.tx, id)
}

func (t *pgTx) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	const insertOrderQuery = `
		INSERT INTO orders (user_id, total_price, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	const insertItemQuery = `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := t.tx.QueryRow(ctx, insertOrderQuery, o.UserID, o.TotalPrice, o.Status).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return model.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		err := t.tx.QueryRow(ctx, insertItemQuery,
			o.ID, o.Items[i].ProductID, o.Items[i].Quantity, o.Items[i].Price).
			Scan(&o.Items[i].ID)
		if err != nil {
			return model.Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	return o, nil
}

func (t *pgTx) GetOrderForUpdate(ctx context.Context, id int) (model.Order, error) {
	const query = `
		SELECT id, user_id, total_price, status, created_at, paid_at
		FROM orders WHERE id = $1
		FOR UPDATE`

	return getOrder(ctx, t.tx, query, id)
}

func (t *pgTx) SetOrderStatus(ctx context.Context, orderID int, status model.OrderStatus, paidAt *time.Time) error {
	const query = `UPDATE orders SET status = $1, paid_at = COALESCE($2, paid_at) WHERE id = $3`

	cmdTag, err := t.tx.Exec(ctx, query, status, paidAt, orderID)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrOrderNotFound
	}

	return nil
}

func (t *pgTx) CreateWallet(ctx context.Context, w model.Wallet) (model.Wallet, error) {
	const query = `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := t.tx.QueryRow(ctx, query, w.UserID, w.Balance).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return model.Wallet{}, errs.ErrWalletAlreadyExists
		}
		return model.Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}

	return w, nil
}

func (t *pgTx) GetWalletForUpdate(ctx context.Context, userID int) (model.Wallet, error) {
	const query = `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1
		FOR UPDATE`

	var w model.Wallet
	err := t.tx.QueryRow(ctx, query, userID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Wallet{}, errs.ErrWalletNotFound
		}
		return model.Wallet{}, fmt.Errorf("get wallet for update: %w", err)
	}

	return w, nil
}

func (t *pgTx) UpdateWalletBalance(ctx context.Context, userID int, balance float64) error {
	const query = `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2`

	cmdTag, err := t.tx.Exec(ctx, query, balance, userID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrWalletNotFound
	}

	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, tr model.Transaction) (model.Transaction, error) {
	const query = `
		INSERT INTO wallet_transactions (user_id, type, amount, order_id, description, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := t.tx.QueryRow(ctx, query,
		tr.UserID, tr.Type, tr.Amount, tr.OrderID, tr.Description, tr.BalanceAfter).
		Scan(&tr.ID, &tr.CreatedAt)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	return tr, nil
}

// DecrementStock is a single conditional update, so the availability
// check and the write cannot race with a concurrent payment.
func (t *pgTx) DecrementStock(ctx context.Context, productID, quantity int) error {
	const query = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	cmdTag, err := t.tx.Exec(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, errs.ErrInsufficientStock)
	}

	return nil
}

func (t *pgTx) RestoreStock(ctx context.Context, productID, quantity int) error {
	const query = `UPDATE products SET stock = stock + $2 WHERE id = $1`

	cmdTag, err := t.tx.Exec(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, errs.ErrProductNotFound)
	}

	return nil
}

// revenueStatuses are the order states whose totals count as charged
// revenue in the admin reports.
const revenueStatuses = `('PAID', 'PROCESSING', 'SHIPPED', 'DELIVERED')`

func (s *PostgresStorage) GetDashboardStats(ctx context.Context) (model.DashboardStats, error) {
	const query = `
		SELECT
			(SELECT count(*) FROM orders),
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM products),
			(SELECT COALESCE(sum(total_price), 0) FROM orders WHERE status IN ` + revenueStatuses + `),
			(SELECT count(*) FROM orders WHERE status = 'PENDING'),
			(SELECT count(*) FROM orders WHERE status = 'PAID'),
			(SELECT count(*) FROM orders WHERE status = 'SHIPPED')`

	var st model.DashboardStats
	err := s.db.QueryRow(ctx, query).Scan(
		&st.TotalOrders, &st.TotalUsers, &st.TotalProducts,
		&st.TotalRevenue, &st.PendingOrders, &st.PaidOrders, &st.ShippedOrders)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}

	return st, nil
}

func (s *PostgresStorage) ListTopProducts(ctx context.Context, limit int) ([]model.TopProduct, error) {
	const query = `
		SELECT p.id, p.name, sum(oi.quantity) AS sold, sum(oi.price * oi.quantity) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.status IN ` + revenueStatuses + `
		GROUP BY p.id, p.name
		ORDER BY sold DESC, p.id
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	var list []model.TopProduct
	for rows.Next() {
		var p model.TopProduct
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.TotalSold, &p.TotalRevenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		list = append(list, p)
	}

	return list, rows.Err()
}

func (s *PostgresStorage) GetRevenueSummary(ctx context.Context) (model.RevenueSummary, error) {
	const query = `
		SELECT COALESCE(sum(total_price), 0), count(*)
		FROM orders
		WHERE status IN ` + revenueStatuses

	var sum model.RevenueSummary
	if err := s.db.QueryRow(ctx, query).Scan(&sum.TotalRevenue, &sum.TotalOrders); err != nil {
		return model.RevenueSummary{}, fmt.Errorf("revenue summary: %w", err)
	}
	if sum.TotalOrders > 0 {
		sum.AverageOrderValue = sum.TotalRevenue / float64(sum.TotalOrders)
	}

	return sum, nil
}
