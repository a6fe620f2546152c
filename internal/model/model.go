package model

import "time"

type OrderStatus string

const (
	Pending    OrderStatus = "PENDING"
	Paid       OrderStatus = "PAID"
	Processing OrderStatus = "PROCESSING"
	Shipped    OrderStatus = "SHIPPED"
	Delivered  OrderStatus = "DELIVERED"
	Cancelled  OrderStatus = "CANCELLED"
	Refunded   OrderStatus = "REFUNDED"
)

type TransactionType string

const (
	Deposit    TransactionType = "DEPOSIT"
	Withdrawal TransactionType = "WITHDRAWAL"
	Payment    TransactionType = "PAYMENT"
	Refund     TransactionType = "REFUND"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
	Role  Role   `json:"role"`
}

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Product struct {
	ID          int       `json:"id"`
	CategoryID  int       `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

type Review struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	ProductID int       `json:"product_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Wallet struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Transaction struct {
	ID           int             `json:"id"`
	UserID       int             `json:"user_id"`
	Type         TransactionType `json:"type"`
	Amount       float64         `json:"amount"`
	OrderID      *int            `json:"order_id,omitempty"`
	Description  string          `json:"description,omitempty"`
	BalanceAfter float64         `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderItem belongs to its order and carries the price snapshot taken
// at order creation. It is never exposed outside its order.
type OrderItem struct {
	ID        int     `json:"-"`
	OrderID   int     `json:"-"`
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type Order struct {
	ID         int         `json:"id"`
	UserID     int         `json:"user_id"`
	Items      []OrderItem `json:"items"`
	TotalPrice float64     `json:"total_price"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	PaidAt     *time.Time  `json:"paid_at,omitempty"`
}

// DashboardStats is the admin overview. Revenue sums the orders that
// were actually charged (PAID, PROCESSING, SHIPPED, DELIVERED).
type DashboardStats struct {
	TotalOrders   int     `json:"total_orders"`
	TotalUsers    int     `json:"total_users"`
	TotalProducts int     `json:"total_products"`
	TotalRevenue  float64 `json:"total_revenue"`
	PendingOrders int     `json:"pending_orders"`
	PaidOrders    int     `json:"paid_orders"`
	ShippedOrders int     `json:"shipped_orders"`
}

type TopProduct struct {
	ProductID    int     `json:"product_id"`
	ProductName  string  `json:"product_name"`
	TotalSold    int     `json:"total_sold"`
	TotalRevenue float64 `json:"total_revenue"`
}

type RevenueSummary struct {
	TotalRevenue      float64 `json:"total_revenue"`
	TotalOrders       int     `json:"total_orders"`
	AverageOrderValue float64 `json:"average_order_value"`
}

// ProductFilter carries the catalog listing parameters. Zero values
// mean "no constraint"; Page is 1-based.
type ProductFilter struct {
	Keyword    string
	CategoryID int
	MinPrice   *float64
	MaxPrice   *float64
	SortBy     string
	SortOrder  string
	Page       int
	Limit      int
}
