package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avolkov/shopcore/internal/errs"
	"github.com/avolkov/shopcore/internal/model"
	"github.com/avolkov/shopcore/internal/storage"
)

// memStore is an in-memory Store for service tests. InTx snapshots the
// whole state and restores it when the unit of work fails, mirroring
// the rollback behaviour of the Postgres implementation.
type memStore struct {
	users        map[int]model.User
	categories   map[int]model.Category
	products     map[int]model.Product
	reviews      map[int]model.Review
	orders       map[int]model.Order
	wallets      map[int]model.Wallet // keyed by user id
	transactions []model.Transaction

	nextCategoryID int
	nextProductID  int
	nextReviewID   int
	nextOrderID    int
	nextItemID     int
	nextWalletID   int
	nextTxID       int
}

func newMemStore() *memStore {
	return &memStore{
		users:          make(map[int]model.User),
		categories:     make(map[int]model.Category),
		products:       make(map[int]model.Product),
		reviews:        make(map[int]model.Review),
		orders:         make(map[int]model.Order),
		wallets:        make(map[int]model.Wallet),
		nextCategoryID: 1,
		nextProductID:  1,
		nextReviewID:   1,
		nextOrderID:    1,
		nextItemID:     1,
		nextWalletID:   1,
		nextTxID:       1,
	}
}

func (m *memStore) snapshot() *memStore {
	cp := &memStore{
		users:          make(map[int]model.User, len(m.users)),
		categories:     make(map[int]model.Category, len(m.categories)),
		products:       make(map[int]model.Product, len(m.products)),
		reviews:        make(map[int]model.Review, len(m.reviews)),
		orders:         make(map[int]model.Order, len(m.orders)),
		wallets:        make(map[int]model.Wallet, len(m.wallets)),
		transactions:   append([]model.Transaction(nil), m.transactions...),
		nextCategoryID: m.nextCategoryID,
		nextProductID:  m.nextProductID,
		nextReviewID:   m.nextReviewID,
		nextOrderID:    m.nextOrderID,
		nextItemID:     m.nextItemID,
		nextWalletID:   m.nextWalletID,
		nextTxID:       m.nextTxID,
	}
	for k, v := range m.users {
		cp.users[k] = v
	}
	for k, v := range m.categories {
		cp.categories[k] = v
	}
	for k, v := range m.reviews {
		cp.reviews[k] = v
	}
	for k, v := range m.products {
		cp.products[k] = v
	}
	for k, v := range m.orders {
		v.Items = append([]model.OrderItem(nil), v.Items...)
		cp.orders[k] = v
	}
	for k, v := range m.wallets {
		cp.wallets[k] = v
	}
	return cp
}

func (m *memStore) restore(from *memStore) {
	*m = *from
}

func (m *memStore) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	saved := m.snapshot()
	if err := fn(&memTx{store: m}); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func (m *memStore) GetUserByID(ctx context.Context, id int) (model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return model.User{}, errs.ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id int) (model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, errs.ErrOrderNotFound
	}
	o.Items = append([]model.OrderItem(nil), o.Items...)
	return o, nil
}

func (m *memStore) ListOrdersByUser(ctx context.Context, userID int) ([]model.Order, error) {
	var list []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			list = append(list, o)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (m *memStore) ListAllOrders(ctx context.Context) ([]model.Order, error) {
	var list []model.Order
	for _, o := range m.orders {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (m *memStore) GetWalletByUser(ctx context.Context, userID int) (model.Wallet, error) {
	w, ok := m.wallets[userID]
	if !ok {
		return model.Wallet{}, errs.ErrWalletNotFound
	}
	return w, nil
}

func (m *memStore) ListTransactions(ctx context.Context, userID int) ([]model.Transaction, error) {
	var list []model.Transaction
	for _, t := range m.transactions {
		if t.UserID == userID {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

type memTx struct {
	store *memStore
}

func (t *memTx) GetUserByID(ctx context.Context, id int) (model.User, error) {
	return t.store.GetUserByID(ctx, id)
}

func (t *memTx) GetProductByID(ctx context.Context, id int) (model.Product, error) {
	p, ok := t.store.products[id]
	if !ok {
		return model.Product{}, errs.ErrProductNotFound
	}
	return p, nil
}

func (t *memTx) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	o.ID = t.store.nextOrderID
	t.store.nextOrderID++
	o.CreatedAt = time.Now()
	for i := range o.Items {
		o.Items[i].ID = t.store.nextItemID
		t.store.nextItemID++
		o.Items[i].OrderID = o.ID
	}
	t.store.orders[o.ID] = o
	return o, nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id int) (model.Order, error) {
	return t.store.GetOrderByID(ctx, id)
}

func (t *memTx) SetOrderStatus(ctx context.Context, orderID int, status model.OrderStatus, paidAt *time.Time) error {
	o, ok := t.store.orders[orderID]
	if !ok {
		return errs.ErrOrderNotFound
	}
	o.Status = status
	if paidAt != nil {
		o.PaidAt = paidAt
	}
	t.store.orders[orderID] = o
	return nil
}

func (t *memTx) CreateWallet(ctx context.Context, w model.Wallet) (model.Wallet, error) {
	if _, ok := t.store.wallets[w.UserID]; ok {
		return model.Wallet{}, errs.ErrWalletAlreadyExists
	}
	w.ID = t.store.nextWalletID
	t.store.nextWalletID++
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	t.store.wallets[w.UserID] = w
	return w, nil
}

func (t *memTx) GetWalletForUpdate(ctx context.Context, userID int) (model.Wallet, error) {
	return t.store.GetWalletByUser(ctx, userID)
}

func (t *memTx) UpdateWalletBalance(ctx context.Context, userID int, balance float64) error {
	w, ok := t.store.wallets[userID]
	if !ok {
		return errs.ErrWalletNotFound
	}
	w.Balance = balance
	w.UpdatedAt = time.Now()
	t.store.wallets[userID] = w
	return nil
}

func (t *memTx) AppendTransaction(ctx context.Context, tr model.Transaction) (model.Transaction, error) {
	tr.ID = t.store.nextTxID
	t.store.nextTxID++
	tr.CreatedAt = time.Now()
	t.store.transactions = append(t.store.transactions, tr)
	return tr, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID, quantity int) error {
	p, ok := t.store.products[productID]
	if !ok || p.Stock < quantity {
		return fmt.Errorf("product %d: %w", productID, errs.ErrInsufficientStock)
	}
	p.Stock -= quantity
	t.store.products[productID] = p
	return nil
}

func (t *memTx) RestoreStock(ctx context.Context, productID, quantity int) error {
	p, ok := t.store.products[productID]
	if !ok {
		return errs.ErrProductNotFound
	}
	p.Stock += quantity
	t.store.products[productID] = p
	return nil
}

func (m *memStore) GetProductByID(ctx context.Context, id int) (model.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, errs.ErrProductNotFound
	}
	return p, nil
}

func (m *memStore) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	for _, existing := range m.categories {
		if existing.Name == c.Name {
			return model.Category{}, errs.ErrCategoryAlreadyExists
		}
	}
	c.ID = m.nextCategoryID
	m.nextCategoryID++
	m.categories[c.ID] = c
	return c, nil
}

func (m *memStore) UpdateCategory(ctx context.Context, c model.Category) error {
	if _, ok := m.categories[c.ID]; !ok {
		return errs.ErrCategoryNotFound
	}
	m.categories[c.ID] = c
	return nil
}

func (m *memStore) DeleteCategory(ctx context.Context, id int) error {
	if _, ok := m.categories[id]; !ok {
		return errs.ErrCategoryNotFound
	}
	for _, p := range m.products {
		if p.CategoryID == id {
			return errs.ErrCategoryInUse
		}
	}
	delete(m.categories, id)
	return nil
}

func (m *memStore) GetCategoryByID(ctx context.Context, id int) (model.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return model.Category{}, errs.ErrCategoryNotFound
	}
	return c, nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	var list []model.Category
	for _, c := range m.categories {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (m *memStore) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if _, ok := m.categories[p.CategoryID]; !ok {
		return model.Product{}, errs.ErrCategoryNotFound
	}
	p.ID = m.nextProductID
	m.nextProductID++
	p.CreatedAt = time.Now()
	m.products[p.ID] = p
	return p, nil
}

func (m *memStore) UpdateProduct(ctx context.Context, p model.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return errs.ErrProductNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *memStore) DeleteProduct(ctx context.Context, id int) error {
	if _, ok := m.products[id]; !ok {
		return errs.ErrProductNotFound
	}
	for _, o := range m.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return errs.ErrProductInUse
			}
		}
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	var list []model.Product
	for _, p := range m.products {
		if f.Keyword != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Keyword)) &&
			!strings.Contains(strings.ToLower(p.Description), strings.ToLower(f.Keyword)) {
			continue
		}
		if f.CategoryID != 0 && p.CategoryID != f.CategoryID {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		list = append(list, p)
	}

	desc := strings.EqualFold(f.SortOrder, "desc")
	sort.Slice(list, func(i, j int) bool {
		var less bool
		switch f.SortBy {
		case "price":
			less = list[i].Price < list[j].Price
		case "name":
			less = list[i].Name < list[j].Name
		case "stock":
			less = list[i].Stock < list[j].Stock
		default:
			return list[i].ID < list[j].ID
		}
		if desc {
			return !less
		}
		return less
	})

	if f.Limit > 0 {
		start := (f.Page - 1) * f.Limit
		if start >= len(list) {
			return nil, nil
		}
		end := start + f.Limit
		if end > len(list) {
			end = len(list)
		}
		list = list[start:end]
	}

	return list, nil
}

func (m *memStore) CreateReview(ctx context.Context, r model.Review) (model.Review, error) {
	for _, existing := range m.reviews {
		if existing.UserID == r.UserID && existing.ProductID == r.ProductID {
			return model.Review{}, errs.ErrReviewAlreadyExists
		}
	}
	r.ID = m.nextReviewID
	m.nextReviewID++
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	m.reviews[r.ID] = r
	return r, nil
}

func (m *memStore) UpdateReview(ctx context.Context, r model.Review) error {
	if _, ok := m.reviews[r.ID]; !ok {
		return errs.ErrReviewNotFound
	}
	r.UpdatedAt = time.Now()
	m.reviews[r.ID] = r
	return nil
}

func (m *memStore) DeleteReview(ctx context.Context, id int) error {
	if _, ok := m.reviews[id]; !ok {
		return errs.ErrReviewNotFound
	}
	delete(m.reviews, id)
	return nil
}

func (m *memStore) GetReviewByID(ctx context.Context, id int) (model.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return model.Review{}, errs.ErrReviewNotFound
	}
	return r, nil
}

func (m *memStore) ListReviewsByProduct(ctx context.Context, productID int) ([]model.Review, error) {
	var list []model.Review
	for _, r := range m.reviews {
		if r.ProductID == productID {
			list = append(list, r)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (m *memStore) ListReviewsByUser(ctx context.Context, userID int) ([]model.Review, error) {
	var list []model.Review
	for _, r := range m.reviews {
		if r.UserID == userID {
			list = append(list, r)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (m *memStore) GetProductRating(ctx context.Context, productID int) (float64, int, error) {
	var sum, count int
	for _, r := range m.reviews {
		if r.ProductID == productID {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

func chargedStatus(s model.OrderStatus) bool {
	switch s {
	case model.Paid, model.Processing, model.Shipped, model.Delivered:
		return true
	}
	return false
}

func (m *memStore) GetDashboardStats(ctx context.Context) (model.DashboardStats, error) {
	st := model.DashboardStats{
		TotalOrders:   len(m.orders),
		TotalUsers:    len(m.users),
		TotalProducts: len(m.products),
	}
	for _, o := range m.orders {
		if chargedStatus(o.Status) {
			st.TotalRevenue += o.TotalPrice
		}
		switch o.Status {
		case model.Pending:
			st.PendingOrders++
		case model.Paid:
			st.PaidOrders++
		case model.Shipped:
			st.ShippedOrders++
		}
	}
	return st, nil
}

func (m *memStore) ListTopProducts(ctx context.Context, limit int) ([]model.TopProduct, error) {
	byProduct := make(map[int]*model.TopProduct)
	for _, o := range m.orders {
		if !chargedStatus(o.Status) {
			continue
		}
		for _, it := range o.Items {
			tp, ok := byProduct[it.ProductID]
			if !ok {
				tp = &model.TopProduct{ProductID: it.ProductID, ProductName: m.products[it.ProductID].Name}
				byProduct[it.ProductID] = tp
			}
			tp.TotalSold += it.Quantity
			tp.TotalRevenue += it.Price * float64(it.Quantity)
		}
	}

	var list []model.TopProduct
	for _, tp := range byProduct {
		list = append(list, *tp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].TotalSold != list[j].TotalSold {
			return list[i].TotalSold > list[j].TotalSold
		}
		return list[i].ProductID < list[j].ProductID
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memStore) GetRevenueSummary(ctx context.Context) (model.RevenueSummary, error) {
	var sum model.RevenueSummary
	for _, o := range m.orders {
		if chargedStatus(o.Status) {
			sum.TotalRevenue += o.TotalPrice
			sum.TotalOrders++
		}
	}
	if sum.TotalOrders > 0 {
		sum.AverageOrderValue = sum.TotalRevenue / float64(sum.TotalOrders)
	}
	return sum, nil
}
