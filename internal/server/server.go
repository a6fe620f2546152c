package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/avolkov/shopcore/internal/auth"
	"github.com/avolkov/shopcore/internal/config"
	"github.com/avolkov/shopcore/internal/errs"
	"github.com/avolkov/shopcore/internal/middleware"
	"github.com/avolkov/shopcore/internal/model"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

type UserStorage interface {
	CreateUser(ctx context.Context, login, passwordHash string, role model.Role) error
	GetUserByLogin(ctx context.Context, login string) (model.User, string, error)
	GetUserByID(ctx context.Context, id int) (model.User, error)
}

type Orders interface {
	Create(ctx context.Context, userID int, items []model.OrderItemRequest) (model.Order, error)
	Pay(ctx context.Context, orderID, userID int) (model.Order, error)
	CreateAndPay(ctx context.Context, userID int, items []model.OrderItemRequest) (model.Order, error)
	Cancel(ctx context.Context, orderID, userID int) (model.Order, error)
	UpdateStatus(ctx context.Context, orderID int, status model.OrderStatus) (model.Order, error)
	GetByID(ctx context.Context, orderID int) (model.Order, error)
	ListByUser(ctx context.Context, userID int) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
}

type Wallets interface {
	CreateWallet(ctx context.Context, userID int, initialBalance float64) (model.Wallet, error)
	Deposit(ctx context.Context, userID int, amount float64) (model.Wallet, error)
	Withdraw(ctx context.Context, userID int, amount float64) (model.Wallet, error)
	GetWallet(ctx context.Context, userID int) (model.Wallet, error)
	TransactionHistory(ctx context.Context, userID int) ([]model.Transaction, error)
}

type Catalog interface {
	CreateCategory(ctx context.Context, req model.CategoryRequest) (model.Category, error)
	UpdateCategory(ctx context.Context, id int, req model.CategoryRequest) (model.Category, error)
	DeleteCategory(ctx context.Context, id int) error
	GetCategory(ctx context.Context, id int) (model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)

	CreateProduct(ctx context.Context, req model.ProductRequest) (model.Product, error)
	UpdateProduct(ctx context.Context, id int, req model.ProductRequest) (model.Product, error)
	DeleteProduct(ctx context.Context, id int) error
	GetProduct(ctx context.Context, id int) (model.Product, error)
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
}

type Reviews interface {
	Create(ctx context.Context, userID int, req model.ReviewRequest) (model.Review, error)
	Update(ctx context.Context, reviewID, userID int, req model.ReviewRequest) (model.Review, error)
	Delete(ctx context.Context, reviewID, userID int) error
	DeleteByAdmin(ctx context.Context, reviewID int) error
	ListByProduct(ctx context.Context, productID int) ([]model.Review, error)
	ListByUser(ctx context.Context, userID int) ([]model.Review, error)
	ProductRating(ctx context.Context, productID int) (float64, int, error)
}

type Analytics interface {
	DashboardStats(ctx context.Context) (model.DashboardStats, error)
	TopProducts(ctx context.Context, limit int) ([]model.TopProduct, error)
	RevenueSummary(ctx context.Context) (model.RevenueSummary, error)
}

type Server struct {
	users     UserStorage
	orders    Orders
	wallets   Wallets
	catalog   Catalog
	reviews   Reviews
	analytics Analytics
	config    *config.Config
	tokens    *auth.TokenManager
	validate  *validator.Validate
}

func NewServer(users UserStorage, orders Orders, wallets Wallets, catalog Catalog, reviews Reviews, analytics Analytics, config *config.Config, tokens *auth.TokenManager) *Server {
	return &Server{
		users:     users,
		orders:    orders,
		wallets:   wallets,
		catalog:   catalog,
		reviews:   reviews,
		analytics: analytics,
		config:    config,
		tokens:    tokens,
		validate:  validator.New(),
	}
}

func (srv *Server) buildRouter() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(srv.config.Logger))
	router.Use(middleware.DecompressMiddleware)
	router.Use(middleware.CompressMiddleware(srv.config.Logger))

	router.Post("/api/user/register", srv.RegisterHandler)
	router.Post("/api/user/login", srv.LoginHandler)

	router.Get("/api/categories", srv.ListCategoriesHandler)
	router.Get("/api/categories/{id}", srv.GetCategoryHandler)
	router.Get("/api/products", srv.ListProductsHandler)
	router.Get("/api/products/{id}", srv.GetProductHandler)
	router.Get("/api/products/{id}/reviews", srv.ListProductReviewsHandler)

	// авторизованные ручки
	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(srv.users, srv.tokens))

		r.Post("/api/orders", srv.CreateOrderHandler)
		r.Post("/api/orders/checkout", srv.CheckoutHandler)
		r.Get("/api/orders", srv.ListOrdersHandler)
		r.Get("/api/orders/{id}", srv.GetOrderHandler)
		r.Post("/api/orders/{id}/pay", srv.PayOrderHandler)
		r.Post("/api/orders/{id}/cancel", srv.CancelOrderHandler)

		r.Post("/api/wallet", srv.CreateWalletHandler)
		r.Get("/api/wallet", srv.GetWalletHandler)
		r.Post("/api/wallet/deposit", srv.DepositHandler)
		r.Post("/api/wallet/withdraw", srv.WithdrawHandler)
		r.Get("/api/wallet/transactions", srv.GetTransactionsHandler)

		r.Post("/api/reviews", srv.CreateReviewHandler)
		r.Get("/api/reviews", srv.ListMyReviewsHandler)
		r.Put("/api/reviews/{id}", srv.UpdateReviewHandler)
		r.Delete("/api/reviews/{id}", srv.DeleteReviewHandler)

		r.Group(func(admin chi.Router) {
			admin.Use(middleware.AdminOnly)

			admin.Post("/api/admin/categories", srv.CreateCategoryHandler)
			admin.Put("/api/admin/categories/{id}", srv.UpdateCategoryHandler)
			admin.Delete("/api/admin/categories/{id}", srv.DeleteCategoryHandler)

			admin.Post("/api/admin/products", srv.CreateProductHandler)
			admin.Put("/api/admin/products/{id}", srv.UpdateProductHandler)
			admin.Delete("/api/admin/products/{id}", srv.DeleteProductHandler)

			admin.Get("/api/admin/orders", srv.ListAllOrdersHandler)
			admin.Patch("/api/admin/orders/{id}/status", srv.UpdateOrderStatusHandler)

			admin.Delete("/api/admin/reviews/{id}", srv.AdminDeleteReviewHandler)

			admin.Get("/api/admin/analytics/dashboard", srv.DashboardHandler)
			admin.Get("/api/admin/analytics/revenue", srv.RevenueHandler)
			admin.Get("/api/admin/analytics/top-products", srv.TopProductsHandler)
		})
	})

	return router
}

func (srv *Server) Run(ctx context.Context) error {
	router := srv.buildRouter()

	server := &http.Server{
		Addr:    srv.config.RunAddress,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srv.config.Logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return s.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrUserNotFound),
		errors.Is(err, errs.ErrProductNotFound),
		errors.Is(err, errs.ErrCategoryNotFound),
		errors.Is(err, errs.ErrOrderNotFound),
		errors.Is(err, errs.ErrWalletNotFound),
		errors.Is(err, errs.ErrReviewNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errs.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, errs.ErrInvalidState),
		errors.Is(err, errs.ErrInsufficientStock),
		errors.Is(err, errs.ErrLoginAlreadyExists),
		errors.Is(err, errs.ErrWalletAlreadyExists),
		errors.Is(err, errs.ErrReviewAlreadyExists),
		errors.Is(err, errs.ErrCategoryAlreadyExists),
		errors.Is(err, errs.ErrCategoryInUse),
		errors.Is(err, errs.ErrProductInUse):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, errs.ErrInvalidAmount),
		errors.Is(err, errs.ErrEmptyOrder):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.config.Logger.Errorf("internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func currentUser(r *http.Request) (model.User, bool) {
	user, ok := r.Context().Value(middleware.UserContextKey).(model.User)
	return user, ok
}

func idParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials

	if err := s.decodeAndValidate(r, &creds); err != nil {
		http.Error(w, "login and password required", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "hash error", http.StatusInternalServerError)
		return
	}

	err = s.users.CreateUser(r.Context(), creds.Login, string(hash), model.RoleUser)
	if err != nil {
		if errors.Is(err, errs.ErrLoginAlreadyExists) {
			http.Error(w, "login taken", http.StatusConflict)
			return
		}
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	user, _, err := s.users.GetUserByLogin(r.Context(), creds.Login)
	if err != nil {
		http.Error(w, "failed to fetch user", http.StatusInternalServerError)
		return
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials

	if err := s.decodeAndValidate(r, &creds); err != nil {
		http.Error(w, "login and password required", http.StatusBadRequest)
		return
	}

	user, hash, err := s.users.GetUserByLogin(r.Context(), creds.Login)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}
