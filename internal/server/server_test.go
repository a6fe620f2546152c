package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avolkov/shopcore/internal/auth"
	"github.com/avolkov/shopcore/internal/config"
	"github.com/avolkov/shopcore/internal/errs"
	"github.com/avolkov/shopcore/internal/middleware"
	"github.com/avolkov/shopcore/internal/mocks"
	"github.com/avolkov/shopcore/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type serverMocks struct {
	users     *mocks.MockUserStorage
	orders    *mocks.MockOrders
	wallets   *mocks.MockWallets
	catalog   *mocks.MockCatalog
	reviews   *mocks.MockReviews
	analytics *mocks.MockAnalytics
}

func setup(t *testing.T) (*Server, *serverMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := &serverMocks{
		users:     mocks.NewMockUserStorage(ctrl),
		orders:    mocks.NewMockOrders(ctrl),
		wallets:   mocks.NewMockWallets(ctrl),
		catalog:   mocks.NewMockCatalog(ctrl),
		reviews:   mocks.NewMockReviews(ctrl),
		analytics: mocks.NewMockAnalytics(ctrl),
	}

	logger := zaptest.NewLogger(t)
	cfg := &config.Config{Logger: logger.Sugar()}
	tokens := auth.NewTokenManager("testsecret")

	srv := NewServer(m.users, m.orders, m.wallets, m.catalog, m.reviews, m.analytics, cfg, tokens)

	return srv, m
}

func newAuthenticatedRequest(method, path, token string, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func asUser(req *http.Request, user model.User) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserContextKey, user)
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestRegisterHandler(t *testing.T) {
	srv, m := setup(t)

	m.users.EXPECT().
		CreateUser(gomock.Any(), "user", gomock.Any(), model.RoleUser).
		Return(nil)

	m.users.EXPECT().
		GetUserByLogin(gomock.Any(), "user").
		Return(model.User{ID: 1, Login: "user", Role: model.RoleUser}, "", nil)

	payload := `{"login":"user","password":"pass"}`
	req := httptest.NewRequest("POST", "/api/user/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.RegisterHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	authHeader := resp.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		t.Errorf("missing token")
	}
}

func TestRegisterHandlerLoginTaken(t *testing.T) {
	srv, m := setup(t)

	m.users.EXPECT().
		CreateUser(gomock.Any(), "user", gomock.Any(), model.RoleUser).
		Return(errs.ErrLoginAlreadyExists)

	payload := `{"login":"user","password":"pass"}`
	req := httptest.NewRequest("POST", "/api/user/register", strings.NewReader(payload))
	w := httptest.NewRecorder()

	srv.RegisterHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

func TestLoginHandler(t *testing.T) {
	srv, m := setup(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("pass"), 10)
	m.users.EXPECT().
		GetUserByLogin(gomock.Any(), "user").
		Return(model.User{ID: 1, Login: "user", Role: model.RoleUser}, string(hash), nil)

	payload := `{"login":"user","password":"pass"}`
	req := httptest.NewRequest("POST", "/api/user/login", strings.NewReader(payload))
	w := httptest.NewRecorder()

	srv.LoginHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestLoginHandlerWrongPassword(t *testing.T) {
	srv, m := setup(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("pass"), 10)
	m.users.EXPECT().
		GetUserByLogin(gomock.Any(), "user").
		Return(model.User{ID: 1, Login: "user"}, string(hash), nil)

	payload := `{"login":"user","password":"wrong"}`
	req := httptest.NewRequest("POST", "/api/user/login", strings.NewReader(payload))
	w := httptest.NewRecorder()

	srv.LoginHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateOrderHandler(t *testing.T) {
	srv, m := setup(t)

	m.orders.EXPECT().
		Create(gomock.Any(), 1, []model.OrderItemRequest{{ProductID: 10, Quantity: 2}}).
		Return(model.Order{ID: 5, UserID: 1, Status: model.Pending, TotalPrice: 60}, nil)

	body := `{"items":[{"product_id":10,"quantity":2}]}`
	req := asUser(httptest.NewRequest("POST", "/api/orders", strings.NewReader(body)), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.CreateOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
}

func TestCreateOrderHandlerEmptyItems(t *testing.T) {
	srv, _ := setup(t)

	body := `{"items":[]}`
	req := asUser(httptest.NewRequest("POST", "/api/orders", strings.NewReader(body)), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.CreateOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPayOrderHandler(t *testing.T) {
	srv, m := setup(t)

	m.orders.EXPECT().
		Pay(gomock.Any(), 5, 1).
		Return(model.Order{ID: 5, UserID: 1, Status: model.Paid}, nil)

	req := asUser(httptest.NewRequest("POST", "/api/orders/5/pay", nil), model.User{ID: 1})
	req = withURLParam(req, "id", "5")
	w := httptest.NewRecorder()

	srv.PayOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestPayOrderHandlerInsufficientFunds(t *testing.T) {
	srv, m := setup(t)

	m.orders.EXPECT().
		Pay(gomock.Any(), 5, 1).
		Return(model.Order{}, errs.ErrInsufficientFunds)

	req := asUser(httptest.NewRequest("POST", "/api/orders/5/pay", nil), model.User{ID: 1})
	req = withURLParam(req, "id", "5")
	w := httptest.NewRecorder()

	srv.PayOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", resp.StatusCode)
	}
}

func TestCheckoutHandlerPaymentFails(t *testing.T) {
	srv, m := setup(t)

	m.orders.EXPECT().
		CreateAndPay(gomock.Any(), 1, gomock.Any()).
		Return(model.Order{ID: 7, UserID: 1, Status: model.Pending}, errs.ErrInsufficientFunds)

	body := `{"items":[{"product_id":10,"quantity":1}]}`
	req := asUser(httptest.NewRequest("POST", "/api/orders/checkout", strings.NewReader(body)), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.CheckoutHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", resp.StatusCode)
	}
	// заказ должен вернуться в теле вместе с ошибкой
	if !strings.Contains(w.Body.String(), `"order"`) {
		t.Errorf("expected pending order in response, got %s", w.Body.String())
	}
}

func TestCancelOrderHandler(t *testing.T) {
	srv, m := setup(t)

	m.orders.EXPECT().
		Cancel(gomock.Any(), 5, 1).
		Return(model.Order{ID: 5, UserID: 1, Status: model.Refunded}, nil)

	req := asUser(httptest.NewRequest("POST", "/api/orders/5/cancel", nil), model.User{ID: 1})
	req = withURLParam(req, "id", "5")
	w := httptest.NewRecorder()

	srv.CancelOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestGetOrderHandlerForbidden(t *testing.T) {
	srv, m := setup(t)

	m.orders.EXPECT().
		GetByID(gomock.Any(), 5).
		Return(model.Order{ID: 5, UserID: 2, Status: model.Paid}, nil)

	req := asUser(httptest.NewRequest("GET", "/api/orders/5", nil), model.User{ID: 1, Role: model.RoleUser})
	req = withURLParam(req, "id", "5")
	w := httptest.NewRecorder()

	srv.GetOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func TestListOrdersHandlerEmpty(t *testing.T) {
	srv, m := setup(t)

	m.orders.EXPECT().
		ListByUser(gomock.Any(), 1).
		Return(nil, nil)

	req := asUser(httptest.NewRequest("GET", "/api/orders", nil), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.ListOrdersHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}

func TestUpdateOrderStatusHandler(t *testing.T) {
	srv, m := setup(t)

	m.orders.EXPECT().
		UpdateStatus(gomock.Any(), 5, model.Shipped).
		Return(model.Order{ID: 5, Status: model.Shipped}, nil)

	req := httptest.NewRequest("PATCH", "/api/admin/orders/5/status", strings.NewReader(`{"status":"SHIPPED"}`))
	req = withURLParam(req, "id", "5")
	w := httptest.NewRecorder()

	srv.UpdateOrderStatusHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestUpdateOrderStatusHandlerInvalidTransition(t *testing.T) {
	srv, m := setup(t)

	m.orders.EXPECT().
		UpdateStatus(gomock.Any(), 5, model.Delivered).
		Return(model.Order{}, errs.ErrInvalidState)

	req := httptest.NewRequest("PATCH", "/api/admin/orders/5/status", strings.NewReader(`{"status":"DELIVERED"}`))
	req = withURLParam(req, "id", "5")
	w := httptest.NewRecorder()

	srv.UpdateOrderStatusHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCreateWalletHandler(t *testing.T) {
	srv, m := setup(t)

	m.wallets.EXPECT().
		CreateWallet(gomock.Any(), 1, 100.0).
		Return(model.Wallet{ID: 1, UserID: 1, Balance: 100}, nil)

	body := `{"initial_balance":100}`
	req := asUser(httptest.NewRequest("POST", "/api/wallet", strings.NewReader(body)), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.CreateWalletHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
}

func TestDepositHandlerRejectsNegativeAmount(t *testing.T) {
	srv, _ := setup(t)

	body := `{"amount":-5}`
	req := asUser(httptest.NewRequest("POST", "/api/wallet/deposit", strings.NewReader(body)), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.DepositHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWithdrawHandlerInsufficientFunds(t *testing.T) {
	srv, m := setup(t)

	m.wallets.EXPECT().
		Withdraw(gomock.Any(), 1, 50.0).
		Return(model.Wallet{}, errs.ErrInsufficientFunds)

	body := `{"amount":50}`
	req := asUser(httptest.NewRequest("POST", "/api/wallet/withdraw", strings.NewReader(body)), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.WithdrawHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", resp.StatusCode)
	}
}

func TestGetTransactionsHandlerEmpty(t *testing.T) {
	srv, m := setup(t)

	m.wallets.EXPECT().
		TransactionHistory(gomock.Any(), 1).
		Return(nil, nil)

	req := asUser(httptest.NewRequest("GET", "/api/wallet/transactions", nil), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.GetTransactionsHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}

func TestListProductsHandlerParsesFilter(t *testing.T) {
	srv, m := setup(t)

	min := 10.0
	m.catalog.EXPECT().
		ListProducts(gomock.Any(), model.ProductFilter{
			Keyword:    "mug",
			CategoryID: 2,
			MinPrice:   &min,
			SortBy:     "price",
			SortOrder:  "desc",
			Page:       3,
			Limit:      5,
		}).
		Return([]model.Product{}, nil)

	req := httptest.NewRequest("GET", "/api/products?keyword=mug&category_id=2&min_price=10&sort_by=price&sort_order=desc&page=3&limit=5", nil)
	w := httptest.NewRecorder()

	srv.ListProductsHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCreateReviewHandler(t *testing.T) {
	srv, m := setup(t)

	m.reviews.EXPECT().
		Create(gomock.Any(), 1, model.ReviewRequest{ProductID: 10, Rating: 5, Comment: "good"}).
		Return(model.Review{ID: 1, UserID: 1, ProductID: 10, Rating: 5, Comment: "good"}, nil)

	body := `{"product_id":10,"rating":5,"comment":"good"}`
	req := asUser(httptest.NewRequest("POST", "/api/reviews", strings.NewReader(body)), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.CreateReviewHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
}

func TestCreateReviewHandlerRejectsBadRating(t *testing.T) {
	srv, _ := setup(t)

	body := `{"product_id":10,"rating":6}`
	req := asUser(httptest.NewRequest("POST", "/api/reviews", strings.NewReader(body)), model.User{ID: 1})
	w := httptest.NewRecorder()

	srv.CreateReviewHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDashboardHandler(t *testing.T) {
	srv, m := setup(t)

	m.analytics.EXPECT().
		DashboardStats(gomock.Any()).
		Return(model.DashboardStats{TotalOrders: 4, TotalUsers: 2, TotalRevenue: 120}, nil)

	req := httptest.NewRequest("GET", "/api/admin/analytics/dashboard", nil)
	w := httptest.NewRecorder()

	srv.DashboardHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(w.Body.String(), `"total_revenue":120`) {
		t.Errorf("expected revenue in body, got %s", w.Body.String())
	}
}

func TestTopProductsHandlerParsesLimit(t *testing.T) {
	srv, m := setup(t)

	m.analytics.EXPECT().
		TopProducts(gomock.Any(), 3).
		Return([]model.TopProduct{{ProductID: 11, ProductName: "plate", TotalSold: 4, TotalRevenue: 60}}, nil)

	req := httptest.NewRequest("GET", "/api/admin/analytics/top-products?limit=3", nil)
	w := httptest.NewRecorder()

	srv.TopProductsHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestTopProductsHandlerRejectsBadLimit(t *testing.T) {
	srv, _ := setup(t)

	req := httptest.NewRequest("GET", "/api/admin/analytics/top-products?limit=abc", nil)
	w := httptest.NewRecorder()

	srv.TopProductsHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRouterBlocksUserFromAdminRoutes(t *testing.T) {
	srv, m := setup(t)

	m.users.EXPECT().
		GetUserByID(gomock.Any(), 1).
		Return(model.User{ID: 1, Login: "user", Role: model.RoleUser}, nil)

	token, err := srv.tokens.GenerateToken(1, model.RoleUser)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	router := srv.buildRouter()
	req := newAuthenticatedRequest("GET", "/api/admin/orders", token, "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func TestRouterRejectsMissingToken(t *testing.T) {
	srv, _ := setup(t)

	router := srv.buildRouter()
	req := httptest.NewRequest("GET", "/api/wallet", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}
