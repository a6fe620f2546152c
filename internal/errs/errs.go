package errs

import "errors"

var ErrUserNotFound = errors.New("user not found")
var ErrProductNotFound = errors.New("product not found")
var ErrCategoryNotFound = errors.New("category not found")
var ErrOrderNotFound = errors.New("order not found")
var ErrWalletNotFound = errors.New("wallet not found")
var ErrReviewNotFound = errors.New("review not found")

var ErrInvalidState = errors.New("operation not allowed for current order state")
var ErrInsufficientFunds = errors.New("not enough balance")
var ErrInsufficientStock = errors.New("not enough stock")

var ErrInvalidAmount = errors.New("amount must be positive")
var ErrEmptyOrder = errors.New("order must contain at least one item")

var ErrLoginAlreadyExists = errors.New("login already exists")
var ErrCategoryAlreadyExists = errors.New("category already exists")
var ErrWalletAlreadyExists = errors.New("wallet already exists for this user")
var ErrReviewAlreadyExists = errors.New("product already reviewed by this user")
var ErrCategoryInUse = errors.New("category still has products")
var ErrProductInUse = errors.New("product is referenced by orders")

var ErrInvalidToken = errors.New("invalid token")
