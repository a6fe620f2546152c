package service

import (
	"context"
	"fmt"

	"github.com/avolkov/shopcore/internal/errs"
	"github.com/avolkov/shopcore/internal/model"
)

type ReviewStore interface {
	GetUserByID(ctx context.Context, id int) (model.User, error)
	GetProductByID(ctx context.Context, id int) (model.Product, error)

	CreateReview(ctx context.Context, r model.Review) (model.Review, error)
	UpdateReview(ctx context.Context, r model.Review) error
	DeleteReview(ctx context.Context, id int) error
	GetReviewByID(ctx context.Context, id int) (model.Review, error)
	ListReviewsByProduct(ctx context.Context, productID int) ([]model.Review, error)
	ListReviewsByUser(ctx context.Context, userID int) ([]model.Review, error)
	GetProductRating(ctx context.Context, productID int) (float64, int, error)
}

type ReviewService struct {
	store ReviewStore
}

func NewReviewService(store ReviewStore) *ReviewService {
	return &ReviewService{store: store}
}

// Create stores one review per user per product; a second review for
// the same product is rejected, the user is expected to update the
// existing one.
func (s *ReviewService) Create(ctx context.Context, userID int, req model.ReviewRequest) (model.Review, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return model.Review{}, err
	}
	if _, err := s.store.GetProductByID(ctx, req.ProductID); err != nil {
		return model.Review{}, err
	}

	return s.store.CreateReview(ctx, model.Review{
		UserID:    userID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
}

func (s *ReviewService) Update(ctx context.Context, reviewID, userID int, req model.ReviewRequest) (model.Review, error) {
	review, err := s.store.GetReviewByID(ctx, reviewID)
	if err != nil {
		return model.Review{}, err
	}
	if review.UserID != userID {
		return model.Review{}, fmt.Errorf("review %d does not belong to user %d: %w", reviewID, userID, errs.ErrInvalidState)
	}

	review.Rating = req.Rating
	review.Comment = req.Comment
	if err := s.store.UpdateReview(ctx, review); err != nil {
		return model.Review{}, err
	}

	return review, nil
}

func (s *ReviewService) Delete(ctx context.Context, reviewID, userID int) error {
	review, err := s.store.GetReviewByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.UserID != userID {
		return fmt.Errorf("review %d does not belong to user %d: %w", reviewID, userID, errs.ErrInvalidState)
	}

	return s.store.DeleteReview(ctx, reviewID)
}

func (s *ReviewService) DeleteByAdmin(ctx context.Context, reviewID int) error {
	if _, err := s.store.GetReviewByID(ctx, reviewID); err != nil {
		return err
	}
	return s.store.DeleteReview(ctx, reviewID)
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID int) ([]model.Review, error) {
	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListReviewsByProduct(ctx, productID)
}

func (s *ReviewService) ListByUser(ctx context.Context, userID int) ([]model.Review, error) {
	return s.store.ListReviewsByUser(ctx, userID)
}

func (s *ReviewService) ProductRating(ctx context.Context, productID int) (float64, int, error) {
	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		return 0, 0, err
	}
	return s.store.GetProductRating(ctx, productID)
}
