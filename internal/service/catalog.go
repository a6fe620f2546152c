package service

import (
	"context"

	"github.com/avolkov/shopcore/internal/model"
)

type CatalogStore interface {
	CreateCategory(ctx context.Context, c model.Category) (model.Category, error)
	UpdateCategory(ctx context.Context, c model.Category) error
	DeleteCategory(ctx context.Context, id int) error
	GetCategoryByID(ctx context.Context, id int) (model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)

	CreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) error
	DeleteProduct(ctx context.Context, id int) error
	GetProductByID(ctx context.Context, id int) (model.Product, error)
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
}

// CatalogService is a thin layer over storage: catalog writes touch a
// single aggregate, so there is no unit-of-work choreography here.
type CatalogService struct {
	store CatalogStore
}

func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) CreateCategory(ctx context.Context, req model.CategoryRequest) (model.Category, error) {
	return s.store.CreateCategory(ctx, model.Category{Name: req.Name, Description: req.Description})
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id int, req model.CategoryRequest) (model.Category, error) {
	c := model.Category{ID: id, Name: req.Name, Description: req.Description}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return model.Category{}, err
	}
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id int) error {
	return s.store.DeleteCategory(ctx, id)
}

func (s *CatalogService) GetCategory(ctx context.Context, id int) (model.Category, error) {
	return s.store.GetCategoryByID(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *CatalogService) CreateProduct(ctx context.Context, req model.ProductRequest) (model.Product, error) {
	return s.store.CreateProduct(ctx, model.Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	})
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int, req model.ProductRequest) (model.Product, error) {
	p := model.Product{
		ID:          id,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int) error {
	return s.store.DeleteProduct(ctx, id)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int) (model.Product, error) {
	return s.store.GetProductByID(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.store.ListProducts(ctx, f)
}
