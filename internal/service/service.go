package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo store.Repository
}

func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, fmt.Errorf("%w: product id required", store.ErrInvalidInput)
	}
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Price == nil || req.Stock == nil {
		return domain.Product{}, fmt.Errorf("%w: name, price and stock are required", store.ErrInvalidInput)
	}
	if *req.Price < 0 || *req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price and stock must not be negative", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:  name,
		Price: *req.Price,
		Stock: *req.Stock,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

// UpdateProduct replaces all mutable fields; partial payloads are rejected.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductRequest) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, fmt.Errorf("%w: product id required", store.ErrInvalidInput)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Price == nil || req.Stock == nil {
		return domain.Product{}, fmt.Errorf("%w: name, price and stock are required", store.ErrInvalidInput)
	}
	if *req.Price < 0 || *req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price and stock must not be negative", store.ErrInvalidInput)
	}

	updated, err := s.repo.UpdateProduct(ctx, domain.Product{
		ID:    id,
		Name:  name,
		Price: *req.Price,
		Stock: *req.Stock,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: product id required", store.ErrInvalidInput)
	}
	return s.repo.DeleteProduct(ctx, id)
}

// CreateSale validates the cart against live stock, snapshots prices into
// line items and hands the assembled transaction to the store, which commits
// inserts and stock decrements atomically.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Transaction, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID == "" {
		return domain.Transaction{}, fmt.Errorf("%w: missing actor", store.ErrInvalidInput)
	}

	items, err := normalizeItems(req.Items)
	if err != nil {
		return domain.Transaction{}, err
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.Transaction{}, err
	}
	if len(products) < len(ids) {
		return domain.Transaction{}, fmt.Errorf("%w: some products not found", store.ErrNotFound)
	}

	var total int64
	lines := make([]domain.TransactionItem, 0, len(items))
	for _, item := range items {
		product := products[item.ProductID]
		if item.Qty > product.Stock {
			return domain.Transaction{}, fmt.Errorf("%w: stock for %s is insufficient, available %d", store.ErrInsufficientStock, product.Name, product.Stock)
		}
		subtotal := product.Price * int64(item.Qty)
		total += subtotal
		lines = append(lines, domain.TransactionItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			Price:     product.Price,
			Subtotal:  subtotal,
		})
	}

	created, err := s.repo.CreateSale(ctx, domain.Transaction{
		ID:     xid.New("trx"),
		UserID: actor.ID,
		Total:  total,
		Items:  lines,
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return *created, nil
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, nil, nil)
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction id required", store.ErrInvalidInput)
	}
	tx, err := s.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

// normalizeItems trims and merges duplicate product ids so the distinct-id
// check and the per-product stock check see one line per product.
func normalizeItems(items []domain.CartItem) ([]domain.CartItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items are required", store.ErrInvalidInput)
	}

	merged := make([]domain.CartItem, 0, len(items))
	seen := make(map[string]int, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: productId is required", store.ErrInvalidInput)
		}
		if item.Qty < 1 {
			return nil, fmt.Errorf("%w: qty must be at least 1", store.ErrInvalidInput)
		}
		if idx, exists := seen[productID]; exists {
			merged[idx].Qty += item.Qty
			continue
		}
		seen[productID] = len(merged)
		merged = append(merged, domain.CartItem{ProductID: productID, Qty: item.Qty})
	}
	return merged, nil
}

// parseDateRange resolves optional ISO dates to an inclusive [start of day,
// end of day] window. Both bounds must be provided together.
func parseDateRange(startDate string, endDate string) (*time.Time, *time.Time, error) {
	startDate = strings.TrimSpace(startDate)
	endDate = strings.TrimSpace(endDate)
	if startDate == "" && endDate == "" {
		return nil, nil, nil
	}
	if startDate == "" || endDate == "" {
		return nil, nil, fmt.Errorf("%w: startDate and endDate must be provided together", store.ErrInvalidInput)
	}

	start, err := time.ParseInLocation("2006-01-02", startDate, time.UTC)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid startDate", store.ErrInvalidInput)
	}
	endDay, err := time.ParseInLocation("2006-01-02", endDate, time.UTC)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid endDate", store.ErrInvalidInput)
	}
	if endDay.Before(start) {
		return nil, nil, fmt.Errorf("%w: endDate must not precede startDate", store.ErrInvalidInput)
	}

	end := endDay.Add(24*time.Hour - time.Nanosecond)
	return &start, &end, nil
}
