package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	usersByID        map[string]domain.User
	userIDByEmail    map[string]string
	products         map[string]domain.Product
	transactionsByID map[string]domain.Transaction
}

func New() *Store {
	return &Store{
		usersByID:        make(map[string]domain.User),
		userIDByEmail:    make(map[string]string),
		products:         make(map[string]domain.Product),
		transactionsByID: make(map[string]domain.Transaction),
	}
}

// seedUsers builds the initial user accounts for dev/demo mode. Credentials
// are read from SEED_ADMIN_PASSWORD and SEED_KASIR_PASSWORD environment
// variables. If unset, hardcoded dev defaults are used with a warning printed
// to stdout. These credentials are never used in production (the backend uses
// PostgreSQL when DATABASE_URL is set).
func seedUsers() []domain.User {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	kasirPwd := envOr("SEED_KASIR_PASSWORD", "kasir123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_KASIR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_KASIR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := make([]domain.User, 0, 2)
	for _, u := range []struct {
		fullName string
		email    string
		password string
		role     string
	}{
		{"Admin Toko", "admin@kasirpos.local", adminPwd, domain.RoleAdmin},
		{"Kasir Satu", "kasir@kasirpos.local", kasirPwd, domain.RoleKasir},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		users = append(users, domain.User{
			ID:        xid.New("usr"),
			FullName:  u.fullName,
			Email:     u.email,
			Password:  string(hash),
			Role:      u.role,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()

	now := time.Now().UTC()
	for _, p := range []struct {
		name  string
		price int64
		stock int
	}{
		{"Mie Goreng Instan", 3500, 120},
		{"Telur 10 Butir", 26500, 80},
		{"Susu UHT 1L", 18900, 60},
		{"Roti Tawar", 17800, 40},
		{"Kopi Sachet", 2600, 200},
		{"Gula 1kg", 17400, 75},
		{"Teh Celup", 9800, 90},
		{"Air Mineral 600ml", 3900, 150},
		{"Keripik Singkong", 12800, 55},
		{"Coklat Batang", 8600, 70},
		{"Sabun Mandi", 7400, 65},
		{"Shampoo Sachet", 3200, 110},
	} {
		id := xid.New("prd")
		s.products[id] = domain.Product{
			ID:        id,
			Name:      p.name,
			Price:     p.price,
			Stock:     p.stock,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	for _, u := range seedUsers() {
		s.usersByID[u.ID] = u
		s.userIDByEmail[strings.ToLower(u.Email)] = u.ID
	}

	return s
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.userIDByEmail[email]; exists {
		return nil, store.ErrConflict
	}

	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.Role == "" {
		user.Role = domain.RoleKasir
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = email

	s.usersByID[user.ID] = user
	s.userIDByEmail[email] = user.ID

	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return cmpString(a.Email, b.Email)
	})
	return users, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, exists := s.products[id]; exists {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Price < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.Price < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) CreateSale(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.UserID == "" || len(tx.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	// Check every line against live stock before touching anything so a
	// failure leaves no partial decrement behind.
	for _, item := range tx.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: some products not found", store.ErrNotFound)
		}
		if product.Stock < item.Qty {
			return nil, fmt.Errorf("%w: stock for %s is insufficient, available %d", store.ErrInsufficientStock, product.Name, product.Stock)
		}
	}

	now := time.Now().UTC()
	if tx.ID == "" {
		tx.ID = xid.New("trx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}

	for i := range tx.Items {
		product := s.products[tx.Items[i].ProductID]
		product.Stock -= tx.Items[i].Qty
		product.UpdatedAt = now
		s.products[product.ID] = product

		if tx.Items[i].ID == "" {
			tx.Items[i].ID = xid.New("itm")
		}
		tx.Items[i].TransactionID = tx.ID
		tx.Items[i].Product = nil
	}
	tx.User = nil

	s.transactionsByID[tx.ID] = cloneTransaction(tx)

	joined := s.joinTransaction(tx)
	return &joined, nil
}

func (s *Store) ListTransactions(_ context.Context, from *time.Time, to *time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transactions := make([]domain.Transaction, 0, len(s.transactionsByID))
	for _, tx := range s.transactionsByID {
		if from != nil && tx.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && tx.CreatedAt.After(*to) {
			continue
		}
		transactions = append(transactions, s.joinTransaction(tx))
	}

	slices.SortFunc(transactions, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	return transactions, nil
}

func (s *Store) GetTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	joined := s.joinTransaction(tx)
	return &joined, nil
}

// joinTransaction attaches user and product snapshots. Caller must hold the lock.
func (s *Store) joinTransaction(tx domain.Transaction) domain.Transaction {
	joined := cloneTransaction(tx)
	if user, ok := s.usersByID[tx.UserID]; ok {
		u := user
		joined.User = &u
	}
	for i := range joined.Items {
		if product, ok := s.products[joined.Items[i].ProductID]; ok {
			p := product
			joined.Items[i].Product = &p
		}
	}
	return joined
}

func cloneTransaction(tx domain.Transaction) domain.Transaction {
	clone := tx
	clone.User = nil
	clone.Items = make([]domain.TransactionItem, len(tx.Items))
	copy(clone.Items, tx.Items)
	for i := range clone.Items {
		clone.Items[i].Product = nil
	}
	return clone
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
