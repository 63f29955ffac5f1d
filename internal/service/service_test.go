package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, domain.Actor) {
	t.Helper()

	repo := memory.New()
	ctx := context.Background()

	kasir, err := repo.CreateUser(ctx, domain.User{
		FullName: "Kasir Uji",
		Email:    "kasir@test.local",
		Password: "$2a$10$not-a-real-hash-but-nonempty",
		Role:     domain.RoleKasir,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return New(repo), repo, domain.Actor{ID: kasir.ID, Email: kasir.Email, Role: kasir.Role}
}

func seedProduct(t *testing.T, repo *memory.Store, name string, price int64, stock int) domain.Product {
	t.Helper()
	created, err := repo.CreateProduct(context.Background(), domain.Product{Name: name, Price: price, Stock: stock})
	if err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return *created
}

func TestCreateSaleComputesTotalsAndDecrementsStock(t *testing.T) {
	svc, repo, actor := newTestService(t)
	ctx := WithActor(context.Background(), actor)

	kopi := seedProduct(t, repo, "Kopi Sachet", 2600, 10)
	gula := seedProduct(t, repo, "Gula 1kg", 17400, 5)

	tx, err := svc.CreateSale(ctx, domain.SaleRequest{Items: []domain.CartItem{
		{ProductID: kopi.ID, Qty: 3},
		{ProductID: gula.ID, Qty: 2},
	}})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	wantTotal := int64(3*2600 + 2*17400)
	if tx.Total != wantTotal {
		t.Fatalf("expected total %d, got %d", wantTotal, tx.Total)
	}
	if len(tx.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(tx.Items))
	}

	var itemSum int64
	for _, item := range tx.Items {
		itemSum += item.Subtotal
	}
	if itemSum != tx.Total {
		t.Fatalf("total %d does not equal sum of subtotals %d", tx.Total, itemSum)
	}

	after, err := repo.GetProductByID(context.Background(), kopi.ID)
	if err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if after.Stock != 7 {
		t.Fatalf("expected stock 7 after sale, got %d", after.Stock)
	}
}

func TestCreateSalePriceSnapshotSurvivesProductUpdate(t *testing.T) {
	svc, repo, actor := newTestService(t)
	ctx := WithActor(context.Background(), actor)

	kopi := seedProduct(t, repo, "Kopi Sachet", 2600, 10)

	tx, err := svc.CreateSale(ctx, domain.SaleRequest{Items: []domain.CartItem{
		{ProductID: kopi.ID, Qty: 2},
	}})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	newPrice := int64(9999)
	newStock := 8
	if _, err := svc.UpdateProduct(ctx, kopi.ID, domain.ProductRequest{
		Name:  "Kopi Sachet",
		Price: &newPrice,
		Stock: &newStock,
	}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	reloaded, err := svc.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if reloaded.Items[0].Price != 2600 || reloaded.Items[0].Subtotal != 5200 {
		t.Fatalf("price snapshot changed after product update: %+v", reloaded.Items[0])
	}
	if reloaded.Total != 5200 {
		t.Fatalf("total changed after product update: %d", reloaded.Total)
	}
}

func TestCreateSaleInsufficientStockLeavesStateUnchanged(t *testing.T) {
	svc, repo, actor := newTestService(t)
	ctx := WithActor(context.Background(), actor)

	kopi := seedProduct(t, repo, "Kopi Sachet", 2600, 10)
	roti := seedProduct(t, repo, "Roti Tawar", 17800, 1)

	_, err := svc.CreateSale(ctx, domain.SaleRequest{Items: []domain.CartItem{
		{ProductID: kopi.ID, Qty: 2},
		{ProductID: roti.ID, Qty: 5},
	}})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Roti Tawar") || !strings.Contains(err.Error(), "1") {
		t.Fatalf("expected product name and available stock in message, got %q", err.Error())
	}

	after, err := repo.GetProductByID(context.Background(), kopi.ID)
	if err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if after.Stock != 10 {
		t.Fatalf("expected stock untouched at 10, got %d", after.Stock)
	}

	transactions, err := repo.ListTransactions(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(transactions) != 0 {
		t.Fatalf("expected no transactions after failed sale, got %d", len(transactions))
	}
}

func TestCreateSaleUnknownProduct(t *testing.T) {
	svc, repo, actor := newTestService(t)
	ctx := WithActor(context.Background(), actor)

	kopi := seedProduct(t, repo, "Kopi Sachet", 2600, 10)

	_, err := svc.CreateSale(ctx, domain.SaleRequest{Items: []domain.CartItem{
		{ProductID: kopi.ID, Qty: 1},
		{ProductID: "prd-missing", Qty: 1},
	}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if !strings.Contains(err.Error(), "some products not found") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestCreateSaleMergesDuplicateLines(t *testing.T) {
	svc, repo, actor := newTestService(t)
	ctx := WithActor(context.Background(), actor)

	kopi := seedProduct(t, repo, "Kopi Sachet", 2600, 10)

	tx, err := svc.CreateSale(ctx, domain.SaleRequest{Items: []domain.CartItem{
		{ProductID: kopi.ID, Qty: 2},
		{ProductID: kopi.ID, Qty: 3},
	}})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if len(tx.Items) != 1 {
		t.Fatalf("expected duplicate lines merged into 1 item, got %d", len(tx.Items))
	}
	if tx.Items[0].Qty != 5 {
		t.Fatalf("expected merged qty 5, got %d", tx.Items[0].Qty)
	}
}

func TestCreateSaleRejectsEmptyAndInvalidCarts(t *testing.T) {
	svc, repo, actor := newTestService(t)
	ctx := WithActor(context.Background(), actor)
	kopi := seedProduct(t, repo, "Kopi Sachet", 2600, 10)

	cases := []domain.SaleRequest{
		{},
		{Items: []domain.CartItem{{ProductID: "", Qty: 1}}},
		{Items: []domain.CartItem{{ProductID: kopi.ID, Qty: 0}}},
		{Items: []domain.CartItem{{ProductID: kopi.ID, Qty: -3}}},
	}
	for i, req := range cases {
		if _, err := svc.CreateSale(ctx, req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestCreateSaleRequiresActor(t *testing.T) {
	svc, repo, _ := newTestService(t)
	kopi := seedProduct(t, repo, "Kopi Sachet", 2600, 10)

	_, err := svc.CreateSale(context.Background(), domain.SaleRequest{Items: []domain.CartItem{{ProductID: kopi.ID, Qty: 1}}})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input without actor, got %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	price := int64(1000)
	stock := 5
	negative := int64(-1)

	cases := []domain.ProductRequest{
		{Name: "", Price: &price, Stock: &stock},
		{Name: "Teh Celup", Price: nil, Stock: &stock},
		{Name: "Teh Celup", Price: &price, Stock: nil},
		{Name: "Teh Celup", Price: &negative, Stock: &stock},
	}
	for i, req := range cases {
		if _, err := svc.CreateProduct(ctx, req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestUpdateProductRequiresAllFields(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	product := seedProduct(t, repo, "Teh Celup", 9800, 90)
	price := int64(10500)

	if _, err := svc.UpdateProduct(ctx, product.ID, domain.ProductRequest{Name: "Teh Celup Premium", Price: &price}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for partial update, got %v", err)
	}

	stock := 80
	updated, err := svc.UpdateProduct(ctx, product.ID, domain.ProductRequest{Name: "Teh Celup Premium", Price: &price, Stock: &stock})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if updated.Price != 10500 || updated.Stock != 80 {
		t.Fatalf("unexpected updated product: %+v", updated)
	}
}

func TestListUsersStripsPasswords(t *testing.T) {
	svc, _, _ := newTestService(t)

	users, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) == 0 {
		t.Fatalf("expected at least one user")
	}
	for _, u := range users {
		if u.Password != "" {
			t.Fatalf("expected password stripped for %s", u.Email)
		}
	}
}

func TestBuildReportRevenueByDate(t *testing.T) {
	d1 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 5, 2, 16, 0, 0, 0, time.UTC)

	report := buildReport([]domain.Transaction{
		{ID: "trx-1", Total: 100, CreatedAt: d1},
		{ID: "trx-2", Total: 50, CreatedAt: d1.Add(2 * time.Hour)},
		{ID: "trx-3", Total: 200, CreatedAt: d2},
	})

	if report.Summary.TotalTransactions != 3 {
		t.Fatalf("expected 3 transactions, got %d", report.Summary.TotalTransactions)
	}
	if report.Summary.TotalRevenue != 350 {
		t.Fatalf("expected revenue 350, got %d", report.Summary.TotalRevenue)
	}
	if report.RevenueByDate["2024-05-01"] != 150 {
		t.Fatalf("expected 150 on day one, got %d", report.RevenueByDate["2024-05-01"])
	}
	if report.RevenueByDate["2024-05-02"] != 200 {
		t.Fatalf("expected 200 on day two, got %d", report.RevenueByDate["2024-05-02"])
	}
}

func TestBuildReportTopProductsRanking(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	items := make([]domain.TransactionItem, 0, 7)
	for i, entry := range []struct {
		id      string
		name    string
		revenue int64
	}{
		{"prd-a", "Alpha", 300},
		{"prd-b", "Bravo", 500},
		{"prd-c", "Charlie", 100},
		{"prd-d", "Delta", 400},
		{"prd-e", "Echo", 250},
		{"prd-f", "Foxtrot", 150},
		{"prd-g", "Golf", 50},
	} {
		items = append(items, domain.TransactionItem{
			ID:        "itm-" + entry.id,
			ProductID: entry.id,
			Qty:       i + 1,
			Subtotal:  entry.revenue,
			Product:   &domain.Product{ID: entry.id, Name: entry.name},
		})
	}

	report := buildReport([]domain.Transaction{{ID: "trx-1", Total: 1750, CreatedAt: now, Items: items}})

	if len(report.TopProducts) != 5 {
		t.Fatalf("expected top list truncated to 5, got %d", len(report.TopProducts))
	}
	if report.TopProducts[0].Name != "Bravo" || report.TopProducts[1].Name != "Delta" {
		t.Fatalf("unexpected ranking head: %+v", report.TopProducts[:2])
	}
	for i := 1; i < len(report.TopProducts); i++ {
		if report.TopProducts[i].Revenue > report.TopProducts[i-1].Revenue {
			t.Fatalf("top products not sorted by revenue desc: %+v", report.TopProducts)
		}
	}
}

func TestBuildReportTieBreaksByName(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	report := buildReport([]domain.Transaction{{
		ID: "trx-1", Total: 400, CreatedAt: now,
		Items: []domain.TransactionItem{
			{ProductID: "prd-z", Qty: 1, Subtotal: 200, Product: &domain.Product{ID: "prd-z", Name: "Zulu"}},
			{ProductID: "prd-a", Qty: 1, Subtotal: 200, Product: &domain.Product{ID: "prd-a", Name: "Alpha"}},
		},
	}})

	if report.TopProducts[0].Name != "Alpha" || report.TopProducts[1].Name != "Zulu" {
		t.Fatalf("expected alphabetical tie-break, got %+v", report.TopProducts)
	}
}

func TestSalesReportDateFilter(t *testing.T) {
	svc, repo, actor := newTestService(t)
	ctx := WithActor(context.Background(), actor)

	kopi := seedProduct(t, repo, "Kopi Sachet", 2600, 100)
	if _, err := svc.CreateSale(ctx, domain.SaleRequest{Items: []domain.CartItem{{ProductID: kopi.ID, Qty: 2}}}); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	report, err := svc.SalesReport(ctx, today, today)
	if err != nil {
		t.Fatalf("SalesReport: %v", err)
	}
	if report.Summary.TotalTransactions != 1 {
		t.Fatalf("expected today's sale in report, got %d transactions", report.Summary.TotalTransactions)
	}

	past, err := svc.SalesReport(ctx, "2000-01-01", "2000-01-02")
	if err != nil {
		t.Fatalf("SalesReport past window: %v", err)
	}
	if past.Summary.TotalTransactions != 0 {
		t.Fatalf("expected empty report for past window, got %d", past.Summary.TotalTransactions)
	}
}

func TestParseDateRangeValidation(t *testing.T) {
	if _, _, err := parseDateRange("2024-05-01", ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected error for lone startDate, got %v", err)
	}
	if _, _, err := parseDateRange("2024-05-02", "2024-05-01"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected error for inverted range, got %v", err)
	}
	if _, _, err := parseDateRange("not-a-date", "2024-05-01"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected error for malformed date, got %v", err)
	}

	from, to, err := parseDateRange("", "")
	if err != nil || from != nil || to != nil {
		t.Fatalf("expected nil bounds when both empty, got %v %v %v", from, to, err)
	}

	from, to, err = parseDateRange("2024-05-01", "2024-05-01")
	if err != nil {
		t.Fatalf("parseDateRange: %v", err)
	}
	if !from.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start: %v", from)
	}
	if !to.After(*from) || !to.Before(from.Add(24*time.Hour)) {
		t.Fatalf("expected end of same day, got %v", to)
	}
}
