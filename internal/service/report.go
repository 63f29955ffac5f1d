package service

import (
	"context"
	"sort"

	"kasirpos/backend/internal/domain"
)

// SalesReport aggregates transactions inside the optional date window into
// summary totals, per-day revenue and a top-5 products ranking.
func (s *Service) SalesReport(ctx context.Context, startDate string, endDate string) (domain.SalesReport, error) {
	from, to, err := parseDateRange(startDate, endDate)
	if err != nil {
		return domain.SalesReport{}, err
	}

	transactions, err := s.repo.ListTransactions(ctx, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}

	return buildReport(transactions), nil
}

func buildReport(transactions []domain.Transaction) domain.SalesReport {
	report := domain.SalesReport{
		RevenueByDate: make(map[string]int64),
		TopProducts:   []domain.TopProduct{},
		Transactions:  transactions,
	}
	report.Summary.TotalTransactions = len(transactions)

	perProduct := make(map[string]*domain.TopProduct)
	for _, tx := range transactions {
		report.Summary.TotalRevenue += tx.Total
		day := tx.CreatedAt.UTC().Format("2006-01-02")
		report.RevenueByDate[day] += tx.Total

		for _, item := range tx.Items {
			entry, exists := perProduct[item.ProductID]
			if !exists {
				name := item.ProductID
				if item.Product != nil {
					name = item.Product.Name
				}
				entry = &domain.TopProduct{ProductID: item.ProductID, Name: name}
				perProduct[item.ProductID] = entry
			}
			entry.Qty += item.Qty
			entry.Revenue += item.Subtotal
		}
	}

	ranked := make([]domain.TopProduct, 0, len(perProduct))
	for _, entry := range perProduct {
		ranked = append(ranked, *entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Revenue == ranked[j].Revenue {
			return ranked[i].Name < ranked[j].Name
		}
		return ranked[i].Revenue > ranked[j].Revenue
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	report.TopProducts = ranked

	return report
}
