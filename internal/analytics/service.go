// Package analytics aggregates marketplace sales and dispute figures.
package analytics

import (
	"context"
	"sort"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Service handles analytics operations
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Summary is the admin overview of a date range.
type Summary struct {
	From            time.Time           `json:"from"`
	To              time.Time           `json:"to"`
	Transactions    int                 `json:"transactions"`
	CompletedSales  int                 `json:"completed_sales"`
	RefundedSales   int                 `json:"refunded_sales"`
	SalesVolume     decimal.Decimal     `json:"sales_volume"`
	PlatformFees    decimal.Decimal     `json:"platform_fees"`
	ByPaymentStatus map[string]int      `json:"by_payment_status"`
	ActiveListings  int                 `json:"active_listings"`
	OpenDisputes    int                 `json:"open_disputes"`
	DailySales      []DailySalesMetrics `json:"daily_sales"`
}

// DailySalesMetrics contains released sales for a single day
type DailySalesMetrics struct {
	Date    string          `json:"date"`
	Volume  decimal.Decimal `json:"volume"`
	Fees    decimal.Decimal `json:"fees"`
	Tickets int             `json:"tickets_sold"`
}

// SellerStats summarises one seller's history.
type SellerStats struct {
	SellerID          string          `json:"seller_id"`
	ActiveListings    int             `json:"active_listings"`
	CompletedSales    int             `json:"completed_sales"`
	SalesVolume       decimal.Decimal `json:"sales_volume"`
	DisputedSales     int             `json:"disputed_sales"`
	UnresolvedDispute bool            `json:"unresolved_dispute"`
}

type txnRow struct {
	PaymentStatus models.PaymentStatus `bun:"payment_status"`
	Amount        decimal.Decimal      `bun:"amount"`
	PlatformFee   decimal.Decimal      `bun:"platform_fee"`
	CreatedAt     time.Time            `bun:"created_at"`
}

// GetSummary returns sales figures for transactions created in [from, to).
// Released payments count as sales; listing and dispute counts are current.
func (s *Service) GetSummary(ctx context.Context, from, to time.Time) (*Summary, error) {
	if !to.After(from) {
		return nil, apperr.Validation("to must be after from")
	}

	var rows []txnRow
	err := s.db.NewSelect().
		Model((*models.Transaction)(nil)).
		Column("payment_status", "amount", "platform_fee", "created_at").
		Where("created_at >= ?", from).
		Where("created_at < ?", to).
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperr.Storage(err, "failed to load transactions")
	}

	summary := &Summary{
		From:            from,
		To:              to,
		Transactions:    len(rows),
		SalesVolume:     decimal.Zero,
		PlatformFees:    decimal.Zero,
		ByPaymentStatus: map[string]int{},
	}

	daily := map[string]*DailySalesMetrics{}
	for _, row := range rows {
		summary.ByPaymentStatus[string(row.PaymentStatus)]++
		switch row.PaymentStatus {
		case models.PaymentRefunded:
			summary.RefundedSales++
		case models.PaymentReleased:
			summary.CompletedSales++
			summary.SalesVolume = summary.SalesVolume.Add(row.Amount)
			summary.PlatformFees = summary.PlatformFees.Add(row.PlatformFee)

			day := row.CreatedAt.UTC().Format("2006-01-02")
			m, ok := daily[day]
			if !ok {
				m = &DailySalesMetrics{Date: day, Volume: decimal.Zero, Fees: decimal.Zero}
				daily[day] = m
			}
			m.Volume = m.Volume.Add(row.Amount)
			m.Fees = m.Fees.Add(row.PlatformFee)
			m.Tickets++
		}
	}

	summary.DailySales = make([]DailySalesMetrics, 0, len(daily))
	for _, m := range daily {
		summary.DailySales = append(summary.DailySales, *m)
	}
	sort.Slice(summary.DailySales, func(i, j int) bool {
		return summary.DailySales[i].Date < summary.DailySales[j].Date
	})

	summary.ActiveListings, err = s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("status = ?", models.TicketAvailable).
		Count(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to count listings")
	}

	summary.OpenDisputes, err = s.db.NewSelect().
		Model((*models.Dispute)(nil)).
		Where("status IN (?)", bun.In(models.UnresolvedDisputeStatuses)).
		Count(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to count disputes")
	}

	return summary, nil
}

// GetSellerStats returns the seller's listing and sales counts.
func (s *Service) GetSellerStats(ctx context.Context, sellerID string) (*SellerStats, error) {
	stats := &SellerStats{SellerID: sellerID, SalesVolume: decimal.Zero}

	var err error
	stats.ActiveListings, err = s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("seller_id = ?", sellerID).
		Where("status = ?", models.TicketAvailable).
		Count(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to count listings")
	}

	var rows []txnRow
	err = s.db.NewSelect().
		Model((*models.Transaction)(nil)).
		Column("payment_status", "amount", "platform_fee", "created_at").
		Where("seller_id = ?", sellerID).
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperr.Storage(err, "failed to load sales")
	}
	for _, row := range rows {
		switch row.PaymentStatus {
		case models.PaymentReleased:
			stats.CompletedSales++
			stats.SalesVolume = stats.SalesVolume.Add(row.Amount)
		case models.PaymentRefunded:
			stats.DisputedSales++
		}
	}

	stats.UnresolvedDispute, err = s.db.NewSelect().
		Model((*models.Dispute)(nil)).
		Join("JOIN transactions AS t ON t.id = dispute.transaction_id").
		Where("t.seller_id = ?", sellerID).
		Where("dispute.status IN (?)", bun.In(models.UnresolvedDisputeStatuses)).
		Exists(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "failed to check disputes of %s", sellerID)
	}
	return stats, nil
}
