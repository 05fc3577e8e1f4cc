package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/period"
)

// Source is the order data an invoice is generated from.
type Source struct {
	OrderID         string
	OrderNumber     string
	CustomerID      string
	VendorID        string
	BillingAddress  string
	DeliveryAddress string
	RentalPeriod    period.Range
	Lines           []SourceLine
	TaxRate         decimal.Decimal
	SecurityDeposit decimal.Decimal
	DeliveryCharges decimal.Decimal
	Discount        decimal.Decimal
	CouponCode      string
}

// SourceLine is one priced order item.
type SourceLine struct {
	ProductID   string
	ProductName string
	ProductSKU  string
	Period      period.Range
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
}

// Config holds invoice issuing settings.
type Config struct {
	Currency string
	DueDays  int
}

// Generator issues and transitions invoices.
type Generator struct {
	tx       Transactor
	invoices Repository
	parties  party.Repository
	cfg      Config
	now      func() time.Time
}

// NewGenerator creates a Generator.
func NewGenerator(tx Transactor, invoices Repository, parties party.Repository, cfg Config) *Generator {
	return &Generator{
		tx:       tx,
		invoices: invoices,
		parties:  parties,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate returns the order's invoice, issuing it first if none exists.
func (g *Generator) Generate(ctx context.Context, src Source) (*Invoice, error) {
	var out *Invoice
	err := g.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := g.invoices.GetByOrder(ctx, src.OrderID)
		switch {
		case err == nil:
			out = existing
			return nil
		case !errors.Is(err, ErrNotFound):
			return errors.Wrap(err, "get invoice by order")
		}

		customer, err := g.snapshot(ctx, src.CustomerID)
		if err != nil {
			return errors.Wrap(err, "snapshot customer")
		}
		vendor, err := g.snapshot(ctx, src.VendorID)
		if err != nil {
			return errors.Wrap(err, "snapshot vendor")
		}

		now := g.now().UTC()
		seq, err := g.invoices.NextNumber(ctx, now.Year())
		if err != nil {
			return errors.Wrap(err, "allocate invoice number")
		}

		inv := Build(src, now)
		inv.ID = uuid.New().String()
		inv.Number = FormatNumber(now.Year(), seq)
		inv.Customer = customer
		inv.Vendor = vendor
		inv.Currency = g.cfg.Currency
		inv.DueDate = now.AddDate(0, 0, g.cfg.DueDays)

		if err := g.invoices.Create(ctx, inv); err != nil {
			return errors.Wrap(err, "create invoice")
		}
		zctx.From(ctx).Info("Invoice issued",
			zap.String("invoice_number", inv.Number),
			zap.String("order_id", inv.OrderID),
			zap.String("total", inv.Total.StringFixed(2)),
		)
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Post moves a draft invoice to posted.
func (g *Generator) Post(ctx context.Context, id string) (*Invoice, error) {
	var out *Invoice
	err := g.tx.InTx(ctx, func(ctx context.Context) error {
		inv, err := g.invoices.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := inv.Post(); err != nil {
			return err
		}
		inv.UpdatedAt = g.now()
		if err := g.invoices.Update(ctx, inv); err != nil {
			return errors.Wrap(err, "update invoice")
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelForOrder voids the order's invoice if one was issued.
func (g *Generator) CancelForOrder(ctx context.Context, orderID string) error {
	return g.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := g.invoices.GetByOrder(ctx, orderID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "get invoice by order")
		}
		inv, err := g.invoices.GetForUpdate(ctx, existing.ID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return nil
		}
		if err := inv.Cancel(); err != nil {
			return err
		}
		inv.UpdatedAt = g.now()
		return g.invoices.Update(ctx, inv)
	})
}

// Get returns an invoice by id.
func (g *Generator) Get(ctx context.Context, id string) (*Invoice, error) {
	return g.invoices.Get(ctx, id)
}

// GetByOrder returns the invoice issued for an order.
func (g *Generator) GetByOrder(ctx context.Context, orderID string) (*Invoice, error) {
	return g.invoices.GetByOrder(ctx, orderID)
}

// List returns a page of invoices and the total count.
func (g *Generator) List(ctx context.Context, f Filter) ([]Invoice, int, error) {
	return g.invoices.List(ctx, f)
}

func (g *Generator) snapshot(ctx context.Context, id string) (PartySnapshot, error) {
	p, err := g.parties.GetByID(ctx, id)
	if err != nil {
		return PartySnapshot{}, err
	}
	return PartySnapshot{
		ID:          p.ID,
		Name:        p.Name,
		CompanyName: p.CompanyName,
		GSTIN:       p.GSTIN,
		Address:     p.Address,
	}, nil
}

// FormatNumber renders an invoice number as INV/{year}/{seq:05d}.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("INV/%d/%05d", year, seq)
}

// Build computes lines and totals of a draft invoice from src. Identity,
// numbering and party snapshots are left to the caller.
func Build(src Source, at time.Time) *Invoice {
	inv := &Invoice{
		OrderID:         src.OrderID,
		OrderNumber:     src.OrderNumber,
		BillingAddress:  src.BillingAddress,
		DeliveryAddress: src.DeliveryAddress,
		RentalPeriod:    src.RentalPeriod,
		TaxRate:         src.TaxRate,
		SecurityDeposit: src.SecurityDeposit.Round(2),
		DeliveryCharges: src.DeliveryCharges.Round(2),
		Discount:        src.Discount.Round(2),
		CouponCode:      src.CouponCode,
		Status:          StatusDraft,
		InvoiceDate:     at,
		CreatedAt:       at,
		UpdatedAt:       at,
	}

	subtotal, tax := decimal.Zero, decimal.Zero
	for _, l := range src.Lines {
		rng := l.Period
		inv.Lines = append(inv.Lines, Line{
			Kind:        LineRental,
			Description: l.ProductName,
			ProductID:   l.ProductID,
			ProductSKU:  l.ProductSKU,
			Period:      &rng,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
			Tax:         l.Tax,
			Total:       l.Subtotal.Add(l.Tax),
		})
		subtotal = subtotal.Add(l.Subtotal)
		tax = tax.Add(l.Tax)
	}
	if inv.SecurityDeposit.IsPositive() {
		inv.Lines = append(inv.Lines, Line{
			Kind:        LineDeposit,
			Description: "Security deposit (refundable)",
			Quantity:    1,
			UnitPrice:   inv.SecurityDeposit,
			Subtotal:    inv.SecurityDeposit,
			Tax:         decimal.Zero,
			Total:       inv.SecurityDeposit,
		})
	}
	if inv.DeliveryCharges.IsPositive() {
		inv.Lines = append(inv.Lines, Line{
			Kind:        LineDelivery,
			Description: "Delivery charges",
			Quantity:    1,
			UnitPrice:   inv.DeliveryCharges,
			Subtotal:    inv.DeliveryCharges,
			Tax:         decimal.Zero,
			Total:       inv.DeliveryCharges,
		})
	}

	inv.Subtotal = subtotal.Round(2)
	inv.Tax = tax.Round(2)
	inv.CGST = inv.Tax.Div(decimal.NewFromInt(2)).Round(2)
	inv.SGST = inv.Tax.Sub(inv.CGST)

	total := inv.Subtotal.Add(inv.Tax).Add(inv.SecurityDeposit).Add(inv.DeliveryCharges).Sub(inv.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	inv.Total = total.Round(2)
	inv.AmountPaid = decimal.Zero
	inv.AmountDue = inv.Total
	return inv
}
