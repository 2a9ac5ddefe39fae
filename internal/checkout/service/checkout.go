package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karyatek/storefront/internal/checkout/domain"
	"github.com/karyatek/storefront/internal/checkout/event"
	"github.com/karyatek/storefront/internal/checkout/repository"
	"github.com/karyatek/storefront/internal/owner"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// ConfirmationSender delivers the order confirmation after commit. Delivery
// failure never unwinds the order.
type ConfirmationSender interface {
	SendOrderConfirmation(ctx context.Context, order *domain.Order) error
}

// WarningNotificationFailed is surfaced to the caller when the confirmation
// could not be delivered. The order itself is committed and valid.
const WarningNotificationFailed = "order confirmation could not be delivered"

// CheckoutService converts carts into orders. The whole checkout runs in one
// database transaction so a failed attempt leaves the store untouched.
type CheckoutService struct {
	pool     database.DBTX
	orders   repository.OrderRepository
	sender   ConfirmationSender
	producer *event.Producer
	logger   *slog.Logger
}

// NewCheckoutService creates a checkout service. sender and producer may be
// nil, disabling confirmations and events respectively.
func NewCheckoutService(
	pool database.DBTX,
	orders repository.OrderRepository,
	sender ConfirmationSender,
	producer *event.Producer,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		pool:     pool,
		orders:   orders,
		sender:   sender,
		producer: producer,
		logger:   logger,
	}
}

// PlaceOrderInput holds the parameters for placing an order.
type PlaceOrderInput struct {
	ShippingAddress       domain.Address
	BillingAddress        *domain.Address
	BillingSameAsShipping bool
	PaymentMethod         string
	Notes                 string
}

// cartLine is the checkout-time view of one cart line, joined with the
// current catalog state inside the transaction.
type cartLine struct {
	variantID       uuid.UUID
	quantity        int
	productID       uuid.UUID
	productName     string
	productSlug     string
	basePriceCents  int64
	sku             string
	color           string
	size            string
	priceDeltaCents int64
	stock           int
}

// PlaceOrder converts the owner's cart into an order: it revalidates stock,
// decrements it, snapshots the purchased catalog state, computes totals,
// empties the cart, and records the completed payment, all in a single
// transaction. On success the confirmation is sent synchronously; a delivery
// failure is returned as a warning, never an error.
func (s *CheckoutService) PlaceOrder(ctx context.Context, own owner.Owner, input *PlaceOrderInput) (*domain.Order, []string, error) {
	if own.IsZero() {
		return nil, nil, apperrors.Unauthorized("a user or guest session is required")
	}
	if err := validateInput(input); err != nil {
		return nil, nil, err
	}

	billing := input.ShippingAddress
	if !input.BillingSameAsShipping && input.BillingAddress != nil {
		billing = *input.BillingAddress
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, nil, fmt.Errorf("begin checkout transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartID, lines, err := s.loadCart(ctx, tx, own)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, apperrors.Unprocessable("EMPTY_CART", "cart is empty")
	}

	// Decrement stock with a conditional update per line. The WHERE guard
	// serializes concurrent checkouts on the same variant: only one of two
	// racing decrements can pass stock >= quantity.
	for _, l := range lines {
		ct, err := tx.Exec(ctx,
			`UPDATE product_variants SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1`,
			l.quantity, l.variantID,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("decrement stock: %w", err)
		}
		if ct.RowsAffected() == 0 {
			available := 0
			if err := tx.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id = $1`, l.variantID).Scan(&available); err != nil {
				return nil, nil, fmt.Errorf("read stock for conflict report: %w", err)
			}
			return nil, nil, insufficientStock(l.variantID, available, l.quantity)
		}
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.New(),
		OrderNumber:     domain.NewOrderNumber(now),
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   input.PaymentMethod,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  billing,
		Notes:           input.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, l := range lines {
		snapshot, err := json.Marshal(domain.Snapshot{
			Product: domain.SnapshotProduct{
				ID:             l.productID,
				Name:           l.productName,
				Slug:           l.productSlug,
				BasePriceCents: l.basePriceCents,
			},
			Variant: domain.SnapshotVariant{
				ID:              l.variantID,
				SKU:             l.sku,
				Color:           l.color,
				Size:            l.size,
				PriceDeltaCents: l.priceDeltaCents,
				StockAtPurchase: l.stock,
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("marshal line snapshot: %w", err)
		}

		order.Lines = append(order.Lines, domain.OrderLine{
			ID:             uuid.New(),
			OrderID:        order.ID,
			VariantID:      l.variantID,
			ProductName:    l.productName,
			VariantLabel:   variantLabel(l.color, l.size, l.sku),
			SKU:            l.sku,
			UnitPriceCents: l.basePriceCents + l.priceDeltaCents,
			Quantity:       l.quantity,
			Snapshot:       snapshot,
			CreatedAt:      now,
		})
	}

	order.ComputeTotals()

	if err := s.insertOrder(ctx, tx, own, order); err != nil {
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return nil, nil, fmt.Errorf("empty cart: %w", err)
	}

	// The payment gateway is an external collaborator; here the charge is
	// considered settled and only the completed transition is recorded.
	order.PaymentStatus = domain.PaymentStatusCompleted
	order.TransactionRef = domain.NewTransactionRef()
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET payment_status = $1, transaction_ref = $2, updated_at = $3 WHERE id = $4`,
		order.PaymentStatus, order.TransactionRef, now, order.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("record payment completion: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit checkout transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID.String()),
		slog.String("order_number", order.OrderNumber),
		slog.String("owner_key", own.Key()),
		slog.Int64("total_cents", order.TotalCents),
		slog.Int("line_count", len(order.Lines)),
	)

	if s.producer != nil {
		if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.created event",
				slog.String("order_id", order.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	var warnings []string
	if s.sender != nil {
		if err := s.sender.SendOrderConfirmation(ctx, order); err != nil {
			s.logger.WarnContext(ctx, "order confirmation delivery failed",
				slog.String("order_id", order.ID.String()),
				slog.String("email", order.ShippingAddress.Email),
				slog.String("error", err.Error()),
			)
			warnings = append(warnings, WarningNotificationFailed)
		}
	}

	return order, warnings, nil
}

// loadCart reads the owner's cart and its lines joined with the current
// catalog state, inside the checkout transaction.
func (s *CheckoutService) loadCart(ctx context.Context, tx pgx.Tx, own owner.Owner) (uuid.UUID, []cartLine, error) {
	clause := "c.user_id = $1"
	var arg any = own.UserID()
	if !own.IsUser() {
		clause = "c.session_token = $1"
		arg = own.SessionToken()
	}

	var cartID uuid.UUID
	err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT c.id FROM carts c WHERE %s`, clause), arg).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil, apperrors.Unprocessable("EMPTY_CART", "cart is empty")
	}
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("load cart: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT ci.variant_id, ci.quantity,
		       p.id, p.name, p.slug, p.base_price_cents,
		       v.sku, v.color, v.size, v.price_delta_cents, v.stock
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`, cartID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("load cart lines: %w", err)
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(
			&l.variantID, &l.quantity,
			&l.productID, &l.productName, &l.productSlug, &l.basePriceCents,
			&l.sku, &l.color, &l.size, &l.priceDeltaCents, &l.stock,
		); err != nil {
			return uuid.Nil, nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, nil, fmt.Errorf("iterate cart lines: %w", err)
	}

	return cartID, lines, nil
}

func (s *CheckoutService) insertOrder(ctx context.Context, tx pgx.Tx, own owner.Owner, order *domain.Order) error {
	userID, sessionToken := own.SQLArgs()

	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, session_token, status, payment_status,
			payment_method, transaction_ref, shipping_address, billing_address,
			notes, subtotal_cents, tax_cents, shipping_cents, total_cents,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		order.ID, order.OrderNumber, userID, sessionToken, order.Status, order.PaymentStatus,
		order.PaymentMethod, order.TransactionRef, shippingJSON, billingJSON,
		order.Notes, order.SubtotalCents, order.TaxCents, order.ShippingCents, order.TotalCents,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, l := range order.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_lines (
				id, order_id, variant_id, product_name, variant_sku, variant_label,
				unit_price_cents, quantity, subtotal_cents, snapshot, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			l.ID, l.OrderID, l.VariantID, l.ProductName, l.SKU, l.VariantLabel,
			l.UnitPriceCents, l.Quantity, l.SubtotalCents, l.Snapshot, l.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return nil
}

// ListOrders returns the owner's orders newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, own owner.Owner, page, perPage int) ([]domain.Order, int, error) {
	orders, total, err := s.orders.ListByOwner(ctx, own, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// GetOrder returns one of the owner's orders. Foreign orders are not found.
func (s *CheckoutService) GetOrder(ctx context.Context, own owner.Owner, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByIDAndOwner(ctx, id, own)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus moves an order through its lifecycle. Only transitions
// allowed by the status flow are accepted; anything else is a conflict.
// Administrative path, callers are expected to be authorized already.
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	if !domain.IsValidOrderStatus(status) {
		return nil, apperrors.InvalidInput("unknown order status: " + status)
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order for status update: %w", err)
	}

	if !domain.CanTransition(order.Status, status) {
		return nil, apperrors.Conflict("INVALID_TRANSITION",
			fmt.Sprintf("order cannot move from %s to %s", order.Status, status))
	}

	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", id.String()),
		slog.String("from", order.Status),
		slog.String("to", status),
	)

	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	return order, nil
}

// validateInput checks the shipping and billing contact fields and the
// payment method, reporting every violated field at once.
func validateInput(input *PlaceOrderInput) error {
	fields := make(map[string]string)

	validateAddress("shipping", &input.ShippingAddress, fields)
	if !input.BillingSameAsShipping {
		if input.BillingAddress == nil {
			fields["billing"] = "billing address is required unless billing_same_as_shipping is set"
		} else {
			validateAddress("billing", input.BillingAddress, fields)
		}
	}

	if !domain.IsValidPaymentMethod(input.PaymentMethod) {
		fields["payment_method"] = "must be one of: credit_card, paypal, stripe"
	}

	if len(fields) > 0 {
		err := apperrors.Unprocessable("VALIDATION_ERROR", "checkout validation failed")
		for k, v := range fields {
			err = err.WithDetail(k, v)
		}
		return err
	}
	return nil
}

const maxAddressFieldLen = 255

func validateAddress(prefix string, a *domain.Address, fields map[string]string) {
	required := map[string]string{
		"full_name":     a.FullName,
		"email":         a.Email,
		"address_line1": a.AddressLine1,
		"city":          a.City,
		"state":         a.State,
		"postal_code":   a.PostalCode,
		"country":       a.Country,
	}
	for name, value := range required {
		key := prefix + "." + name
		switch {
		case value == "":
			fields[key] = "is required"
		case len(value) > maxAddressFieldLen:
			fields[key] = fmt.Sprintf("must not exceed %d characters", maxAddressFieldLen)
		}
	}

	// The confirmation goes to this address, so a malformed one fails the
	// checkout instead of a delivery attempt.
	if a.Email != "" && len(a.Email) <= maxAddressFieldLen {
		if _, err := mail.ParseAddress(a.Email); err != nil {
			fields[prefix+".email"] = "must be a valid email address"
		}
	}
}

func variantLabel(color, size, sku string) string {
	switch {
	case color != "" && size != "":
		return color + " / " + size
	case color != "":
		return color
	case size != "":
		return size
	default:
		return sku
	}
}

func insufficientStock(variantID uuid.UUID, available, requested int) error {
	return apperrors.Conflict("INSUFFICIENT_STOCK", "not enough stock to place the order").
		WithDetail("variant_id", variantID.String()).
		WithDetail("available", fmt.Sprintf("%d", available)).
		WithDetail("requested", fmt.Sprintf("%d", requested))
}
