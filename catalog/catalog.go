package catalog

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultPageSize is how many products and prices one listing fetches.
const DefaultPageSize = 100

// ErrInvalidPrice is returned when a checkout is requested without a price id.
var ErrInvalidPrice = errors.New("invalid price id")

// Product is a sellable item as reported by the payment provider.
type Product struct {
	ID          string
	Name        string
	Description string
	Image       string
}

// Price is one price object. UnitAmount is in the currency's minor unit.
type Price struct {
	ID         string
	ProductID  string
	UnitAmount int64
	Currency   string
}

// CheckoutRequest describes a single-item, payment-mode checkout.
type CheckoutRequest struct {
	PriceID    string
	Quantity   int64
	SuccessURL string
	CancelURL  string
}

// Gateway is the payment provider surface the catalog needs.
type Gateway interface {
	ListProducts(ctx context.Context, limit int64) ([]Product, error)
	ListPrices(ctx context.Context, limit int64) ([]Price, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// Item is a product joined with its first matching price.
//
// UnitPrice and PriceID are nil when no price matched, so both keys are
// omitted from the JSON encoding.
type Item struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image"`
	UnitPrice   *float64 `json:"price,omitempty"`
	PriceID     *string  `json:"priceId,omitempty"`
}

// Config holds the fixed checkout parameters.
type Config struct {
	PageSize   int64
	SuccessURL string
	CancelURL  string
}

// Service joins products with prices and starts checkouts.
type Service struct {
	gateway Gateway
	config  Config
}

// NewService validates cfg and returns a Service backed by gw.
func NewService(gw Gateway, cfg Config) (*Service, error) {
	if gw == nil {
		return nil, errors.New("catalog: gateway is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, errors.New("catalog: success and cancel urls are required")
	}
	return &Service{gateway: gw, config: cfg}, nil
}

// List fetches one page of products and one page of prices concurrently and
// joins them. If either fetch fails no items are returned.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	var (
		products []Product
		prices   []Price
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.gateway.ListProducts(gctx, s.config.PageSize)
		return err
	})
	g.Go(func() error {
		var err error
		prices, err = s.gateway.ListPrices(gctx, s.config.PageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Join(products, prices), nil
}

// Join pairs every product with the first price in prices whose ProductID
// matches. Output order follows products.
func Join(products []Product, prices []Price) []Item {
	first := make(map[string]Price, len(prices))
	for _, p := range prices {
		if _, seen := first[p.ProductID]; !seen {
			first[p.ProductID] = p
		}
	}

	items := make([]Item, 0, len(products))
	for _, prod := range products {
		item := Item{
			Name:        prod.Name,
			Description: prod.Description,
			ImageURL:    prod.Image,
		}
		if price, ok := first[prod.ID]; ok {
			amount := float64(price.UnitAmount) / 100
			id := price.ID
			item.UnitPrice = &amount
			item.PriceID = &id
		}
		items = append(items, item)
	}
	return items
}

// CreateCheckout starts a payment-mode checkout for one unit of priceID and
// returns the provider-hosted URL.
func (s *Service) CreateCheckout(ctx context.Context, priceID string) (string, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return "", ErrInvalidPrice
	}
	return s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		PriceID:    priceID,
		Quantity:   1,
		SuccessURL: s.config.SuccessURL,
		CancelURL:  s.config.CancelURL,
	})
}
