package catalog

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/goPortal/upstream"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

const (
	opListProducts   = "list_products"
	opListPrices     = "list_prices"
	opCreateCheckout = "create_checkout"
)

// StripeConfig configures [NewStripeGateway].
type StripeConfig struct {
	SecretKey string
	// APIBaseURL overrides the API endpoint. Empty uses the provider default.
	APIBaseURL string
	HTTPClient *http.Client
}

// StripeGateway implements [Gateway] on top of the Stripe API.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a gateway that never retries failed requests.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("catalog: stripe secret key is required")
	}

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		HTTPClient:        cfg.HTTPClient,
	}
	if cfg.APIBaseURL != "" {
		backendCfg.URL = stripe.String(cfg.APIBaseURL)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
	})
	return &StripeGateway{api: api}, nil
}

// ListProducts returns a single page of products in provider order.
func (g *StripeGateway) ListProducts(ctx context.Context, limit int64) ([]Product, error) {
	params := &stripe.ProductListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)
	params.Single = true

	it := g.api.Products.List(params)
	out := make([]Product, 0, limit)
	for it.Next() {
		p := it.Product()
		prod := Product{ID: p.ID, Name: p.Name, Description: p.Description}
		if len(p.Images) > 0 {
			prod.Image = p.Images[0]
		}
		out = append(out, prod)
	}
	if err := it.Err(); err != nil {
		return nil, stripeError(opListProducts, err)
	}
	return out, nil
}

// ListPrices returns a single page of prices in provider order.
func (g *StripeGateway) ListPrices(ctx context.Context, limit int64) ([]Price, error) {
	params := &stripe.PriceListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)
	params.Single = true

	it := g.api.Prices.List(params)
	out := make([]Price, 0, limit)
	for it.Next() {
		p := it.Price()
		price := Price{ID: p.ID, UnitAmount: p.UnitAmount, Currency: string(p.Currency)}
		if p.Product != nil {
			price.ProductID = p.Product.ID
		}
		out = append(out, price)
	}
	if err := it.Err(); err != nil {
		return nil, stripeError(opListPrices, err)
	}
	return out, nil
}

// CreateCheckoutSession creates a payment-mode session and returns its URL.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(req.Quantity),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", stripeError(opCreateCheckout, err)
	}
	if sess == nil || sess.URL == "" {
		var raw []byte
		if sess != nil && sess.LastResponse != nil {
			raw = sess.LastResponse.RawJSON
		}
		return "", upstream.New(opCreateCheckout, http.StatusOK, raw, errors.New("response missing url"))
	}
	return sess.URL, nil
}

// stripeError keeps the raw response body when the SDK recorded one and
// falls back to the SDK's own rendering of the error otherwise.
func stripeError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return upstream.New(op, 0, nil, err)
	}
	payload := []byte(se.Error())
	if se.LastResponse != nil && len(se.LastResponse.RawJSON) > 0 {
		payload = se.LastResponse.RawJSON
	}
	return upstream.New(op, se.HTTPStatusCode, payload, err)
}
