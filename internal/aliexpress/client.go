// Package aliexpress talks to the AliExpress affiliate API: signed requests,
// product search and the hot-product feed.
package aliexpress

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dealcaster/internal/category"
	"dealcaster/internal/config"
	"dealcaster/internal/model"

	"github.com/go-resty/resty/v2"
)

const (
	endpointPath   = "/sop/rest"
	requestTimeout = 30 * time.Second

	methodSmartmatch = "aliexpress.affiliate.product.smartmatch"
	methodSearch     = "aliexpress.affiliate.product.search"
	methodDetail     = "aliexpress.affiliate.product.detail"

	productFields = "product_id,product_title,product_url,target_sale_price," +
		"target_original_price,commission_rate,shop_title,product_main_image_url," +
		"shop_url,volume,rating,review_count,discount"
)

// Client is the affiliate API client.
type Client struct {
	appKey     string
	appSecret  string
	trackingID string
	http       *resty.Client
	classifier category.Classifier
	now        func() time.Time
}

func NewClient(cfg config.AliExpressConfig, classifier category.Classifier) *Client {
	return &Client{
		appKey:     cfg.AppKey,
		appSecret:  cfg.AppSecret,
		trackingID: cfg.TrackingID,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(requestTimeout),
		classifier: classifier,
		now:        time.Now,
	}
}

// baseParams builds the common signed parameter set for an API method.
func (c *Client) baseParams(method string, extra map[string]string) map[string]string {
	params := map[string]string{
		"app_key":     c.appKey,
		"method":      method,
		"format":      "json",
		"v":           "2.0",
		"sign_method": "sha256",
		"timestamp":   strconv.FormatInt(c.now().UnixMilli(), 10),
		"tracking_id": c.trackingID,
	}
	for k, v := range extra {
		params[k] = v
	}
	params["sign"] = sign(c.appSecret, params)
	return params
}

func (c *Client) call(ctx context.Context, method string, extra map[string]string) ([]model.Product, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.baseParams(method, extra)).
		Get(endpointPath)
	if err != nil {
		return nil, fmt.Errorf("aliexpress: %s: %w", method, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("aliexpress: %s: status %d", method, resp.StatusCode())
	}
	raw, err := parseProducts(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("aliexpress: %s: %w", method, err)
	}
	out := make([]model.Product, 0, len(raw))
	for _, r := range raw {
		if p, ok := c.convert(r); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// FetchHot returns the trending product feed.
func (c *Client) FetchHot(ctx context.Context, limit int) ([]model.Product, error) {
	return c.call(ctx, methodSmartmatch, map[string]string{
		"fields":                productFields,
		"page_size":             strconv.Itoa(limit),
		"sort":                  "SALE_PRICE_ASC",
		"min_commission_rate":   "5",
		"platform_product_type": "ALL",
		"country":               "BR",
	})
}

// Search returns keyword results, keeping only products at or above the
// minimum discount.
func (c *Client) Search(ctx context.Context, keywords string, minDiscount, limit int) ([]model.Product, error) {
	products, err := c.call(ctx, methodSearch, map[string]string{
		"keywords":              keywords,
		"fields":                productFields,
		"page_size":             strconv.Itoa(limit),
		"sort":                  "SALE_PRICE_ASC",
		"min_commission_rate":   "5",
		"platform_product_type": "ALL",
		"country":               "BR",
	})
	if err != nil {
		return nil, err
	}
	out := products[:0]
	for _, p := range products {
		if p.Discount >= float64(minDiscount) {
			out = append(out, p)
		}
	}
	return out, nil
}

// FetchDetails returns one product, or nil when the API has no match.
func (c *Client) FetchDetails(ctx context.Context, productID string) (*model.Product, error) {
	products, err := c.call(ctx, methodDetail, map[string]string{
		"product_ids": productID,
		"fields":      productFields,
	})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// convert validates a raw row and derives the computed fields. Rows without
// an id, a title or positive prices are dropped.
func (c *Client) convert(r rawProduct) (model.Product, bool) {
	id := strings.TrimSpace(r.ProductID.String())
	title := strings.TrimSpace(r.ProductTitle)
	orig := r.TargetOriginalPrice.Value()
	sale := r.TargetSalePrice.Value()
	if id == "" || title == "" || orig <= 0 || sale <= 0 {
		return model.Product{}, false
	}
	p := model.Product{
		ID:             id,
		Title:          title,
		OriginalPrice:  orig,
		SalePrice:      sale,
		Discount:       (orig - sale) / orig * 100,
		CommissionRate: r.CommissionRate.Value(),
		Rating:         r.Rating.Value(),
		ReviewCount:    int(r.ReviewCount.Value()),
		Volume:         int(r.Volume.Value()),
		ShopTitle:      r.ShopTitle,
		ImageURL:       r.ProductMainImageURL,
		ProductURL:     r.ProductURL,
		AffiliateURL:   c.affiliateURL(r.ProductURL),
	}
	if c.classifier != nil {
		p.Category = c.classifier.Classify(p.Title)
	}
	return p, true
}

// affiliateURL appends the tracking parameters to a product URL.
func (c *Client) affiliateURL(productURL string) string {
	if productURL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(productURL, "?") {
		sep = "&"
	}
	return productURL + sep + "tracking_id=" + c.trackingID + "&aff_platform=api"
}
