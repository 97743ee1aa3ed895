package aliexpress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealcaster/internal/category"
	"dealcaster/internal/config"
)

const searchBody = `{
  "aliexpress_affiliate_product_search_response": {
    "result": {
      "products": [
        {
          "product_id": 1005001234567890,
          "product_title": "Smartphone Android 128GB",
          "target_original_price": "599.99",
          "target_sale_price": 399.99,
          "commission_rate": "8",
          "rating": 4.5,
          "review_count": 234,
          "volume": "1500",
          "shop_title": "TechStore",
          "product_main_image_url": "https://img.example.com/1.jpg",
          "product_url": "https://example.com/item/1005001234567890.html"
        },
        {
          "product_id": "",
          "product_title": "Broken row",
          "target_original_price": 0,
          "target_sale_price": 10
        }
      ]
    }
  }
}`

func TestParseProductsEnvelopes(t *testing.T) {
	for _, env := range []string{
		"aliexpress_affiliate_product_smartmatch_response",
		"aliexpress_affiliate_product_search_response",
		"aliexpress_affiliate_product_detail_response",
	} {
		body := `{"` + env + `": {"result": {"products": [{"product_id": "42", "product_title": "x"}]}}}`
		rows, err := parseProducts([]byte(body))
		if err != nil {
			t.Fatalf("parseProducts(%s) error: %v", env, err)
		}
		if len(rows) != 1 || rows[0].ProductID.String() != "42" {
			t.Errorf("parseProducts(%s) = %+v", env, rows)
		}
	}
}

func TestParseProductsUnknownEnvelope(t *testing.T) {
	if _, err := parseProducts([]byte(`{"error_response": {"msg": "nope"}}`)); err == nil {
		t.Fatal("expected error for unknown envelope")
	}
}

func TestFlexTypes(t *testing.T) {
	rows, err := parseProducts([]byte(searchBody))
	if err != nil {
		t.Fatalf("parseProducts error: %v", err)
	}
	r := rows[0]
	if r.ProductID.String() != "1005001234567890" {
		t.Errorf("product id = %q", r.ProductID)
	}
	if r.TargetOriginalPrice.Value() != 599.99 {
		t.Errorf("original price = %v", r.TargetOriginalPrice.Value())
	}
	if r.TargetSalePrice.Value() != 399.99 {
		t.Errorf("sale price = %v", r.TargetSalePrice.Value())
	}
	if r.Volume.Value() != 1500 {
		t.Errorf("volume = %v", r.Volume.Value())
	}
}

func testClient(baseURL string) *Client {
	return NewClient(config.AliExpressConfig{
		AppKey:     "key",
		AppSecret:  "secret",
		TrackingID: "TRACK123",
		BaseURL:    baseURL,
	}, category.NewKeywordClassifier(category.DefaultRules()))
}

func TestSearchConvertsAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("method"); got != methodSearch {
			t.Errorf("method param = %q", got)
		}
		if r.URL.Query().Get("sign") == "" {
			t.Error("request not signed")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	products, err := c.Search(context.Background(), "smartphone", 30, 20)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("got %d products, want 1 (invalid row dropped, discount filter)", len(products))
	}
	p := products[0]
	if p.ID != "1005001234567890" {
		t.Errorf("id = %q", p.ID)
	}
	// (599.99-399.99)/599.99*100 ≈ 33.33
	if p.Discount < 33 || p.Discount > 34 {
		t.Errorf("discount = %v, want ≈33.33", p.Discount)
	}
	if p.Category != "electronics" {
		t.Errorf("category = %q, want electronics", p.Category)
	}
	if want := "https://example.com/item/1005001234567890.html?tracking_id=TRACK123&aff_platform=api"; p.AffiliateURL != want {
		t.Errorf("affiliate url = %q, want %q", p.AffiliateURL, want)
	}
}

func TestSearchMinDiscountExcludes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	products, err := c.Search(context.Background(), "smartphone", 50, 20)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("got %d products, want 0 with min discount 50", len(products))
	}
}

func TestFetchDetailsNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"aliexpress_affiliate_product_detail_response": {"result": {"products": []}}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	p, err := c.FetchDetails(context.Background(), "123")
	if err != nil {
		t.Fatalf("FetchDetails error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil product, got %+v", p)
	}
}

func TestFetchHotServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.FetchHot(context.Background(), 30); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestSignIsDeterministicAndSorted(t *testing.T) {
	a := sign("secret", map[string]string{"b": "2", "a": "1", "c": "3"})
	b := sign("secret", map[string]string{"c": "3", "a": "1", "b": "2"})
	if a != b {
		t.Errorf("sign not order-independent: %s vs %s", a, b)
	}
	if a != sign("secret", map[string]string{"a": "1", "b": "2", "c": "3"}) {
		t.Error("sign not deterministic")
	}
	if a == sign("other", map[string]string{"a": "1", "b": "2", "c": "3"}) {
		t.Error("sign ignores the secret")
	}
}
