package model

import "time"

// Product represents a marketplace item eligible for promotion in the
// current planning cycle. Produced per cycle; never persisted as-is.
type Product struct {
	ID             string  `json:"product_id"`
	Title          string  `json:"product_title"`
	OriginalPrice  float64 `json:"original_price"`
	SalePrice      float64 `json:"sale_price"`
	Discount       float64 `json:"discount"` // percent, derived from prices
	CommissionRate float64 `json:"commission_rate"`
	Rating         float64 `json:"rating"`
	ReviewCount    int     `json:"review_count"`
	Volume         int     `json:"volume"`
	ShopTitle      string  `json:"shop_title"`
	ImageURL       string  `json:"image_url"`
	ProductURL     string  `json:"product_url"`
	AffiliateURL   string  `json:"affiliate_url"`
	Category       string  `json:"category"`
}

// ScoredProduct decorates a product with its composite score.
type ScoredProduct struct {
	Product Product
	Score   float64
}

// PostingRecord is the durable per-product posting state, keyed by product id.
// Created on first successful post, upserted on reposts, updated by clicks.
type PostingRecord struct {
	ProductID       string     `json:"product_id"`
	PostedAt        time.Time  `json:"posted_at"`
	Clicks          int64      `json:"clicks"`
	ConversionScore float64    `json:"conversion_score"`
	EngagementScore float64    `json:"engagement_score"`
	LastClickAt     *time.Time `json:"last_click_at,omitempty"`
	Category        string     `json:"category"`
	Discount        float64    `json:"discount"`
	Rating          float64    `json:"rating"`
	Volume          int        `json:"volume"`
	Title           string     `json:"title"`
	AffiliateURL    string     `json:"affiliate_url"`
}

// Action kinds recorded in the product history log.
const (
	ActionPost  = "post"
	ActionClick = "click"
)

// HistoryEvent is one append-only log entry for a product.
type HistoryEvent struct {
	ProductID   string    `json:"product_id"`
	Action      string    `json:"action"`
	Timestamp   time.Time `json:"timestamp"`
	ScoreImpact float64   `json:"score_impact"`
}

// CategoryMetric aggregates per-category outcomes. Advisory only.
type CategoryMetric struct {
	Category      string    `json:"category"`
	AvgConversion float64   `json:"avg_conversion"`
	TotalPosts    int64     `json:"total_posts"`
	TotalClicks   int64     `json:"total_clicks"`
	LastUpdated   time.Time `json:"last_updated"`
}

// TrendingEntry tracks short-term click momentum for a product.
type TrendingEntry struct {
	ProductID     string    `json:"product_id"`
	TrendScore    float64   `json:"trend_score"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	ClickVelocity float64   `json:"click_velocity"` // clicks in the trailing hour
}

// TopProduct is a statistics row: a posted product and its click count.
type TopProduct struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Clicks    int64  `json:"clicks"`
}

// Statistics is the best-effort summary returned to administrative callers.
type Statistics struct {
	TotalPosts  int64        `json:"total_posts"`
	TotalClicks int64        `json:"total_clicks"`
	AvgScore    float64      `json:"avg_score"`
	TopProducts []TopProduct `json:"top_products"`
}
