package aliexpress

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The API answers with one of several response envelopes depending on the
// method. Each known shape gets its own field; the parser picks whichever is
// present instead of probing keys ad hoc.
type envelope struct {
	Smartmatch *productResult `json:"aliexpress_affiliate_product_smartmatch_response"`
	Search     *productResult `json:"aliexpress_affiliate_product_search_response"`
	Detail     *productResult `json:"aliexpress_affiliate_product_detail_response"`
}

type productResult struct {
	Result struct {
		Products []rawProduct `json:"products"`
	} `json:"result"`
}

// rawProduct mirrors one product row. Numeric fields arrive as numbers or
// strings depending on the envelope, hence the flexible types.
type rawProduct struct {
	ProductID           flexString `json:"product_id"`
	ProductTitle        string     `json:"product_title"`
	TargetOriginalPrice flexFloat  `json:"target_original_price"`
	TargetSalePrice     flexFloat  `json:"target_sale_price"`
	CommissionRate      flexFloat  `json:"commission_rate"`
	Rating              flexFloat  `json:"rating"`
	ReviewCount         flexFloat  `json:"review_count"`
	Volume              flexFloat  `json:"volume"`
	ShopTitle           string     `json:"shop_title"`
	ProductMainImageURL string     `json:"product_main_image_url"`
	ProductURL          string     `json:"product_url"`
}

// parseProducts decodes an API response body and returns the product rows of
// whichever envelope the response carried.
func parseProducts(body []byte) ([]rawProduct, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch {
	case env.Smartmatch != nil:
		return env.Smartmatch.Result.Products, nil
	case env.Search != nil:
		return env.Search.Result.Products, nil
	case env.Detail != nil:
		return env.Detail.Result.Products, nil
	default:
		return nil, fmt.Errorf("unrecognized response envelope")
	}
}

// flexFloat decodes JSON numbers and numeric strings alike; anything else
// becomes zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

func (f flexFloat) Value() float64 { return float64(f) }

// flexString decodes JSON strings and bare numbers alike.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	*s = flexString(strings.Trim(string(b), `"`))
	if string(*s) == "null" {
		*s = ""
	}
	return nil
}

func (s flexString) String() string { return string(s) }
