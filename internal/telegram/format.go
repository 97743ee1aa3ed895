package telegram

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"dealcaster/internal/model"
)

const maxTitleLen = 100

type captionData struct {
	Title         string
	Highlights    string
	OriginalPrice string
	SalePrice     string
	Discount      string
	Rating        string
	Volume        int
	Link          string
	Shop          string
	CategoryTag   string
}

//go:embed caption.tmpl
var captionTpl string

var compiled = template.Must(template.New("caption").Parse(captionTpl))

// Caption renders the channel post text for a product. link is the URL the
// post should carry, which may be a click-tracking redirect rather than the
// raw affiliate URL.
func Caption(p model.Product, link string) (string, error) {
	title := strings.TrimSpace(p.Title)
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen-3]) + "..."
	}
	shop := p.ShopTitle
	if shop == "" {
		shop = "Loja"
	}
	d := captionData{
		Title:         title,
		Highlights:    highlights(p),
		OriginalPrice: fmt.Sprintf("%.2f", p.OriginalPrice),
		SalePrice:     fmt.Sprintf("%.2f", p.SalePrice),
		Discount:      fmt.Sprintf("%.0f", p.Discount),
		Rating:        fmt.Sprintf("%.1f", p.Rating),
		Volume:        p.Volume,
		Link:          link,
		Shop:          shop,
		CategoryTag:   categoryTag(p.Category),
	}
	var buf bytes.Buffer
	if err := compiled.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// highlights picks the badges shown next to the title.
func highlights(p model.Product) string {
	var out []string
	if p.Discount > 50 {
		out = append(out, "🔥 Super Desconto")
	}
	if p.Rating >= 4.5 {
		out = append(out, "⭐ Alta Avaliação")
	}
	if p.Volume > 1000 {
		out = append(out, "📈 Mais Vendido")
	}
	if p.Discount > 70 {
		out = append(out, "⚡ Oferta Relâmpago")
	}
	if len(out) == 0 {
		return "Promoção Especial"
	}
	return strings.Join(out, " | ")
}

// categoryTag turns a category name into a hashtag-safe word.
func categoryTag(category string) string {
	if category == "" || category == "general" {
		return ""
	}
	var b strings.Builder
	for _, word := range strings.Fields(category) {
		r := []rune(word)
		b.WriteString(strings.ToUpper(string(r[0])) + string(r[1:]))
	}
	return b.String()
}
