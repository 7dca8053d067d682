package domain

// Product is a recommended item. Sku is its identity.
type Product struct {
	Sku         string   `json:"sku"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"image_url,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	DetailURL   string   `json:"pdp_url,omitempty"`
}

// CloneProducts returns a copy of ps whose elements do not share tag slices
// with the input.
func CloneProducts(ps []Product) []Product {
	if ps == nil {
		return nil
	}
	out := make([]Product, len(ps))
	for i, p := range ps {
		p.Tags = append([]string(nil), p.Tags...)
		out[i] = p
	}
	return out
}
