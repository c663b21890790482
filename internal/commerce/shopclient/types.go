package shopclient

// Product is the platform's listing resource, trimmed to the fields
// the engine reads or copies.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	BodyHTML string    `json:"body_html"`
	Vendor   string    `json:"vendor"`
	Tags     string    `json:"tags"`
	Handle   string    `json:"handle"`
	Status   string    `json:"status"`
	Images   []Image   `json:"images"`
	Variants []Variant `json:"variants"`
}

type Image struct {
	Src string `json:"src"`
}

type Variant struct {
	ID    int64  `json:"id"`
	Price string `json:"price"`
	SKU   string `json:"sku"`
}

// ProductSpec is the payload for creating a listing from scratch, the
// fallback when the duplicate call is not permitted. Variant prices
// are set up-front so no follow-up price update is needed.
type ProductSpec struct {
	Title    string    `json:"title"`
	BodyHTML string    `json:"body_html"`
	Vendor   string    `json:"vendor"`
	Tags     string    `json:"tags"`
	Status   string    `json:"status"`
	Images   []Image   `json:"images"`
	Variants []Variant `json:"variants"`
}

const (
	// StatusDraft keeps the private listing unpublished until the
	// winner opens their checkout link.
	StatusDraft = "draft"
)
