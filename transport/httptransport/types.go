package httptransport

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/c0deZ3R0/productsync/synckit"
)

// json is a drop-in for encoding/json used for every wire payload.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Remote endpoints, relative to the client's base URL.
const (
	pathList   = "/public/get"
	pathAdd    = "/public/add"
	pathHealth = "/healthz"
)

// Multipart field names accepted by the create endpoint.
const (
	fieldName  = "product_name"
	fieldType  = "product_type"
	fieldPrice = "price"
	fieldTax   = "tax"
	fieldFiles = "files[]"
)

// JSONProduct is one row of the listing. Prices arrive as JSON numbers or
// strings; decimal accepts both.
type JSONProduct struct {
	Image       *string         `json:"image,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ProductName string          `json:"product_name"`
	ProductType string          `json:"product_type"`
	Tax         decimal.Decimal `json:"tax"`
}

// JSONCreateResponse is the create endpoint's body.
type JSONCreateResponse struct {
	Message   string `json:"message,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Success   *bool  `json:"success,omitempty"`
}

// JSONError is the body the reference server sends on failure.
type JSONError struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func toDTO(p JSONProduct, imageBase string) synckit.ProductDTO {
	var image string
	if p.Image != nil {
		image = NormalizeImageURL(*p.Image, imageBase)
	}
	return synckit.ProductDTO{
		Image: image,
		Price: p.Price,
		Name:  p.ProductName,
		Type:  p.ProductType,
		Tax:   p.Tax,
	}
}
