package synckit

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductType is the kind of catalogue entry.
type ProductType string

const (
	ProductTypeProduct ProductType = "Product"
	ProductTypeService ProductType = "Service"
)

// ProductRecord is a product held by the local store. Remote rows have
// IsPending false; rows created by EnqueueOffline carry IsPending true until
// the remote confirms them.
type ProductRecord struct {
	ID             int64
	Image          string
	Price          decimal.Decimal
	Name           string
	Type           ProductType
	Tax            decimal.Decimal
	LocalThumbnail string
	IsPending      bool
}

// StableKey identifies the same logical product across the pending and the
// confirmed copy. Decimals are kept in canonical form so 10 and 10.00 match.
type StableKey struct {
	Name  string
	Type  string
	Price string
	Tax   string
}

// NewStableKey builds the key from raw fields.
func NewStableKey(name, typ string, price, tax decimal.Decimal) StableKey {
	return StableKey{
		Name:  strings.TrimSpace(name),
		Type:  strings.TrimSpace(typ),
		Price: price.String(),
		Tax:   tax.String(),
	}
}

// Key returns the record's stable key.
func (r ProductRecord) Key() StableKey {
	return NewStableKey(r.Name, string(r.Type), r.Price, r.Tax)
}

// PendingUpload is a queued write waiting for the remote. LocalProductID
// points at the placeholder ProductRecord shown while offline.
type PendingUpload struct {
	ID             int64
	Name           string
	Type           string
	Price          string
	Tax            string
	ImagePath      string
	CreatedAt      time.Time
	LocalProductID *int64
}

// Input converts the queued row back into the user input it came from.
func (p PendingUpload) Input() ProductInput {
	in := ProductInput{
		Name:  p.Name,
		Type:  p.Type,
		Price: p.Price,
		Tax:   p.Tax,
	}
	if p.ImagePath != "" {
		in.Images = []string{p.ImagePath}
	}
	return in
}

// ProductsChange is one value of the store's change feed. Exactly one of
// Records and Err is meaningful.
type ProductsChange struct {
	Records []ProductRecord
	Err     error
}

// ProductDTO is one row of the remote listing.
type ProductDTO struct {
	Image string
	Price decimal.Decimal
	Name  string
	Type  string
	Tax   decimal.Decimal
}

// Record maps the remote row to a confirmed ProductRecord.
func (d ProductDTO) Record() ProductRecord {
	return ProductRecord{
		Image: d.Image,
		Price: d.Price,
		Name:  d.Name,
		Type:  ProductType(d.Type),
		Tax:   d.Tax,
	}
}

// CreateProductRequest is what the remote create endpoint accepts.
type CreateProductRequest struct {
	Name      string
	Type      string
	Price     string
	Tax       string
	Image     []byte
	ImageName string
}

// CreateReceipt is the remote's answer to a create.
type CreateReceipt struct {
	Message   string
	ProductID string
}

// Constraints restrict when a scheduled sync may run.
type Constraints struct {
	RequireNetwork bool
}

// DefaultConstraints only lets the uploader run while the remote is reachable.
var DefaultConstraints = Constraints{RequireNetwork: true}

// ProcessResult summarizes one pass over the pending queue.
type ProcessResult struct {
	Before int
	After  int
	Synced int
	Failed int
}

// SubmitOutcome says how Submit stored the product.
type SubmitOutcome int

const (
	SubmitRejected SubmitOutcome = iota
	SubmitOnline
	SubmitSavedOffline
)

func (o SubmitOutcome) String() string {
	switch o {
	case SubmitOnline:
		return "online"
	case SubmitSavedOffline:
		return "saved_offline"
	default:
		return "rejected"
	}
}

// SubmitResult is returned by Submit. Err is set only when the product was
// neither created remotely nor queued.
type SubmitResult struct {
	Outcome SubmitOutcome
	Pending *PendingUpload
	Err     error
}
