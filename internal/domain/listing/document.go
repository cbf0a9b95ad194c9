// Package listing holds the searchable representation of a real-estate listing.
package listing

import (
	"fmt"
	"strconv"
)

// Payload keys of a listing's metadata.
const (
	KeyCompany       = "company"
	KeyPropertyID    = "property_id"
	KeyOperationType = "operation_type"
	KeyPrice         = "price"
	KeyCurrency      = "currency"
	KeyBranchPhone   = "branch_phone"
	KeyProducerPhone = "producer_phone"
	KeyTitle         = "title"
	KeyAddress       = "address"
	KeyLocation      = "location"
	KeyType          = "type"
	KeySurface       = "surface"
	KeyRooms         = "rooms"
	KeyBathrooms     = "bathrooms"
	KeyLink          = "link"
)

// UnknownOperation is the operation type of a listing without operations.
const UnknownOperation = "unknown"

// Price is a listing price as the feed reported it.
type Price struct {
	raw     string
	value   float64
	numeric bool
}

// NewPrice parses raw. Non-numeric values are kept verbatim.
func NewPrice(raw string) Price {
	if raw == "" {
		return Price{}
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return Price{raw: raw, value: v, numeric: true}
	}
	return Price{raw: raw}
}

// IsZero reports whether the feed had no price entry.
func (p Price) IsZero() bool { return p.raw == "" }

// IsNumeric reports whether the price parsed as a number.
func (p Price) IsNumeric() bool { return p.numeric }

// Value returns the numeric value (0 when not numeric).
func (p Price) Value() float64 { return p.value }

// String renders the price as it appears in listing content.
func (p Price) String() string { return p.raw }

// PayloadValue is the stored form: a number when numeric, otherwise the raw string.
func (p Price) PayloadValue() any {
	if p.numeric {
		return p.value
	}
	return p.raw
}

// Metadata is the structured side of a listing.
type Metadata struct {
	Company       string
	PropertyID    string
	OperationType string
	Price         Price
	Currency      string
	BranchPhone   string
	ProducerPhone string
	Title         string
	Address       string
	Location      string
	Type          string
	Surface       string
	Rooms         string
	Bathrooms     string
	Link          string
}

// Payload flattens the metadata into store payload values.
func (m Metadata) Payload() map[string]any {
	return map[string]any{
		KeyCompany:       m.Company,
		KeyPropertyID:    m.PropertyID,
		KeyOperationType: m.OperationType,
		KeyPrice:         m.Price.PayloadValue(),
		KeyCurrency:      m.Currency,
		KeyBranchPhone:   m.BranchPhone,
		KeyProducerPhone: m.ProducerPhone,
		KeyTitle:         m.Title,
		KeyAddress:       m.Address,
		KeyLocation:      m.Location,
		KeyType:          m.Type,
		KeySurface:       m.Surface,
		KeyRooms:         m.Rooms,
		KeyBathrooms:     m.Bathrooms,
		KeyLink:          m.Link,
	}
}

// Document is one listing ready for embedding. Immutable after New.
type Document struct {
	id       string
	content  string
	metadata Metadata
}

// New creates a document. id and content are required.
func New(id, content string, metadata Metadata) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("listing id is required")
	}
	if content == "" {
		return Document{}, fmt.Errorf("listing %s has empty content", id)
	}
	return Document{id: id, content: content, metadata: metadata}, nil
}

// ID returns the feed property id.
func (d Document) ID() string { return d.id }

// Content returns the denormalized text used for both embeddings.
func (d Document) Content() string { return d.content }

// Metadata returns a copy of the structured metadata.
func (d Document) Metadata() Metadata { return d.metadata }
