package models

import (
	"time"

	"github.com/google/uuid"
)

type ClientSex string

const (
	SexMale   ClientSex = "Male"
	SexFemale ClientSex = "Female"
)

func (s ClientSex) Valid() bool {
	return s == SexMale || s == SexFemale
}

type ProductType string

const (
	ProductTypeAll      ProductType = "all"
	ProductTypeServices ProductType = "services"
	ProductTypeProducts ProductType = "products"
)

func (t ProductType) Valid() bool {
	switch t {
	case ProductTypeAll, ProductTypeServices, ProductTypeProducts:
		return true
	}
	return false
}

// PairKey identifies a recommendation for dedup and reporting purposes.
type PairKey struct {
	SelectedProduct uuid.UUID
	ProposedProduct uuid.UUID
}

// ProductPair is a recommended product together with the product that
// triggered it. Two pairs are the same recommendation when their Key values
// are equal; Certainty is display-only and never part of the identity.
type ProductPair struct {
	SelectedProduct uuid.UUID
	ProposedProduct uuid.UUID
	Certainty       float64
}

func NewProductPair(selected, proposed uuid.UUID) ProductPair {
	return ProductPair{SelectedProduct: selected, ProposedProduct: proposed}
}

func (p ProductPair) Key() PairKey {
	return PairKey{SelectedProduct: p.SelectedProduct, ProposedProduct: p.ProposedProduct}
}

// RecommendationRecord is one element of the recommendations response body.
type RecommendationRecord struct {
	SelectedProduct uuid.UUID `json:"selectedProduct"`
	ProposedProduct uuid.UUID `json:"proposedProduct"`
	Certainty       float64   `json:"certainty"`
}

func (r RecommendationRecord) Pair() ProductPair {
	return ProductPair{
		SelectedProduct: r.SelectedProduct,
		ProposedProduct: r.ProposedProduct,
		Certainty:       r.Certainty,
	}
}

// ProductInfo is what the caller hands to the overlay for display. Icon is
// opaque to this module and passed through to the renderer.
type ProductInfo struct {
	Icon                 any
	Name                 string
	Description          string
	Certainty            float64
	OriginalProductID    uuid.UUID
	RecommendedProductID uuid.UUID
}

func (p ProductInfo) Pair() ProductPair {
	return ProductPair{
		SelectedProduct: p.OriginalProductID,
		ProposedProduct: p.RecommendedProductID,
		Certainty:       p.Certainty,
	}
}

// Displayable reports whether the product carries enough data to be shown.
func (p ProductInfo) Displayable() bool {
	return p.Name != "" && p.OriginalProductID != uuid.Nil && p.RecommendedProductID != uuid.Nil
}

// ReportEntry is one element of the report_success request body. Field order
// matches the wire format.
type ReportEntry struct {
	Sex             ClientSex `json:"sex" binding:"required,oneof=Male Female"`
	SelectedProduct uuid.UUID `json:"selected_product" binding:"required"`
	ProposedProduct uuid.UUID `json:"proposed_product" binding:"required"`
	Success         bool      `json:"success"`
}

// RecommendationQuery is the decoded form of a recommendations request as the
// companion service sees it. Exactly one of Sex and ClientID is set.
type RecommendationQuery struct {
	Sex          ClientSex   `json:"sex,omitempty"`
	ClientID     uuid.UUID   `json:"client,omitempty"`
	Number       int         `json:"number"`
	ProductType  ProductType `json:"proposed_product_type"`
	CurrentItems []uuid.UUID `json:"current_items"`
}

// ReportEvent is published to the message bus for every stored report entry.
type ReportEvent struct {
	EventID         uuid.UUID `json:"event_id"`
	Sex             ClientSex `json:"sex"`
	SelectedProduct uuid.UUID `json:"selected_product"`
	ProposedProduct uuid.UUID `json:"proposed_product"`
	Success         bool      `json:"success"`
	ReceivedAt      time.Time `json:"received_at"`
}

// RecalculationResult summarizes one run of the certainty recalculation.
type RecalculationResult struct {
	PairsUpdated int           `json:"pairs_updated"`
	Duration     time.Duration `json:"duration"`
	Generation   int64         `json:"generation"`
}
