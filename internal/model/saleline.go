package model

import "time"

// LifeCycle is a product maturity stage driving the new-product KPI.
type LifeCycle string

const (
	// LifeCycleNew marks recently launched products (IPN revenue).
	LifeCycleNew LifeCycle = "new"
	// LifeCycleMature marks established products.
	LifeCycleMature LifeCycle = "mature"
	// LifeCycleDeclining marks products being phased out.
	LifeCycleDeclining LifeCycle = "declining"
	// LifeCycleUndefined is the bucket for untagged products.
	LifeCycleUndefined LifeCycle = "undefined"
)

// SaleLine is one normalized invoice line, independent of the backend that
// supplied it. Amounts are signed: positive revenue, negative credit.
type SaleLine struct {
	InvoiceDate  time.Time
	CustomerName string
	BusinessLine string
	Channel      string
	Product      string
	OrderRef     string
	SellerName   string
	PharmaForm   string
	Region       string
	LifeCycle    LifeCycle
	CustomerID   int64
	SellerID     int64
	Amount       float64
	ExpiryRoute  bool
}

// HasSeller reports whether the line carries a seller reference. Credit
// notes and manual adjustments often do not.
func (s SaleLine) HasSeller() bool {
	return s.SellerID != 0
}
