// Package normalize converts raw backend records into canonical sale lines.
package normalize

import "time"

// Source identifies which backend produced a raw record.
type Source string

const (
	// SourceLive marks records fetched from the transactional ERP.
	SourceLive Source = "live"
	// SourceArchive marks records fetched from the archival store.
	SourceArchive Source = "archive"
)

// SignConvention describes how a source encodes the sign of an amount.
type SignConvention int

const (
	// ConventionLedger means the amount is a raw accounting balance where
	// revenue is credit-negative; normalization negates it.
	ConventionLedger SignConvention = iota
	// ConventionAbsolute means the amount is a pre-absoluted magnitude;
	// the CreditNote flag restores the sign.
	ConventionAbsolute
)

// Raw is the neutral record each source maps its wire shape into before
// normalization. Relation pairs and flat columns both flatten to these
// fields; all business rules are applied afterwards in one place.
type Raw struct {
	InvoiceDate  time.Time
	CustomerName string
	BusinessLine string
	Channel      string
	Product      string
	LifeCycleTag string
	OrderRef     string
	SellerName   string
	PharmaForm   string
	Region       string
	Source       Source
	CustomerID   int64
	RouteID      int64
	SellerID     int64
	Amount       float64
	Convention   SignConvention
	CreditNote   bool
}
