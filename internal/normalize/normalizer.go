package normalize

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/andeanvet/salescope/internal/model"
)

// SkipReason explains why a raw record was left out of the canonical set.
type SkipReason string

const (
	// SkipMissingDate marks records without an invoice date.
	SkipMissingDate SkipReason = "missing_date"
	// SkipMissingCustomer marks records without a customer reference.
	SkipMissingCustomer SkipReason = "missing_customer"
	// SkipMissingProduct marks records without a product reference.
	SkipMissingProduct SkipReason = "missing_product"
	// SkipZeroAmount marks records whose amount is exactly zero.
	SkipZeroAmount SkipReason = "zero_amount"
)

// Stats summarizes one normalization pass.
type Stats struct {
	Skips         map[SkipReason]int
	Total         int
	Normalized    int
	International int
}

// Skipped returns the number of records dropped for missing fields or
// zero amounts, excluding the international exclusion.
func (s Stats) Skipped() int {
	n := 0
	for _, c := range s.Skips {
		n += c
	}
	return n
}

// thirdPartyAliases are legacy brand labels that collapse into TERCEROS.
var thirdPartyAliases = []string{"GENVET", "MARCA BLANCA"}

// internationalLineMarker flags export lines via the business-line label.
const internationalLineMarker = "VENTA INTERNACIONAL"

// internationalChannelMarker flags export lines via the channel label.
const internationalChannelMarker = "INTERNACIONAL"

// expiryRoutes are the delivery routes that carry short-expiry stock.
var expiryRoutes = map[int64]bool{18: true, 19: true}

// sizeTokens are trailing size/presentation markers stripped from one
// product family. Sorted longest-first at init so multi-word tokens are
// stripped whole; "CATS" stays because it names the feline variant, not
// a presentation.
var sizeTokens = []string{
	"MEDIUM", "LARGE", "SMALL", "MINI", "EXTRA LARGE", "XL", "L", "M", "S",
	"SPOT ON MEDIUM", "SPOT ON LARGE", "SPOT ON SMALL", "SPOT ON MINI",
	"SPOT ON",
}

func init() {
	sort.SliceStable(sizeTokens, func(i, j int) bool {
		return len(sizeTokens[i]) > len(sizeTokens[j])
	})
}

// NormalizeBusinessLine maps a raw commercial-line label onto its
// canonical form. Deterministic and idempotent: legacy third-party brands
// collapse into TERCEROS, everything else is upper-cased and trimmed.
func NormalizeBusinessLine(label string) string {
	upper := strings.ToUpper(strings.TrimSpace(label))
	if upper == "" {
		return ""
	}
	for _, alias := range thirdPartyAliases {
		if strings.Contains(upper, alias) {
			return "TERCEROS"
		}
	}
	return upper
}

// CleanProductName strips one trailing size/presentation token from
// ATREVIA family products. Other names pass through untouched.
func CleanProductName(name string) string {
	trimmed := strings.TrimSpace(name)
	upper := strings.ToUpper(trimmed)
	if !strings.Contains(upper, "ATREVIA") {
		return trimmed
	}
	for _, token := range sizeTokens {
		if strings.HasSuffix(upper, " "+token) {
			return strings.TrimSpace(trimmed[:len(trimmed)-len(token)-1])
		}
	}
	return trimmed
}

// IsInternational reports whether a record belongs to the export business,
// flagged independently by the business-line or the channel label.
func IsInternational(businessLine, channel string) bool {
	if strings.Contains(strings.ToUpper(businessLine), internationalLineMarker) {
		return true
	}
	return strings.Contains(strings.ToUpper(channel), internationalChannelMarker)
}

// lifeCycleFromTag maps the wire life-cycle tag onto the canonical stage.
func lifeCycleFromTag(tag string) model.LifeCycle {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "nuevo":
		return model.LifeCycleNew
	case "maduro":
		return model.LifeCycleMature
	case "declive":
		return model.LifeCycleDeclining
	default:
		return model.LifeCycleUndefined
	}
}

// signedAmount applies the source's sign convention so that positive
// always means revenue and negative a credit/refund.
func signedAmount(raw Raw) float64 {
	switch raw.Convention {
	case ConventionAbsolute:
		amount := raw.Amount
		if amount < 0 {
			amount = -amount
		}
		if raw.CreditNote {
			return -amount
		}
		return amount
	default:
		return -raw.Amount
	}
}

// Normalizer converts raw records into canonical sale lines.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// defaultPharmaForm labels lines whose product carries no pharmaceutical
// form, usually instruments and accessories.
const defaultPharmaForm = "INSTRUMENTAL"

func pharmaFormOrDefault(form string) string {
	form = strings.TrimSpace(form)
	if form == "" {
		return defaultPharmaForm
	}
	return form
}

// Line normalizes a single raw record. It returns the canonical line, or
// false when the record is excluded or skipped (the reason lands in the
// caller's Stats via Lines).
func (n *Normalizer) Line(raw Raw) (model.SaleLine, SkipReason, bool) {
	if raw.InvoiceDate.IsZero() {
		return model.SaleLine{}, SkipMissingDate, false
	}
	if raw.CustomerID == 0 && strings.TrimSpace(raw.CustomerName) == "" {
		return model.SaleLine{}, SkipMissingCustomer, false
	}
	if strings.TrimSpace(raw.Product) == "" {
		return model.SaleLine{}, SkipMissingProduct, false
	}

	amount := signedAmount(raw)
	if amount == 0 {
		return model.SaleLine{}, SkipZeroAmount, false
	}

	line := model.SaleLine{
		InvoiceDate:  raw.InvoiceDate,
		CustomerID:   raw.CustomerID,
		CustomerName: strings.TrimSpace(raw.CustomerName),
		BusinessLine: NormalizeBusinessLine(raw.BusinessLine),
		Channel:      strings.TrimSpace(raw.Channel),
		Product:      CleanProductName(raw.Product),
		LifeCycle:    lifeCycleFromTag(raw.LifeCycleTag),
		ExpiryRoute:  expiryRoutes[raw.RouteID],
		OrderRef:     strings.TrimSpace(raw.OrderRef),
		SellerID:     raw.SellerID,
		SellerName:   strings.TrimSpace(raw.SellerName),
		PharmaForm:   pharmaFormOrDefault(raw.PharmaForm),
		Region:       strings.ToUpper(strings.TrimSpace(raw.Region)),
		Amount:       amount,
	}
	return line, "", true
}

// Lines normalizes a batch, dropping international records and counting
// every exclusion and skip. Per-record problems never fail the batch.
func (n *Normalizer) Lines(raws []Raw) ([]model.SaleLine, Stats) {
	stats := Stats{Total: len(raws), Skips: make(map[SkipReason]int)}
	lines := make([]model.SaleLine, 0, len(raws))

	for _, raw := range raws {
		if IsInternational(raw.BusinessLine, raw.Channel) {
			stats.International++
			continue
		}
		line, reason, ok := n.Line(raw)
		if !ok {
			stats.Skips[reason]++
			continue
		}
		lines = append(lines, line)
	}
	stats.Normalized = len(lines)

	if stats.Skipped() > 0 || stats.International > 0 {
		slog.Debug("Normalized sale lines",
			"total", stats.Total,
			"normalized", stats.Normalized,
			"international", stats.International,
			"skipped", stats.Skipped())
	}

	return lines, stats
}
