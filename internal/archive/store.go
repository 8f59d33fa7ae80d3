// Package archive reads historical sale lines from the Postgres archive
// populated by the nightly sync job. The module only reads; the sync job
// owns the schema.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/andeanvet/salescope/internal/common"
	"github.com/andeanvet/salescope/internal/normalize"
	"github.com/andeanvet/salescope/internal/service"
)

const pageSize = 1000

// Store wraps the archive database connection.
type Store struct {
	db *sql.DB
}

// NewStore opens the archive connection and verifies it is reachable.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening archive connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: archive ping failed: %v", common.ErrSourceUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// tableFor maps a year to its archive table. 2025 was loaded into its
// own table during the ERP migration; every other year lives in the
// consolidated table.
func tableFor(year int) string {
	if year == 2025 {
		return "ventas_odoo_2025"
	}
	return "sales_lines"
}

// lineRow mirrors the archive columns this module reads. Most columns
// are nullable because the sync job stores whatever the ERP returned.
type lineRow struct {
	InvoiceDate    sql.NullTime
	InvoiceName    sql.NullString
	PartnerName    sql.NullString
	ProductName    sql.NullString
	CommercialLine sql.NullString
	SalesChannel   sql.NullString
	SellerName     sql.NullString
	LifeCycle      sql.NullString
	PharmaForm     sql.NullString
	DocType        sql.NullString
	StateName      sql.NullString
	PartnerID      sql.NullInt64
	RouteID        sql.NullInt64
	SellerID       sql.NullInt64
	PriceSubtotal  sql.NullFloat64
	OdooID         int64
}

// rawFromRow converts one archive row to the canonical raw shape. The
// archive stores magnitudes only, so the sign is reconstructed from the
// document type.
func rawFromRow(row lineRow) normalize.Raw {
	raw := normalize.Raw{
		CustomerName: row.PartnerName.String,
		CustomerID:   row.PartnerID.Int64,
		BusinessLine: row.CommercialLine.String,
		Channel:      row.SalesChannel.String,
		Product:      row.ProductName.String,
		LifeCycleTag: row.LifeCycle.String,
		OrderRef:     row.InvoiceName.String,
		SellerName:   row.SellerName.String,
		SellerID:     row.SellerID.Int64,
		PharmaForm:   row.PharmaForm.String,
		Region:       row.StateName.String,
		RouteID:      row.RouteID.Int64,
		Amount:       row.PriceSubtotal.Float64,
		Convention:   normalize.ConventionAbsolute,
		CreditNote:   row.DocType.String == "out_refund",
		Source:       normalize.SourceArchive,
	}
	if row.InvoiceDate.Valid {
		raw.InvoiceDate = row.InvoiceDate.Time
	}
	return raw
}

// FetchSaleLines pages through the year's table in stable odoo_id order.
func (s *Store) FetchSaleLines(ctx context.Context, rng service.DateRange) ([]normalize.Raw, error) {
	table := tableFor(rng.Start.Year())
	query := fmt.Sprintf(`
		SELECT odoo_id, invoice_date, invoice_name, partner_id, partner_name,
		       product_name, commercial_line_name, sales_channel_name, route_id,
		       seller_id, seller_name, product_life_cycle, pharma_form, doc_type,
		       price_subtotal, state_name
		FROM %s
		WHERE invoice_date >= $1 AND invoice_date <= $2
		ORDER BY odoo_id
		LIMIT $3 OFFSET $4`, pq.QuoteIdentifier(table))

	var raws []normalize.Raw
	for offset := 0; ; offset += pageSize {
		count, err := s.fetchPage(ctx, query, rng, offset, &raws)
		if err != nil {
			return nil, fmt.Errorf("fetching archive lines from %s: %w", table, err)
		}
		if count < pageSize {
			break
		}
	}

	slog.Debug("fetched archive sale lines",
		"table", table,
		"from", rng.Start.Format("2006-01-02"),
		"to", rng.End.Format("2006-01-02"),
		"lines", len(raws))
	return raws, nil
}

func (s *Store) fetchPage(ctx context.Context, query string, rng service.DateRange, offset int, raws *[]normalize.Raw) (int, error) {
	rows, err := s.db.QueryContext(ctx, query, rng.Start, rng.End, pageSize, offset)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var row lineRow
		err := rows.Scan(
			&row.OdooID, &row.InvoiceDate, &row.InvoiceName, &row.PartnerID, &row.PartnerName,
			&row.ProductName, &row.CommercialLine, &row.SalesChannel, &row.RouteID,
			&row.SellerID, &row.SellerName, &row.LifeCycle, &row.PharmaForm, &row.DocType,
			&row.PriceSubtotal, &row.StateName,
		)
		if err != nil {
			return 0, fmt.Errorf("scanning row: %w", err)
		}
		*raws = append(*raws, rawFromRow(row))
		count++
	}
	return count, rows.Err()
}

// HasData reports whether the year's table holds any line in that year.
// A missing table surfaces as an error so the caller can fall back.
func (s *Store) HasData(ctx context.Context, year int) (bool, error) {
	table := tableFor(year)
	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE invoice_date >= $1 AND invoice_date <= $2)`,
		pq.QuoteIdentifier(table))

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("probing archive table %s: %w", table, err)
	}
	return exists, nil
}
