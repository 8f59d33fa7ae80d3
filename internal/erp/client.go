package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andeanvet/salescope/internal/common"
	"github.com/andeanvet/salescope/internal/normalize"
	"github.com/andeanvet/salescope/internal/service"
)

const (
	// pageSize bounds each search_read call so large months stream in
	// predictable chunks.
	pageSize = 1000

	wireDateFormat = "2006-01-02"
)

// Config holds the connection settings for the live source.
type Config struct {
	URL      string
	Database string
	Username string
	APIKey   string
	Timeout  time.Duration
	Retry    service.RetryOptions
}

// Client talks to the ERP over its JSON-RPC endpoint. It authenticates
// lazily on first use and caches the session uid.
type Client struct {
	httpClient *http.Client
	baseURL    string
	database   string
	username   string
	apiKey     string
	retry      service.RetryOptions

	mu  sync.Mutex
	uid int64

	reqID atomic.Int64
}

// NewClient creates a client for the given endpoint.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.URL,
		database:   cfg.Database,
		username:   cfg.Username,
		apiKey:     cfg.APIKey,
		retry:      cfg.Retry,
	}
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
	ID      int64          `json:"id"`
}

type rpcError struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Code    int            `json:"code"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int64           `json:"id"`
}

// call posts one JSON-RPC request and returns the raw result. Transport
// failures and 5xx responses are retried with backoff; RPC-level errors
// are returned as-is since they indicate a bad request rather than a
// flaky endpoint.
func (c *Client) call(ctx context.Context, svc, method string, args []any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]any{
			"service": svc,
			"method":  method,
			"args":    args,
		},
		ID: c.reqID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var result json.RawMessage
	err = common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jsonrpc", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("calling ERP endpoint: %w", err), Retryable: true}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("ERP endpoint error: %d - %s", resp.StatusCode, string(body))
			if resp.StatusCode >= http.StatusInternalServerError {
				return &common.RetryableError{Err: err, Retryable: true}
			}
			return err
		}

		var rpcResp rpcResponse
		if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if rpcResp.Error != nil {
			return fmt.Errorf("ERP rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
		}
		result = rpcResp.Result
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// authenticate resolves the session uid for the configured credentials.
func (c *Client) authenticate(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}

	result, err := c.call(ctx, "common", "authenticate", []any{c.database, c.username, c.apiKey, map[string]any{}})
	if err != nil {
		return 0, fmt.Errorf("authenticating: %w", err)
	}

	var uid int64
	if err := json.Unmarshal(result, &uid); err != nil {
		// The endpoint answers false for rejected credentials.
		return 0, common.NewUserError(
			"ERP login failed. Check the configured username and API key.",
			fmt.Errorf("authentication rejected for user %q on database %q", c.username, c.database),
		)
	}
	c.uid = uid
	slog.Debug("authenticated against ERP", "database", c.database, "uid", uid)
	return uid, nil
}

// executeKw invokes a model method through the object service.
func (c *Client) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	uid, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return c.call(ctx, "object", "execute_kw", []any{c.database, uid, c.apiKey, model, method, args, kwargs})
}

// Ping verifies the endpoint is reachable without authenticating.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.call(ctx, "common", "version", []any{}); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSourceUnavailable, err)
	}
	return nil
}

// moveLineRow is the wire shape of one posted invoice line.
type moveLineRow struct {
	InvoiceDate    optText  `json:"invoice_date"`
	MoveName       optText  `json:"move_name"`
	Name           optText  `json:"name"`
	LifeCycle      optText  `json:"product_life_cycle"`
	Partner        Relation `json:"partner_id"`
	CommercialLine Relation `json:"commercial_line_national_id"`
	SalesChannel   Relation `json:"sales_channel_id"`
	Route          Relation `json:"route_id"`
	InvoiceUser    Relation `json:"invoice_user_id"`
	PharmaForm     Relation `json:"pharmaceutical_forms_id"`
	ID             int64    `json:"id"`
	Balance        float64  `json:"balance"`
}

var moveLineFields = []string{
	"invoice_date",
	"move_name",
	"name",
	"product_life_cycle",
	"partner_id",
	"commercial_line_national_id",
	"sales_channel_id",
	"route_id",
	"invoice_user_id",
	"pharmaceutical_forms_id",
	"balance",
}

// FetchSaleLines pulls every posted invoice and credit note line in the
// range, then enriches each with the customer's region in a second read.
// Line amounts come from the accounting balance, so revenue arrives
// negative and refunds positive.
func (c *Client) FetchSaleLines(ctx context.Context, rng service.DateRange) ([]normalize.Raw, error) {
	domain := []any{
		[]any{"move_id.move_type", "in", []string{"out_invoice", "out_refund"}},
		[]any{"parent_state", "=", "posted"},
		[]any{"product_id", "!=", false},
		[]any{"invoice_date", ">=", rng.Start.Format(wireDateFormat)},
		[]any{"invoice_date", "<=", rng.End.Format(wireDateFormat)},
	}

	var rows []moveLineRow
	for offset := 0; ; offset += pageSize {
		result, err := c.executeKw(ctx, "account.move.line", "search_read",
			[]any{domain},
			map[string]any{
				"fields": moveLineFields,
				"limit":  pageSize,
				"offset": offset,
				"order":  "id asc",
			})
		if err != nil {
			return nil, fmt.Errorf("fetching sale lines: %w", err)
		}

		var page []moveLineRow
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("parsing sale lines: %w", err)
		}
		rows = append(rows, page...)
		if len(page) < pageSize {
			break
		}
	}

	regions, err := c.fetchPartnerRegions(ctx, partnerIDs(rows))
	if err != nil {
		// Region only feeds the geography breakdown, so a failed
		// enrichment degrades that table instead of the whole fetch.
		slog.Warn("partner region lookup failed", "error", err)
		regions = map[int64]string{}
	}

	raws := make([]normalize.Raw, 0, len(rows))
	for _, row := range rows {
		raw := normalize.Raw{
			CustomerName: row.Partner.Label,
			CustomerID:   row.Partner.ID,
			BusinessLine: row.CommercialLine.Label,
			Channel:      row.SalesChannel.Label,
			Product:      row.Name.String(),
			LifeCycleTag: row.LifeCycle.String(),
			OrderRef:     row.MoveName.String(),
			SellerName:   row.InvoiceUser.Label,
			SellerID:     row.InvoiceUser.ID,
			PharmaForm:   row.PharmaForm.Label,
			Region:       regions[row.Partner.ID],
			RouteID:      row.Route.ID,
			Amount:       row.Balance,
			Convention:   normalize.ConventionLedger,
			Source:       normalize.SourceLive,
		}
		if date := row.InvoiceDate.String(); date != "" {
			parsed, err := time.Parse(wireDateFormat, date)
			if err != nil {
				slog.Warn("skipping unparseable invoice date", "line_id", row.ID, "value", date)
			} else {
				raw.InvoiceDate = parsed
			}
		}
		raws = append(raws, raw)
	}

	slog.Debug("fetched live sale lines",
		"from", rng.Start.Format(wireDateFormat),
		"to", rng.End.Format(wireDateFormat),
		"lines", len(raws))
	return raws, nil
}

func partnerIDs(rows []moveLineRow) []int64 {
	seen := make(map[int64]bool, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if row.Partner.ID == 0 || seen[row.Partner.ID] {
			continue
		}
		seen[row.Partner.ID] = true
		ids = append(ids, row.Partner.ID)
	}
	return ids
}

type partnerRow struct {
	State Relation `json:"state_id"`
	ID    int64    `json:"id"`
}

// fetchPartnerRegions reads the state label for each partner id.
func (c *Client) fetchPartnerRegions(ctx context.Context, ids []int64) (map[int64]string, error) {
	regions := make(map[int64]string, len(ids))
	for start := 0; start < len(ids); start += pageSize {
		end := start + pageSize
		if end > len(ids) {
			end = len(ids)
		}
		result, err := c.executeKw(ctx, "res.partner", "read",
			[]any{ids[start:end]},
			map[string]any{"fields": []string{"id", "state_id"}})
		if err != nil {
			return nil, fmt.Errorf("reading partner states: %w", err)
		}
		var rows []partnerRow
		if err := json.Unmarshal(result, &rows); err != nil {
			return nil, fmt.Errorf("parsing partner states: %w", err)
		}
		for _, row := range rows {
			regions[row.ID] = row.State.Label
		}
	}
	return regions, nil
}

type channelRow struct {
	SalesChannel Relation `json:"sales_channel_id"`
	ID           int64    `json:"id"`
}

// FetchCustomerChannels reads the sales channel assigned to each
// customer. Customers without one map to the empty string.
func (c *Client) FetchCustomerChannels(ctx context.Context, customerIDs []int64) (map[int64]string, error) {
	channels := make(map[int64]string, len(customerIDs))
	for start := 0; start < len(customerIDs); start += pageSize {
		end := start + pageSize
		if end > len(customerIDs) {
			end = len(customerIDs)
		}
		result, err := c.executeKw(ctx, "res.partner", "read",
			[]any{customerIDs[start:end]},
			map[string]any{"fields": []string{"id", "sales_channel_id"}})
		if err != nil {
			return nil, fmt.Errorf("reading customer channels: %w", err)
		}
		var rows []channelRow
		if err := json.Unmarshal(result, &rows); err != nil {
			return nil, fmt.Errorf("parsing customer channels: %w", err)
		}
		for _, row := range rows {
			channels[row.ID] = row.SalesChannel.Label
		}
	}
	return channels, nil
}

type userRow struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// FetchSellers lists the internal users that can appear as sellers on
// invoice lines.
func (c *Client) FetchSellers(ctx context.Context) ([]service.Seller, error) {
	result, err := c.executeKw(ctx, "res.users", "search_read",
		[]any{[]any{[]any{"share", "=", false}}},
		map[string]any{
			"fields": []string{"id", "name"},
			"order":  "name asc",
		})
	if err != nil {
		return nil, fmt.Errorf("fetching sellers: %w", err)
	}

	var rows []userRow
	if err := json.Unmarshal(result, &rows); err != nil {
		return nil, fmt.Errorf("parsing sellers: %w", err)
	}

	sellers := make([]service.Seller, 0, len(rows))
	for _, row := range rows {
		sellers = append(sellers, service.Seller{ID: row.ID, Name: row.Name})
	}
	return sellers, nil
}
