package restclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lighter-client/lighterclient/pkg/types"
)

func TestDryRunSendTx(t *testing.T) {
	t.Parallel()

	c := New("http://example.invalid", nil, WithDryRun(true))
	res, err := c.SendTx(context.Background(), types.TxTypeCreateOrder, `{"market_id":1}`)
	if err != nil {
		t.Fatalf("SendTx: %v", err)
	}
	if !res.Success() {
		t.Fatalf("expected dry run success, got %+v", res)
	}
}

func TestSendTxBatchRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	c := New("http://example.invalid", nil, WithDryRun(true))
	items := make([]BatchItem, MaxBatchSize+1)
	for i := range items {
		items[i] = BatchItem{TxType: types.TxTypeCreateOrder, PayloadJSON: "{}"}
	}

	if _, err := c.SendTxBatch(context.Background(), items); err == nil {
		t.Fatal("expected validation error for batch over the cap")
	}
}

func TestOrderBookDetailsFiltersToRequestedMarkets(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"order_book_details":[
			{"market_id":1,"symbol":"BTC-PERP","price_decimals":1,"size_decimals":5,"min_base_amount":1,"min_quote_amount":"10","initial_margin_fraction":"0.05"},
			{"market_id":2,"symbol":"ETH-PERP","price_decimals":2,"size_decimals":4,"min_base_amount":1,"min_quote_amount":"10","initial_margin_fraction":"0.1"}
		]}`))
	}))
	defer server.Close()

	c := New(server.URL, nil)
	got, err := c.OrderBookDetails(context.Background(), 2)
	if err != nil {
		t.Fatalf("OrderBookDetails: %v", err)
	}
	if len(got) != 1 || got[0].MarketId != 2 {
		t.Fatalf("OrderBookDetails(2) = %+v, want a single entry for market 2", got)
	}
	if got[0].Symbol != "ETH-PERP" {
		t.Fatalf("Symbol = %q, want ETH-PERP", got[0].Symbol)
	}
}

func TestNextNonceParsesResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"nonce":42}`))
	}))
	defer server.Close()

	c := New(server.URL, nil)
	n, err := c.NextNonce(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("NextNonce: %v", err)
	}
	if n != 42 {
		t.Fatalf("NextNonce() = %d, want 42", n)
	}
}

func TestSendTxSurfacesRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21104,"error":{"code":21104,"message":"invalid nonce"}}`))
	}))
	defer server.Close()

	c := New(server.URL, nil)
	if _, err := c.SendTx(context.Background(), types.TxTypeCreateOrder, "{}"); err == nil {
		t.Fatal("expected error for rejected transaction")
	}
}
