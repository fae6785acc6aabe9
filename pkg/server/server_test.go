package server

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/IlyushaZ/token-sale/pkg/database"
	"github.com/IlyushaZ/token-sale/pkg/model"
	"github.com/IlyushaZ/token-sale/pkg/server/handler"
	"github.com/IlyushaZ/token-sale/pkg/service"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	contract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	token    = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	creator  = common.HexToAddress("0x0000000000000000000000000000000000000f01")
)

const startBody = `{
	"duration_sec": 3600,
	"price": "1000",
	"token_address": "0x00000000000000000000000000000000000000e1",
	"token_id": 1,
	"recipients": ["0x0000000000000000000000000000000000000f01"],
	"bps": [1000]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx := context.Background()
	store := database.NewMemory()
	require.NoError(t, store.Mint(ctx, token, contract, 1, 10))
	require.NoError(t, store.Fund(ctx, alice, uint256.NewInt(1_000_000)))

	reg := prometheus.NewRegistry()

	var sale service.Sale = &service.SaleGeneric{
		Store:     store,
		Contract:  contract,
		Ownership: service.Ownership{Owner: owner},
	}
	sale = &service.SaleMetrics{Sale: sale, Metrics: service.NewMetrics(reg)}

	srv := httptest.NewServer(Handler(sale, reg))
	t.Cleanup(srv.Close)

	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, q url.Values, body string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path+"?"+q.Encode(), strings.NewReader(body))
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, b
}

func caller(addr common.Address, kv ...string) url.Values {
	q := url.Values{"caller": {addr.Hex()}}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	return q
}

func TestSaleFlow(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/sale/start", caller(alice), startBody)
	require.Equal(t, http.StatusForbidden, code)
	require.Contains(t, string(body), string(model.KindAccessDenied))

	code, body = do(t, srv, http.MethodPost, "/sale/start", caller(owner), startBody)
	require.Equal(t, http.StatusOK, code, string(body))

	var cfg handler.ConfigResp
	require.NoError(t, json.Unmarshal(body, &cfg))
	require.Equal(t, uint64(10), cfg.AvailableForSale)
	require.Equal(t, "1000", cfg.Price)

	code, body = do(t, srv, http.MethodPost, "/buy", caller(alice, "amount", "2", "value", "2500"), "")
	require.Equal(t, http.StatusOK, code, string(body))

	var receipt handler.ReceiptResp
	require.NoError(t, json.Unmarshal(body, &receipt))
	require.Equal(t, uint64(2), receipt.Amount)
	require.Equal(t, "2000", receipt.Cost)
	require.Equal(t, "500", receipt.Change)
	require.Len(t, receipt.Fees, 1)
	require.Equal(t, creator, receipt.Fees[0].Recipient)
	require.Equal(t, "200", receipt.Fees[0].Amount)

	code, body = do(t, srv, http.MethodPost, "/pay", caller(alice, "value", "3000"), "")
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &receipt))
	require.Equal(t, uint64(3), receipt.Amount)

	code, body = do(t, srv, http.MethodGet, "/sale", nil, "")
	require.Equal(t, http.StatusOK, code)

	var info handler.SaleResp
	require.NoError(t, json.Unmarshal(body, &info))
	require.True(t, info.Active)
	require.Equal(t, uint64(5), info.Config.AvailableForSale)
	require.Equal(t, "4500", info.Balance)

	code, body = do(t, srv, http.MethodGet, "/royalties", url.Values{"token_id": {"1"}}, "")
	require.Equal(t, http.StatusOK, code)

	var royalties []handler.RoyaltyResp
	require.NoError(t, json.Unmarshal(body, &royalties))
	require.Equal(t, []handler.RoyaltyResp{{Recipient: creator, BPS: 1000}}, royalties)

	code, body = do(t, srv, http.MethodGet, "/events", url.Values{"page_size": {"2"}}, "")
	require.Equal(t, http.StatusOK, code)

	var events handler.ListPageResp[model.Event]
	require.NoError(t, json.Unmarshal(body, &events))
	require.Equal(t, 5, events.Total) // SaleStarted plus Sold and fees for two purchases
	require.Len(t, events.Page, 2)
	require.Equal(t, model.EventSaleStarted, events.Page[0].Name)

	code, body = do(t, srv, http.MethodPost, "/withdraw-all", caller(owner), "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"withdrawn":"4500"}`, string(body))

	code, body = do(t, srv, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "token_sale_units_sold_total 5")
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)

	code, _ := do(t, srv, http.MethodPost, "/buy", caller(alice, "amount", "1", "value", "1000"), "")
	require.Equal(t, http.StatusPreconditionFailed, code)

	code, _ = do(t, srv, http.MethodPost, "/sale/start", caller(owner), startBody)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, srv, http.MethodPost, "/sale/start", caller(owner), startBody)
	require.Equal(t, http.StatusPreconditionFailed, code)

	code, body := do(t, srv, http.MethodPost, "/buy", caller(alice, "amount", "1", "value", "999"), "")
	require.Equal(t, http.StatusPaymentRequired, code)
	require.JSONEq(t, `{"kind":"InsufficientFunds","reason":"not enough funds"}`, string(body))

	code, _ = do(t, srv, http.MethodPost, "/buy", caller(alice, "amount", "11", "value", "11000"), "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodPost, "/withdraw", caller(owner, "amount", "1"), "")
	require.Equal(t, http.StatusPaymentRequired, code)

	code, _ = do(t, srv, http.MethodPost, "/buy", url.Values{"amount": {"1"}}, "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodGet, "/buy", caller(alice, "amount", "1"), "")
	require.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = do(t, srv, http.MethodGet, "/events", url.Values{"page_num": {"0"}}, "")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestDispatchEndpoint(t *testing.T) {
	srv := newTestServer(t)

	code, _ := do(t, srv, http.MethodPost, "/sale/start", caller(owner), startBody)
	require.Equal(t, http.StatusOK, code)

	buy, err := service.EncodeCall("buy", big.NewInt(1))
	require.NoError(t, err)

	code, _ = do(t, srv, http.MethodPost, "/dispatch", caller(alice, "data", hexutil.Encode(buy), "value", "1000"), "")
	require.Equal(t, http.StatusForbidden, code)

	code, body := do(t, srv, http.MethodPost, "/dispatch", caller(owner, "data", hexutil.Encode(buy), "value", "1000"), "")
	require.Equal(t, http.StatusPaymentRequired, code, string(body))

	withdrawAll, err := service.EncodeCall("withdrawAll")
	require.NoError(t, err)

	code, body = do(t, srv, http.MethodPost, "/dispatch", caller(owner, "data", hexutil.Encode(withdrawAll)), "")
	require.Equal(t, http.StatusForbidden, code)
	require.Contains(t, string(body), "no magic")

	code, _ = do(t, srv, http.MethodPost, "/dispatch", caller(owner, "data", "zz"), "")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestStartRejectsOutOfRangeDuration(t *testing.T) {
	srv := newTestServer(t)

	for _, d := range []string{"18446744075", "9223372037", "0", "-1"} {
		body := strings.Replace(startBody, `"duration_sec": 3600`, `"duration_sec": `+d, 1)

		code, resp := do(t, srv, http.MethodPost, "/sale/start", caller(owner), body)
		require.Equal(t, http.StatusBadRequest, code, d)
		require.JSONEq(t, `{"kind":"InvalidDuration","reason":"sale duration must be != 0"}`, string(resp), d)
	}

	code, body := do(t, srv, http.MethodGet, "/sale", nil, "")
	require.Equal(t, http.StatusOK, code)

	var info handler.SaleResp
	require.NoError(t, json.Unmarshal(body, &info))
	require.False(t, info.Active)
	require.Zero(t, info.Config.DurationSec)

	reqBody := strings.Replace(startBody, `"duration_sec": 3600`, `"duration_sec": 9223372036`, 1)
	code, resp := do(t, srv, http.MethodPost, "/sale/start", caller(owner), reqBody)
	require.Equal(t, http.StatusOK, code, string(resp))

	var cfg handler.ConfigResp
	require.NoError(t, json.Unmarshal(resp, &cfg))
	require.Equal(t, int64(9223372036), cfg.DurationSec)
}

func TestEventsPageSizeLimit(t *testing.T) {
	srv := newTestServer(t)

	for _, size := range []string{"1001", "1099511627776"} {
		code, body := do(t, srv, http.MethodGet, "/events", url.Values{"page_size": {size}}, "")
		require.Equal(t, http.StatusBadRequest, code, size)
		require.Contains(t, string(body), "page_size must not exceed 1000")
	}

	code, _ := do(t, srv, http.MethodGet, "/events", url.Values{"page_size": {"1000"}, "page_num": {"9223372036854775807"}}, "")
	require.Equal(t, http.StatusOK, code)
}
