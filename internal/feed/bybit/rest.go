package bybit

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/market"
)

const (
	_instrumentsInfoPath = "/v5/market/instruments-info"
	_instrumentPageLimit = 1_000
)

type instrumentsInfoResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol      string `json:"symbol"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				QtyStep     string `json:"qtyStep"`
				MinOrderQty string `json:"minOrderQty"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
		NextPageCursor string `json:"nextPageCursor"`
	} `json:"result"`
}

// RestClient fetches public market metadata over the v5 REST API.
type RestClient struct {
	baseURL string
	client  *http.Client
}

// NewRestClient targets baseURL, or the production endpoint when empty.
func NewRestClient(baseURL string, client *http.Client) *RestClient {
	if baseURL == "" {
		baseURL = _v5RestBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RestClient{baseURL: baseURL, client: client}
}

// FetchInstrumentsLinear pages through instruments-info for the linear
// category and returns the contract metadata per symbol. Rows with missing
// or malformed filter values are skipped.
func (r *RestClient) FetchInstrumentsLinear(ctx context.Context) (map[string]market.InstrumentSpec, error) {
	specs := make(map[string]market.InstrumentSpec)
	cursor := ""

	for {
		payload, err := r.fetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}

		for _, item := range payload.Result.List {
			if item.Symbol == "" {
				continue
			}
			tickSize, err1 := strconv.ParseFloat(item.PriceFilter.TickSize, 64)
			qtyStep, err2 := strconv.ParseFloat(item.LotSizeFilter.QtyStep, 64)
			minQty, err3 := strconv.ParseFloat(item.LotSizeFilter.MinOrderQty, 64)
			if err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			specs[item.Symbol] = market.InstrumentSpec{
				Symbol:   item.Symbol,
				TickSize: tickSize,
				QtyStep:  qtyStep,
				MinQty:   minQty,
			}
		}

		cursor = payload.Result.NextPageCursor
		if cursor == "" {
			return specs, nil
		}
	}
}

func (r *RestClient) fetchPage(ctx context.Context, cursor string) (instrumentsInfoResponse, error) {
	var payload instrumentsInfoResponse

	query := url.Values{}
	query.Set("category", "linear")
	query.Set("limit", strconv.Itoa(_instrumentPageLimit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.baseURL+_instrumentsInfoPath+"?"+query.Encode(), nil)
	if err != nil {
		return payload, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return payload, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return payload, errors.Errorf("bybit instruments-info request failed with HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return payload, err
	}
	if err := _json.Unmarshal(body, &payload); err != nil {
		return payload, errors.Wrap(err, "decode instruments-info response")
	}
	if payload.RetCode != 0 {
		return payload, errors.Errorf("bybit instruments-info returned retCode=%d, retMsg=%s", payload.RetCode, payload.RetMsg)
	}

	return payload, nil
}
