package execution

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"poly-trader/internal/clob"
	"poly-trader/internal/config"
	"poly-trader/internal/market"
)

// 公开的开发用测试私钥，不对应任何真实资金。
const e2ePrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type capturedPost struct {
	Order     clob.SignedOrder `json:"order"`
	Owner     string           `json:"owner"`
	OrderType string           `json:"orderType"`
}

// stubVenue 同时扮演行情接口与委托提交接口。
type stubVenue struct {
	mu     sync.Mutex
	posts  []capturedPost
	nextID int
}

func (v *stubVenue) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"asset_id": r.URL.Query().Get("token_id"),
			"bids":     []map[string]string{{"price": "0.48", "size": "10000"}},
			"asks":     []map[string]string{{"price": "0.52", "size": "10000"}},
		})
	})
	mux.HandleFunc("/last-trade-price", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"price": "0.50"})
	})
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		var post capturedPost
		if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		v.mu.Lock()
		v.posts = append(v.posts, post)
		v.nextID++
		id := v.nextID
		v.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"orderID": orderID(id),
			"status":  "live",
		})
	})
	return mux
}

func (v *stubVenue) captured() []capturedPost {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]capturedPost, len(v.posts))
	copy(out, v.posts)
	return out
}

func orderID(n int) string {
	return "order-" + string(rune('0'+n))
}

func newVenueExecutor(t *testing.T, baseURL string, cfg config.ExecutorConfig) (*Executor, *market.Service) {
	t.Helper()

	clobCfg := config.CLOBConfig{
		BaseURL: baseURL,
		APIKey:  "test-owner",
		Timeout: 5 * time.Second,
	}

	marketSvc := market.NewService(market.NewClient(clobCfg), zap.NewNop())

	signer, err := clob.NewSigner(config.ChainConfig{
		ChainID:          137,
		ExchangeContract: "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
		PrivateKey:       e2ePrivateKey,
	})
	if err != nil {
		t.Fatalf("初始化签名器失败: %v", err)
	}

	submitter := clob.NewClient(clobCfg, signer, zap.NewNop())
	return NewExecutor(marketSvc, marketSvc, submitter, cfg, zap.NewNop()), marketSvc
}

func TestExecutorEndToEnd_SplitOrderFlow(t *testing.T) {
	venue := &stubVenue{}
	srv := httptest.NewServer(venue.handler())
	defer srv.Close()

	cfg := config.ExecutorConfig{
		MaxSlippagePercent:    1.0,
		MinLiquidityUSD:       1000,
		MaxOrderSizeUSD:       5000,
		SplitThresholdUSD:     500,
		SplitCount:            3,
		DefaultOrderType:      "GTC",
		PriceImprovementCents: 1,
	}
	executor, _ := newVenueExecutor(t, srv.URL, cfg)

	result := executor.Execute(context.Background(), Signal{
		TokenID:   "123456789",
		Side:      OrderSideBuy,
		AmountUSD: 600,
		Price:     0.5,
	})
	if !result.Success {
		t.Fatalf("execution failed: %s", result.Error)
	}

	// 买单限价让步 1 分钱: 0.48 + 0.01 = 0.49，仍在卖一内侧。
	if math.Abs(result.FillPrice-0.49) > 1e-9 {
		t.Errorf("fill price %.4f, want 0.49", result.FillPrice)
	}

	posts := venue.captured()
	if len(posts) != 3 {
		t.Fatalf("expected 3 posted chunks, got %d", len(posts))
	}

	wantChunkSize := math.Round(200/0.49*100) / 100
	var totalSize float64
	for i, post := range posts {
		if post.OrderType != clob.OrderTypeGTC {
			t.Errorf("chunk %d posted as %s, want GTC", i, post.OrderType)
		}
		if post.Owner != "test-owner" {
			t.Errorf("chunk %d owner %q, want test-owner", i, post.Owner)
		}
		if post.Order.Side != "BUY" {
			t.Errorf("chunk %d wire side %s, want BUY", i, post.Order.Side)
		}
		if post.Order.Signature == "" {
			t.Errorf("chunk %d missing signature", i)
		}
		totalSize += wantChunkSize
	}

	if math.Abs(result.FillSize-totalSize) > 1e-6 {
		t.Errorf("fill size %.2f, want %.2f", result.FillSize, totalSize)
	}
	if math.Abs(result.FillAmountUSD-totalSize*0.49) > 1e-6 {
		t.Errorf("fill amount %.4f, want %.4f", result.FillAmountUSD, totalSize*0.49)
	}
}

func TestExecutorEndToEnd_FAKUsesSignalPriceAndFOKWireType(t *testing.T) {
	venue := &stubVenue{}
	srv := httptest.NewServer(venue.handler())
	defer srv.Close()

	cfg := config.ExecutorConfig{
		MaxSlippagePercent:    1.0,
		MinLiquidityUSD:       1000,
		SplitThresholdUSD:     500,
		SplitCount:            3,
		DefaultOrderType:      "GTC",
		PriceImprovementCents: 1,
		SupportFAK:            true,
	}
	executor, _ := newVenueExecutor(t, srv.URL, cfg)

	result := executor.ExecuteFAK(context.Background(), Signal{
		TokenID:            "123456789",
		Side:               OrderSideBuy,
		AmountUSD:          200,
		Price:              0.5,
		PreferredOrderType: OrderTypeFAK,
	})
	if !result.Success {
		t.Fatalf("FAK execution failed: %s", result.Error)
	}
	if result.FillPrice != 0.5 {
		t.Errorf("FAK must use signal price, got %.4f", result.FillPrice)
	}

	posts := venue.captured()
	if len(posts) != 1 {
		t.Fatalf("expected single FAK post, got %d", len(posts))
	}
	if posts[0].OrderType != clob.OrderTypeFOK {
		t.Errorf("FAK posted as %s, want FOK", posts[0].OrderType)
	}
	if math.Abs(result.FillSize-400) > 1e-9 {
		t.Errorf("fill size %.2f, want 400", result.FillSize)
	}
}

func TestExecutorEndToEnd_MarketServiceSlippageGate(t *testing.T) {
	// 薄盘口: 买方向探针会吃穿深度，挂单路径必须被滑点闸拦下。
	mux := http.NewServeMux()
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"asset_id": r.URL.Query().Get("token_id"),
			"bids":     []map[string]string{{"price": "0.48", "size": "3000"}},
			"asks":     []map[string]string{{"price": "0.52", "size": "100"}},
		})
	})
	mux.HandleFunc("/last-trade-price", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"price": "0.50"})
	})
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no order should reach the venue when slippage gate rejects")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.ExecutorConfig{
		MaxSlippagePercent:    1.0,
		MinLiquidityUSD:       1000,
		SplitThresholdUSD:     500,
		SplitCount:            3,
		DefaultOrderType:      "GTC",
		PriceImprovementCents: 1,
	}
	executor, _ := newVenueExecutor(t, srv.URL, cfg)

	result := executor.Execute(context.Background(), Signal{
		TokenID:   "123456789",
		Side:      OrderSideBuy,
		AmountUSD: 600,
		Price:     0.5,
	})
	if result.Success {
		t.Fatal("expected slippage rejection")
	}
}
