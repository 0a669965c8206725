package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"poly-trader/internal/config"
)

// Client 访问 CLOB 行情接口。
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient 创建行情客户端。
func NewClient(cfg config.CLOBConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type bookLevelPayload struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookPayload struct {
	AssetID string             `json:"asset_id"`
	Bids    []bookLevelPayload `json:"bids"`
	Asks    []bookLevelPayload `json:"asks"`
}

type lastTradePayload struct {
	Price string `json:"price"`
}

// FetchBook 拉取指定代币的订单簿。
func (c *Client) FetchBook(ctx context.Context, tokenID string) (Book, error) {
	var payload bookPayload
	if err := c.getJSON(ctx, "/book", url.Values{"token_id": {tokenID}}, &payload); err != nil {
		return Book{}, fmt.Errorf("拉取订单簿失败: %w", err)
	}

	book := Book{
		TokenID:   tokenID,
		Timestamp: time.Now().UTC(),
	}

	var err error
	if book.Bids, err = parseLevels(payload.Bids); err != nil {
		return Book{}, fmt.Errorf("解析买盘失败: %w", err)
	}
	if book.Asks, err = parseLevels(payload.Asks); err != nil {
		return Book{}, fmt.Errorf("解析卖盘失败: %w", err)
	}

	// 买盘按价降序、卖盘按价升序，便于逐档吃深度。
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })

	return book, nil
}

// FetchLastTradePrice 拉取最近成交价，无成交时返回0。
func (c *Client) FetchLastTradePrice(ctx context.Context, tokenID string) (float64, error) {
	var payload lastTradePayload
	if err := c.getJSON(ctx, "/last-trade-price", url.Values{"token_id": {tokenID}}, &payload); err != nil {
		return 0, fmt.Errorf("拉取最近成交价失败: %w", err)
	}
	if payload.Price == "" {
		return 0, nil
	}
	price, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("解析最近成交价失败: %w", err)
	}
	return price, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("POLY-API-KEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("行情接口返回 %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

func parseLevels(raw []bookLevelPayload) ([]BookLevel, error) {
	levels := make([]BookLevel, 0, len(raw))
	for _, entry := range raw {
		price, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("非法档位价格 %q: %w", entry.Price, err)
		}
		size, err := strconv.ParseFloat(entry.Size, 64)
		if err != nil {
			return nil, fmt.Errorf("非法档位数量 %q: %w", entry.Size, err)
		}
		if price <= 0 || size <= 0 {
			continue
		}
		levels = append(levels, BookLevel{Price: price, Size: size})
	}
	return levels, nil
}
