package clob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"poly-trader/internal/config"
)

// Client 负责委托的签名与提交。
// 拒单通过 PostResult 返回，error 仅用于网络/解析层故障。
type Client struct {
	baseURL string
	apiKey  string
	signer  *Signer
	http    *http.Client
	logger  *zap.Logger
}

// NewClient 创建提交客户端。
func NewClient(cfg config.CLOBConfig, signer *Signer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		signer:  signer,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// CreateOrder 构造并签名一笔委托。
func (c *Client) CreateOrder(ctx context.Context, args OrderArgs) (SignedOrder, error) {
	order, err := c.signer.BuildOrder(args)
	if err != nil {
		return SignedOrder{}, err
	}

	c.logger.Debug("委托已签名",
		zap.String("token_id", args.TokenID),
		zap.String("side", order.Side),
		zap.Float64("price", args.Price),
		zap.Float64("size", args.Size),
	)

	return order, nil
}

type postOrderRequest struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType string      `json:"orderType"`
}

// PostOrder 提交已签名委托。orderType 取 GTC/GTD/FOK。
func (c *Client) PostOrder(ctx context.Context, order SignedOrder, orderType string) (PostResult, error) {
	payload, err := json.Marshal(postOrderRequest{
		Order:     order,
		Owner:     c.apiKey,
		OrderType: orderType,
	})
	if err != nil {
		return PostResult{}, fmt.Errorf("clob: 序列化委托失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(payload))
	if err != nil {
		return PostResult{}, fmt.Errorf("clob: 构造提交请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("POLY-API-KEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return PostResult{}, fmt.Errorf("clob: 提交委托失败: %w", wrapTransport(err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	var result PostResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return PostResult{}, fmt.Errorf("clob: 解析提交响应失败(HTTP %d): %w", resp.StatusCode, err)
	}

	// 交易所以带 errorMsg 的业务响应表示拒单，非 2xx 也归入拒单而非故障。
	if resp.StatusCode != http.StatusOK && result.ErrorMsg == "" {
		result.Success = false
		result.ErrorMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	if result.Success {
		c.logger.Debug("委托已接受",
			zap.String("order_id", result.OrderID),
			zap.String("order_type", orderType),
		)
	} else {
		c.logger.Debug("委托被拒绝",
			zap.String("order_type", orderType),
			zap.String("reason", result.ErrorMsg),
		)
	}

	return result, nil
}
