package clob

// OrderArgs 描述一笔待签名委托的业务入参。
type OrderArgs struct {
	TokenID    string
	Side       string // buy | sell
	Price      float64
	Size       float64 // 份额数量
	FeeRateBps int64
	Expiration int64 // Unix 秒，0 表示不过期
}

// SignedOrder 为已签名、可直接提交的委托。
type SignedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"` // BUY | SELL
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// PostResult 为委托提交结果；Success=false 表示交易所拒单而非故障。
type PostResult struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"orderID"`
	ErrorMsg string `json:"errorMsg"`
	Status   string `json:"status"`
}

const (
	// OrderTypeGTC 挂单直至撤销。
	OrderTypeGTC = "GTC"
	// OrderTypeGTD 挂单直至到期。
	OrderTypeGTD = "GTD"
	// OrderTypeFOK 即时全部成交否则撤销；FAK 委托在提交层使用该语义，
	// 成交可得部分并原子撤掉剩余，无需单独的链上撤单交易。
	OrderTypeFOK = "FOK"
)
