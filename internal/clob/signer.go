package clob

import (
	"crypto/ecdsa"
	cryptorand "crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"poly-trader/internal/config"
)

const (
	domainName    = "Polymarket CTF Exchange"
	domainVersion = "1"

	sideBuy  = 0
	sideSell = 1

	// microFactor 为 USDC/份额的链上精度（6位小数）。
	microFactor = 1_000_000
)

// Signer 负责按 EIP-712 规范对交易所委托进行哈希与签名。
type Signer struct {
	key           *ecdsa.PrivateKey
	signerAddress common.Address
	maker         common.Address
	chainID       *big.Int
	contract      common.Address
	signatureType int
}

// NewSigner 从链配置构造签名器。
func NewSigner(cfg config.ChainConfig) (*Signer, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x")
	if raw == "" {
		return nil, fmt.Errorf("clob: 未配置签名私钥")
	}

	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("clob: 解析签名私钥失败: %w", err)
	}

	signerAddress := crypto.PubkeyToAddress(key.PublicKey)
	maker := signerAddress
	if cfg.FunderAddress != "" {
		if !common.IsHexAddress(cfg.FunderAddress) {
			return nil, fmt.Errorf("clob: 非法资金地址 %q", cfg.FunderAddress)
		}
		maker = common.HexToAddress(cfg.FunderAddress)
	}
	if !common.IsHexAddress(cfg.ExchangeContract) {
		return nil, fmt.Errorf("clob: 非法交易所合约地址 %q", cfg.ExchangeContract)
	}

	return &Signer{
		key:           key,
		signerAddress: signerAddress,
		maker:         maker,
		chainID:       big.NewInt(cfg.ChainID),
		contract:      common.HexToAddress(cfg.ExchangeContract),
		signatureType: cfg.SignatureType,
	}, nil
}

// Address 返回签名地址。
func (s *Signer) Address() common.Address {
	return s.signerAddress
}

// BuildOrder 根据业务入参生成已签名委托。
// 金额换算遵循交易所语义：买单 maker 支付 USDC、taker 给付份额，卖单相反。
func (s *Signer) BuildOrder(args OrderArgs) (SignedOrder, error) {
	if args.Price <= 0 || args.Price >= 1 {
		return SignedOrder{}, fmt.Errorf("clob: 非法委托价格 %.4f", args.Price)
	}
	if args.Size <= 0 {
		return SignedOrder{}, fmt.Errorf("clob: 非法委托数量 %.4f", args.Size)
	}

	usdcMicro := int64(math.Round(args.Price * args.Size * microFactor))
	sharesMicro := int64(math.Round(args.Size * microFactor))
	if usdcMicro <= 0 || sharesMicro <= 0 {
		return SignedOrder{}, fmt.Errorf("clob: 委托金额过小，换算后为零")
	}

	var side int
	var makerAmount, takerAmount int64
	switch args.Side {
	case "buy":
		side = sideBuy
		makerAmount, takerAmount = usdcMicro, sharesMicro
	case "sell":
		side = sideSell
		makerAmount, takerAmount = sharesMicro, usdcMicro
	default:
		return SignedOrder{}, fmt.Errorf("clob: 非法委托方向 %q", args.Side)
	}

	tokenID, ok := new(big.Int).SetString(args.TokenID, 10)
	if !ok {
		return SignedOrder{}, fmt.Errorf("clob: 非法代币标识 %q", args.TokenID)
	}

	order := SignedOrder{
		Salt:          randomSalt(),
		Maker:         s.maker.Hex(),
		Signer:        s.signerAddress.Hex(),
		Taker:         common.Address{}.Hex(),
		TokenID:       args.TokenID,
		MakerAmount:   strconv.FormatInt(makerAmount, 10),
		TakerAmount:   strconv.FormatInt(takerAmount, 10),
		Expiration:    strconv.FormatInt(args.Expiration, 10),
		Nonce:         "0",
		FeeRateBps:    strconv.FormatInt(args.FeeRateBps, 10),
		Side:          wireSide(side),
		SignatureType: s.signatureType,
	}

	digest, err := s.hashOrder(order, tokenID, side)
	if err != nil {
		return SignedOrder{}, err
	}

	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return SignedOrder{}, fmt.Errorf("clob: 签名失败: %w", err)
	}
	// EIP-712 约定 v 为 27/28。
	sig[64] += 27
	order.Signature = hexutil.Encode(sig)

	return order, nil
}

func (s *Signer) hashOrder(order SignedOrder, tokenID *big.Int, side int) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": []apitypes.Type{
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           (*ethmath.HexOrDecimal256)(s.chainID),
			VerifyingContract: s.contract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          strconv.FormatInt(order.Salt, 10),
			"maker":         order.Maker,
			"signer":        order.Signer,
			"taker":         order.Taker,
			"tokenId":       tokenID.String(),
			"makerAmount":   order.MakerAmount,
			"takerAmount":   order.TakerAmount,
			"expiration":    order.Expiration,
			"nonce":         order.Nonce,
			"feeRateBps":    order.FeeRateBps,
			"side":          strconv.Itoa(side),
			"signatureType": strconv.Itoa(order.SignatureType),
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("clob: 计算委托摘要失败: %w", err)
	}
	return digest, nil
}

func wireSide(side int) string {
	if side == sideSell {
		return "SELL"
	}
	return "BUY"
}

// randomSalt 在 2^32 范围内取随机盐，避免超出 JS 安全整数范围。
func randomSalt() int64 {
	limit := big.NewInt(1 << 32)
	n, err := cryptorand.Int(cryptorand.Reader, limit)
	if err != nil {
		return time.Now().UnixMilli() % limit.Int64()
	}
	return n.Int64()
}
