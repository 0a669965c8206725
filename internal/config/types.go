package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	CLOB     CLOBConfig     `mapstructure:"clob"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Gas      GasConfig      `mapstructure:"gas"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Intake   IntakeConfig   `mapstructure:"intake"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// CLOBConfig 描述限价订单簿接入信息。
type CLOBConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChainConfig 描述订单签名所需的链上参数。
type ChainConfig struct {
	ChainID          int64  `mapstructure:"chain_id"`
	ExchangeContract string `mapstructure:"exchange_contract"`
	PrivateKey       string `mapstructure:"private_key"`
	FunderAddress    string `mapstructure:"funder_address"`
	SignatureType    int    `mapstructure:"signature_type"`
}

// ExecutorConfig 控制执行引擎的下单行为，构造后不可变。
type ExecutorConfig struct {
	MaxSlippagePercent    float64 `mapstructure:"max_slippage_percent"`
	MinLiquidityUSD       float64 `mapstructure:"min_liquidity_usd"`
	MaxOrderSizeUSD       float64 `mapstructure:"max_order_size_usd"`
	SplitThresholdUSD     float64 `mapstructure:"split_threshold_usd"`
	SplitCount            int     `mapstructure:"split_count"`
	DefaultOrderType      string  `mapstructure:"default_order_type"`
	PriceImprovementCents float64 `mapstructure:"price_improvement_cents"`
	MaxBatchSize          int     `mapstructure:"max_batch_size"`
	SupportFAK            bool    `mapstructure:"support_fak"`
}

// GasConfig 控制成本评估与链上操作聚合，构造后不可变。
type GasConfig struct {
	MinTradeSizeUSD     float64       `mapstructure:"min_trade_size_usd"`
	OffPeakStartHourUTC int           `mapstructure:"off_peak_start_hour_utc"`
	OffPeakEndHourUTC   int           `mapstructure:"off_peak_end_hour_utc"`
	MaxGasPriceGwei     float64       `mapstructure:"max_gas_price_gwei"`
	NativeTokenPriceUSD float64       `mapstructure:"native_token_price_usd"`
	BatchEnabled        bool          `mapstructure:"batch_enabled"`
	BatchWindow         time.Duration `mapstructure:"batch_window"`
	MaxBatchSize        int           `mapstructure:"max_batch_size"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// IntakeConfig 控制信号接收与主循环节奏。
type IntakeConfig struct {
	ListenPort   int           `mapstructure:"listen_port"`
	LoopInterval time.Duration `mapstructure:"loop_interval"`
	QueueSize    int           `mapstructure:"queue_size"`
}

var validOrderTypes = map[string]bool{"GTC": true, "GTD": true, "FAK": true}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.CLOB.BaseURL == "" {
		err = multierr.Append(err, errors.New("clob.base_url 不能为空"))
	}
	if c.CLOB.Timeout <= 0 {
		err = multierr.Append(err, errors.New("clob.timeout 必须大于0"))
	}
	if c.Chain.ChainID <= 0 {
		err = multierr.Append(err, errors.New("chain.chain_id 必须大于0"))
	}
	if c.Chain.ExchangeContract == "" {
		err = multierr.Append(err, errors.New("chain.exchange_contract 不能为空"))
	}
	if c.Chain.SignatureType < 0 || c.Chain.SignatureType > 2 {
		err = multierr.Append(err, errors.New("chain.signature_type 必须位于[0,2]"))
	}
	if c.Executor.MaxSlippagePercent <= 0 || c.Executor.MaxSlippagePercent > 100 {
		err = multierr.Append(err, errors.New("executor.max_slippage_percent 必须位于(0,100]"))
	}
	if c.Executor.MinLiquidityUSD <= 0 {
		err = multierr.Append(err, errors.New("executor.min_liquidity_usd 必须大于0"))
	}
	if c.Executor.MaxOrderSizeUSD <= 0 {
		err = multierr.Append(err, errors.New("executor.max_order_size_usd 必须大于0"))
	}
	if c.Executor.SplitThresholdUSD <= 0 {
		err = multierr.Append(err, errors.New("executor.split_threshold_usd 必须大于0"))
	}
	if c.Executor.SplitCount <= 0 {
		err = multierr.Append(err, errors.New("executor.split_count 必须大于0"))
	}
	if !validOrderTypes[strings.ToUpper(c.Executor.DefaultOrderType)] {
		err = multierr.Append(err, errors.New("executor.default_order_type 必须是 GTC/GTD/FAK 之一"))
	}
	if c.Executor.PriceImprovementCents < 0 {
		err = multierr.Append(err, errors.New("executor.price_improvement_cents 不能为负"))
	}
	if c.Executor.MaxBatchSize <= 0 {
		err = multierr.Append(err, errors.New("executor.max_batch_size 必须大于0"))
	}
	if c.Gas.MinTradeSizeUSD <= 0 {
		err = multierr.Append(err, errors.New("gas.min_trade_size_usd 必须大于0"))
	}
	if c.Gas.OffPeakStartHourUTC < 0 || c.Gas.OffPeakStartHourUTC > 23 {
		err = multierr.Append(err, errors.New("gas.off_peak_start_hour_utc 必须位于[0,23]"))
	}
	if c.Gas.OffPeakEndHourUTC < 0 || c.Gas.OffPeakEndHourUTC > 24 {
		err = multierr.Append(err, errors.New("gas.off_peak_end_hour_utc 必须位于[0,24]"))
	}
	// 低峰窗口不支持跨越午夜，这里显式拒绝而不是静默算错。
	if c.Gas.OffPeakStartHourUTC >= c.Gas.OffPeakEndHourUTC {
		err = multierr.Append(err, errors.New("gas.off_peak 窗口必须满足 start < end，不支持跨午夜"))
	}
	if c.Gas.MaxGasPriceGwei <= 0 {
		err = multierr.Append(err, errors.New("gas.max_gas_price_gwei 必须大于0"))
	}
	if c.Gas.NativeTokenPriceUSD <= 0 {
		err = multierr.Append(err, errors.New("gas.native_token_price_usd 必须大于0"))
	}
	if c.Gas.BatchEnabled && c.Gas.BatchWindow <= 0 {
		err = multierr.Append(err, errors.New("gas.batch_window 必须大于0"))
	}
	if c.Gas.MaxBatchSize <= 0 {
		err = multierr.Append(err, errors.New("gas.max_batch_size 必须大于0"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Intake.ListenPort <= 0 || c.Intake.ListenPort > 65535 {
		err = multierr.Append(err, errors.New("intake.listen_port 必须位于(0,65535]"))
	}
	if c.Intake.LoopInterval <= 0 {
		err = multierr.Append(err, errors.New("intake.loop_interval 必须大于0"))
	}
	if c.Intake.QueueSize <= 0 {
		err = multierr.Append(err, errors.New("intake.queue_size 必须大于0"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
