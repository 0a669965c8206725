package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "poly"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("clob.base_url", "https://clob.polymarket.com")
	v.SetDefault("clob.api_key", "")
	v.SetDefault("clob.timeout", "10s")

	v.SetDefault("chain.chain_id", 137)
	v.SetDefault("chain.exchange_contract", "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.funder_address", "")
	v.SetDefault("chain.signature_type", 0)

	v.SetDefault("executor.max_slippage_percent", 1.0)
	v.SetDefault("executor.min_liquidity_usd", 1000.0)
	v.SetDefault("executor.max_order_size_usd", 5000.0)
	v.SetDefault("executor.split_threshold_usd", 500.0)
	v.SetDefault("executor.split_count", 3)
	v.SetDefault("executor.default_order_type", "GTC")
	v.SetDefault("executor.price_improvement_cents", 1.0)
	v.SetDefault("executor.max_batch_size", 15)
	v.SetDefault("executor.support_fak", true)

	v.SetDefault("gas.min_trade_size_usd", 50.0)
	v.SetDefault("gas.off_peak_start_hour_utc", 2)
	v.SetDefault("gas.off_peak_end_hour_utc", 6)
	v.SetDefault("gas.max_gas_price_gwei", 100.0)
	v.SetDefault("gas.native_token_price_usd", 0.65)
	v.SetDefault("gas.batch_enabled", true)
	v.SetDefault("gas.batch_window", "5s")
	v.SetDefault("gas.max_batch_size", 15)

	v.SetDefault("database.path", "data/poly_trader.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("intake.listen_port", 8787)
	v.SetDefault("intake.loop_interval", "10s")
	v.SetDefault("intake.queue_size", 256)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
