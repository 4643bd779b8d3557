package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Oracle  OracleConfig  `mapstructure:"oracle"`
	Signer  SignerConfig  `mapstructure:"signer"`
	Station StationConfig `mapstructure:"station"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// OracleConfig 价格预言机配置
type OracleConfig struct {
	Endpoint string `mapstructure:"endpoint"` // Pyth Hermes 风格的 HTTP 接口
	// 本位资产 (用户充值的本链资产) 的喂价 ID 和精度
	LocalAssetID       string `mapstructure:"local_asset_id"`
	LocalAssetDecimals int32  `mapstructure:"local_asset_decimals"`
	MaxAgeSec          int64  `mapstructure:"max_age_sec"`    // 报价最大允许年龄
	ConfToleranceBps   int64  `mapstructure:"conf_tol_bps"`   // 合并置信区间容忍度 (基点)
	CacheTTLSec        int64  `mapstructure:"cache_ttl_sec"`  // Redis 报价缓存 TTL
}

// SignerConfig 签名服务配置
type SignerConfig struct {
	Type     string `mapstructure:"type"`     // "local" (开发) or "remote" (MPC 服务)
	Endpoint string `mapstructure:"endpoint"` // remote 模式下的 HTTP 地址
	Mnemonic string `mapstructure:"mnemonic"` // local 模式下的助记词 (通常通过环境变量 SIGNER_MNEMONIC 传入)
}

// StationConfig 业务配置
type StationConfig struct {
	AdminToken   string   `mapstructure:"admin_token"`   // 管理接口的 Bearer Token
	GovernedKeys []string `mapstructure:"governed_keys"` // 作为 Governor Peer 时愿意接管的 key path 列表
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "gas_user")
	viper.SetDefault("db.password", "gas_password")
	viper.SetDefault("db.name", "gas_station_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("oracle.endpoint", "https://hermes.pyth.network")
	viper.SetDefault("oracle.local_asset_decimals", 24)
	viper.SetDefault("oracle.max_age_sec", 60)
	viper.SetDefault("oracle.conf_tol_bps", 500) // 5%
	viper.SetDefault("oracle.cache_ttl_sec", 5)

	viper.SetDefault("signer.type", "local")
}
