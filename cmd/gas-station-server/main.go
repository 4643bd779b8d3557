package main

import (
	"context"
	"fmt"
	"time"

	"gas-station/internal/handler"
	"gas-station/internal/model"
	"gas-station/internal/repo"
	"gas-station/internal/server"
	"gas-station/internal/service"
	"gas-station/internal/service/mq"
	"gas-station/pkg/config"
	"gas-station/pkg/database"
	"gas-station/pkg/logger"
	"gas-station/pkg/oracle"
	"gas-station/pkg/signer"

	"go.uber.org/zap"
)

// @title Gas Station API
// @version 1.0
// @description Cross-chain gas station: pay on the home chain, get signed foreign-chain transactions back.

// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	// 2. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Shanghai",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 连接 Redis
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. 数据库迁移: 开发环境 AutoMigrate，生产走 migrate 工具
	if config.Global.App.Env == "development" {
		logger.Info("开发环境: 自动迁移 Schema (GORM AutoMigrate)...")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
	}

	store := repo.NewGormStore(db)

	// 5. 签名服务: local (进程内 HD 树模拟 MPC) 或 remote (真实 MPC 服务)
	var sg signer.Signer
	if config.Global.Signer.Type == "remote" {
		logger.Info("使用远端 MPC 签名服务", zap.String("endpoint", config.Global.Signer.Endpoint))
		sg = signer.NewRemoteSigner(config.Global.Signer.Endpoint)
	} else {
		logger.Info("使用本地 HD 签名器 (开发模式)")
		sg, err = signer.NewHDSigner(config.Global.Signer.Mnemonic)
		if err != nil {
			logger.Fatal("签名器初始化失败", zap.Error(err))
		}
	}

	// 6. 价格预言机: Pyth Hermes + Redis 缓存
	oc := oracle.Oracle(oracle.NewPythClient(config.Global.Oracle.Endpoint))
	if config.Global.Oracle.CacheTTLSec > 0 {
		oc = oracle.NewCachedOracle(oc, rdb, time.Duration(config.Global.Oracle.CacheTTLSec)*time.Second)
	}

	// 7. 组装业务服务
	pause := &service.PauseSwitch{}
	pricing := service.PricingConfig{
		LocalAssetDecimals: config.Global.Oracle.LocalAssetDecimals,
		MaxAgeSec:          config.Global.Oracle.MaxAgeSec,
		ConfToleranceBps:   config.Global.Oracle.ConfToleranceBps,
	}

	ledger := service.NewLedgerService(store)
	auth := service.NewAuthorizationService(store, service.NewHTTPGovernorPeer(), pause)
	sequences := service.NewSequenceService(store, ledger, auth, sg, oc, pause, pricing, config.Global.Oracle.LocalAssetID)
	admin := service.NewAdminService(store, ledger, sg, pause)

	// 8. 消息队列
	var producer mq.Producer
	var consumer mq.Consumer
	if config.Global.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...")
		producer = mq.NewKafkaProducer(config.Global.Kafka.Brokers)
		consumer = mq.NewKafkaConsumer(config.Global.Kafka.Brokers, "gas_station_indexer")
	} else {
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb)
		consumer = mq.NewRedisConsumer(rdb, "gas_station_indexer", "indexer-0")
	}

	relay := service.NewRelayService(store, producer)
	indexer := service.NewIndexerService(consumer)

	// 9. HTTP Router
	r := server.NewHTTPRouter(server.Handlers{
		Transaction: handler.NewTransactionHandler(sequences),
		Governor:    handler.NewGovernorHandler(auth, config.Global.Station.GovernedKeys),
		Admin:       handler.NewAdminHandler(admin),
	}, config.Global.Station.AdminToken)

	// 10. 启动应用
	app := server.New(config.Global.App.HttpPort, r)
	app.AddWorker(relay.Start)
	app.AddWorker(func(ctx context.Context) {
		if err := indexer.Start(ctx); err != nil {
			logger.Error("Indexer 启动失败", zap.Error(err))
		}
	})

	// 运行 (阻塞)
	app.Run()

	// 11. 退出后资源清理
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	rdb.Close()
	logger.Info("系统已退出")
}
