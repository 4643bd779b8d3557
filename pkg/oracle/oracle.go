package oracle

import (
	"context"
	"errors"
)

// Quote 是一个带不确定度的价格报价: price ± conf，定点表示 x * 10^expo。
// 对齐 Pyth 的喂价格式，所有资产以同一参考货币 (USD) 计价。
type Quote struct {
	Price       int64  `json:"price"`
	Conf        uint64 `json:"conf"`         // 置信区间半径
	Expo        int32  `json:"expo"`         // 指数 (通常为负)
	PublishTime int64  `json:"publish_time"` // Unix 秒
}

// Oracle 价格预言机接口 (外部协作方，黑盒)
type Oracle interface {
	// GetPrice 获取指定资产的最新报价
	// assetID: 喂价标识 (hex 编码的 price feed id)
	GetPrice(ctx context.Context, assetID string) (*Quote, error)
}

var ErrNoPrice = errors.New("oracle: no price for asset")
