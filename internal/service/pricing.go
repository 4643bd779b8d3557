package service

import (
	"math/big"

	"gas-station/internal/model"
	"gas-station/pkg/errno"
	"gas-station/pkg/evmtx"
	"gas-station/pkg/oracle"
)

// PricingConfig 报价校验参数 (来自 config.Oracle)
type PricingConfig struct {
	LocalAssetDecimals int32 // 充值资产精度
	MaxAgeSec          int64 // 报价最大允许年龄 (秒)
	ConfToleranceBps   int64 // 两个报价的相对置信区间之和的容忍度 (基点, 1bp = 0.01%)
}

// GasTokens 计算打款步需要代付的外链原生币数量:
// transfer_gas × 用户交易声明的 gas price (maxFeePerGas)。
// 只付用户声明的 gas 预算，一个子也不多给。
func GasTokens(chain *model.ForeignChain, tx *evmtx.TransactionRequest) *big.Int {
	gas := new(big.Int).SetUint64(chain.TransferGas)
	return gas.Mul(gas, (*big.Int)(tx.GasFeeCap))
}

// checkQuote 单个报价的健全性
func checkQuote(q *oracle.Quote, maxAgeSec, now int64) error {
	if q.Price <= 0 {
		return errno.ErrInvalidPrice
	}
	if now-q.PublishTime > maxAgeSec {
		return errno.ErrStalePrice
	}
	return nil
}

// RequiredDeposit 计算 use_paymaster 模式下用户必须充值的本链资产数量。
//
//	required = ceil( gasTokens × P_foreign / P_local × 10^(e_f - e_l + d_l - d_f) × feeNum / feeDen )
//
// 其中 P/e 取自两个报价，d 是两种资产的最小单位精度。
// 过期或置信区间过大的报价直接拒绝 —— 宁可不做生意也不能错收费。
// 全程 big.Int，向上取整 (多余的部分算在退款里，退款自然向下取整)。
func RequiredDeposit(chain *model.ForeignChain, cfg PricingConfig, gasTokens *big.Int, localQ, foreignQ *oracle.Quote, now int64) (*big.Int, error) {
	if chain.FeeRateDen == 0 || chain.FeeRateNum < chain.FeeRateDen {
		return nil, errno.ErrInvalidFeeRate
	}
	if err := checkQuote(localQ, cfg.MaxAgeSec, now); err != nil {
		return nil, err
	}
	if err := checkQuote(foreignQ, cfg.MaxAgeSec, now); err != nil {
		return nil, err
	}

	priceL := big.NewInt(localQ.Price)
	priceF := big.NewInt(foreignQ.Price)
	confL := new(big.Int).SetUint64(localQ.Conf)
	confF := new(big.Int).SetUint64(foreignQ.Conf)

	// 合并相对置信区间: conf_l/price_l + conf_f/price_f > tol/10000 ?
	// 通分比较，避免除法:
	//   (conf_l×price_f + conf_f×price_l) × 10000 > tol × price_l × price_f
	lhs := new(big.Int).Mul(confL, priceF)
	lhs.Add(lhs, new(big.Int).Mul(confF, priceL))
	lhs.Mul(lhs, big.NewInt(10000))
	rhs := new(big.Int).Mul(priceL, priceF)
	rhs.Mul(rhs, big.NewInt(cfg.ConfToleranceBps))
	if lhs.Cmp(rhs) > 0 {
		return nil, errno.ErrPriceUncertain
	}

	// num/den = gasTokens × P_f × feeNum / (P_l × feeDen)，指数差并入其中
	num := new(big.Int).Mul(gasTokens, priceF)
	num.Mul(num, new(big.Int).SetUint64(chain.FeeRateNum))
	den := new(big.Int).Mul(priceL, new(big.Int).SetUint64(chain.FeeRateDen))

	shift := int64(foreignQ.Expo) - int64(localQ.Expo) + int64(cfg.LocalAssetDecimals) - int64(chain.NativeDecimals)
	pow := func(e int64) *big.Int {
		return new(big.Int).Exp(big.NewInt(10), big.NewInt(e), nil)
	}
	if shift >= 0 {
		num.Mul(num, pow(shift))
	} else {
		den.Mul(den, pow(-shift))
	}

	// 向上取整: 不足一个最小单位也按一个收，绝不让 paymaster 贴钱
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo, nil
}
