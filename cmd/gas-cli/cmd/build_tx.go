package cmd

import (
	"fmt"
	"math/big"
	"os"

	"gas-station/pkg/evmtx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// buildTxCmd 构造一笔未签名的 EIP-1559 交易
var buildTxCmd = &cobra.Command{
	Use:   "build-tx",
	Short: "构造未签名的 EIP-1559 交易 (RLP hex)",
	Long:  `按参数构造 type-2 交易并输出 RLP hex，可直接作为 create 命令的输入。`,
	Run: func(cmd *cobra.Command, args []string) {
		to, _ := cmd.Flags().GetString("to")
		value, _ := cmd.Flags().GetString("value")
		nonce, _ := cmd.Flags().GetUint64("nonce")
		gas, _ := cmd.Flags().GetUint64("gas")
		feeCapStr, _ := cmd.Flags().GetString("max-fee")
		tipCapStr, _ := cmd.Flags().GetString("max-priority-fee")
		chainID, _ := cmd.Flags().GetUint64("chain-id")

		if !common.IsHexAddress(to) {
			fmt.Println("错误: to 不是合法的地址")
			os.Exit(1)
		}

		val, ok := new(big.Int).SetString(value, 10)
		if !ok {
			fmt.Println("错误: value 必须是十进制整数 (wei)")
			os.Exit(1)
		}
		feeCap, ok := new(big.Int).SetString(feeCapStr, 10)
		if !ok {
			fmt.Println("错误: max-fee 必须是十进制整数 (wei)")
			os.Exit(1)
		}
		tipCap, ok := new(big.Int).SetString(tipCapStr, 10)
		if !ok {
			fmt.Println("错误: max-priority-fee 必须是十进制整数 (wei)")
			os.Exit(1)
		}

		tx := evmtx.NewFundingTransfer(chainID, common.HexToAddress(to), val, gas, nonce, feeCap, tipCap)
		raw, err := tx.EncodeUnsigned()
		if err != nil {
			fmt.Printf("编码失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(raw)
	},
}

func init() {
	rootCmd.AddCommand(buildTxCmd)

	buildTxCmd.Flags().String("to", "", "接收方地址")
	buildTxCmd.Flags().String("value", "0", "金额 (wei)")
	buildTxCmd.Flags().Uint64("nonce", 0, "Nonce")
	buildTxCmd.Flags().Uint64("gas", 21000, "Gas limit")
	buildTxCmd.Flags().String("max-fee", "20000000000", "maxFeePerGas (wei)")
	buildTxCmd.Flags().String("max-priority-fee", "1000000000", "maxPriorityFeePerGas (wei)")
	buildTxCmd.Flags().Uint64("chain-id", 97, "外链 Chain ID")

	buildTxCmd.MarkFlagRequired("to")
}
