package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// createCmd 创建交易序列
var createCmd = &cobra.Command{
	Use:   "create <rlp-hex>",
	Short: "创建交易序列",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		usePaymaster, _ := cmd.Flags().GetBool("use-paymaster")
		deposit, _ := cmd.Flags().GetString("deposit")

		err := apiCall(http.MethodPost, "/api/v1/transactions", map[string]interface{}{
			"transaction":   args[0],
			"use_paymaster": usePaymaster,
			"deposit":       deposit,
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

// estimateCmd 估算所需充值
var estimateCmd = &cobra.Command{
	Use:   "estimate <rlp-hex>",
	Short: "估算 use_paymaster 模式所需充值",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := apiCall(http.MethodPost, "/api/v1/transactions/estimate", map[string]interface{}{
			"transaction": args[0],
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

// signNextCmd 推进序列一步
var signNextCmd = &cobra.Command{
	Use:   "sign-next <sequence-id>",
	Short: "签名序列中的下一步",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := apiCall(http.MethodPost, "/api/v1/transactions/"+args[0]+"/sign_next", nil); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

// getCmd 查询序列
var getCmd = &cobra.Command{
	Use:   "get <sequence-id>",
	Short: "查询交易序列状态",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := apiCall(http.MethodGet, "/api/v1/transactions/"+args[0], nil); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

// removeCmd 撤回序列
var removeCmd = &cobra.Command{
	Use:   "remove <sequence-id>",
	Short: "撤回未签完的交易序列",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := apiCall(http.MethodDelete, "/api/v1/transactions/"+args[0], nil); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(signNextCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(removeCmd)

	createCmd.Flags().Bool("use-paymaster", false, "是否使用 paymaster 代付 gas")
	createCmd.Flags().String("deposit", "0", "充值金额 (本链资产最小单位)")
}
