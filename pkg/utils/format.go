package utils

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

func ConvertToJsonString(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func ConvertToPercentage(numStr string) string {
	// 将字符串解析为 float64
	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return "" // 解析失败返回空字符串
	}

	// 将小数乘以 100，转换为百分比数值
	percentage := num * 100
	// 格式化为字符串，保留两位小数
	return strconv.FormatFloat(percentage, 'f', 2, 64) + "%"
}

// GetDisplayWalletAddress 获取用于显示的钱包地址
func GetDisplayWalletAddress(walletAddress string) string {
	// 检查地址长度
	if len(walletAddress) > 9 {
		return fmt.Sprintf("%s...%s", walletAddress[:6], walletAddress[len(walletAddress)-4:])
	}
	// 如果地址不够长，直接返回原始地址
	return walletAddress
}

// FormatUSD 格式化USD金额，大额使用K/M后缀
func FormatUSD(amount decimal.Decimal) string {
	f, _ := amount.Float64()
	switch {
	case f >= 1_000_000:
		return fmt.Sprintf("$%.2fM", f/1_000_000)
	case f >= 1_000:
		return fmt.Sprintf("$%.2fK", f/1_000)
	default:
		return fmt.Sprintf("$%.2f", f)
	}
}

// FormatOutcomePrice 格式化结果价格（预测市场价格在0~1之间）
func FormatOutcomePrice(price decimal.Decimal) string {
	if price.IsZero() {
		return "$0"
	}
	return "$" + price.Round(4).String()
}
