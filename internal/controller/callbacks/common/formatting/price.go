package formatting

import "fmt"

// FormatPrice форматирует сумму из центов в доллары
func FormatPrice(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
