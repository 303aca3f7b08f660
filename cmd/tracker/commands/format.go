package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goahead/predtracker/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string, fields ...string) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  %s\n", title)
	if len(fields) > 0 {
		fmt.Println("───────────────────────────────────────────────────────────")
		for i := 0; i+1 < len(fields); i += 2 {
			fmt.Printf("  %-10s: %s\n", fields[i], fields[i+1])
		}
	}
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintFooter closes a header block
func PrintFooter() {
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println()
}

// PrintJSON writes v as indented JSON to stdout
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintAck prints a lock/unlock acknowledgement and converts failure into an error
func PrintAck(ack contracts.LockAck) error {
	if !ack.Success {
		fmt.Printf("❌ %s\n", ack.Message)
		return fmt.Errorf("%s", ack.Message)
	}
	fmt.Printf("✅ %s\n", ack.Message)
	return nil
}

// formatNullable renders a nullable price ("-" when absent)
func formatNullable(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
