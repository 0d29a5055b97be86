package security

import (
	"context"
	"log/slog"
)

// LoggingSMSSender is the development delivery adapter: it logs that a code
// was issued without printing the code itself. Production wiring swaps in a
// real gateway behind the same port.
type LoggingSMSSender struct{}

func NewLoggingSMSSender() *LoggingSMSSender { return &LoggingSMSSender{} }

func (s *LoggingSMSSender) Send(ctx context.Context, phoneNumber, code string) error {
	slog.Default().InfoContext(ctx, "sms code issued",
		"module", "sms",
		"layer", "adapter",
		"operation", "send",
		"outcome", "success",
		"phone_suffix", suffix(phoneNumber, 4),
		"code_length", len(code),
	)
	return nil
}

func suffix(v string, n int) string {
	if len(v) <= n {
		return v
	}
	return v[len(v)-n:]
}
