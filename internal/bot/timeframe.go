package bot

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidTimeframe reports a timeframe string the bot cannot parse.
// It marks a caller input error, as opposed to a collaborator failure.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// parseTimeframe converts an exchange interval string ("1m", "15m",
// "4h", "1d") to a duration.
func parseTimeframe(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimeframe, tf)
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimeframe, tf)
	}
	switch tf[len(tf)-1] {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrInvalidTimeframe, tf)
	}
}
