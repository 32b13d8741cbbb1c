package collector

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// splitInterval splits "15m" into 15 and 'm'.
func splitInterval(interval string) (int64, byte, error) {
	if len(interval) < 2 {
		return 0, 0, errors.Errorf("invalid interval format: %q", interval)
	}
	unit := interval[len(interval)-1]
	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, 0, errors.Errorf("invalid interval number: %q", interval)
	}
	return n, unit, nil
}

// convertIntervalToBybit maps "5m" to "5", "4h" to "240", "1d" to "D", "1w" to "W".
func convertIntervalToBybit(interval string) (string, error) {
	n, unit, err := splitInterval(interval)
	if err != nil {
		return "", err
	}

	switch unit {
	case 'm':
		return strconv.FormatInt(n, 10), nil
	case 'h':
		return strconv.FormatInt(n*60, 10), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	default:
		return "", errors.Errorf("unsupported interval unit: %c", unit)
	}
}

// parseIntervalToDuration converts an interval into its wall-clock length.
func parseIntervalToDuration(interval string) (time.Duration, error) {
	n, unit, err := splitInterval(interval)
	if err != nil {
		return 0, err
	}

	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, errors.Errorf("unsupported interval unit: %c", unit)
	}
}

// parseTimestamp converts a millisecond timestamp string to time.Time.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	msec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse timestamp: %s", ts)
	}
	return time.UnixMilli(msec), nil
}
