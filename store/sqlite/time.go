package sqlite

import "time"

func timeFromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
