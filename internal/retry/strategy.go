package retry

import (
	"time"

	wbfretry "github.com/wb-go/wbf/retry"
)

// DefaultStrategy is the database-side retry strategy handed to the
// dbpg helpers (ExecWithRetry/QueryWithRetry).
var DefaultStrategy = wbfretry.Strategy{
	Attempts: 3,
	Delay:    500 * time.Millisecond,
	Backoff:  2.0,
}
