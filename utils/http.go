// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by everything that downloads replay artifacts. Long
// games decompress to tens of megabytes, so the timeout is generous.
var HTTPClient = &http.Client{
	Timeout: 120 * time.Second,
}
