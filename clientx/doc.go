// Package clientx provides outbound HTTP client construction with retry,
// circuit breaking and timeouts.
//
// # Overview
//
// The CI variable uploader sends one request per variable. When the session
// cookie or CSRF token has expired every request fails the same way, so the
// client opens a gobreaker circuit after a run of consecutive failures and the
// caller can stop early. Retries are off unless requested and only replay
// requests whose body can be rewound.
//
// # Usage
//
//	client := clientx.NewHTTPClient(
//		clientx.WithRetry(0),
//		clientx.WithFailureStatus(http.StatusBadRequest),
//	)
//	resp, err := client.Do(req)
//	if errors.Is(err, clientx.ErrCircuitOpen) { ... }
package clientx
