// Package httpclient is the outbound HTTP client shared by the services:
// dispatcher to node forwarding, node to dispatcher unbusy signals, and the
// model sidecars. It adds base URLs, multipart bodies, typed errors and
// optional retry and circuit breaking.
//
//	client, _ := httpclient.New(httpclient.Config{
//	    BaseURL:        "http://10.0.0.7:5000",
//	    Timeout:        10 * time.Second,
//	    CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("verify"),
//	})
//	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
package httpclient
