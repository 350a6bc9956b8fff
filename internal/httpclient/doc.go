// Package httpclient provides HTTP plumbing shared by HTTP-based storage
// backends.
//
// [NewClient] builds a client tuned for benchmark traffic with connection
// reuse sized to the worker count:
//
//	client := httpclient.NewClient(30*time.Second, workers)
//
// [Drain] consumes and closes a response body while counting its bytes:
//
//	n, err := httpclient.Drain(resp.Body)
package httpclient
