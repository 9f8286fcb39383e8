// Package client calls a runkit server over its HTTP API.
//
// Client.Recipe returns a Remote, a runnable.Unit backed by a server
// recipe. Invoke and Batch map to the invoke and batch routes, and Stream
// reads the server-sent event stream chunk by chunk. Error envelopes are
// turned back into AppErrors with their original code, so retry and
// fallback decorators treat remote failures like local ones. Transport
// failures surface as UNAVAILABLE, which is retryable.
//
//	c, err := client.New(client.Config{BaseURL: "http://runkit:8080"})
//	if err != nil {
//	    return err
//	}
//	out, err := c.Recipe("shout").Invoke(ctx, "hello")
package client
