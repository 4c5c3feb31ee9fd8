package novels

import "context"

type clientContextKey struct{}

// WithClient attaches c to ctx. Command handlers and views read it back with
// [ClientFromContext] instead of reaching for a global.
func WithClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, clientContextKey{}, c)
}

// ClientFromContext returns the Client attached by [WithClient].
func ClientFromContext(ctx context.Context) (*Client, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(clientContextKey{}).(*Client)
	return c, ok && c != nil
}
