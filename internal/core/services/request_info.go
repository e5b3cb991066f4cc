package services

import "context"

// RequestInfo carries caller metadata from the transport layer into audit
// entries.
type RequestInfo struct {
	UserID    string
	Email     string
	Role      string
	IPAddress string
	UserAgent string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
