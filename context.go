package authcore

import "context"

type clientIPContextKey struct{}
type deviceInfoContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine records
// it on audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithDeviceInfo attaches a free-form device label (user agent, app build)
// to ctx. It is stored alongside refresh tokens for session listings and
// audit trails.
func WithDeviceInfo(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceInfoContextKey{}, device)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func deviceInfoFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	device, _ := ctx.Value(deviceInfoContextKey{}).(string)
	return device
}
