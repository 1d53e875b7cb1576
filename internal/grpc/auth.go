package grpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const ServiceTokenHeader = "x-service-token"

var serviceAuthResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "edumanage_grpc_service_auth_total",
	Help: "Service token checks on the identity gRPC surface.",
}, []string{"method", "result"})

// NewServiceAuthUnaryInterceptor admits only callers presenting
// expectedToken in x-service-token metadata. A missing token is
// Unauthenticated and a wrong one PermissionDenied.
func NewServiceAuthUnaryInterceptor(expectedToken string) (grpc.UnaryServerInterceptor, error) {
	if expectedToken == "" {
		return nil, errors.New("service auth token required")
	}
	expected := []byte(expectedToken)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		method := methodName(info.FullMethod)
		presented, ok := presentedToken(ctx)
		switch {
		case !ok:
			serviceAuthResults.WithLabelValues(method, "missing").Inc()
			return nil, status.Error(codes.Unauthenticated, "missing_service_token")
		case subtle.ConstantTimeCompare([]byte(presented), expected) != 1:
			serviceAuthResults.WithLabelValues(method, "invalid").Inc()
			return nil, status.Error(codes.PermissionDenied, "invalid_service_token")
		}
		serviceAuthResults.WithLabelValues(method, "ok").Inc()
		return handler(ctx, req)
	}, nil
}

// WithServiceToken attaches token to outgoing calls made with ctx.
func WithServiceToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, ServiceTokenHeader, token)
}

func presentedToken(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, value := range md.Get(ServiceTokenHeader) {
		if token := strings.TrimSpace(value); token != "" {
			return token, true
		}
	}
	return "", false
}

// methodName trims "/pkg.Service/Method" to "Method".
func methodName(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}
