package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DrumilPatell/edumanage-sms/internal/auth"
	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

type userMap map[int64]model.User

func (m userMap) GetUserByID(_ context.Context, id int64) (model.User, error) {
	user, ok := m[id]
	if !ok {
		return model.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func startIdentityServer(t *testing.T, users userMap, tokens *auth.TokenService) *IdentityQueryServiceClient {
	t.Helper()
	interceptor, err := NewServiceAuthUnaryInterceptor("svc-secret")
	if err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	RegisterIdentityQueryServiceServer(server, NewIdentityServer(users, tokens))
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewIdentityQueryServiceClient(conn)
}

func expectCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestServiceAuth(t *testing.T) {
	tokens, _ := auth.NewTokenService("secret", "HS256", time.Hour)
	client := startIdentityServer(t, userMap{1: {ID: 1, Email: "a@example.com", Role: model.RoleAdmin, IsActive: true}}, tokens)

	_, err := client.GetUser(context.Background(), wrapperspb.Int64(1))
	expectCode(t, err, codes.Unauthenticated)

	_, err = client.GetUser(WithServiceToken(context.Background(), "wrong"), wrapperspb.Int64(1))
	expectCode(t, err, codes.PermissionDenied)

	_, err = client.GetUser(WithServiceToken(context.Background(), "svc-secret"), wrapperspb.Int64(1))
	if err != nil {
		t.Fatalf("expected authorized call, got %v", err)
	}
}

func TestGetUser(t *testing.T) {
	tokens, _ := auth.NewTokenService("secret", "HS256", time.Hour)
	users := userMap{7: {ID: 7, Email: "prof@example.com", FullName: "Prof", Role: model.RoleFaculty, IsActive: true}}
	client := startIdentityServer(t, users, tokens)
	ctx := WithServiceToken(context.Background(), "svc-secret")

	out, err := client.GetUser(ctx, wrapperspb.Int64(7))
	if err != nil {
		t.Fatalf("get user error: %v", err)
	}
	fields := out.AsMap()
	if fields["email"] != "prof@example.com" || fields["role"] != "faculty" || fields["id"] != float64(7) {
		t.Fatalf("unexpected user %v", fields)
	}

	_, err = client.GetUser(ctx, wrapperspb.Int64(0))
	expectCode(t, err, codes.InvalidArgument)
	_, err = client.GetUser(ctx, wrapperspb.Int64(99))
	expectCode(t, err, codes.NotFound)
}

func TestVerifyToken(t *testing.T) {
	tokens, _ := auth.NewTokenService("secret", "HS256", time.Hour)
	users := userMap{
		1: {ID: 1, Email: "kid@example.com", Role: model.RoleStudent, IsActive: true},
		2: {ID: 2, Email: "gone@example.com", Role: model.RoleStudent, IsActive: false},
	}
	client := startIdentityServer(t, users, tokens)
	ctx := WithServiceToken(context.Background(), "svc-secret")

	token, _ := tokens.Issue(1, "kid@example.com", "admin", 0)
	out, err := client.VerifyToken(ctx, wrapperspb.String(token))
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	fields := out.AsMap()
	if fields["sub"] != "1" || fields["role"] != "student" || fields["exp"] == nil {
		t.Fatalf("expected stored role and expiry, got %v", fields)
	}

	_, err = client.VerifyToken(ctx, wrapperspb.String("garbage"))
	expectCode(t, err, codes.Unauthenticated)

	ghost, _ := tokens.Issue(42, "ghost@example.com", "admin", 0)
	_, err = client.VerifyToken(ctx, wrapperspb.String(ghost))
	expectCode(t, err, codes.Unauthenticated)

	inactive, _ := tokens.Issue(2, "gone@example.com", "student", 0)
	_, err = client.VerifyToken(ctx, wrapperspb.String(inactive))
	expectCode(t, err, codes.PermissionDenied)

	_, err = client.VerifyToken(ctx, wrapperspb.String(""))
	expectCode(t, err, codes.InvalidArgument)
}
