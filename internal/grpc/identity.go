package grpc

import (
	"context"
	"errors"
	"log"

	"github.com/jackc/pgx/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DrumilPatell/edumanage-sms/internal/auth"
	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

const identityServiceName = "edumanage.identity.v1.IdentityQueryService"

// IdentityQueryServiceServer lets sibling services look up users and check
// bearer tokens without going through the public HTTP API. Messages are
// protobuf well-known types so no generated code is needed.
type IdentityQueryServiceServer interface {
	GetUser(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
	VerifyToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

var IdentityQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: identityServiceName,
	HandlerType: (*IdentityQueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetUser", Handler: getUserHandler},
		{MethodName: "VerifyToken", Handler: verifyTokenHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "edumanage/identity/v1/identity.proto",
}

func RegisterIdentityQueryServiceServer(s grpc.ServiceRegistrar, srv IdentityQueryServiceServer) {
	s.RegisterService(&IdentityQueryServiceDesc, srv)
}

func getUserHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityQueryServiceServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + identityServiceName + "/GetUser"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityQueryServiceServer).GetUser(ctx, req.(*wrapperspb.Int64Value))
	})
}

func verifyTokenHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityQueryServiceServer).VerifyToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + identityServiceName + "/VerifyToken"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityQueryServiceServer).VerifyToken(ctx, req.(*wrapperspb.StringValue))
	})
}

type IdentityQueryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewIdentityQueryServiceClient(cc grpc.ClientConnInterface) *IdentityQueryServiceClient {
	return &IdentityQueryServiceClient{cc: cc}
}

func (c *IdentityQueryServiceClient) GetUser(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+identityServiceName+"/GetUser", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IdentityQueryServiceClient) VerifyToken(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+identityServiceName+"/VerifyToken", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type Users interface {
	GetUserByID(ctx context.Context, id int64) (model.User, error)
}

type IdentityServer struct {
	users  Users
	tokens *auth.TokenService
}

func NewIdentityServer(users Users, tokens *auth.TokenService) *IdentityServer {
	return &IdentityServer{users: users, tokens: tokens}
}

func (s *IdentityServer) GetUser(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	user, err := s.users.GetUserByID(ctx, req.GetValue())
	if err != nil {
		return nil, lookupStatus(err)
	}
	return userStruct(user)
}

// VerifyToken applies the same checks as the HTTP gate: a valid signature, a
// known user and an active account. The role comes from the stored user, not
// the token.
func (s *IdentityServer) VerifyToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "token required")
	}
	claims, err := s.tokens.Verify(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, status.Error(codes.Unauthenticated, "unknown user")
		}
		return nil, lookupStatus(err)
	}
	if !user.IsActive {
		return nil, status.Error(codes.PermissionDenied, "inactive user")
	}
	fields := map[string]interface{}{
		"sub":   claims.Subject,
		"email": user.Email,
		"role":  string(user.Role),
	}
	if claims.ExpiresAt != nil {
		fields["exp"] = claims.ExpiresAt.Unix()
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode claims")
	}
	return out, nil
}

func userStruct(user model.User) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]interface{}{
		"id":        user.ID,
		"email":     user.Email,
		"full_name": user.FullName,
		"role":      string(user.Role),
		"is_active": user.IsActive,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode user")
	}
	return out, nil
}

func lookupStatus(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return status.Error(codes.NotFound, "user not found")
	}
	log.Printf("identity grpc lookup failed: %v", err)
	return status.Error(codes.Internal, "lookup failed")
}
