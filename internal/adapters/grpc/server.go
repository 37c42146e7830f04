package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/verilink/commerce-auth/internal/application"
	"github.com/verilink/commerce-auth/internal/domain"
)

const serviceName = "verilink.auth.v1.AuthInternalService"

// AuthInternalService lets other backend services validate access tokens and
// look up accounts without sharing the signing secret.
type AuthInternalService interface {
	ValidateToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type AuthInternalServer struct {
	service *application.Service
}

func NewAuthInternalServer(service *application.Service) *AuthInternalServer {
	return &AuthInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc AuthInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*AuthInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "ValidateToken", Handler: unaryHandler("ValidateToken", svc.ValidateToken)},
			{MethodName: "GetAccount", Handler: unaryHandler("GetAccount", svc.GetAccount)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "auth/v1/auth_internal.proto",
	}, svc)
}

func (s *AuthInternalServer) ValidateToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := stringField(req, "token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}

	identity, err := s.service.ResolveIdentity(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	roles := make([]any, 0, len(identity.Roles))
	for _, r := range identity.Roles {
		roles = append(roles, r)
	}
	return buildResponse(map[string]any{
		"valid":      true,
		"account_id": identity.AccountID.String(),
		"email":      identity.Email,
		"roles":      roles,
		"vendor_id":  identity.VendorID,
		"expires_at": identity.ExpiresAt.Unix(),
	})
}

func (s *AuthInternalServer) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := uuid.Parse(stringField(req, "account_id"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid account_id")
	}

	profile, err := s.service.Me(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, status.Error(codes.NotFound, "account not found")
		}
		return nil, status.Error(codes.Internal, "lookup failed")
	}

	roles := make([]any, 0, len(profile.Roles))
	for _, r := range profile.Roles {
		roles = append(roles, r)
	}
	vendorID := ""
	if profile.VendorID != nil {
		vendorID = profile.VendorID.String()
	}
	return buildResponse(map[string]any{
		"account_id":     profile.ID.String(),
		"email":          profile.Email,
		"first_name":     profile.FirstName,
		"last_name":      profile.LastName,
		"roles":          roles,
		"status":         profile.Status,
		"vendor_id":      vendorID,
		"email_verified": profile.EmailVerified,
	})
}

func stringField(req *structpb.Struct, key string) string {
	v := req.GetFields()[key]
	if v == nil {
		return ""
	}
	return v.GetStringValue()
}

func buildResponse(fields map[string]any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

type unaryMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
