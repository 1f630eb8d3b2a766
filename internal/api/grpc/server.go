package grpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/clintrovert/ourstreet/internal/api"
	"github.com/clintrovert/ourstreet/internal/config"
	"github.com/clintrovert/ourstreet/internal/workflow"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "ourstreet.social.v1.SocialPostingService"

// SocialPostingServer is the posting service. Requests and responses are
// google.protobuf.Struct bodies shaped like the REST payloads.
type SocialPostingServer interface {
	PostIssue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SocialPostingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PostIssue", Handler: unaryHandler("PostIssue", SocialPostingServer.PostIssue)},
		{MethodName: "GetStatus", Handler: unaryHandler("GetStatus", SocialPostingServer.GetStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ourstreet/social/v1/social.proto",
}

func unaryHandler(
	method string,
	call func(SocialPostingServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SocialPostingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SocialPostingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Server implements SocialPostingServer
type Server struct {
	poster workflow.IssuePoster
	cfg    *config.Config
	health *health.Server
	logger *zap.Logger
}

// NewServer creates a new gRPC server
func NewServer(poster workflow.IssuePoster, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		poster: poster,
		cfg:    cfg,
		health: health.NewServer(),
		logger: logger,
	}
}

// Register registers the posting and health services with a gRPC server
func (s *Server) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Shutdown marks every service as not serving
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// PostIssue runs the posting workflow for one issue
func (s *Server) PostIssue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var payload api.IssuePayload
	if err := fromStruct(req, &payload); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	issue, err := payload.Issue(time.Now())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Info("posting issue to social media via grpc", zap.String("issue_id", issue.ID))
	return toStruct(api.NewPostResponse(s.poster.PostIssue(ctx, issue, payload.Options())))
}

// GetStatus reports how the posting pipeline is configured
func (s *Server) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(api.NewStatus(s.cfg))
}

// AuthInterceptor requires the admin bearer token on posting service calls
func AuthInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var got string
		if values := md.Get("authorization"); len(values) > 0 {
			got, _ = strings.CutPrefix(values[0], "Bearer ")
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return nil, status.Error(codes.Unauthenticated, "Unauthorized - Admin access required")
		}
		return handler(ctx, req)
	}
}

func fromStruct(in *structpb.Struct, out any) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to encode response: %v", err))
	}
	return out, nil
}
