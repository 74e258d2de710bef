package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/willGauntletAi/tiktok-sub000/internal/monitoring"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
)

// DetectServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct values carrying the same JSON
// documents as /api/detect.
const DetectServiceName = "reps.v1.DetectService"

const detectMethod = "/" + DetectServiceName + "/Detect"

// DetectServiceServer is the server API for the Detect service.
type DetectServiceServer interface {
	Detect(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Ensure grpcService implements the gRPC interface.
var _ DetectServiceServer = (*grpcService)(nil)

var detectServiceDesc = grpc.ServiceDesc{
	ServiceName: DetectServiceName,
	HandlerType: (*DetectServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Detect", Handler: detectHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reps/v1/detect.proto",
}

func detectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DetectServiceServer).Detect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: detectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DetectServiceServer).Detect(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterGRPC registers the Detect service on gs. Runs are recorded the
// same way as /api/detect.
func (s *Server) RegisterGRPC(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&detectServiceDesc, &grpcService{s: s})
}

type grpcService struct {
	s *Server
}

// Detect implements the unary Detect RPC.
func (g *grpcService) Detect(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DetectRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	monitoring.Logf("[gRPC] Detect: source=%q frames=%d", req.Source, len(req.Frames))

	run, err := g.s.runDetect(ctx, req, true)
	if err != nil {
		return nil, grpcError(run, err)
	}
	out, err := toStruct(newDetectResponse(run, g.s.db != nil))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// grpcError maps a failed analysis onto a gRPC status, mirroring the HTTP
// replies of /api/detect.
func grpcError(run *pipeline.Run, err error) error {
	var ce *pipeline.ConfigError
	switch {
	case errors.Is(err, l1pose.ErrMalformedSequence):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case run != nil:
		monitoring.Logf("[gRPC] %v", err)
		return status.Error(codes.Internal, "failed to record analysis run")
	case errors.As(err, &ce):
		problems := make([]string, 0, len(ce.Problems()))
		for _, p := range ce.Problems() {
			problems = append(problems, p.Error())
		}
		return status.Errorf(codes.InvalidArgument, "invalid detection config: %s", strings.Join(problems, "; "))
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

// DetectClient calls the Detect service.
type DetectClient struct {
	cc grpc.ClientConnInterface
}

// NewDetectClient returns a client using cc.
func NewDetectClient(cc grpc.ClientConnInterface) *DetectClient {
	return &DetectClient{cc: cc}
}

// Detect analyses one pose sequence on the server.
func (c *DetectClient) Detect(ctx context.Context, req DetectRequest, opts ...grpc.CallOption) (*DetectResponse, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, detectMethod, in, out, opts...); err != nil {
		return nil, err
	}
	var resp DetectResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
