// Package health exposes the dashboard's state over gRPC as the
// minutodash.Health service. Its messages are plain Go structs carried by a
// JSON codec, so no protobuf code generation is involved.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	grpcEncoding "google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // default proto codec must register first
	"google.golang.org/protobuf/proto"

	"github.com/Keksclan/minutodash/feed"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "minutodash.Health"

// CheckMethod is the full method name of Check.
const CheckMethod = "/" + ServiceName + "/Check"

// CheckRequest is the input for Check. Feed narrows the reply to one feed.
type CheckRequest struct {
	Feed string `json:"feed,omitempty"`
}

// CheckResponse mirrors the backend's /health document plus per-feed state.
type CheckResponse struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	CacheSize int           `json:"cache_size"`
	Mode      string        `json:"mode"`
	Feeds     []feed.Status `json:"feeds"`
}

type healthMsg interface {
	isHealthMsg()
}

func (*CheckRequest) isHealthMsg()  {}
func (*CheckResponse) isHealthMsg() {}

// Handler implements the Health service.
type Handler interface {
	Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error)
}

// Source is what the default handler reports on.
type Source interface {
	CacheSize() int
	Statuses() []feed.Status
}

// NewHandler reports src. mode is echoed verbatim; now may be nil.
func NewHandler(src Source, mode string, now func() time.Time) Handler {
	if now == nil {
		now = time.Now
	}
	return sourceHandler{src: src, mode: mode, now: now}
}

type sourceHandler struct {
	src  Source
	mode string
	now  func() time.Time
}

func (h sourceHandler) Check(_ context.Context, req *CheckRequest) (*CheckResponse, error) {
	statuses := h.src.Statuses()
	if req.Feed != "" {
		var only []feed.Status
		for _, s := range statuses {
			if s.Feed == req.Feed {
				only = append(only, s)
			}
		}
		statuses = only
	}
	return &CheckResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
		CacheSize: h.src.CacheSize(),
		Mode:      h.mode,
		Feeds:     statuses,
	}, nil
}

// ServiceDesc is the grpc.ServiceDesc for minutodash.Health.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Check",
			Handler:    checkHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "minutodash/health.proto",
}

func checkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(CheckRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Check(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckMethod}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).Check(ctx, r.(*CheckRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// Register adds the Health service to s.
func Register(s *grpc.Server, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}

func init() {
	grpcEncoding.RegisterCodec(codec{})
}

// codec replaces the "proto" codec: health messages travel as JSON, protobuf
// messages are delegated to proto.Marshal.
type codec struct{}

func (codec) Name() string { return "proto" }

func (codec) Marshal(v any) ([]byte, error) {
	if _, ok := v.(healthMsg); ok {
		return json.Marshal(v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("health codec: unsupported message type %T", v)
}

func (codec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(healthMsg); ok {
		return json.Unmarshal(data, v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("health codec: unsupported message type %T", v)
}
