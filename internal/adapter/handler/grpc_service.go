package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// The service speaks JSON on the wire: messages are plain structs and the
// codec is picked by the "json" content-subtype.

const (
	whiskeyServiceName = "whiskey.v1.WhiskeyService"
	codecName          = "json"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return codecName }

type Whiskey struct {
	Id      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Age     int32  `json:"age"`
	Owned   bool   `json:"owned"`
}

type CreateWhiskeyRequest struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Age     int32  `json:"age"`
	Owned   bool   `json:"owned"`
}

type GetWhiskeyRequest struct {
	Id string `json:"id"`
}

type ListWhiskeysRequest struct{}

type ListWhiskeysResponse struct {
	Whiskeys []*Whiskey `json:"whiskeys"`
}

type UpdateWhiskeyRequest struct {
	Id      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Age     int32  `json:"age"`
	Owned   bool   `json:"owned"`
}

type DeleteWhiskeyRequest struct {
	Id string `json:"id"`
}

type DeleteWhiskeyResponse struct{}

type WhiskeyServiceServer interface {
	Create(context.Context, *CreateWhiskeyRequest) (*Whiskey, error)
	Get(context.Context, *GetWhiskeyRequest) (*Whiskey, error)
	List(context.Context, *ListWhiskeysRequest) (*ListWhiskeysResponse, error)
	Update(context.Context, *UpdateWhiskeyRequest) (*Whiskey, error)
	Delete(context.Context, *DeleteWhiskeyRequest) (*DeleteWhiskeyResponse, error)
}

func RegisterWhiskeyServiceServer(s grpc.ServiceRegistrar, srv WhiskeyServiceServer) {
	s.RegisterService(&WhiskeyServiceDesc, srv)
}

var WhiskeyServiceDesc = grpc.ServiceDesc{
	ServiceName: whiskeyServiceName,
	HandlerType: (*WhiskeyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: unaryHandler("Create", WhiskeyServiceServer.Create)},
		{MethodName: "Get", Handler: unaryHandler("Get", WhiskeyServiceServer.Get)},
		{MethodName: "List", Handler: unaryHandler("List", WhiskeyServiceServer.List)},
		{MethodName: "Update", Handler: unaryHandler("Update", WhiskeyServiceServer.Update)},
		{MethodName: "Delete", Handler: unaryHandler("Delete", WhiskeyServiceServer.Delete)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "whiskey/v1/whiskey.proto",
}

func fullMethod(method string) string {
	return "/" + whiskeyServiceName + "/" + method
}

func unaryHandler[Req, Resp any](method string, call func(WhiskeyServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(WhiskeyServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(WhiskeyServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// WhiskeyServiceClient calls a WhiskeyService over cc using the JSON codec.
type WhiskeyServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewWhiskeyServiceClient(cc grpc.ClientConnInterface) *WhiskeyServiceClient {
	return &WhiskeyServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WhiskeyServiceClient) Create(ctx context.Context, in *CreateWhiskeyRequest, opts ...grpc.CallOption) (*Whiskey, error) {
	return invoke[Whiskey](ctx, c.cc, "Create", in, opts)
}

func (c *WhiskeyServiceClient) Get(ctx context.Context, in *GetWhiskeyRequest, opts ...grpc.CallOption) (*Whiskey, error) {
	return invoke[Whiskey](ctx, c.cc, "Get", in, opts)
}

func (c *WhiskeyServiceClient) List(ctx context.Context, in *ListWhiskeysRequest, opts ...grpc.CallOption) (*ListWhiskeysResponse, error) {
	return invoke[ListWhiskeysResponse](ctx, c.cc, "List", in, opts)
}

func (c *WhiskeyServiceClient) Update(ctx context.Context, in *UpdateWhiskeyRequest, opts ...grpc.CallOption) (*Whiskey, error) {
	return invoke[Whiskey](ctx, c.cc, "Update", in, opts)
}

func (c *WhiskeyServiceClient) Delete(ctx context.Context, in *DeleteWhiskeyRequest, opts ...grpc.CallOption) (*DeleteWhiskeyResponse, error) {
	return invoke[DeleteWhiskeyResponse](ctx, c.cc, "Delete", in, opts)
}
