// Package conditionv1 defines the rulekeeper.condition.v1.ConditionService
// gRPC contract.
//
// Messages are google.protobuf.Struct so the node record shape stays owned by
// internal/types. Field layout per method:
//
//	TestCondition        {rule_id, params}       -> {result, execution_time_ms, logs, error}
//	GetConditionTree     {rule_id}               -> {rule_id, nodes}
//	SaveConditionTree    {rule_id, nodes}        -> {rule_id, node_count}
//	DeleteConditionTree  {rule_id}               -> {}
package conditionv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "rulekeeper.condition.v1.ConditionService"

const (
	ConditionService_TestCondition_FullMethodName       = "/" + ServiceName + "/TestCondition"
	ConditionService_GetConditionTree_FullMethodName    = "/" + ServiceName + "/GetConditionTree"
	ConditionService_SaveConditionTree_FullMethodName   = "/" + ServiceName + "/SaveConditionTree"
	ConditionService_DeleteConditionTree_FullMethodName = "/" + ServiceName + "/DeleteConditionTree"
)

// ConditionServiceServer is the server API for ConditionService.
type ConditionServiceServer interface {
	TestCondition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConditionTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveConditionTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteConditionTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedConditionServiceServer can be embedded for forward
// compatibility.
type UnimplementedConditionServiceServer struct{}

func (UnimplementedConditionServiceServer) TestCondition(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method TestCondition not implemented")
}

func (UnimplementedConditionServiceServer) GetConditionTree(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetConditionTree not implemented")
}

func (UnimplementedConditionServiceServer) SaveConditionTree(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SaveConditionTree not implemented")
}

func (UnimplementedConditionServiceServer) DeleteConditionTree(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteConditionTree not implemented")
}

// RegisterConditionServiceServer registers srv on s.
func RegisterConditionServiceServer(s grpc.ServiceRegistrar, srv ConditionServiceServer) {
	s.RegisterService(&ConditionService_ServiceDesc, srv)
}

type method func(ConditionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call method) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConditionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConditionServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ConditionService_ServiceDesc is the grpc.ServiceDesc for ConditionService.
var ConditionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConditionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "TestCondition",
			Handler:    unaryHandler(ConditionService_TestCondition_FullMethodName, ConditionServiceServer.TestCondition),
		},
		{
			MethodName: "GetConditionTree",
			Handler:    unaryHandler(ConditionService_GetConditionTree_FullMethodName, ConditionServiceServer.GetConditionTree),
		},
		{
			MethodName: "SaveConditionTree",
			Handler:    unaryHandler(ConditionService_SaveConditionTree_FullMethodName, ConditionServiceServer.SaveConditionTree),
		},
		{
			MethodName: "DeleteConditionTree",
			Handler:    unaryHandler(ConditionService_DeleteConditionTree_FullMethodName, ConditionServiceServer.DeleteConditionTree),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rulekeeper/condition/v1/condition.proto",
}

// ConditionServiceClient is the client API for ConditionService.
type ConditionServiceClient interface {
	TestCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetConditionTree(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SaveConditionTree(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DeleteConditionTree(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type conditionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewConditionServiceClient creates a client over cc.
func NewConditionServiceClient(cc grpc.ClientConnInterface) ConditionServiceClient {
	return &conditionServiceClient{cc: cc}
}

func (c *conditionServiceClient) invoke(ctx context.Context, fullMethod string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *conditionServiceClient) TestCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_TestCondition_FullMethodName, in, opts)
}

func (c *conditionServiceClient) GetConditionTree(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_GetConditionTree_FullMethodName, in, opts)
}

func (c *conditionServiceClient) SaveConditionTree(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_SaveConditionTree_FullMethodName, in, opts)
}

func (c *conditionServiceClient) DeleteConditionTree(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_DeleteConditionTree_FullMethodName, in, opts)
}
