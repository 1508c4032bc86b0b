package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName gRPC 服務全名
const ServiceName = "snackbar.ledger.v1.LedgerService"

// 方法名稱
const (
	MethodCreateTransaction = "CreateTransaction"
	MethodGetBalance        = "GetBalance"
	MethodListPrepQueue     = "ListPrepQueue"
	MethodCompletePrepItem  = "CompletePrepItem"
	MethodSetPrepPriority   = "SetPrepPriority"
	MethodGetTransaction    = "GetTransaction"
	MethodListTransactions  = "ListTransactions"
	MethodGetSummary        = "GetSummary"
	MethodCreateAccount     = "CreateAccount"
	MethodSaveProduct       = "SaveProduct"
)

// FullMethod 回傳 "/<service>/<method>"
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// LedgerServiceServer 服務端介面，訊息一律是 google.protobuf.Struct
type LedgerServiceServer interface {
	CreateTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPrepQueue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompletePrepItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPrepPriority(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv LedgerServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(LedgerServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// LedgerServiceDesc 手寫的服務描述 (沒有 .proto 產生碼)
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateTransaction, LedgerServiceServer.CreateTransaction),
		unary(MethodGetBalance, LedgerServiceServer.GetBalance),
		unary(MethodListPrepQueue, LedgerServiceServer.ListPrepQueue),
		unary(MethodCompletePrepItem, LedgerServiceServer.CompletePrepItem),
		unary(MethodSetPrepPriority, LedgerServiceServer.SetPrepPriority),
		unary(MethodGetTransaction, LedgerServiceServer.GetTransaction),
		unary(MethodListTransactions, LedgerServiceServer.ListTransactions),
		unary(MethodGetSummary, LedgerServiceServer.GetSummary),
		unary(MethodCreateAccount, LedgerServiceServer.CreateAccount),
		unary(MethodSaveProduct, LedgerServiceServer.SaveProduct),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "snackbar/ledger/v1/ledger.proto",
}

// RegisterLedgerServiceServer 註冊服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// LoggingInterceptor 記錄每個請求的方法、狀態碼與耗時
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			logger.Info("grpc request failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("grpc request", fields...)
		}
		return resp, err
	}
}

// Client 呼叫 LedgerService 的客戶端
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call 以 map 組成請求並呼叫指定方法
//
// 參數:
//
//	ctx: 上下文 (操作人員請以 WithActor 帶入)
//	method: 方法名稱，例如 MethodCreateTransaction
//	req: 請求欄位
//
// 回傳:
//
//	map[string]any: 回應欄位
//	error: gRPC status 錯誤
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// WithActor 在 outgoing metadata 帶入操作人員
func WithActor(ctx context.Context, actor string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, ActorMetadataKey, actor)
}
