package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/core/service"
)

const (
	AdminServiceName = "checkout.admin.v1.AdminService"

	forceProcessMethod = "/" + AdminServiceName + "/ForceProcess"
	getOrderMethod     = "/" + AdminServiceName + "/GetOrder"

	actorMetadataKey = "x-admin-actor"
	defaultGRPCActor = "grpc-admin"
)

// AdminServer is the support-tooling API. Requests and responses are
// google.protobuf.Struct documents with the same field names as the HTTP API.
type AdminServer interface {
	ForceProcess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ForceProcess", Handler: forceProcessHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

func forceProcessHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).ForceProcess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: forceProcessMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).ForceProcess(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getOrderMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).GetOrder(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AdminClient calls AdminService over an existing connection.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) ForceProcess(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, forceProcessMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) GetOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getOrderMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type GRPCHandler struct {
	reconcileService *service.ReconcileService
	ledger           orderReader
	logger           *slog.Logger
}

type orderReader interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

func NewGRPCHandler(reconcileService *service.ReconcileService, ledger orderReader, logger *slog.Logger) *GRPCHandler {
	return &GRPCHandler{reconcileService: reconcileService, ledger: ledger, logger: logger}
}

func (h *GRPCHandler) ForceProcess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	orderID := fields["orderId"].GetStringValue()
	target := domain.OrderStatus(fields["status"].GetStringValue())

	res, err := h.reconcileService.ForceProcess(ctx, orderID, target, actorFrom(ctx))
	if err != nil {
		return nil, h.grpcError(err)
	}

	out := map[string]any{
		"orderId": res.Order.OrderID,
		"status":  string(res.Order.Status),
		"outcome": string(res.Outcome),
	}
	if res.Fulfillment != nil {
		out["newEnrollments"] = res.Fulfillment.NewEnrollments
	}
	return structpb.NewStruct(out)
}

// GetOrder is not owner-scoped; support staff look up any order.
func (h *GRPCHandler) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID := req.GetFields()["orderId"].GetStringValue()
	if orderID == "" {
		return nil, status.Error(codes.InvalidArgument, "orderId is required")
	}

	order, err := h.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, h.grpcError(err)
	}
	if order == nil {
		return nil, status.Errorf(codes.NotFound, "order %s not found", orderID)
	}
	return orderStruct(order)
}

func orderStruct(o *domain.Order) (*structpb.Struct, error) {
	courses := make([]any, 0, len(o.Courses))
	for _, c := range o.Courses {
		courses = append(courses, map[string]any{"courseId": c.CourseID, "price": c.Price})
	}

	out := map[string]any{
		"orderId":    o.OrderID,
		"requestId":  o.RequestID,
		"userId":     o.UserID,
		"courses":    courses,
		"amount":     o.Amount,
		"status":     string(o.Status),
		"paymentUrl": o.PaymentURL,
		"createdAt":  o.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":  o.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if src := o.PaymentInfo.Source; src != "" {
		out["source"] = string(src)
	}
	if actor := o.PaymentInfo.Actor; actor != "" {
		out["actor"] = actor
	}
	return structpb.NewStruct(out)
}

func (h *GRPCHandler) grpcError(err error) error {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case domain.KindGatewayUnavailable:
		return status.Error(codes.Unavailable, "payment gateway unavailable")
	case domain.KindSignatureInvalid:
		return status.Error(codes.PermissionDenied, "invalid signature")
	default:
		h.logger.Error("admin rpc failed", slog.Any("error", err))
		return status.Error(codes.Internal, "internal error")
	}
}

func actorFrom(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if v := md.Get(actorMetadataKey); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return defaultGRPCActor
}

// AdminTokenInterceptor requires "authorization: Bearer <token>" on every
// call. An empty token disables the admin API.
func AdminTokenInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if token == "" {
			return nil, status.Error(codes.PermissionDenied, "admin API disabled")
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing credentials")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing credentials")
		}
		presented := strings.TrimPrefix(values[0], "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return nil, status.Error(codes.PermissionDenied, "invalid credentials")
		}
		return handler(ctx, req)
	}
}
