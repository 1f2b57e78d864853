// Package grpcapi exposes read-only order queries to internal services over gRPC. Messages are
// protobuf well-known types, so no generated code is needed on either side.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/auth"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "backoffice.v1.OrderQuery"

const (
	methodGetOrder   = "/" + ServiceName + "/GetOrder"
	methodListOrders = "/" + ServiceName + "/ListOrders"
)

type OrderQueryServer interface {
	GetOrder(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	// ListOrders accepts a filter struct with optional user_id, status, from and to (RFC 3339).
	ListOrders(ctx context.Context, filter *structpb.Struct) (*structpb.ListValue, error)
}

var OrderQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: getOrderHandler},
		{MethodName: "ListOrders", Handler: listOrdersHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "backoffice/v1/order_query.proto",
}

func getOrderHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderQueryServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetOrder}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderQueryServer).GetOrder(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listOrdersHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderQueryServer).ListOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListOrders}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderQueryServer).ListOrders(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type orderQueryService struct {
	store orders.Store
}

func NewOrderQueryService(store orders.Store) OrderQueryServer {
	return &orderQueryService{store: store}
}

// NewServer returns a gRPC server with the order query service registered behind admin
// token authentication.
func NewServer(store orders.Store, keys *auth.Keys) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(AuthInterceptor(keys)))
	s.RegisterService(&OrderQueryServiceDesc, NewOrderQueryService(store))
	return s
}

func (s *orderQueryService) GetOrder(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error) {
	if strings.TrimSpace(id.GetValue()) == "" {
		return nil, status.Error(codes.InvalidArgument, "order id is required")
	}
	o, err := s.store.Get(ctx, id.GetValue())
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	out, err := orderToStruct(o)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding order: %v", err)
	}
	return out, nil
}

func (s *orderQueryService) ListOrders(ctx context.Context, filter *structpb.Struct) (*structpb.ListValue, error) {
	f, err := parseFilter(filter)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	list, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(list))}
	for _, o := range list {
		st, err := orderToStruct(o)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encoding order %s: %v", o.ID, err)
		}
		out.Values = append(out.Values, structpb.NewStructValue(st))
	}
	return out, nil
}

func parseFilter(in *structpb.Struct) (orders.Filter, error) {
	var f orders.Filter
	fields := in.GetFields()
	f.UserID = fields["user_id"].GetStringValue()
	if raw := fields["status"].GetStringValue(); raw != "" {
		st, err := orders.ParseStatus(raw)
		if err != nil {
			return orders.Filter{}, err
		}
		f.Status = st
	}
	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		raw := fields[key].GetStringValue()
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return orders.Filter{}, fmt.Errorf("%s must be RFC 3339: %w", key, err)
		}
		*dst = t
	}
	return f, nil
}

// orderToStruct uses the JSON form of the order so the wire shape matches the HTTP API.
func orderToStruct(o orders.Order) (*structpb.Struct, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func structToOrder(s *structpb.Struct) (orders.Order, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return orders.Order{}, err
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, orders.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, orders.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	}
	slog.Error("order query failed",
		slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
		slog.String(logkey.ERROR, err.Error()))
	return status.Error(codes.Internal, "internal error")
}

// AuthInterceptor admits calls carrying an admin bearer token in the authorization metadata.
func AuthInterceptor(keys *auth.Keys) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
		}
		token, ok := strings.CutPrefix(values[0], "Bearer ")
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "authorization must be a bearer token")
		}
		claims, err := keys.ValidateToken(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		if !claims.IsAdmin() {
			return nil, status.Error(codes.PermissionDenied, "admin role required")
		}
		if traceIds := md.Get("x-trace-id"); len(traceIds) > 0 {
			ctx = ctxmanage.WithTraceId(ctx, traceIds[0])
		}
		return handler(ctx, req)
	}
}

// Client calls OrderQuery on a remote back office.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetOrder(ctx context.Context, id string, opts ...grpc.CallOption) (orders.Order, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetOrder, wrapperspb.String(id), out, opts...); err != nil {
		return orders.Order{}, err
	}
	return structToOrder(out)
}

func (c *Client) ListOrders(ctx context.Context, f orders.Filter, opts ...grpc.CallOption) ([]orders.Order, error) {
	m := map[string]interface{}{}
	if f.UserID != "" {
		m["user_id"] = f.UserID
	}
	if f.Status != "" {
		m["status"] = string(f.Status)
	}
	if !f.From.IsZero() {
		m["from"] = f.From.Format(time.RFC3339)
	}
	if !f.To.IsZero() {
		m["to"] = f.To.Format(time.RFC3339)
	}
	in, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodListOrders, in, out, opts...); err != nil {
		return nil, err
	}
	list := make([]orders.Order, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		o, err := structToOrder(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, nil
}
