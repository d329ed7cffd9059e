package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"bookbite/internal/domain"
	"bookbite/internal/engine"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	AvailabilityServiceName = "bookbite.availability.v1.AvailabilityService"

	MethodGetSlots        = "/" + AvailabilityServiceName + "/GetSlots"
	MethodIsSlotAvailable = "/" + AvailabilityServiceName + "/IsSlotAvailable"
	MethodGetFee          = "/" + AvailabilityServiceName + "/GetFee"
)

// AvailabilityServer answers read-only availability queries. Requests and
// responses are protobuf Structs keyed by snake_case field names.
type AvailabilityServer interface {
	GetSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	IsSlotAvailable(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
	GetFee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var AvailabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: AvailabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSlots", Handler: unaryMethod(MethodGetSlots, AvailabilityServer.GetSlots)},
		{MethodName: "IsSlotAvailable", Handler: unaryMethod(MethodIsSlotAvailable, AvailabilityServer.IsSlotAvailable)},
		{MethodName: "GetFee", Handler: unaryMethod(MethodGetFee, AvailabilityServer.GetFee)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bookbite/availability/v1",
}

func RegisterAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&AvailabilityServiceDesc, srv)
}

func unaryMethod[Resp any](fullMethod string, call func(AvailabilityServer, context.Context, *structpb.Struct) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
	}
}

// AvailabilityClient calls AvailabilityService over a client connection.
type AvailabilityClient struct {
	cc grpc.ClientConnInterface
}

func NewAvailabilityClient(cc grpc.ClientConnInterface) *AvailabilityClient {
	return &AvailabilityClient{cc: cc}
}

func (c *AvailabilityClient) GetSlots(ctx context.Context, tableID int64, date string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, MethodGetSlots, map[string]any{"table_id": tableID, "date": date}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityClient) IsSlotAvailable(ctx context.Context, tableID int64, date, start, end string, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	req := map[string]any{"table_id": tableID, "date": date, "start": start, "end": end}
	if err := c.invoke(ctx, MethodIsSlotAvailable, req, out, opts); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *AvailabilityClient) GetFee(ctx context.Context, tableID int64, promoCode string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, MethodGetFee, map[string]any{"table_id": tableID, "promo_code": promoCode}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityClient) invoke(ctx context.Context, method string, fields map[string]any, out any, opts []grpc.CallOption) error {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

type availabilityService struct {
	svc    domain.ReservationService
	now    func() time.Time
	logger zerolog.Logger
}

func newAvailabilityService(svc domain.ReservationService, logger zerolog.Logger) *availabilityService {
	return &availabilityService{svc: svc, now: time.Now, logger: logger}
}

func (a *availabilityService) GetSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tableID, err := int64Field(req, "table_id")
	if err != nil {
		return nil, err
	}
	date, err := stringField(req, "date", true)
	if err != nil {
		return nil, err
	}

	view, err := a.svc.Slots(ctx, tableID, date, a.now())
	if err != nil {
		return nil, a.grpcError(err)
	}

	slots := make([]any, 0, len(view.Slots))
	for _, slot := range view.Slots {
		slots = append(slots, map[string]any{
			"start":             engine.FormatTime(slot.Start),
			"end":               engine.FormatTime(slot.End),
			"available":         slot.Available,
			"fits_minimum_stay": slot.FitsMinimumStay,
		})
	}
	return a.response(map[string]any{
		"table_id":      view.TableID,
		"restaurant_id": view.RestaurantID,
		"date":          view.Date,
		"opening":       engine.FormatTime(view.Hours.Opening),
		"closing":       engine.FormatTime(view.Hours.Closing),
		"fallback_used": view.FallbackUsed,
		"slots":         slots,
	})
}

func (a *availabilityService) IsSlotAvailable(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	tableID, err := int64Field(req, "table_id")
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, 3)
	for _, name := range []string{"date", "start", "end"} {
		v, err := stringField(req, name, true)
		if err != nil {
			return nil, err
		}
		fields = append(fields, v)
	}

	ok, err := a.svc.IsAvailable(ctx, tableID, fields[0], fields[1], fields[2], a.now())
	if err != nil {
		return nil, a.grpcError(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (a *availabilityService) GetFee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tableID, err := int64Field(req, "table_id")
	if err != nil {
		return nil, err
	}
	promo, err := stringField(req, "promo_code", false)
	if err != nil {
		return nil, err
	}

	q, err := a.svc.Quote(ctx, tableID, promo, a.now())
	if err != nil {
		return nil, a.grpcError(err)
	}
	return a.response(map[string]any{
		"table_id":       q.TableID,
		"seat_count":     q.SeatCount,
		"fee":            q.Fee.String(),
		"fee_cents":      int64(q.Fee),
		"discount_cents": int64(q.Discount),
		"total":          q.Total.String(),
		"total_cents":    int64(q.Total),
		"promo_code":     q.PromoCode,
	})
}

func (a *availabilityService) response(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		a.logger.Error().Err(err).Msg("build grpc response")
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// grpcError maps a service error onto the status code family the HTTP API
// uses for it.
func (a *availabilityService) grpcError(err error) error {
	switch statusFor(err) {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return status.Error(codes.InvalidArgument, err.Error())
	case http.StatusNotFound:
		return status.Error(codes.NotFound, err.Error())
	case http.StatusConflict:
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		a.logger.Error().Err(err).Msg("grpc request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func int64Field(req *structpb.Struct, name string) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue <= 0 || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a positive integer", name)
	}
	return int64(n.NumberValue), nil
}

func stringField(req *structpb.Struct, name string, required bool) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		if required {
			return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
		}
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", name)
	}
	out := strings.TrimSpace(s.StringValue)
	if out == "" && required {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return out, nil
}
