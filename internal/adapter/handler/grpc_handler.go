package handler

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/core/service"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

var _ WhiskeyServiceServer = (*GRPCHandler)(nil)

type GRPCHandler struct {
	repo   service.Repository
	logger *zap.Logger
}

func NewGRPCHandler(repo service.Repository, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{repo: repo, logger: logger}
}

func (h *GRPCHandler) Create(ctx context.Context, req *CreateWhiskeyRequest) (*Whiskey, error) {
	fields, err := validate(req.Name, req.Country, req.Age, req.Owned)
	if err != nil {
		return nil, h.toStatus(err)
	}
	w, err := h.repo.Create(ctx, fields).Wait(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toMessage(w), nil
}

func (h *GRPCHandler) Get(ctx context.Context, req *GetWhiskeyRequest) (*Whiskey, error) {
	w, err := h.repo.GetOne(ctx, req.Id).Wait(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}
	if w == nil {
		return nil, h.toStatus(domain.ErrNotFound)
	}
	return toMessage(*w), nil
}

func (h *GRPCHandler) List(ctx context.Context, _ *ListWhiskeysRequest) (*ListWhiskeysResponse, error) {
	all, err := h.repo.GetAll(ctx).Wait(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := &ListWhiskeysResponse{Whiskeys: make([]*Whiskey, 0, len(all))}
	for _, w := range all {
		resp.Whiskeys = append(resp.Whiskeys, toMessage(w))
	}
	return resp, nil
}

func (h *GRPCHandler) Update(ctx context.Context, req *UpdateWhiskeyRequest) (*Whiskey, error) {
	fields, err := validate(req.Name, req.Country, req.Age, req.Owned)
	if err != nil {
		return nil, h.toStatus(err)
	}
	w, err := h.repo.Update(ctx, req.Id, fields).Wait(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toMessage(w), nil
}

func (h *GRPCHandler) Delete(ctx context.Context, req *DeleteWhiskeyRequest) (*DeleteWhiskeyResponse, error) {
	if _, err := h.repo.Delete(ctx, req.Id).Wait(ctx); err != nil {
		return nil, h.toStatus(err)
	}
	return &DeleteWhiskeyResponse{}, nil
}

// LoggingInterceptor logs every call with its outcome code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		logger.Debug("gRPC call served",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)))
		return resp, err
	}
}

// validate runs the typed request through the same checks as the form.
func validate(name, country string, age int32, owned bool) (domain.WhiskeyFields, error) {
	return domain.Form{
		Name:    name,
		Country: country,
		Age:     strconv.Itoa(int(age)),
		Owned:   owned,
	}.Validate()
}

func toMessage(w domain.Whiskey) *Whiskey {
	return &Whiskey{
		Id:      w.ID,
		Name:    w.Name,
		Country: w.Country,
		Age:     int32(w.Age),
		Owned:   w.Owned,
	}
}

func (h *GRPCHandler) toStatus(err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Message)
	case errors.Is(err, port.ErrInvalidKey):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateKey):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	}
	h.logger.Error("gRPC call failed", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}
