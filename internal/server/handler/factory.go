package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// FactoryService defines the methods that the factory handler requires from
// the service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type FactoryService interface {
	Owner() common.Address
	Version() uint64
	PredictAddress(ctx context.Context, kind domain.Kind, salt uint64) (common.Address, error)
	CreateContract(ctx context.Context, caller common.Address, kind domain.Kind, args asset.ConstructorArgs, salt uint64) (domain.Instance, error)
	SetImplementation(ctx context.Context, caller common.Address, kind domain.Kind, template common.Address) error
	Implementation(kind domain.Kind) (asset.Template, error)
	TransferOwnership(ctx context.Context, caller, newOwner common.Address) error
	GetInstance(ctx context.Context, addr common.Address) (domain.Instance, error)
	ListInstances(ctx context.Context, opts domain.ListOpts) ([]domain.Instance, error)
	ListByCreator(ctx context.Context, creator common.Address, opts domain.ListOpts) ([]domain.Instance, error)
	Count(ctx context.Context) (int64, error)
}

// FactoryHandler serves factory and instance HTTP endpoints.
type FactoryHandler struct {
	factory FactoryService
	logger  *slog.Logger
}

// NewFactoryHandler creates a FactoryHandler with the given service and logger.
func NewFactoryHandler(factory FactoryService, logger *slog.Logger) *FactoryHandler {
	return &FactoryHandler{
		factory: factory,
		logger:  logger,
	}
}

// instanceView is the JSON shape for instance records.
type instanceView struct {
	Address     string `json:"address"`
	Kind        string `json:"kind"`
	Creator     string `json:"creator"`
	Salt        uint64 `json:"salt"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   string `json:"created_at"`
}

func toInstanceView(inst domain.Instance) instanceView {
	return instanceView{
		Address:     inst.Address.Hex(),
		Kind:        inst.Kind.String(),
		Creator:     inst.Creator.Hex(),
		Salt:        inst.Salt,
		Name:        inst.Name,
		Symbol:      inst.Symbol,
		Fingerprint: inst.Fingerprint.Hex(),
		CreatedAt:   inst.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// GetStatus returns the registry owner and current logic version.
// GET /api/factory
func (h *FactoryHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":   h.factory.Owner().Hex(),
		"version": h.factory.Version(),
	})
}

// PredictAddress computes the deployment address for a kind and salt.
// GET /api/factory/predict?kind=721&salt=42
func (h *FactoryHandler) PredictAddress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, err := domain.ParseKind(q.Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}
	salt, err := parseAmount("salt", q.Get("salt"))
	if err != nil || !salt.IsUint64() {
		writeError(w, http.StatusBadRequest, "invalid salt")
		return
	}

	addr, err := h.factory.PredictAddress(r.Context(), kind, salt.Uint64())
	if err != nil {
		if errors.Is(err, domain.ErrNoImplementation) {
			writeError(w, http.StatusNotFound, "no implementation registered for kind")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: predict address failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to predict address")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr.Hex(),
		"kind":    kind.String(),
		"salt":    salt.Uint64(),
	})
}

// createContractRequest is the JSON body for contract creation.
type createContractRequest struct {
	Caller     string   `json:"caller"`
	Kind       string   `json:"kind"`
	Salt       uint64   `json:"salt"`
	Name       string   `json:"name"`
	Symbol     string   `json:"symbol"`
	BaseURI    string   `json:"base_uri"`
	FeeRateBps uint32   `json:"fee_rate_bps"`
	Quantity   string   `json:"quantity,omitempty"`
	IDs        []uint64 `json:"ids,omitempty"`
	Amounts    []string `json:"amounts,omitempty"`
}

// CreateContract deploys a new asset instance at its predicted address.
// POST /api/factory/contracts
func (h *FactoryHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}

	args := asset.ConstructorArgs{
		Name:       req.Name,
		Symbol:     req.Symbol,
		BaseURI:    req.BaseURI,
		Owner:      caller,
		FeeRateBps: req.FeeRateBps,
		IDs:        req.IDs,
	}
	if req.Quantity != "" {
		if args.Quantity, err = parseAmount("quantity", req.Quantity); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	for _, raw := range req.Amounts {
		var amt *big.Int
		if amt, err = parseAmount("amounts", raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		args.Amounts = append(args.Amounts, amt)
	}

	inst, err := h.factory.CreateContract(r.Context(), caller, kind, args, req.Salt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSaltAlreadyUsed):
			writeError(w, http.StatusConflict, "salt already used for this kind")
		case errors.Is(err, domain.ErrNoImplementation):
			writeError(w, http.StatusNotFound, "no implementation registered for kind")
		case errors.Is(err, domain.ErrInvalidFeeRate):
			writeError(w, http.StatusBadRequest, "fee rate exceeds 10000 bps")
		case errors.Is(err, domain.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "invalid initial allocation")
		default:
			h.logger.ErrorContext(r.Context(), "handler: create contract failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create contract")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toInstanceView(inst))
}

// GetInstance returns metadata for one deployed instance.
// GET /api/instances/{address}
func (h *FactoryHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, err := h.factory.GetInstance(r.Context(), addr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "instance not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get instance failed",
			slog.String("address", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get instance")
		return
	}

	writeJSON(w, http.StatusOK, toInstanceView(inst))
}

// listInstancesResponse wraps the list endpoint output with metadata.
type listInstancesResponse struct {
	Instances []instanceView `json:"instances"`
	Total     int64          `json:"total"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

// ListInstances returns deployed instances with pagination, optionally
// filtered by creator.
// GET /api/instances?creator=0x...&limit=50&offset=0
func (h *FactoryHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		insts []domain.Instance
		err   error
	)
	if creator := r.URL.Query().Get("creator"); creator != "" {
		var addr common.Address
		if addr, err = parseAddress("creator", creator); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		insts, err = h.factory.ListByCreator(r.Context(), addr, opts)
	} else {
		insts, err = h.factory.ListInstances(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list instances failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list instances")
		return
	}

	total, err := h.factory.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count instances failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count instances")
		return
	}

	views := make([]instanceView, 0, len(insts))
	for _, inst := range insts {
		views = append(views, toInstanceView(inst))
	}

	writeJSON(w, http.StatusOK, listInstancesResponse{
		Instances: views,
		Total:     total,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

// setImplementationRequest is the JSON body for template registration.
type setImplementationRequest struct {
	Caller   string `json:"caller"`
	Template string `json:"template"`
}

// SetImplementation registers or replaces the template for a kind. Admin
// only.
// PUT /api/admin/implementations/{kind}
func (h *FactoryHandler) SetImplementation(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(pathParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}

	var req setImplementationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	template, err := parseAddress("template", req.Template)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.factory.SetImplementation(r.Context(), caller, kind, template); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusForbidden, "caller is not the registry owner")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: set implementation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to set implementation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "registered",
		"kind":     kind.String(),
		"template": template.Hex(),
	})
}

// transferOwnershipRequest is the JSON body for ownership handover.
type transferOwnershipRequest struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"new_owner"`
}

// TransferOwnership hands the registry to a new owner. Admin only.
// POST /api/admin/ownership
func (h *FactoryHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req transferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	newOwner, err := parseAddress("new_owner", req.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.factory.TransferOwnership(r.Context(), caller, newOwner); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusForbidden, "caller is not the registry owner")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: transfer ownership failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to transfer ownership")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "transferred",
		"owner":  newOwner.Hex(),
	})
}
