package trackingapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/UjenziPro/HaulTrack/internal/models"
	"github.com/UjenziPro/HaulTrack/internal/storage/pgdelivery"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Service interface {
	CreateDelivery(ctx context.Context, in models.DeliveryCreateInput) (*models.Delivery, error)
	GetDeliveriesByIDs(ctx context.Context, ids []uint64) ([]*models.Delivery, error)
	RespondToDelivery(ctx context.Context, deliveryID uint64, providerID string, accept bool) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, deliveryID uint64, to string) (*models.Delivery, error)
	RecordSample(ctx context.Context, in models.SampleInput) (*models.TrackingSample, error)
	ListSamples(ctx context.Context, deliveryID uint64, limit int) ([]*models.TrackingSample, error)
	LatestSample(ctx context.Context, deliveryID uint64) (*models.TrackingSample, error)
	PostMessage(ctx context.Context, in pgdelivery.MessageInput) (*models.Communication, error)
	ListMessages(ctx context.Context, deliveryID uint64, limit int) ([]*models.Communication, error)
}

// TrackingAPI — внешняя JSON-поверхность трекинга поверх chi.
type TrackingAPI struct {
	svc      Service
	validate *validator.Validate
}

func New(svc Service) *TrackingAPI {
	return &TrackingAPI{
		svc:      svc,
		validate: validator.New(),
	}
}

func (a *TrackingAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/v1/deliveries", func(r chi.Router) {
		r.Post("/", a.createDelivery)
		r.Get("/", a.getDeliveries)
		r.Route("/{deliveryID}", func(r chi.Router) {
			r.Post("/respond", a.respond)
			r.Post("/status", a.updateStatus)
			r.Post("/samples", a.recordSample)
			r.Get("/samples", a.listSamples)
			r.Get("/samples/latest", a.latestSample)
			r.Post("/messages", a.postMessage)
			r.Get("/messages", a.listMessages)
		})
	})
	return r
}

type createDeliveryRequest struct {
	BuilderID      string   `json:"builder_id" validate:"required"`
	PickupAddress  string   `json:"pickup_address" validate:"required"`
	PickupLat      *float64 `json:"pickup_lat" validate:"omitempty,latitude"`
	PickupLon      *float64 `json:"pickup_lon" validate:"omitempty,longitude"`
	DropoffAddress string   `json:"dropoff_address" validate:"required"`
	DropoffLat     *float64 `json:"dropoff_lat" validate:"omitempty,latitude"`
	DropoffLon     *float64 `json:"dropoff_lon" validate:"omitempty,longitude"`
	Material       string   `json:"material" validate:"required"`
	Quantity       string   `json:"quantity"`
}

func (a *TrackingAPI) createDelivery(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if !a.bind(w, r, &req) {
		return
	}

	d, err := a.svc.CreateDelivery(r.Context(), models.DeliveryCreateInput{
		BuilderID:      req.BuilderID,
		PickupAddress:  req.PickupAddress,
		PickupLat:      req.PickupLat,
		PickupLon:      req.PickupLon,
		DropoffAddress: req.DropoffAddress,
		DropoffLat:     req.DropoffLat,
		DropoffLon:     req.DropoffLon,
		Material:       req.Material,
		Quantity:       req.Quantity,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (a *TrackingAPI) getDeliveries(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("ids query parameter is required"))
		return
	}

	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid delivery id: "+p))
			return
		}
		ids = append(ids, id)
	}

	ds, err := a.svc.GetDeliveriesByIDs(r.Context(), ids)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": ds})
}

type respondRequest struct {
	ProviderID string `json:"provider_id"`
	Accept     bool   `json:"accept"`
}

func (a *TrackingAPI) respond(w http.ResponseWriter, r *http.Request) {
	deliveryID, ok := a.deliveryID(w, r)
	if !ok {
		return
	}
	var req respondRequest
	if !a.bind(w, r, &req) {
		return
	}

	d, err := a.svc.RespondToDelivery(r.Context(), deliveryID, req.ProviderID, req.Accept)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (a *TrackingAPI) updateStatus(w http.ResponseWriter, r *http.Request) {
	deliveryID, ok := a.deliveryID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !a.bind(w, r, &req) {
		return
	}

	d, err := a.svc.UpdateStatus(r.Context(), deliveryID, req.Status)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type sampleRequest struct {
	ProviderID string   `json:"provider_id" validate:"required"`
	Latitude   float64  `json:"latitude" validate:"latitude"`
	Longitude  float64  `json:"longitude" validate:"longitude"`
	Heading    *float64 `json:"heading"`
	Speed      *float64 `json:"speed"`
	Accuracy   *float64 `json:"accuracy"`
	Status     string   `json:"status" validate:"required"`
	Notes      *string  `json:"notes"`
}

func (a *TrackingAPI) recordSample(w http.ResponseWriter, r *http.Request) {
	deliveryID, ok := a.deliveryID(w, r)
	if !ok {
		return
	}
	var req sampleRequest
	if !a.bind(w, r, &req) {
		return
	}

	sm, err := a.svc.RecordSample(r.Context(), models.SampleInput{
		DeliveryID: deliveryID,
		ProviderID: req.ProviderID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Heading:    req.Heading,
		Speed:      req.Speed,
		Accuracy:   req.Accuracy,
		Status:     req.Status,
		Notes:      req.Notes,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sm)
}

func (a *TrackingAPI) listSamples(w http.ResponseWriter, r *http.Request) {
	deliveryID, ok := a.deliveryID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit")

	samples, err := a.svc.ListSamples(r.Context(), deliveryID, limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": samples})
}

func (a *TrackingAPI) latestSample(w http.ResponseWriter, r *http.Request) {
	deliveryID, ok := a.deliveryID(w, r)
	if !ok {
		return
	}

	sm, err := a.svc.LatestSample(r.Context(), deliveryID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if sm == nil {
		writeJSON(w, http.StatusNotFound, errorBody("no samples recorded yet"))
		return
	}
	writeJSON(w, http.StatusOK, sm)
}

type messageRequest struct {
	SenderRole string  `json:"sender_role" validate:"required"`
	Kind       string  `json:"kind" validate:"required"`
	Body       string  `json:"body" validate:"required"`
	Metadata   *string `json:"metadata"`
}

func (a *TrackingAPI) postMessage(w http.ResponseWriter, r *http.Request) {
	deliveryID, ok := a.deliveryID(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if !a.bind(w, r, &req) {
		return
	}

	m, err := a.svc.PostMessage(r.Context(), pgdelivery.MessageInput{
		DeliveryID: deliveryID,
		SenderRole: req.SenderRole,
		Kind:       req.Kind,
		Body:       req.Body,
		Metadata:   req.Metadata,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *TrackingAPI) listMessages(w http.ResponseWriter, r *http.Request) {
	deliveryID, ok := a.deliveryID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit")

	msgs, err := a.svc.ListMessages(r.Context(), deliveryID, limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (a *TrackingAPI) deliveryID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "deliveryID"), 10, 64)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid delivery id"))
		return 0, false
	}
	return id, true
}

// bind декодирует тело и гоняет его через validator. Возвращает false, если
// ответ уже записан.
func (a *TrackingAPI) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("validation failed: "+err.Error()))
		return false
	}
	return true
}

func (a *TrackingAPI) writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		writeJSON(w, http.StatusNotFound, errorBody(msg))
	case strings.Contains(msg, "invalid status transition"),
		strings.Contains(msg, "not pending"):
		writeJSON(w, http.StatusConflict, errorBody(msg))
	case strings.Contains(msg, "rate limit exceeded"):
		writeJSON(w, http.StatusTooManyRequests, errorBody(msg))
	case strings.Contains(msg, "is required"),
		strings.Contains(msg, "unknown"):
		writeJSON(w, http.StatusBadRequest, errorBody(msg))
	default:
		slog.Error("tracking api", "error", msg)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}
