package trackingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/UjenziPro/HaulTrack/internal/models"
	"github.com/UjenziPro/HaulTrack/internal/storage/pgdelivery"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	delivery *models.Delivery
	sample   *models.TrackingSample
	samples  []*models.TrackingSample
	message  *models.Communication
	err      error

	gotIDs      []uint64
	gotStatus   string
	gotSample   models.SampleInput
	gotLimit    int
	gotAccept   bool
	gotProvider string
}

func (f *fakeService) CreateDelivery(ctx context.Context, in models.DeliveryCreateInput) (*models.Delivery, error) {
	return f.delivery, f.err
}
func (f *fakeService) GetDeliveriesByIDs(ctx context.Context, ids []uint64) ([]*models.Delivery, error) {
	f.gotIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	return []*models.Delivery{f.delivery}, nil
}
func (f *fakeService) RespondToDelivery(ctx context.Context, deliveryID uint64, providerID string, accept bool) (*models.Delivery, error) {
	f.gotProvider, f.gotAccept = providerID, accept
	return f.delivery, f.err
}
func (f *fakeService) UpdateStatus(ctx context.Context, deliveryID uint64, to string) (*models.Delivery, error) {
	f.gotStatus = to
	return f.delivery, f.err
}
func (f *fakeService) RecordSample(ctx context.Context, in models.SampleInput) (*models.TrackingSample, error) {
	f.gotSample = in
	return f.sample, f.err
}
func (f *fakeService) ListSamples(ctx context.Context, deliveryID uint64, limit int) ([]*models.TrackingSample, error) {
	f.gotLimit = limit
	return f.samples, f.err
}
func (f *fakeService) LatestSample(ctx context.Context, deliveryID uint64) (*models.TrackingSample, error) {
	return f.sample, f.err
}
func (f *fakeService) PostMessage(ctx context.Context, in pgdelivery.MessageInput) (*models.Communication, error) {
	return f.message, f.err
}
func (f *fakeService) ListMessages(ctx context.Context, deliveryID uint64, limit int) ([]*models.Communication, error) {
	return nil, f.err
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPI_CreateDelivery(t *testing.T) {
	svc := &fakeService{delivery: &models.Delivery{ID: 1, Status: models.DeliveryStatusPending}}
	h := New(svc).Routes()

	rec := doJSON(t, h, http.MethodPost, "/v1/deliveries", map[string]any{
		"builder_id":      "b-1",
		"pickup_address":  "Industrial Area, Nairobi",
		"dropoff_address": "Westlands site 4",
		"material":        "cement",
		"quantity":        "200 bags",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var d models.Delivery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.Equal(t, uint64(1), d.ID)
}

func TestAPI_CreateDelivery_validation(t *testing.T) {
	h := New(&fakeService{}).Routes()

	rec := doJSON(t, h, http.MethodPost, "/v1/deliveries", map[string]any{
		"builder_id": "b-1",
		// адресов нет
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "validation failed")
}

func TestAPI_GetDeliveries_parsesIDs(t *testing.T) {
	svc := &fakeService{delivery: &models.Delivery{ID: 7}}
	h := New(svc).Routes()

	rec := doJSON(t, h, http.MethodGet, "/v1/deliveries?ids=7,%209", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []uint64{7, 9}, svc.gotIDs)

	rec = doJSON(t, h, http.MethodGet, "/v1/deliveries", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/deliveries?ids=x", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Respond(t *testing.T) {
	svc := &fakeService{delivery: &models.Delivery{ID: 3, Status: models.DeliveryStatusAccepted}}
	h := New(svc).Routes()

	rec := doJSON(t, h, http.MethodPost, "/v1/deliveries/3/respond", map[string]any{
		"provider_id": "prov-1",
		"accept":      true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, svc.gotAccept)
	require.Equal(t, "prov-1", svc.gotProvider)
}

func TestAPI_UpdateStatus_conflictOnBadTransition(t *testing.T) {
	svc := &fakeService{err: errors.New("invalid status transition delivered -> pending")}
	h := New(svc).Routes()

	rec := doJSON(t, h, http.MethodPost, "/v1/deliveries/3/status", map[string]any{
		"status": models.DeliveryStatusPending,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_RecordSample(t *testing.T) {
	svc := &fakeService{sample: &models.TrackingSample{ID: 11, DeliveryID: 5}}
	h := New(svc).Routes()

	rec := doJSON(t, h, http.MethodPost, "/v1/deliveries/5/samples", map[string]any{
		"provider_id": "prov-1",
		"latitude":    -1.2921,
		"longitude":   36.8219,
		"status":      models.SampleStatusEnRoute,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, uint64(5), svc.gotSample.DeliveryID)
	require.Equal(t, models.SampleStatusEnRoute, svc.gotSample.Status)
}

func TestAPI_RecordSample_badCoordinates(t *testing.T) {
	h := New(&fakeService{}).Routes()

	rec := doJSON(t, h, http.MethodPost, "/v1/deliveries/5/samples", map[string]any{
		"provider_id": "prov-1",
		"latitude":    123.0, // за пределами [-90, 90]
		"longitude":   36.8219,
		"status":      models.SampleStatusEnRoute,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RecordSample_rateLimited(t *testing.T) {
	svc := &fakeService{err: errors.New("sample rate limit exceeded for provider prov-1 (31/min)")}
	h := New(svc).Routes()

	rec := doJSON(t, h, http.MethodPost, "/v1/deliveries/5/samples", map[string]any{
		"provider_id": "prov-1",
		"latitude":    -1.2921,
		"longitude":   36.8219,
		"status":      models.SampleStatusEnRoute,
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAPI_ListSamples_passesLimit(t *testing.T) {
	svc := &fakeService{samples: []*models.TrackingSample{{ID: 2}, {ID: 1}}}
	h := New(svc).Routes()

	rec := doJSON(t, h, http.MethodGet, "/v1/deliveries/5/samples?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 10, svc.gotLimit)

	var body struct {
		Samples []*models.TrackingSample `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Samples, 2)
}

func TestAPI_LatestSample_notFound(t *testing.T) {
	h := New(&fakeService{}).Routes()

	rec := doJSON(t, h, http.MethodGet, "/v1/deliveries/5/samples/latest", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_PostMessage(t *testing.T) {
	svc := &fakeService{message: &models.Communication{ID: 4}}
	h := New(svc).Routes()

	rec := doJSON(t, h, http.MethodPost, "/v1/deliveries/5/messages", map[string]any{
		"sender_role": models.RoleBuilder,
		"kind":        models.MessageKindText,
		"body":        "use the back gate",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/deliveries/5/messages", map[string]any{
		"sender_role": models.RoleBuilder,
		"kind":        models.MessageKindText,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_BadDeliveryID(t *testing.T) {
	h := New(&fakeService{}).Routes()

	rec := doJSON(t, h, http.MethodGet, "/v1/deliveries/abc/samples", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
