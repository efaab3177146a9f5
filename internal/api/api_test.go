package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildsight/wildsight-go/internal/conf"
	"github.com/wildsight/wildsight-go/internal/datastore"
	"github.com/wildsight/wildsight-go/internal/mailer"
	"github.com/wildsight/wildsight-go/internal/observability"
	"github.com/wildsight/wildsight-go/internal/refdata"
	"github.com/wildsight/wildsight-go/internal/runtime"
)

const referenceCSV = `species,habitat,lifespan,care_injured,conservation_status,endangered
Red Fox,Forest,5 years,Splint the leg and keep warm,Least Concern,false
Barn Owl,Grassland,10 years,Stabilize the wing,Endangered,true
`

// newTestController builds a controller over a temp SQLite store with no
// models loaded. Detection endpoints degrade; everything else is live.
func newTestController(t *testing.T) *Controller {
	t.Helper()

	dir := t.TempDir()
	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(dir, "api_test.db")
	settings.Upload.Path = filepath.Join(dir, "uploads")
	settings.Upload.MaxSizeMB = 10

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	user := &datastore.User{Username: "observer", Email: "observer@example.org", Role: datastore.RoleUser}
	require.NoError(t, ds.SaveUser(user))

	csvPath := filepath.Join(dir, "reference.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(referenceCSV), 0o644))
	table, err := refdata.Load(csvPath)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(registry)
	require.NoError(t, err)

	rt := &runtime.Context{
		Settings: settings,
		DS:       ds,
		RefData:  table,
		Mailer:   mailer.New(conf.MailSettings{}),
		Metrics:  metrics,
		Registry: registry,
	}
	return New(rt)
}

func doJSON(t *testing.T, c *Controller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func pngUpload(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 100, A: 255})
		}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "test.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, img))
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func createReport(t *testing.T, c *Controller, species string) (sightingID, reportID uint) {
	t.Helper()
	rec := doJSON(t, c, http.MethodPost, "/api/v1/reports", map[string]any{
		"user_id": 1,
		"detection": map[string]any{
			"label":      species,
			"confidence": 0.87,
		},
		"condition":      map[string]any{"label": "Injured", "confidence": 75.0},
		"detection_type": "image",
		"image_file":     "fox.jpg",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createReportResponse
	decodeJSON(t, rec, &resp)
	return resp.Sighting.ID, resp.Report.ID
}

func TestDetect_MissingFile(t *testing.T) {
	c := newTestController(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", nil)
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	decodeJSON(t, rec, &resp)
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestDetect_DegradedModelsReturnSentinels(t *testing.T) {
	c := newTestController(t)

	body, contentType := pngUpload(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", body)
	req.Header.Set(echoHeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp detectResponse
	decodeJSON(t, rec, &resp)
	assert.NotEmpty(t, resp.Filename, "upload is stored even without models")
	assert.Empty(t, resp.Detections)
	assert.Equal(t, "Unknown", resp.Condition.Label)
	assert.Zero(t, resp.Condition.Confidence)
	assert.Equal(t, "unavailable", resp.ModelUsed)
	assert.False(t, resp.CanCreateReport)

	// The stored file exists under the upload directory.
	entries, err := os.ReadDir(c.rt.Settings.Upload.Path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDetectFrame_NothingStored(t *testing.T) {
	c := newTestController(t)

	body, contentType := pngUpload(t, "frame")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect-frame", body)
	req.Header.Set(echoHeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	_, err := os.ReadDir(c.rt.Settings.Upload.Path)
	assert.True(t, os.IsNotExist(err), "realtime frames are never written to disk")
}

func TestCreateReport_PersistsWithEnrichment(t *testing.T) {
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/v1/reports", map[string]any{
		"user_id": 1,
		"detection": map[string]any{
			"label":      "Red Fox",
			"confidence": 0.87,
		},
		"condition":      map[string]any{"label": "Injured", "confidence": 75.0},
		"detection_type": "image",
		"image_file":     "fox.jpg",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createReportResponse
	decodeJSON(t, rec, &resp)
	assert.False(t, resp.Amended)
	assert.Equal(t, "Red Fox", resp.Sighting.Species)
	require.NotNil(t, resp.Sighting.Habitat, "enrichment resolved server-side from the reference table")
	assert.Equal(t, "Forest", *resp.Sighting.Habitat)
	require.NotNil(t, resp.Sighting.RecommendedCare)
	assert.Equal(t, "Splint the leg and keep warm", *resp.Sighting.RecommendedCare)
	assert.Nil(t, resp.Sighting.Population, "absent reference fields stay null")
	assert.Equal(t, "Image Sighting: Red Fox", resp.Report.Title)
	assert.Equal(t, datastore.StatusPending, resp.Report.Status)
}

func TestCreateReport_LegacyAliasAndAmend(t *testing.T) {
	c := newTestController(t)
	createReport(t, c, "Red Fox")

	rec := doJSON(t, c, http.MethodPost, "/api/v1/report-sighting", map[string]any{
		"user_id":          1,
		"detection":        map[string]any{"label": "Red Fox", "confidence": 0.9},
		"sighting_details": map[string]any{"notes": "seen again near the barn"},
		"detection_type":   "image",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp createReportResponse
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Amended)
	assert.Equal(t, "seen again near the barn", resp.Sighting.Notes)
}

func TestCreateReport_MissingUserID(t *testing.T) {
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/v1/reports", map[string]any{
		"detection": map[string]any{"label": "Red Fox", "confidence": 0.9},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateReport_Transition(t *testing.T) {
	c := newTestController(t)
	_, reportID := createReport(t, c, "Red Fox")

	rec := doJSON(t, c, http.MethodPatch,
		"/api/v1/reports/"+itoa(reportID), map[string]any{
			"status":     "resolved",
			"admin_id":   9,
			"admin_name": "admin",
			"notes":      "relocated safely",
		})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp updateReportResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, datastore.StatusResolved, resp.Report.Status)
	assert.True(t, resp.HistoryRecorded)
	assert.True(t, resp.NotificationCreated)

	// Same status again: no new rows.
	rec = doJSON(t, c, http.MethodPatch,
		"/api/v1/reports/"+itoa(reportID), map[string]any{"status": "resolved"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &resp)
	assert.False(t, resp.HistoryRecorded)
	assert.False(t, resp.NotificationCreated)
}

func TestUpdateReport_InvalidStatus(t *testing.T) {
	c := newTestController(t)
	_, reportID := createReport(t, c, "Red Fox")

	rec := doJSON(t, c, http.MethodPatch,
		"/api/v1/reports/"+itoa(reportID), map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateReport_NotFound(t *testing.T) {
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPatch, "/api/v1/reports/9999",
		map[string]any{"status": "resolved"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotifyAndMarkRead(t *testing.T) {
	c := newTestController(t)
	_, reportID := createReport(t, c, "Red Fox")

	rec := doJSON(t, c, http.MethodPost,
		"/api/v1/reports/"+itoa(reportID)+"/notify", map[string]any{
			"message":    "Please add a photo of the injury.",
			"admin_name": "admin",
		})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var notification datastore.UserNotification
	decodeJSON(t, rec, &notification)
	assert.NotZero(t, notification.ID)
	assert.False(t, notification.Read)

	rec = doJSON(t, c, http.MethodPost,
		"/api/v1/notifications/"+itoa(notification.ID)+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, c, http.MethodGet, "/api/v1/admin/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []datastore.UserNotification
	decodeJSON(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Read)
}

func TestNotify_EmptyMessage(t *testing.T) {
	c := newTestController(t)
	_, reportID := createReport(t, c, "Red Fox")

	rec := doJSON(t, c, http.MethodPost,
		"/api/v1/reports/"+itoa(reportID)+"/notify", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSightings_RoundTripPreservesNulls(t *testing.T) {
	c := newTestController(t)
	createReport(t, c, "Red Fox")

	rec := doJSON(t, c, http.MethodGet, "/api/v1/sightings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Absent enrichment fields serialize as JSON null, not empty strings.
	assert.Contains(t, rec.Body.String(), `"population":null`)
	assert.Contains(t, rec.Body.String(), `"habitat":"Forest"`)

	var views []sightingView
	decodeJSON(t, rec, &views)
	require.Len(t, views, 1)
	assert.Nil(t, views[0].Population)
	require.NotNil(t, views[0].Habitat)
	assert.Equal(t, "Forest", *views[0].Habitat)
}

func TestDeleteSighting_Cascades(t *testing.T) {
	c := newTestController(t)
	sightingID, reportID := createReport(t, c, "Red Fox")

	rec := doJSON(t, c, http.MethodDelete, "/api/v1/sightings/"+itoa(sightingID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, c, http.MethodGet, "/api/v1/reports/"+itoa(reportID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserReports(t *testing.T) {
	c := newTestController(t)
	createReport(t, c, "Red Fox")
	createReport(t, c, "Barn Owl")

	rec := doJSON(t, c, http.MethodGet, "/api/v1/users/1/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []*reportView
	decodeJSON(t, rec, &views)
	assert.Len(t, views, 2)
}

func TestHealth_Degraded(t *testing.T) {
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health runtime.Health
	decodeJSON(t, rec, &health)
	assert.Equal(t, "degraded", health.Status, "no models loaded")
	assert.True(t, health.Database)
	assert.True(t, health.RefData)
	assert.False(t, health.Detector)
}

func TestMetricsEndpoint(t *testing.T) {
	c := newTestController(t)
	createReport(t, c, "Red Fox")

	rec := doJSON(t, c, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wildsight_reports_created_total")
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
