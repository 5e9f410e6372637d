// Package integration contains end-to-end tests that exercise the full
// stack in process: router, auth middleware, services and repositories.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/doaqui/doaqui/internal/auth"
	"github.com/doaqui/doaqui/internal/handler"
	"github.com/doaqui/doaqui/internal/repository/memory"
	"github.com/doaqui/doaqui/internal/service"
	"github.com/doaqui/doaqui/internal/storage"
)

// stack bundles the wired application for a test.
type stack struct {
	server  *httptest.Server
	sweeper *service.ReservationSweeper
}

func newStack(t *testing.T, reservationTTL time.Duration) *stack {
	t.Helper()

	logger := zerolog.Nop()
	users := memory.NewUserRepository()
	products := memory.NewProductRepository(users)
	cache := memory.NewCache()
	locker := memory.NewLock()

	imageStore, err := storage.NewFilesystemStore(t.TempDir(), logger)
	require.NoError(t, err)

	issuer := auth.NewTokenIssuer("integration-secret", "doaqui-test", time.Hour)
	userService := service.NewUserService(users, issuer, logger)
	productService := service.NewProductService(products, users, cache, nil, logger)
	listingService := service.NewListingService(products, cache, logger)
	sweeper := service.NewReservationSweeper(products, locker, nil, logger, service.SweeperConfig{
		Interval:       time.Hour,
		ReservationTTL: reservationTTL,
	})

	router := handler.NewRouter(handler.RouterConfig{
		ProductHandler: handler.NewProductHandler(productService, listingService, logger),
		UserHandler:    handler.NewUserHandler(userService, logger),
		ImageHandler:   handler.NewImageHandler(imageStore, logger),
		AuthMiddleware: auth.Middleware(issuer, userService, auth.Config{}),
		Logger:         logger,
	})

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return &stack{server: srv, sweeper: sweeper}
}

func (s *stack) request(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func (s *stack) register(t *testing.T, name string) string {
	t.Helper()
	status, body := s.request(t, http.MethodPost, "/users/register", "", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"phone":    "555-0199",
		"password": "a perfectly fine password",
	})
	require.Equal(t, http.StatusCreated, status)
	return body["token"].(string)
}

// TestDonationLifecycle walks a product through the whole lifecycle over
// the HTTP surface: listed, scheduled, concluded.
func TestDonationLifecycle(t *testing.T) {
	s := newStack(t, 24*time.Hour)

	ownerToken := s.register(t, "alice")
	receiverToken := s.register(t, "bob")

	// Owner lists a product.
	status, body := s.request(t, http.MethodPost, "/products", ownerToken, map[string]interface{}{
		"name":         "bookshelf",
		"description":  "five shelves, solid wood",
		"state":        "fair",
		"purchased_at": "2020-01-15T00:00:00Z",
		"images":       []string{"img-1.png"},
	})
	require.Equal(t, http.StatusCreated, status)
	productID := body["product"].(map[string]interface{})["id"].(string)

	// Everyone can see it in the catalog.
	status, body = s.request(t, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["products"], 1)

	// Receiver schedules a pickup and gets the contact message.
	status, body = s.request(t, http.MethodPost, "/products/"+productID+"/schedule", receiverToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body["message"], "bob")

	// The product now reads as reserved and unavailable.
	status, body = s.request(t, http.MethodGet, "/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, status)
	product := body["product"].(map[string]interface{})
	require.Equal(t, "reserved", product["status"])
	require.Equal(t, false, product["available"])

	// Owner concludes the handover.
	status, body = s.request(t, http.MethodPost, "/products/"+productID+"/conclude", ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "donated", body["product"].(map[string]interface{})["status"])

	// Terminal: nobody can conclude again or schedule.
	status, _ = s.request(t, http.MethodPost, "/products/"+productID+"/conclude", receiverToken, nil)
	require.Equal(t, http.StatusConflict, status)
	thirdToken := s.register(t, "carol")
	status, _ = s.request(t, http.MethodPost, "/products/"+productID+"/schedule", thirdToken, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

// TestReservationExpiry checks that the sweeper returns a stale
// reservation to the catalog and that the product can be scheduled again.
func TestReservationExpiry(t *testing.T) {
	s := newStack(t, time.Nanosecond)

	ownerToken := s.register(t, "alice")
	receiverToken := s.register(t, "bob")

	status, body := s.request(t, http.MethodPost, "/products", ownerToken, map[string]interface{}{
		"name":         "kettle",
		"description":  "electric kettle",
		"state":        "good",
		"purchased_at": "2022-06-01T00:00:00Z",
		"images":       []string{"img-1.png"},
	})
	require.Equal(t, http.StatusCreated, status)
	productID := body["product"].(map[string]interface{})["id"].(string)

	status, _ = s.request(t, http.MethodPost, "/products/"+productID+"/schedule", receiverToken, nil)
	require.Equal(t, http.StatusOK, status)

	// The reservation is older than the (tiny) TTL by the time we sweep.
	time.Sleep(10 * time.Millisecond)
	result := s.sweeper.RunOnce(context.Background())
	require.EqualValues(t, 1, result.Released)

	status, body = s.request(t, http.MethodGet, "/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "available", body["product"].(map[string]interface{})["status"])

	// Someone else can schedule it now.
	thirdToken := s.register(t, "carol")
	status, _ = s.request(t, http.MethodPost, "/products/"+productID+"/schedule", thirdToken, nil)
	require.Equal(t, http.StatusOK, status)
}

// TestImageUploadFlow uploads an image, references it from a listing and
// reads it back.
func TestImageUploadFlow(t *testing.T) {
	s := newStack(t, 24*time.Hour)
	token := s.register(t, "alice")

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, "image", "photo.png", "image/png", []byte("png bytes"))

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/images", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var uploaded struct {
		Image string `json:"image"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	require.NotEmpty(t, uploaded.Image)

	// The image serves back with its content type.
	imgResp, err := http.Get(s.server.URL + "/images/" + uploaded.Image)
	require.NoError(t, err)
	defer imgResp.Body.Close()
	require.Equal(t, http.StatusOK, imgResp.StatusCode)
	require.Equal(t, "image/png", imgResp.Header.Get("Content-Type"))

	content, err := io.ReadAll(imgResp.Body)
	require.NoError(t, err)
	require.Equal(t, []byte("png bytes"), content)

	// A listing can reference it.
	status, _ := s.request(t, http.MethodPost, "/products", token, map[string]interface{}{
		"name":         "plant pot",
		"description":  "ceramic pot",
		"state":        "good",
		"purchased_at": "2024-03-01T00:00:00Z",
		"images":       []string{uploaded.Image},
	})
	require.Equal(t, http.StatusCreated, status)
}

// newMultipart writes a single-file multipart body and returns the
// Content-Type header value.
func newMultipart(t *testing.T, buf *bytes.Buffer, field, filename, contentType string, content []byte) string {
	t.Helper()

	writer := multipart.NewWriter(buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return writer.FormDataContentType()
}
