package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/dispatch"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository/memory"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/service"
)

func newCommandRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Spots().EnsurePool(ctx, 2))
	_, err := store.Subscribers().Create(ctx, &domain.Subscriber{Code: "sub-1", Name: "Subscriber One"})
	require.NoError(t, err)

	alloc := service.NewAllocationService(store, nil, service.DefaultConfig())
	d := dispatch.NewDispatcher(alloc, service.NewReportService(store, 0))

	r := gin.New()
	r.POST("/api/v1/commands", NewCommandHandler(d).Execute)
	return r
}

func postCommand(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExecuteSuccess(t *testing.T) {
	r := newCommandRouter(t)

	w := postCommand(t, r, `{"command":"deposit","params":["sub-1"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dispatch.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "deposit", resp.Command)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "vehicle parked at spot 1")
}

func TestExecuteFailureStaysHTTP200(t *testing.T) {
	r := newCommandRouter(t)

	w := postCommand(t, r, `{"command":"retrieve","params":["PK-FFFFFFFF"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dispatch.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestExecuteRejectsBadBody(t *testing.T) {
	r := newCommandRouter(t)

	for name, body := range map[string]string{
		"not json":        `{"command":`,
		"missing command": `{"params":["sub-1"]}`,
	} {
		w := postCommand(t, r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}
