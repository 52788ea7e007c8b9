package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/inboxd/internal/allocation"
	inboxdb "github.com/zulandar/inboxd/internal/db"
	"github.com/zulandar/inboxd/internal/grace"
	"github.com/zulandar/inboxd/internal/metrics"
	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/operator"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := inboxdb.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, inboxdb.AutoMigrate(db))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	router, err := NewRouter(Options{
		DB:       db,
		Engine:   allocation.New(db, allocation.Options{Metrics: m}),
		Ledger:   grace.New(db, grace.Options{Metrics: m}),
		Gatherer: reg,
	})
	require.NoError(t, err)
	return &testServer{db: db, router: router}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) operator(t *testing.T, tenantID string, role models.OperatorRole, online bool) string {
	t.Helper()
	op, err := operator.Create(s.db, tenantID, role)
	require.NoError(t, err)
	if online {
		w := s.do(t, http.MethodPost, "/operator/"+op.ID+"/status?status=AVAILABLE", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	return op.ID
}

func (s *testServer) message(t *testing.T, tenantID, ext, phone string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/orchestrator/message", messageRequest{
		TenantID:               tenantID,
		DisplayName:            "Support",
		ExternalConversationID: ext,
		CustomerPhoneNumber:    phone,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		ConversationID string `json:"conversation_id"`
		State          string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "QUEUED", resp.State)
	return resp.ConversationID
}

func decodeConversation(t *testing.T, w *httptest.ResponseRecorder) conversationResponse {
	t.Helper()
	var c conversationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c), w.Body.String())
	return c
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	_, err := NewRouter(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is required")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", models.ErrInvalidID), http.StatusBadRequest},
		{fmt.Errorf("x: %w", models.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("x: %w", models.ErrNotFound), http.StatusConflict},
		{fmt.Errorf("x: %w", models.ErrNotEligible), http.StatusConflict},
		{models.ErrNothingAvailable, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err, http.StatusConflict), tt.err.Error())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestOnMessage_CreatesThenTouches(t *testing.T) {
	s := newTestServer(t)
	first := s.message(t, "t1", "ext-1", "+15551234")
	second := s.message(t, "t1", "ext-1", "+15551234")
	assert.Equal(t, first, second)

	var conv models.Conversation
	require.NoError(t, s.db.Where("id = ?", first).First(&conv).Error)
	assert.Equal(t, 2, conv.MessageCount)
	assert.Zero(t, conv.PriorityScore)
}

func TestOnMessage_MissingFields(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/orchestrator/message", messageRequest{TenantID: "  ", CustomerPhoneNumber: "+1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAllocate_EmptyQueueIsNotAnError(t *testing.T) {
	s := newTestServer(t)
	op := s.operator(t, "t1", models.RoleOperator, true)
	w := s.do(t, http.MethodPost, "/operator/"+op+"/allocate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No conversations available")
}

func TestAllocate_AssignsAndSubscribes(t *testing.T) {
	s := newTestServer(t)
	op := s.operator(t, "t1", models.RoleOperator, true)
	id := s.message(t, "t1", "ext-1", "+15551234")

	w := s.do(t, http.MethodPost, "/operator/"+op+"/allocate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := decodeConversation(t, w)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, "ALLOCATED", c.State)
	require.NotNil(t, c.AssignedOperatorID)
	assert.Equal(t, op, *c.AssignedOperatorID)

	w = s.do(t, http.MethodGet, "/operator/"+op+"/inboxes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "+15551234")
}

func TestAllocate_OfflineOperatorConflict(t *testing.T) {
	s := newTestServer(t)
	op := s.operator(t, "t1", models.RoleOperator, false)
	s.message(t, "t1", "ext-1", "+15551234")
	w := s.do(t, http.MethodPost, "/operator/"+op+"/allocate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestClaim(t *testing.T) {
	s := newTestServer(t)
	a := s.operator(t, "t1", models.RoleOperator, true)
	b := s.operator(t, "t1", models.RoleOperator, true)
	id := s.message(t, "t1", "ext-1", "+15551234")

	w := s.do(t, http.MethodPost, "/conversations/"+id+"/claim", operatorRequest{OperatorID: a})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ALLOCATED", decodeConversation(t, w).State)

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/claim", operatorRequest{OperatorID: b})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/conversations/missing/claim", operatorRequest{OperatorID: b})
	assert.Equal(t, http.StatusConflict, w.Code, "unknown ids look the same as ineligible ones")

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/claim", operatorRequest{OperatorID: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolve_ForbiddenThenIdempotent(t *testing.T) {
	s := newTestServer(t)
	owner := s.operator(t, "t1", models.RoleOperator, true)
	other := s.operator(t, "t1", models.RoleOperator, true)
	id := s.message(t, "t1", "ext-1", "+15551234")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/conversations/"+id+"/claim", operatorRequest{OperatorID: owner}).Code)

	w := s.do(t, http.MethodPost, "/conversations/"+id+"/resolve", operatorRequest{OperatorID: other})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/resolve", operatorRequest{OperatorID: owner})
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeConversation(t, w)
	assert.Equal(t, "RESOLVED", first.State)
	require.NotNil(t, first.ResolvedAt)

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/resolve", operatorRequest{OperatorID: owner})
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeConversation(t, w)
	assert.True(t, first.ResolvedAt.Equal(*second.ResolvedAt))
}

func TestReassign_RequiresDeallocateFirst(t *testing.T) {
	s := newTestServer(t)
	mgr := s.operator(t, "t1", models.RoleManager, true)
	a := s.operator(t, "t1", models.RoleOperator, true)
	b := s.operator(t, "t1", models.RoleOperator, false)
	id := s.message(t, "t1", "ext-1", "+15551234")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/conversations/"+id+"/claim", operatorRequest{OperatorID: a}).Code)

	w := s.do(t, http.MethodPost, "/conversations/"+id+"/reassign", reassignRequest{OperatorID: mgr, TargetOperatorID: b})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/deallocate", operatorRequest{OperatorID: a})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/deallocate", operatorRequest{OperatorID: mgr})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := decodeConversation(t, w)
	assert.Equal(t, "QUEUED", c.State)
	assert.Nil(t, c.AssignedOperatorID)

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/reassign", reassignRequest{OperatorID: mgr, TargetOperatorID: b})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c = decodeConversation(t, w)
	assert.Equal(t, "ALLOCATED", c.State)
	require.NotNil(t, c.AssignedOperatorID)
	assert.Equal(t, b, *c.AssignedOperatorID)
}

func TestMoveInbox(t *testing.T) {
	s := newTestServer(t)
	mgr := s.operator(t, "t1", models.RoleManager, true)
	id := s.message(t, "t1", "ext-1", "+15551234")
	target, err := operator.GetOrCreateInbox(s.db, "t1", "+15559999", "Sales")
	require.NoError(t, err)
	foreign, err := operator.GetOrCreateInbox(s.db, "t2", "+15558888", "")
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/conversations/"+id+"/move_inbox", moveInboxRequest{OperatorID: mgr, TargetInboxID: foreign.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/move_inbox", moveInboxRequest{OperatorID: mgr, TargetInboxID: target.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := decodeConversation(t, w)
	assert.Equal(t, target.ID, c.InboxID)
	assert.Equal(t, "QUEUED", c.State)
}

func TestListQueued_AnnotatesOfflineOperator(t *testing.T) {
	s := newTestServer(t)
	op := s.operator(t, "t1", models.RoleOperator, false)
	s.message(t, "t1", "ext-1", "+15551234")
	s.message(t, "t1", "ext-2", "+15555678")

	w := s.do(t, http.MethodGet, "/conversations?operator_id="+op, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp conversationListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 100, resp.Limit)
	assert.Equal(t, "OFFLINE", resp.OperatorStatus)

	w = s.do(t, http.MethodGet, "/conversations?operator_id=%20", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperatorStatus_GraceFlow(t *testing.T) {
	s := newTestServer(t)
	op := s.operator(t, "t1", models.RoleOperator, true)
	id := s.message(t, "t1", "ext-1", "+15551234")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/conversations/"+id+"/claim", operatorRequest{OperatorID: op}).Code)

	w := s.do(t, http.MethodPost, "/operator/"+op+"/status?status=offline", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"OFFLINE"`)

	var entries int64
	require.NoError(t, s.db.Model(&models.GracePeriodAssignment{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)

	w = s.do(t, http.MethodPost, "/operator/"+op+"/status?status=AVAILABLE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, s.db.Model(&models.GracePeriodAssignment{}).Count(&entries).Error)
	assert.Zero(t, entries)

	w = s.do(t, http.MethodGet, "/operator/"+op+"/status", nil)
	assert.Contains(t, w.Body.String(), `"status":"AVAILABLE"`)
}

func TestOperatorStatus_Errors(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/operator/op-x/status?status=BUSY", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/operator/op-x/status?status=OFFLINE", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/operator/op-x/status", nil).Code)
}

func TestRunGraceExpiry_NothingExpired(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/admin/grace-expiry/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res grace.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, grace.Result{}, res)
}

func TestTenantConfig(t *testing.T) {
	s := newTestServer(t)
	admin := s.operator(t, "t1", models.RoleAdmin, false)
	mgr := s.operator(t, "t1", models.RoleManager, false)
	otherAdmin := s.operator(t, "t2", models.RoleAdmin, false)
	alpha := 2.5

	w := s.do(t, http.MethodPut, "/admin/tenant/t1/config?operator_id="+mgr, tenantConfigRequest{Alpha: &alpha})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/admin/tenant/t1/config?operator_id="+otherAdmin, tenantConfigRequest{Alpha: &alpha})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/admin/tenant/t1/config?operator_id="+admin, tenantConfigRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/admin/tenant/t1/config?operator_id="+admin, tenantConfigRequest{Alpha: &alpha})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		TenantID string  `json:"tenant_id"`
		Alpha    float64 `json:"alpha"`
		Beta     float64 `json:"beta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "t1", resp.TenantID)
	assert.Equal(t, 2.5, resp.Alpha)
	assert.Equal(t, 1.0, resp.Beta)
}

func TestLabels(t *testing.T) {
	s := newTestServer(t)
	admin := s.operator(t, "t1", models.RoleAdmin, false)
	op := s.operator(t, "t1", models.RoleOperator, false)
	id := s.message(t, "t1", "ext-1", "+15551234")
	var conv models.Conversation
	require.NoError(t, s.db.Where("id = ?", id).First(&conv).Error)

	name := "vip"
	w := s.do(t, http.MethodPost, "/inbox/"+conv.InboxID+"/labels?operator_id="+op, labelRequest{Name: &name})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/inbox/"+conv.InboxID+"/labels?operator_id="+admin, labelRequest{Name: &name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var l labelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l))
	assert.Equal(t, "vip", l.Name)

	w = s.do(t, http.MethodPost, "/conversations/"+id+"/labels/"+l.ID+"?operator_id="+admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/conversations/"+id+"/labels?operator_id="+admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"vip"`)

	w = s.do(t, http.MethodDelete, "/conversations/"+id+"/labels/"+l.ID+"?operator_id="+admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, "/conversations/"+id+"/labels/"+l.ID+"?operator_id="+admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/labels/"+l.ID+"?operator_id="+admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)
	s.message(t, "t1", "ext-1", "+15551234")
	s.message(t, "t2", "ext-1", "+15551234")

	w := s.do(t, http.MethodGet, "/search?tenant_id=t1&phone_number=%2B15551234", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, strings.Count(w.Body.String(), `"external_conversation_id"`))

	w = s.do(t, http.MethodGet, "/search?tenant_id=t1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	op := s.operator(t, "t1", models.RoleOperator, true)
	s.do(t, http.MethodPost, "/operator/"+op+"/allocate", nil)

	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "inboxd_allocation_transitions_total")
}
