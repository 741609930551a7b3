package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-workflow-go/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/timeutil"
	"github.com/cmlabs-hris/hris-workflow-go/internal/repository/memory"
	approvalService "github.com/cmlabs-hris/hris-workflow-go/internal/service/approval"
	attendanceService "github.com/cmlabs-hris/hris-workflow-go/internal/service/attendance"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	employeeID = "emp-employee"
	managerID  = "emp-manager"
	adminID    = "emp-admin"
	loneID     = "emp-lone"
	strangerID = "emp-stranger"
)

type testServer struct {
	router chi.Router
	jwt    jwt.Service
	hub    *sse.Hub
}

// newTestServer wires the real services over memory stores. With
// withAdmin false, loneID has no approver at all.
func newTestServer(t *testing.T, withAdmin bool) *testServer {
	t.Helper()

	wib := time.FixedZone("WIB", 7*3600)
	now := time.Date(2024, 3, 4, 0, 30, 0, 0, time.UTC)

	attendanceRepo := memory.NewAttendanceRepository()
	roster := memory.NewRosterRepository()
	attendanceSvc := attendanceService.NewAttendanceService(
		attendanceRepo,
		attendanceService.NewShiftResolver(roster, attendanceService.DefaultShiftWindow()),
		timeutil.NewNormalizer(wib),
	).WithClock(func() time.Time { return now })

	store := memory.NewRequestStore()
	org := memory.NewOrgHierarchy()
	roles := memory.NewRoleDirectory()
	org.AddEmployee(employeeID, managerID, "")
	org.AddEmployee(managerID, "", "")
	org.AddEmployee(loneID, "", "")
	org.AddEmployee(strangerID, "", "")
	roles.SetRole(employeeID, user.RoleEmployee)
	roles.SetRole(managerID, user.RoleManager)
	roles.SetRole(loneID, user.RoleEmployee)
	roles.SetRole(strangerID, user.RoleEmployee)
	if withAdmin {
		org.AddEmployee(adminID, "", "")
		roles.SetRole(adminID, user.RoleAdministrator)
	}

	hub := sse.NewHub()
	approvalRouter := approvalService.NewRouter(org, roles)
	machine := approvalService.NewStateMachine(store, approvalRouter, roles)
	approvalSvc := approvalService.NewApprovalService(store, store, machine, approvalRouter,
		approval.DefaultPayloadValidators(), hub)

	jwtSvc := jwt.NewJWTService("handler-test-secret", "1h")
	router := NewRouter(
		RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}, Env: "test", LogLevel: ParseLogLevel("error")},
		jwtSvc,
		NewAttendanceHandler(attendanceSvc),
		NewRequestHandler(approvalSvc),
		NewEventHandler(hub, jwtSvc),
	)

	return &testServer{router: router, jwt: jwtSvc, hub: hub}
}

func (s *testServer) token(t *testing.T, employeeID string, role user.Role) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken("user-"+employeeID, employeeID, role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp response.Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

// dataInto re-decodes resp.Data into out.
func dataInto(t *testing.T, resp response.Response, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

const leavePayload = `{"type":"leave","payload":{"leave_type_id":"annual","start_date":"2024-03-11","end_date":"2024-03-12","reason":"family"}}`

// ===== AUTH TESTS =====

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t, true)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/attendance/clock-in", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RejectsForeignToken(t *testing.T) {
	s := newTestServer(t, true)
	foreign, _, err := jwt.NewJWTService("other-secret", "1h").GenerateAccessToken("u", employeeID, user.RoleEmployee)
	require.NoError(t, err)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/requests", foreign, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RejectsSSETokenForAPI(t *testing.T) {
	s := newTestServer(t, true)
	sseToken, _, err := s.jwt.GenerateSSEToken("u", employeeID)
	require.NoError(t, err)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/requests", sseToken, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ===== ATTENDANCE HANDLER TESTS =====

func TestAttendanceHandler_ClockInOut(t *testing.T) {
	s := newTestServer(t, true)
	token := s.token(t, employeeID, user.RoleEmployee)

	rec, resp := s.do(t, http.MethodPost, "/api/v1/attendance/clock-in", token, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = s.do(t, http.MethodPost, "/api/v1/attendance/clock-in", token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/attendance/clock-out", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/attendance/clock-out", token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAttendanceHandler_MyAttendance(t *testing.T) {
	s := newTestServer(t, true)
	token := s.token(t, employeeID, user.RoleEmployee)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/attendance/clock-in", token, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := s.do(t, http.MethodGet, "/api/v1/attendance/my?start_date=2024-03-01&end_date=2024-03-31", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		EmployeeID string `json:"employee_id"`
		Records    []struct {
			Date        string `json:"date"`
			Status      string `json:"status"`
			LateMinutes int    `json:"late_minutes"`
		} `json:"records"`
		Aggregate struct {
			TotalRecords int     `json:"total_records"`
			RatePercent  float64 `json:"rate_percent"`
		} `json:"aggregate"`
	}
	dataInto(t, resp, &summary)

	assert.Equal(t, employeeID, summary.EmployeeID)
	require.Len(t, summary.Records, 1)
	// 00:30Z is 07:30 WIB, 30 minutes after the default 07:00 start.
	assert.Equal(t, "2024-03-04", summary.Records[0].Date)
	assert.Equal(t, "Missing", summary.Records[0].Status)
	assert.Equal(t, 30, summary.Records[0].LateMinutes)
	assert.Equal(t, 1, summary.Aggregate.TotalRecords)
	assert.Equal(t, 0.0, summary.Aggregate.RatePercent)
}

func TestAttendanceHandler_InvalidRange(t *testing.T) {
	s := newTestServer(t, true)
	token := s.token(t, employeeID, user.RoleEmployee)

	rec, resp := s.do(t, http.MethodGet, "/api/v1/attendance/my?start_date=2024-03-31&end_date=2024-03-01", token, "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Details, "end_date")
}

func TestAttendanceHandler_EmployeeAttendanceNeedsViewAll(t *testing.T) {
	s := newTestServer(t, true)
	path := "/api/v1/attendance/employees/" + employeeID + "?start_date=2024-03-01&end_date=2024-03-31"

	rec, _ := s.do(t, http.MethodGet, path, s.token(t, strangerID, user.RoleEmployee), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodGet, path, s.token(t, managerID, user.RoleManager), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ===== REQUEST HANDLER TESTS =====

func TestRequestHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t, true)
	employee := s.token(t, employeeID, user.RoleEmployee)
	manager := s.token(t, managerID, user.RoleManager)
	stranger := s.token(t, strangerID, user.RoleEmployee)

	rec, resp := s.do(t, http.MethodPost, "/api/v1/requests", employee, leavePayload)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created approval.RequestResponse
	dataInto(t, resp, &created)
	assert.Equal(t, "draft", created.State)

	base := "/api/v1/requests/" + created.ID

	rec, _ = s.do(t, http.MethodPost, base+"/submit", manager, "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the requester submits")

	rec, resp = s.do(t, http.MethodPost, base+"/submit", employee, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var submitted approval.RequestResponse
	dataInto(t, resp, &submitted)
	assert.Equal(t, "pending", submitted.State)
	require.NotNil(t, submitted.ApproverID)
	assert.Equal(t, managerID, *submitted.ApproverID)

	rec, _ = s.do(t, http.MethodGet, base, stranger, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = s.do(t, http.MethodPost, base+"/decision", manager, `{"outcome":"rejected","comment":"  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Details, "comment")

	rec, _ = s.do(t, http.MethodPost, base+"/decision", stranger, `{"outcome":"approved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = s.do(t, http.MethodPost, base+"/decision", manager, `{"outcome":"approved","comment":"enjoy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var decision approval.DecisionResponse
	dataInto(t, resp, &decision)
	assert.Equal(t, created.ID, decision.RequestID)
	assert.Equal(t, "approved", decision.NewState)
	assert.Equal(t, managerID, decision.DecidedBy)

	rec, _ = s.do(t, http.MethodPost, base+"/decision", manager, `{"outcome":"rejected","comment":"changed my mind"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = s.do(t, http.MethodGet, base+"/audit", employee, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trail []approval.AuditEntryResponse
	dataInto(t, resp, &trail)
	require.Len(t, trail, 3)
	assert.Equal(t, "created", trail[0].Action)
	assert.Equal(t, "submitted", trail[1].Action)
	assert.Equal(t, "approved", trail[2].Action)
}

func TestRequestHandler_NoApproverFound(t *testing.T) {
	s := newTestServer(t, false)
	lone := s.token(t, loneID, user.RoleEmployee)

	rec, resp := s.do(t, http.MethodPost, "/api/v1/requests", lone, leavePayload)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created approval.RequestResponse
	dataInto(t, resp, &created)

	rec, resp = s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/submit", lone, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NO_APPROVER_FOUND", resp.Error.Code)

	rec, resp = s.do(t, http.MethodGet, "/api/v1/requests/"+created.ID, lone, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var after approval.RequestResponse
	dataInto(t, resp, &after)
	assert.Equal(t, "draft", after.State)
}

func TestRequestHandler_CreateValidation(t *testing.T) {
	s := newTestServer(t, true)
	employee := s.token(t, employeeID, user.RoleEmployee)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "malformed json", body: `{"type":`, wantStatus: http.StatusBadRequest},
		{name: "unknown type", body: `{"type":"bonus","payload":{}}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "expense without amount", body: `{"type":"expense","payload":{"currency":"IDR"}}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "valid expense", body: `{"type":"expense","payload":{"amount":"150000.50","currency":"IDR","description":"taxi"}}`, wantStatus: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := s.do(t, http.MethodPost, "/api/v1/requests", employee, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequestHandler_List(t *testing.T) {
	s := newTestServer(t, true)
	employee := s.token(t, employeeID, user.RoleEmployee)
	manager := s.token(t, managerID, user.RoleManager)

	for i := 0; i < 3; i++ {
		rec, resp := s.do(t, http.MethodPost, "/api/v1/requests", employee, leavePayload)
		require.Equal(t, http.StatusCreated, rec.Code)
		if i == 0 {
			var created approval.RequestResponse
			dataInto(t, resp, &created)
			rec, _ = s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/submit", employee, "")
			require.Equal(t, http.StatusOK, rec.Code)
		}
	}

	rec, resp := s.do(t, http.MethodGet, "/api/v1/requests?limit=2", employee, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(3), resp.Meta.TotalItems)
	assert.Equal(t, 2, resp.Meta.Limit)

	rec, resp = s.do(t, http.MethodGet, "/api/v1/requests?scope=approvals&state=pending", manager, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), resp.Meta.TotalItems)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/requests?scope=all", employee, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/api/v1/requests?limit=lots", employee, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Details, "limit")
}

func TestRequestHandler_NotFound(t *testing.T) {
	s := newTestServer(t, true)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/requests/does-not-exist", s.token(t, employeeID, user.RoleEmployee), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ===== EVENT HANDLER TESTS =====

func TestEventHandler_StreamRequiresToken(t *testing.T) {
	s := newTestServer(t, true)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/events/stream", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/events/stream?token=garbage", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventHandler_StreamsPublishedEvents(t *testing.T) {
	s := newTestServer(t, true)
	server := httptest.NewServer(s.router)
	defer server.Close()

	_, resp := s.do(t, http.MethodPost, "/api/v1/events/token", s.token(t, employeeID, user.RoleEmployee), "")
	require.True(t, resp.Success)
	var tok SSETokenResponse
	dataInto(t, resp, &tok)
	assert.Equal(t, 300, tok.ExpiresIn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/events/stream?token="+tok.Token, nil)
	require.NoError(t, err)
	stream, err := server.Client().Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	reader := bufio.NewReader(stream.Body)
	readEvent := func() string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if line == "\n" {
				return strings.Join(lines, "")
			}
			lines = append(lines, line)
		}
	}

	// The connected event is written after the subscription exists.
	connected := readEvent()
	assert.Contains(t, connected, "event: connected")
	dataLine := connected[strings.Index(connected, "data: ")+len("data: "):]
	var hello map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(dataLine)), &hello))
	assert.Equal(t, map[string]string{"status": "connected", "employee_id": employeeID}, hello)

	s.hub.Publish(employeeID, sse.Event{Name: "request.decided", Data: map[string]string{"state": "approved"}})

	got := readEvent()
	assert.Contains(t, got, "event: request.decided")
	assert.Contains(t, got, `data: {"state":"approved"}`)
}
