package http

import (
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-workflow-go/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/sse"
)

// keepaliveInterval is how often an idle stream gets a ping.
const keepaliveInterval = 30 * time.Second

// EventSubscriber opens an event stream for one employee.
type EventSubscriber interface {
	Subscribe(recipientID string) (<-chan sse.Event, func())
}

type EventHandler interface {
	GetSSEToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type SSETokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type connectedMessage struct {
	Status     string `json:"status"`
	EmployeeID string `json:"employee_id"`
}

type pingMessage struct {
	Timestamp int64 `json:"timestamp"`
}

type eventHandlerImpl struct {
	events     EventSubscriber
	jwtService jwt.Service
}

func NewEventHandler(events EventSubscriber, jwtService jwt.Service) EventHandler {
	return &eventHandlerImpl{
		events:     events,
		jwtService: jwtService,
	}
}

// GetSSEToken issues a short-lived token for the event stream.
func (h *eventHandlerImpl) GetSSEToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	token, expiresIn, err := h.jwtService.GenerateSSEToken(principal.UserID, principal.EmployeeID)
	if err != nil {
		response.InternalServerError(w, "Failed to generate SSE token")
		return
	}

	response.Success(w, SSETokenResponse{Token: token, ExpiresIn: expiresIn})
}

// Stream handles the SSE connection. The token comes from the query string
// since EventSource cannot send headers.
func (h *eventHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		response.Unauthorized(w, "Missing token")
		return
	}

	employeeID, err := h.jwtService.ValidateSSEToken(tokenStr)
	if err != nil {
		response.Unauthorized(w, "Invalid token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.events.Subscribe(employeeID)
	defer cleanup()

	connected := sse.Event{Name: "connected", Data: connectedMessage{Status: "connected", EmployeeID: employeeID}}
	if _, err := connected.WriteTo(w); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if _, err := event.WriteTo(w); err != nil {
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			ping := sse.Event{Name: "ping", Data: pingMessage{Timestamp: time.Now().Unix()}}
			if _, err := ping.WriteTo(w); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
