package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"helpdesk-service/internal/middleware"
	"helpdesk-service/internal/mocks"
	"helpdesk-service/internal/models"
	"helpdesk-service/internal/repositories"
	"helpdesk-service/internal/ws"
)

type recordingConn struct {
	mu     sync.Mutex
	events []models.SupportEvent
}

func (r *recordingConn) WriteMessage(messageType int, data []byte) error {
	var event models.SupportEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recordingConn) Close() error { return nil }

func connectAs(hub *ws.Hub, p models.Principal) *recordingConn {
	conn := &recordingConn{}
	hub.Subscribe(conn, models.ChannelsFor(p))
	return conn
}

func setupSupportRouter(handler *SupportHandler, principal models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetPrincipal(c, principal)
		c.Next()
	})
	r.GET("/support/messages", handler.GetMyConversation)
	r.POST("/support/messages", handler.SendMessage)
	r.POST("/support/close", handler.CloseMyConversation)
	r.GET("/support/conversations", handler.ListConversations)
	r.GET("/support/conversations/:user_id/messages", handler.GetConversation)
	r.GET("/support/conversations/:user_id/status", handler.ConversationStatus)
	r.POST("/support/conversations/:user_id/close", handler.CloseConversation)
	return r
}

func TestSendMessageAsClient(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	agent := connectAs(hub, models.Principal{UserID: 9, Role: models.RoleAgent})
	otherClient := connectAs(hub, models.Principal{UserID: 2, Role: models.RoleClient})
	handler := NewSupportHandler(messageRepo, hub, nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 1, Role: models.RoleClient, Username: "c1"})

	stored := models.Message{ID: 5, OwnerID: 1, SenderRole: models.RoleClient, Text: "hi"}
	messageRepo.On("CreateMessage", mock.Anything, 1, models.RoleClient, "c1", "hi", false).Return(stored, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/support/messages", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messageRepo.AssertExpectations(t)

	// Staff receive the message then the refresh hint, in publish order.
	require.Len(t, agent.events, 2)
	assert.Equal(t, models.EventMessageReceived, agent.events[0].Type)
	assert.Equal(t, 1, agent.events[0].Message.OwnerID)
	assert.Equal(t, models.EventDashboardRefreshHint, agent.events[1].Type)
	assert.Empty(t, otherClient.events, "unrelated clients must receive nothing")
}

func TestSendMessageClientCannotTargetOthers(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewSupportHandler(messageRepo, ws.NewHub(), nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 1, Role: models.RoleClient})

	req := httptest.NewRequest(http.MethodPost, "/support/messages", bytes.NewBufferString(`{"text":"hi","target_user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageStaffToClient(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	client := connectAs(hub, models.Principal{UserID: 1, Role: models.RoleClient})
	agent := connectAs(hub, models.Principal{UserID: 9, Role: models.RoleAgent})
	handler := NewSupportHandler(messageRepo, hub, nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 9, Role: models.RoleAgent, Username: "sam"})

	stored := models.Message{ID: 6, OwnerID: 1, SenderRole: models.RoleAgent, SenderName: "sam", Text: "hello"}
	messageRepo.On("CreateMessage", mock.Anything, 1, models.RoleAgent, "sam", "hello", false).Return(stored, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/support/messages", bytes.NewBufferString(`{"text":"hello","target_user_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messageRepo.AssertExpectations(t)

	require.Len(t, client.events, 1)
	assert.Equal(t, models.EventMessageReceived, client.events[0].Type)
	assert.Empty(t, agent.events, "staff replies are not echoed to role rooms")
}

func TestSendMessageStaffSandboxIsPreArchivedAndSilent(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	client := connectAs(hub, models.Principal{UserID: 1, Role: models.RoleClient})
	admin := connectAs(hub, models.Principal{UserID: 9, Role: models.RoleAdmin})
	handler := NewSupportHandler(messageRepo, hub, nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 9, Role: models.RoleAdmin, Username: "root"})

	stored := models.Message{ID: 7, OwnerID: 9, SenderRole: models.RoleAdmin, Text: "note", IsArchived: true}
	messageRepo.On("CreateMessage", mock.Anything, 9, models.RoleAdmin, "root", "note", true).Return(stored, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/support/messages", bytes.NewBufferString(`{"text":"note"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messageRepo.AssertExpectations(t)
	assert.Empty(t, client.events)
	assert.Empty(t, admin.events)
}

func TestSendMessageRequiresText(t *testing.T) {
	handler := NewSupportHandler(new(mocks.MessageRepositoryMock), ws.NewHub(), nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 1, Role: models.RoleClient})

	req := httptest.NewRequest(http.MethodPost, "/support/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageStoreErrorAborts(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	agent := connectAs(hub, models.Principal{UserID: 9, Role: models.RoleAgent})
	handler := NewSupportHandler(messageRepo, hub, nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 1, Role: models.RoleClient})

	messageRepo.On("CreateMessage", mock.Anything, 1, models.RoleClient, "", "hi", false).Return(models.Message{}, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/support/messages", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, agent.events, "nothing is published when the write fails")
}

func TestCloseMyConversation(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	agent := connectAs(hub, models.Principal{UserID: 9, Role: models.RoleAgent})
	handler := NewSupportHandler(messageRepo, hub, nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 1, Role: models.RoleClient, Username: "c1"})

	messageRepo.On("ArchiveConversation", mock.Anything, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/support/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)

	require.Len(t, agent.events, 2)
	assert.Equal(t, models.EventConversationClosed, agent.events[0].Type)
	assert.Equal(t, models.RoleClient, agent.events[0].ClosedByRole)
	assert.Equal(t, "c1", agent.events[0].ClosedBy)
}

func TestCloseConversationAsStaff(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	client := connectAs(hub, models.Principal{UserID: 1, Role: models.RoleClient})
	agent := connectAs(hub, models.Principal{UserID: 9, Role: models.RoleAgent})
	handler := NewSupportHandler(messageRepo, hub, nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 9, Role: models.RoleAgent, Username: "sam"})

	messageRepo.On("ArchiveConversation", mock.Anything, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/support/conversations/1/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)

	// The client is told who closed it; staff rooms get the same close plus a hint.
	require.Len(t, client.events, 1)
	assert.Equal(t, models.EventConversationClosed, client.events[0].Type)
	assert.Equal(t, "sam", client.events[0].ClosedBy)
	assert.Equal(t, models.RoleAgent, client.events[0].ClosedByRole)
	require.Len(t, agent.events, 2)
	assert.Equal(t, models.EventConversationClosed, agent.events[0].Type)
	assert.Equal(t, models.EventDashboardRefreshHint, agent.events[1].Type)
}

func TestCloseConversationInvalidID(t *testing.T) {
	handler := NewSupportHandler(new(mocks.MessageRepositoryMock), ws.NewHub(), nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 9, Role: models.RoleAgent})

	req := httptest.NewRequest(http.MethodPost, "/support/conversations/abc/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationMarksReadFirst(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewSupportHandler(messageRepo, ws.NewHub(), nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 9, Role: models.RoleAgent})

	markCall := messageRepo.On("MarkConversationRead", mock.Anything, 1).Return(nil).Once()
	messageRepo.On("ListConversation", mock.Anything, 1, true).Return([]models.Message{
		{ID: 1, OwnerID: 1, SenderRole: models.RoleClient, IsRead: true},
	}, nil).Once().NotBefore(markCall)

	req := httptest.NewRequest(http.MethodGet, "/support/conversations/1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestConversationStatusFromLatestRow(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewSupportHandler(messageRepo, ws.NewHub(), nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 9, Role: models.RoleAgent})

	messageRepo.On("LatestMessage", mock.Anything, 1).Return(models.Message{
		ID: 3, OwnerID: 1, SenderRole: models.RoleClient, Text: "hi", IsArchived: false,
	}, nil).Once()
	messageRepo.On("UnreadCount", mock.Anything, 1).Return(2, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/support/conversations/1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)

	var body struct {
		OwnerID     int            `json:"owner_id"`
		IsArchived  bool           `json:"is_archived"`
		LastMessage models.Message `json:"last_message"`
		UnreadCount int            `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.OwnerID)
	assert.False(t, body.IsArchived)
	assert.Equal(t, 3, body.LastMessage.ID)
	assert.Equal(t, 2, body.UnreadCount)
}

func TestConversationStatusEmptyIsNotFound(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewSupportHandler(messageRepo, ws.NewHub(), nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 9, Role: models.RoleAgent})

	messageRepo.On("LatestMessage", mock.Anything, 42).Return(models.Message{}, repositories.ErrConversationEmpty).Once()

	req := httptest.NewRequest(http.MethodGet, "/support/conversations/42/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertNotCalled(t, "UnreadCount", mock.Anything, mock.Anything)
}

func TestGetMyConversationHidesArchivedRows(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewSupportHandler(messageRepo, ws.NewHub(), nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 1, Role: models.RoleClient})

	messageRepo.On("ListConversation", mock.Anything, 1, false).Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/support/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestListConversations(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewSupportHandler(messageRepo, ws.NewHub(), nil)
	router := setupSupportRouter(handler, models.Principal{UserID: 9, Role: models.RoleAgent})

	messageRepo.On("ListConversationSummaries", mock.Anything).Return([]models.ConversationSummary{
		{OwnerID: 1, UnreadCount: 2},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/support/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}
