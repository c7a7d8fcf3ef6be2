package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-chat/internal/middleware"
	"social-chat/internal/mocks"
	"social-chat/internal/notify"
	"social-chat/internal/telemetry"
)

func setupDebugRouter(emitter *telemetry.AuditEmitter, publisher TopicPublisher, enabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, int64(1))
		c.Next()
	})
	RegisterDebugRoutes(r, emitter, publisher, enabled)
	return r
}

func TestDebugRoutesDisabled(t *testing.T) {
	router := setupDebugRouter(nil, nil, false)

	rec := serve(router, http.MethodGet, "/debug/audit-test", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugNotificationsPublishesTopic(t *testing.T) {
	publisher := new(mocks.TopicPublisherMock)
	router := setupDebugRouter(nil, publisher, true)

	publisher.On("PublishTopic", mock.Anything, []int64{2, 3}, notify.CategorySystem, mock.MatchedBy(func(p notify.Payload) bool {
		return p.Title == "Maintenance" && p.Subject == "m-1"
	})).Return(nil).Once()

	rec := serve(router, http.MethodPost, "/debug/notifications", `{"targets":[2,3],"title":"Maintenance","message":"tonight","subject":"m-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"sent","targets":2}`, rec.Body.String())
	publisher.AssertExpectations(t)
}

func TestDebugNotificationsValidation(t *testing.T) {
	publisher := new(mocks.TopicPublisherMock)
	router := setupDebugRouter(nil, publisher, true)

	rec := serve(router, http.MethodPost, "/debug/notifications", `{"targets":[],"title":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	publisher.On("PublishTopic", mock.Anything, []int64{2}, notify.CategorySystem, mock.Anything).Return(assert.AnError).Once()
	rec = serve(router, http.MethodPost, "/debug/notifications", `{"targets":[2],"title":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	publisher.AssertExpectations(t)
}

func TestDebugAuditTest(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(pub, "audit.chat", "social-chat", "test", nil)
	router := setupDebugRouter(emitter, nil, true)

	pub.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(nil).Once()

	rec := serve(router, http.MethodGet, "/debug/audit-test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pub.AssertExpectations(t)

	rec = serve(setupDebugRouter(nil, nil, true), http.MethodGet, "/debug/audit-test", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
