package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendfi/attendfi-api/internal/middleware"
	"github.com/attendfi/attendfi-api/internal/models"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
)

type sessionServiceMock struct {
	view    *models.SessionView
	err     error
	gotCode string
}

func (m *sessionServiceMock) SetSessionCode(ctx context.Context, eventID int64, index int, caller, code string) (*models.SessionView, error) {
	m.gotCode = code
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

type attendanceServiceMock struct {
	proof *models.Attendance
	err   error
}

func (m *attendanceServiceMock) Attend(ctx context.Context, eventID int64, index int, address, code string) (*models.Attendance, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.proof, nil
}

func sessionTestContext(t *testing.T, method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{AccountID: "acc-1", Address: "organizer", Role: models.RoleUser})
	return c, w
}

func TestSessionHandlerSetCode(t *testing.T) {
	code := "ABC123"
	mock := &sessionServiceMock{view: &models.SessionView{RevealedCode: &code}}
	handler := NewSessionHandler(mock, &attendanceServiceMock{})

	c, w := sessionTestContext(t, http.MethodPost, "/events/7/sessions/1/code", codeRequest{Code: "ABC123"})
	c.Params = gin.Params{{Key: "id", Value: "7"}, {Key: "index", Value: "1"}}

	handler.SetCode(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ABC123", mock.gotCode)
}

func TestSessionHandlerSetCodeInvalidEventID(t *testing.T) {
	handler := NewSessionHandler(&sessionServiceMock{}, &attendanceServiceMock{})

	c, w := sessionTestContext(t, http.MethodPost, "/events/abc/sessions/1/code", codeRequest{Code: "ABC123"})
	c.Params = gin.Params{{Key: "id", Value: "abc"}, {Key: "index", Value: "1"}}

	handler.SetCode(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandlerSetCodeMissingBody(t *testing.T) {
	handler := NewSessionHandler(&sessionServiceMock{}, &attendanceServiceMock{})

	c, w := sessionTestContext(t, http.MethodPost, "/events/7/sessions/1/code", nil)
	c.Params = gin.Params{{Key: "id", Value: "7"}, {Key: "index", Value: "1"}}

	handler.SetCode(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandlerAttendPropagatesServiceStatus(t *testing.T) {
	mock := &attendanceServiceMock{err: appErrors.ErrCodeMismatch}
	handler := NewSessionHandler(&sessionServiceMock{}, mock)

	c, w := sessionTestContext(t, http.MethodPost, "/events/7/sessions/0/attend", codeRequest{Code: "WRONG1"})
	c.Params = gin.Params{{Key: "id", Value: "7"}, {Key: "index", Value: "0"}}

	handler.Attend(c)
	assert.Equal(t, appErrors.ErrCodeMismatch.Status, w.Code)
}

func TestSessionHandlerAttendCreated(t *testing.T) {
	mock := &attendanceServiceMock{proof: &models.Attendance{EventID: 7, SessionIndex: 0, Address: "organizer", RewardAmount: 16666}}
	handler := NewSessionHandler(&sessionServiceMock{}, mock)

	c, w := sessionTestContext(t, http.MethodPost, "/events/7/sessions/0/attend", codeRequest{Code: "ABC123"})
	c.Params = gin.Params{{Key: "id", Value: "7"}, {Key: "index", Value: "0"}}

	handler.Attend(c)
	require.Equal(t, http.StatusCreated, w.Code)
}
