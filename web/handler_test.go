package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/orcohen/crypto-logs/auth"
	"github.com/orcohen/crypto-logs/domain"
	"github.com/orcohen/crypto-logs/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakePipeline struct {
	transactions []domain.Transaction
	logs         []domain.StoredTransaction
	lastWallet   string
}

func (f *FakePipeline) Refresh(_ context.Context, wallet string) ([]domain.Transaction, error) {
	f.lastWallet = wallet
	return f.transactions, nil
}

func (f *FakePipeline) RecentLogs(_ context.Context) ([]domain.StoredTransaction, error) {
	return f.logs, nil
}

type FakeCredentials struct{}

func (f *FakeCredentials) Authenticate(username, password string) (auth.User, bool) {
	if username == "alice" && password == "secret" {
		return auth.User{Password: password, Wallet: "0xaaa"}, true
	}
	return auth.User{}, false
}

func newTestHandler(t *testing.T, pipeline *FakePipeline) (*Handler, *session.Store) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "web_handler_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	sessions, err := session.NewStore(tempDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	handler, err := NewHandler(pipeline, &FakeCredentials{}, sessions)
	require.NoError(t, err)
	return handler, sessions
}

func TestHandler_Home(t *testing.T) {
	handler, _ := newTestHandler(t, &FakePipeline{})

	recorder := httptest.NewRecorder()
	handler.Home(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "home-page")
}

func TestHandler_Login_rendersForm(t *testing.T) {
	handler, _ := newTestHandler(t, &FakePipeline{})

	recorder := httptest.NewRecorder()
	handler.Login(recorder, httptest.NewRequest(http.MethodGet, "/login", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "form")
}

func TestHandler_Login_givenValidCredentials_thenSessionAndRedirect(t *testing.T) {
	handler, sessions := newTestHandler(t, &FakePipeline{})

	form := url.Values{"username": {"alice"}, "password": {"secret"}}
	request := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	handler.Login(recorder, request)

	require.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/dashboard", recorder.Header().Get("Location"))

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)

	stored, err := sessions.Get(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, "0xaaa", stored.Wallet)
}

func TestHandler_Login_givenInvalidCredentials_thenPlainFailure(t *testing.T) {
	handler, _ := newTestHandler(t, &FakePipeline{})

	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	request := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	handler.Login(recorder, request)

	// no redirect, no cookie, just the failure message
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Login failed")
	assert.Empty(t, recorder.Result().Cookies())
}

func TestHandler_Dashboard_withoutSession_redirectsToLogin(t *testing.T) {
	handler, _ := newTestHandler(t, &FakePipeline{})

	recorder := httptest.NewRecorder()
	handler.Dashboard(recorder, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	require.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/login", recorder.Header().Get("Location"))
}

func TestHandler_Dashboard_withSession_rendersTransactions(t *testing.T) {
	pipeline := &FakePipeline{transactions: []domain.Transaction{
		{Hash: "0xtx1", To: "0xaaa", TimeStamp: "1700000000", Value: "1000000000000000000"},
	}}
	handler, sessions := newTestHandler(t, pipeline)

	id, err := sessions.Create("alice", "0xaaa")
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	request.AddCookie(&http.Cookie{Name: sessionCookie, Value: id})
	recorder := httptest.NewRecorder()
	handler.Dashboard(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "0xaaa", pipeline.lastWallet)
	assert.Contains(t, recorder.Body.String(), "0xtx1")
	assert.Contains(t, recorder.Body.String(), "2023-11-14")
}

func TestHandler_Reg_postRedirectsWithoutPersisting(t *testing.T) {
	handler, _ := newTestHandler(t, &FakePipeline{})

	request := httptest.NewRequest(http.MethodPost, "/reg", strings.NewReader("username=new"))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	handler.Reg(recorder, request)

	require.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/dashboard", recorder.Header().Get("Location"))
}

func TestHandler_Logs_isUnauthenticated(t *testing.T) {
	pipeline := &FakePipeline{logs: []domain.StoredTransaction{
		{Id: "a", Transaction: domain.Transaction{Hash: "0xstored", To: "0xW1", TimeStamp: "100"}},
	}}
	handler, _ := newTestHandler(t, pipeline)

	// no session cookie on purpose; the logs page is a cross-tenant read
	recorder := httptest.NewRecorder()
	handler.Logs(recorder, httptest.NewRequest(http.MethodGet, "/logs", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "0xstored")
}

func TestDatetimeFormat(t *testing.T) {
	assert.Equal(t, "2023-11-14 22:13:20", datetimeFormat("1700000000"))
	assert.Equal(t, "not-a-number", datetimeFormat("not-a-number"))
}
