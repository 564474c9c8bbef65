// ABOUTME: Tests for APIClient against a stub Bot API server
// ABOUTME: Verifies request parameters and error classification without network access

package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	mu       sync.Mutex
	requests map[string][]map[string]string
	fail     map[string]string // method -> raw JSON error response
}

func newStubAPI(t *testing.T) (*stubAPI, *httptest.Server) {
	t.Helper()
	stub := &stubAPI{requests: make(map[string][]map[string]string), fail: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(srv.Close)
	return stub, srv
}

func (s *stubAPI) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	method := parts[len(parts)-1]
	_ = r.ParseForm()

	values := make(map[string]string)
	for k := range r.PostForm {
		values[k] = r.PostForm.Get(k)
	}

	s.mu.Lock()
	s.requests[method] = append(s.requests[method], values)
	failure := s.fail[method]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failure != "" {
		fmt.Fprint(w, failure)
		return
	}
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Shop","username":"shop_bot"}}`)
	case "sendMessage", "sendPhoto":
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":77,"date":0,"chat":{"id":5,"type":"private"}}}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (s *stubAPI) last(method string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := s.requests[method]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func dialStub(t *testing.T, srv *httptest.Server) *APIClient {
	t.Helper()
	c, err := Dial("123:abc", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	return c
}

func TestDial_AuthenticatesAndKnowsUsername(t *testing.T) {
	_, srv := newStubAPI(t)
	c := dialStub(t, srv)
	assert.Equal(t, "shop_bot", c.Username())
}

func TestDial_RejectsBadToken(t *testing.T) {
	stub, srv := newStubAPI(t)
	stub.fail["getMe"] = `{"ok":false,"error_code":401,"description":"Unauthorized"}`

	_, err := Dial("bad", srv.URL+"/bot%s/%s", srv.Client())
	assert.Error(t, err)
}

func TestDial_EmptyToken(t *testing.T) {
	_, err := Dial("", "", nil)
	assert.Error(t, err)
}

func TestAPIClient_SendText(t *testing.T) {
	stub, srv := newStubAPI(t)
	c := dialStub(t, srv)

	id, err := c.SendText(context.Background(), 5, "<b>hi</b>", Inline(Row(CallbackButton("Go", "go"))))
	require.NoError(t, err)
	assert.Equal(t, 77, id)

	req := stub.last("sendMessage")
	require.NotNil(t, req)
	assert.Equal(t, "5", req["chat_id"])
	assert.Equal(t, "HTML", req["parse_mode"])
	assert.Contains(t, req["reply_markup"], `"callback_data":"go"`)
}

func TestAPIClient_SendPhotoByURL(t *testing.T) {
	stub, srv := newStubAPI(t)
	c := dialStub(t, srv)

	_, err := c.SendPhoto(context.Background(), 5, "https://img.example/p.jpg", "caption", nil)
	require.NoError(t, err)

	req := stub.last("sendPhoto")
	require.NotNil(t, req)
	assert.Equal(t, "https://img.example/p.jpg", req["photo"])
	assert.Equal(t, "caption", req["caption"])
}

func TestAPIClient_SetWebhookSendsSecret(t *testing.T) {
	stub, srv := newStubAPI(t)
	c := dialStub(t, srv)

	require.NoError(t, c.SetWebhook(context.Background(), "https://shop.example/hook", "s3cret"))

	req := stub.last("setWebhook")
	require.NotNil(t, req)
	assert.Equal(t, "https://shop.example/hook", req["url"])
	assert.Equal(t, "s3cret", req["secret_token"])
}

func TestAPIClient_EditWithoutButtonsClearsKeyboard(t *testing.T) {
	stub, srv := newStubAPI(t)
	c := dialStub(t, srv)

	require.NoError(t, c.EditText(context.Background(), -100, 9, "done", nil))

	req := stub.last("editMessageText")
	require.NotNil(t, req)
	assert.Equal(t, `{"inline_keyboard":[]}`, req["reply_markup"])
}

func TestAPIClient_ForbiddenIsClassified(t *testing.T) {
	stub, srv := newStubAPI(t)
	c := dialStub(t, srv)
	stub.fail["sendMessage"] = `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`

	_, err := c.SendText(context.Background(), 5, "hi", nil)
	require.Error(t, err)
	assert.True(t, IsForbidden(err))
}

func TestAPIClient_CancelledContext(t *testing.T) {
	_, srv := newStubAPI(t)
	c := dialStub(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SendText(ctx, 5, "hi", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMarkup_ReplyKeyboardRequestsContact(t *testing.T) {
	m := ReplyKeyboard(Row(ContactButton("Share phone")))
	assert.NotNil(t, m.apiMarkup())
	assert.Nil(t, m.inlineMarkup())

	var nilMarkup *Markup
	assert.Nil(t, nilMarkup.apiMarkup())
}
