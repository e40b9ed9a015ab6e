package echodash

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/attendly/core/attendance"
	"github.com/trezcool/attendly/core/device"
	camerasvc "github.com/trezcool/attendly/services/camera"
	notifysvc "github.com/trezcool/attendly/services/notify"
	inmemprefs "github.com/trezcool/attendly/storage/prefs/inmem"
	"github.com/trezcool/attendly/storage/remote"
	"github.com/trezcool/attendly/tests"
)

var (
	alice = attendance.User{ID: 1, Name: "Alice", Email: "alice@acme.io", OrganizationID: 1}
	bob   = attendance.User{ID: 2, Name: "Bob", Email: "bob@acme.io", OrganizationID: 1}
)

func setup(t *testing.T) (*Server, *testutil.Backend, string) {
	token := testutil.Token(t, 9, attendance.RoleSupervisor)
	backend := testutil.NewBackend(t, token)
	backend.AddUsers(alice, bob)
	backend.AddSession(testutil.Session(7, "Morning standup", attendance.Record{UserID: 1, Name: "Alice"}))

	conf := backend.Config()
	conf.Backend.Token = "" // the operator's cookie must be forwarded
	client := remote.NewClient(conf, nil)

	notes := notifysvc.NewBuffer(0)
	selector := device.NewSelector(device.Options{
		Source:   camerasvc.NewStaticSource([]string{"/dev/video0=Integrated Webcam", "USB Camera"}),
		Prefs:    inmemprefs.NewStore(),
		Notifier: notes,
	})
	require.NoError(t, selector.Refresh(context.Background()))

	srv := NewServer(&Options{
		DisableReqLogs: true,
		TestMode:       true,
		Repo:           client,
		Recognizer:     client,
		Selector:       selector,
		CameraNotes:    notes,
	})
	t.Cleanup(srv.hubs.closeAll)
	return srv, backend, token
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     string
	token    string
	wantCode int
	wantData string
}

func newRequest(method, path, token string, body ...string) (*http.Request, *httptest.ResponseRecorder) {
	var buf bytes.Buffer
	if len(body) > 0 {
		buf.WriteString(body[0])
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: tokenCookie, Value: token})
	}
	return req, httptest.NewRecorder()
}

func serve(srv *Server, method, path, token string, body ...string) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, token, body...)
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data), rec.Body.String())
	return data
}

// names lists the "name" of every user in data[key].
func names(data map[string]interface{}, key string) []string {
	list, _ := data[key].([]interface{})
	res := make([]string, 0, len(list))
	for _, item := range list {
		if usr, ok := item.(map[string]interface{}); ok {
			res = append(res, usr["name"].(string))
		}
	}
	return res
}

func runTests(t *testing.T, srv *Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantData != "" {
				require.JSONEq(t, tt.wantData, rec.Body.String())
			}
		})
	}
}

// hasHub reports whether the server keeps a hub for the session.
func hasHub(srv *Server, sessionID int) bool {
	_, ok, _ := srv.hubs.lookup(sessionID)
	return ok
}
