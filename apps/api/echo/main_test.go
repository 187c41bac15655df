package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/carosello75/courseconnect/apps/api/echo"
	"github.com/carosello75/courseconnect/core/user"
	"github.com/carosello75/courseconnect/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name       string
	method     string
	path       string
	body       []byte
	token      string
	wantCode   int
	wantData   []byte
	wantFields []string // keys of a per-field error body
}

func newServer(t *testing.T, opts ...testutil.Option) (*echoapi.Server, *testutil.Env) {
	t.Helper()

	env := testutil.NewEnv(t, opts...)
	srv := echoapi.NewServer(echoapi.Options{
		Conf:          env.Conf,
		Logger:        env.Logger,
		Validate:      env.Validate,
		Translator:    env.Translator,
		UserSvc:       env.Users,
		Courses:       env.Courses,
		Enrollments:   env.Enrollments,
		Access:        env.Access,
		Progress:      env.Tracker,
		Notifications: env.Dispatcher,
	})
	return srv, env
}

func do(srv *echoapi.Server, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, env *testutil.Env, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(env.Conf, echoapi.GetUserClaims(env.Conf, usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshall(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func runHTTPTests(t *testing.T, srv *echoapi.Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := do(srv, method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v (body %s)", rec.Code, wantCode, rec.Body.String())
	}
	if tt.wantFields != nil {
		var fldErrs map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
			t.Errorf("failed! body %s is not a field error map; err %v", rec.Body.String(), err)
		}
		for _, fld := range tt.wantFields {
			if fldErrs[fld] == "" {
				t.Errorf("failed! no error for field %q in %s", fld, rec.Body.String())
			}
		}
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
