package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/moffermann/school-attendance/apps/api/echo"
	"github.com/moffermann/school-attendance/core"
	"github.com/moffermann/school-attendance/core/attendance"
	inmemdb "github.com/moffermann/school-attendance/storage/database/inmem"
	testutil "github.com/moffermann/school-attendance/tests"
)

type testEnv struct {
	app  *Server
	svc  *attendance.Service
	repo *inmemdb.EventRepository
	dir  *inmemdb.DirectoryRepository
}

func setup(t *testing.T) *testEnv {
	repo := inmemdb.NewEventRepository()
	dir := inmemdb.NewDirectoryRepository()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	logger := testutil.NewLogger(t)
	svc := attendance.NewService(repo, dir, conf, nil, validate, logger, conf)

	app := NewServer(
		ServerDeps{
			Conf:          conf,
			Logger:        logger,
			AttendanceSvc: svc,
			Validate:      validate,
			Translator:    translator,
		},
	)
	return &testEnv{app: app, svc: svc, repo: repo, dir: dir}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
