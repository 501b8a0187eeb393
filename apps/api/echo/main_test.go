package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/activity"
	"github.com/toure-cloud/institutdeveloppement/core/content"
	"github.com/toure-cloud/institutdeveloppement/core/convocation"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/mailing"
	"github.com/toure-cloud/institutdeveloppement/core/user"
	appfs "github.com/toure-cloud/institutdeveloppement/fs"
	emailsvc "github.com/toure-cloud/institutdeveloppement/services/email"
	logsvc "github.com/toure-cloud/institutdeveloppement/services/logger"
	metricsvc "github.com/toure-cloud/institutdeveloppement/services/metrics"
	ratelimitsvc "github.com/toure-cloud/institutdeveloppement/services/ratelimit"
	storagesvc "github.com/toure-cloud/institutdeveloppement/services/storage"
	inmemdb "github.com/toure-cloud/institutdeveloppement/storage/database/inmem"
	testutil "github.com/toure-cloud/institutdeveloppement/tests"
)

var (
	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	pdfData = []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type testApp struct {
	conf      *core.Config
	server    *Server
	usrRepo   user.Repository
	enrRepo   enrollment.Repository
	schedRepo convocation.Repository
	mailSvc   *emailsvc.ConsoleServiceMock
	limiters  *ratelimitsvc.Limiters
}

func testConfig(t *testing.T) *core.Config {
	return &core.Config{
		AppName:         "Institut",
		Env:             "TEST",
		TestMode:        true,
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
		TimeZone:        "UTC",
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
		Media: core.MediaConfig{Root: t.TempDir(), URL: "/media/", MaxUploadSize: 5 << 20},
		RateLimit: core.RateLimitConfig{
			Login:         100,
			Register:      100,
			PasswordReset: 100,
			Window:        time.Minute,
		},
	}
}

func setup(t *testing.T) *testApp {
	conf := testConfig(t)
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, true, logger)

	db := inmemdb.Open()
	tx := inmemdb.NewTransactor()
	usrRepo := inmemdb.NewUserRepository(db)
	enrRepo := inmemdb.NewEnrollmentRepository(db)
	schedRepo := inmemdb.NewScheduleRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	storage := storagesvc.NewLocalStorage(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	enrSvc := enrollment.NewService(enrRepo, usrSvc, tx, storage, mailSvc, convocation.NewSheetRenderer(conf.AppName), logger, conf)
	actSvc := activity.NewService(inmemdb.NewActivityRepository(db), tx, storage, logger)
	limiters := ratelimitsvc.NewLimiters(nil, conf)

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Storage:        storage,
		UserSvc:        usrSvc,
		EnrollmentSvc:  enrSvc,
		ActivitySvc:    actSvc,
		ContentSvc:     content.NewService(inmemdb.NewContentRepository(db), tx, storage, actSvc, enrSvc),
		ConvocationSvc: convocation.NewService(schedRepo, enrSvc),
		MailingSvc:     mailing.NewService(enrSvc, mailSvc, logger, conf),
		Limiters:       limiters,
		Metrics:        metricsvc.New(prometheus.NewRegistry()),
		DisableReqLogs: true,
	})

	return &testApp{
		conf:      conf,
		server:    server,
		usrRepo:   usrRepo,
		enrRepo:   enrRepo,
		schedRepo: schedRepo,
		mailSvc:   mailSvc,
		limiters:  limiters,
	}
}

func (ta *testApp) token(t *testing.T, usr user.User) string {
	token, err := ta.server.auth.generateToken(ta.server.auth.claims(usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (ta *testApp) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ta.server.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) createAdmin(t *testing.T, uname string, owner bool) user.User {
	roles := []string{user.RoleAdmin}
	if owner {
		roles = append(roles, user.RoleAdminOwner)
	}
	return testutil.CreateUser(t, ta.usrRepo, "", uname, uname+"@institut.ci", "Pwd.12345", roles, true)
}

// createCandidate stores a candidate account with a pending enrollment.
func (ta *testApp) createCandidate(t *testing.T, lastName, firstName, seed, formation string) (user.User, enrollment.Enrollment) {
	usr := testutil.CreateUser(t, ta.usrRepo, firstName+" "+lastName, "", seed+"@test.ci", "Pwd.12345", []string{user.RoleCandidate}, true)
	e := testutil.NewEnrollment(usr.ID, lastName, firstName, seed, formation)
	e.Status = enrollment.StatusPending
	return usr, testutil.CreateEnrollment(t, ta.enrRepo, e)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	return newAuthRequest(method, path, "", data...)
}

type formFileData struct {
	field, name string
	content     []byte
}

func newMultipartRequest(t *testing.T, method, path, token string, fields map[string][]string, files ...formFileData) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			if err := w.WriteField(name, v); err != nil {
				t.Fatalf("newMultipartRequest() failed: %v", err)
			}
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
		if _, err = fw.Write(f.content); err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newMultipartRequest() failed: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
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

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
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

func runHTTPTests(t *testing.T, ta *testApp, tests []httpTest) {
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.serve(newAuthRequest(tt.method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}
