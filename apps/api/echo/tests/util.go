package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/hagwon/apps/api/echo"
	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/intake"
	"github.com/trezcool/hagwon/core/schedule"
	"github.com/trezcool/hagwon/core/student"
	"github.com/trezcool/hagwon/core/user"
	"github.com/trezcool/hagwon/services/email"
	"github.com/trezcool/hagwon/storage/database/dummy"
	"github.com/trezcool/hagwon/tests"
)

var (
	usrRepo   user.Repository
	stdRepo   student.Repository
	schedRepo schedule.Repository
	appRepo   intake.Repository
	extractor *extractorStub

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func setup(t *testing.T) *Server {
	conf := testutil.Conf()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo = dummydb.NewUserRepository(db)
	stdRepo = dummydb.NewStudentRepository(db)
	schedRepo = dummydb.NewScheduleRepository(db)
	appRepo = dummydb.NewApplicationRepository(db)

	// set up validation
	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	intake.InitValidators(validate, translator)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	stdSvc := student.NewServiceMock(stdRepo)
	schedSvc := schedule.NewService(schedRepo)
	extractor = new(extractorStub)
	intakeSvc := intake.NewService(appRepo, extractor, stdSvc)

	// set up server
	return NewServer(ServerDeps{
		Conf:           conf,
		Logger:         testutil.Logger,
		UserSvc:        usrSvc,
		StudentSvc:     stdSvc,
		ScheduleSvc:    schedSvc,
		IntakeSvc:      intakeSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// extractorStub stands in for the vision service.
type extractorStub struct {
	fields  intake.ExtractedFields
	rawText string
	err     error
}

func (x *extractorStub) ExtractApplication(_ context.Context, _ []byte, _ string) (intake.ExtractedFields, string, error) {
	if x.err != nil {
		return intake.ExtractedFields{}, "", x.err
	}
	return x.fields, x.rawText, nil
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
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
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
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
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
