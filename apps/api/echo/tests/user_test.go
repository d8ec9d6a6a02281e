package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/trezcool/hagwon/apps/api/echo"
	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/user"
	emailsvc "github.com/trezcool/hagwon/services/email"
	testutil "github.com/trezcool/hagwon/tests"
)

func Test_userApi_userLogin(t *testing.T) {
	app := setup(t)

	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "LolC@t123", user.RoleStaff, false, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.kr", "LolC@t123", user.RoleStaff, false, false) // 😂

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.LoginRequest{Username: reqMsg, Password: reqMsg}),
		},
		{
			name: "unknown user", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ghost", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: staff.Username, Password: "nope1234"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user not allowed", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "login with username", wantCode: http.StatusOK,
			body: marchallObj(t, echoapi.LoginRequest{Username: staff.Username, Password: "LolC@t123"}),
		},
		{
			name: "login with email", wantCode: http.StatusOK,
			body: marchallObj(t, echoapi.LoginRequest{Username: staff.Email, Password: "LolC@t123"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess the token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	app := setup(t)

	path := func(search, ordering, role string, createdFrom, createdTo time.Time, isActive *bool) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if role != "" {
			v.Add("role", role)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	t1 := now.Add(1 * time.Hour)
	t2 := now.Add(2 * time.Hour)
	t3 := now.Add(3 * time.Hour)
	t4 := now.Add(4 * time.Hour)
	t5 := now.Add(5 * time.Hour)

	usr1 := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.kr", "", "", false, true, t1)
	usr2 := testutil.CreateUser(t, usrRepo, "King", "user02", "king@test.kr", "", "", false, true)
	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.kr", "", user.RoleStaff, false, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", user.RoleAdmin, true, true, t2.Truncate(time.Second))
	manager := testutil.CreateUser(t, usrRepo, "Manager", "manager", "manager@test.kr", "", user.RoleAdmin, true, true)
	clerk := testutil.CreateUser(t, usrRepo, "Clerk", "clerk", "clerk@test.kr", "", user.RoleStaff, true, true, t3)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.kr", "", user.RoleStaff, false, false) // 😂

	adminToken := getToken(t, admin)
	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, staff), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/v1/users", token: adminToken,
			wantData: marchallList(t, usr1, usr2, staff, admin, manager, clerk, naughty),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", "", "", time.Time{}, time.Time{}, nil), token: adminToken, wantData: empty},
		{
			name: "search=USE", path: path("USE", "", "", time.Time{}, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, usr1, staff, usr2),
		},
		{name: "role (unknown)", path: path("", "", "lol", time.Time{}, time.Time{}, nil), token: adminToken, wantData: empty},
		{
			name: "role=admin", path: path("", "", user.RoleAdmin, time.Time{}, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, admin, manager),
		},
		{
			name: "role=staff", path: path("", "", user.RoleStaff, time.Time{}, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, staff, clerk, naughty),
		},
		{
			name: "is_active=true", path: path("", "", "", time.Time{}, time.Time{}, bPtr(true)),
			token: adminToken, wantData: marchallList(t, usr1, usr2, staff, admin, manager, clerk),
		},
		{name: "is_active=false", path: path("", "", "", time.Time{}, time.Time{}, bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "created_from (UTC)", path: path("", "", "", t1.UTC(), time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, usr1, admin, clerk),
		},
		{
			name: "created_from (curr TZ)", path: path("", "", "", t1, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, usr1, admin, clerk),
		},
		{
			name: "created_to (curr TZ)", path: path("", "", "", time.Time{}, t2, nil),
			token: adminToken, wantData: marchallList(t, usr1, usr2, staff, admin, manager, naughty),
		},
		{name: "created_from - created_to (empty)", path: path("", "", "", t4, t5, nil), token: adminToken, wantData: empty},
		{name: "created_from - created_to (found)", path: path("", "", "", t1, t2, nil), token: adminToken, wantData: marchallList(t, usr1, admin)},
		{name: "all combo (empty)", path: path("USE", "", user.RoleAdmin, t1, t5, bPtr(true)), token: adminToken, wantData: empty},
		{
			name: "all combo (found)", path: path("cle", "", user.RoleStaff, t1, t5, bPtr(true)),
			token: adminToken, wantData: marchallList(t, clerk),
		},
		// ordering
		{
			name: "order by created_at", path: path("", "created_at", "", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, usr2, staff, manager, naughty, usr1, admin, clerk),
		},
		{
			name: "order by -created_at", path: path("", "-created_at", "", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, clerk, admin, usr1, naughty, manager, staff, usr2),
		},
		{
			name: "order by name", path: path("", "name", "", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, admin, clerk, staff, usr2, manager, naughty, usr1),
		},
		{
			name: "order by -username", path: path("", "-username", "", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, usr2, naughty, manager, staff, clerk, usr1, admin),
		},
		// filtering & ordering
		{
			name: "filtering & ordering", path: path("", "name", user.RoleStaff, time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, clerk, staff, naughty),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userCreate(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", user.RoleAdmin, true, true)
	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)
	adminToken := getToken(t, admin)

	reqMsg := "this field is required"
	oneOfMsg := "one of username or email is required"
	dupMsg := "a user with this username or email already exists"

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, staff), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             reqMsg,
				"username":         oneOfMsg,
				"email":            oneOfMsg,
				"password":         "password must contain at least 8 characters",
				"password_confirm": reqMsg,
			}),
		},
		{
			name: "username too short", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Name: "New Guy", Username: "ab", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, map[string]string{"username": "username must be at least 4 characters in length"}),
		},
		{
			name: "invalid email", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Name: "New Guy", Email: "lol", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "invalid role", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Name: "New Guy", Username: "newguy", Password: "LolC@t123", PasswordConfirm: "LolC@t123", Role: "lol"}),
			wantData: marchallObj(t, map[string]string{"role": "invalid role"}),
		},
		{
			name: "PasswordConfirm must = Password", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Name: "New Guy", Username: "newguy", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "duplicate username or email", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Name: "Fake Hero", Username: "hero", Email: "new@test.kr", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, map[string]string{"username": dupMsg, "email": dupMsg}),
		},
		{
			name: "user created", token: adminToken, wantCode: http.StatusCreated,
			body: marchallObj(t, user.NewUser{Name: "New Guy", Username: "newguy", Email: "newguy@test.kr", Password: "LolC@t123", PasswordConfirm: "LolC@t123", CanModify: true}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/register"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages = nil // reset

			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.ID == "" {
					t.Error("failed! empty user ID")
				}
				if respData.Username != "newguy" {
					t.Errorf("failed! username = %v; want newguy", respData.Username)
				}
				if respData.Role != user.RoleStaff {
					t.Errorf("failed! role = %v; want %v", respData.Role, user.RoleStaff)
				}
				if !respData.CanModify {
					t.Error("failed! canModify = false; want true")
				}
				if !respData.Active() {
					t.Error("failed! new user is not active")
				}

				// a welcome email is sent
				if len(emailsvc.SentMessages) != 1 {
					t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
				}
				msg := emailsvc.SentMessages[0]
				wantTo := mail.Address{Name: "New Guy", Address: "newguy@test.kr"}
				if msg.To[0] != wantTo {
					t.Errorf("failed! To = %v; want %v", msg.To[0], wantTo)
				}
				if !strings.Contains(msg.TextContent, respData.Username) {
					t.Errorf("failed! text content does not contain the username %q", respData.Username)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userRetrieve(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", user.RoleAdmin, true, true)
	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)
	king := testutil.CreateUser(t, usrRepo, "King", "king", "king@test.kr", "", user.RoleStaff, false, true)

	notFound := marchallObj(t, httpErr{Error: "not found"})
	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/" + staff.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Others not found (non-admin)", path: "/v1/users/" + king.ID, token: getToken(t, staff),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "Unknown user (admin)", path: "/v1/users/deadbeef-0000-4000-8000-000000000000", token: getToken(t, admin),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{name: "Owner can get self", path: "/v1/users/" + staff.ID, token: getToken(t, staff), wantData: marchallObj(t, staff)},
		{name: "Admin can get any", path: "/v1/users/" + king.ID, token: getToken(t, admin), wantData: marchallObj(t, king)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userUpdate(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", user.RoleAdmin, true, true)
	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)
	king := testutil.CreateUser(t, usrRepo, "King", "king", "king@test.kr", "", user.RoleStaff, false, true)

	adminToken := getToken(t, admin)
	staffToken := getToken(t, staff)
	bPtr := func(b bool) *bool { return &b }
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	dupMsg := "a user with this username or email already exists"

	type extraTest struct {
		wantName      string
		wantRole      string
		wantCanModify bool
		wantInactive  bool
		newPassword   string
	}
	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/users/" + staff.ID, wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Others not found (non-admin)", path: "/v1/users/" + king.ID, token: staffToken,
			body: marchallObj(t, user.UpdateUser{Name: "Pawn"}), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "is_active is admin-only", path: "/v1/users/" + staff.ID, token: staffToken,
			body: marchallObj(t, user.UpdateUser{IsActive: bPtr(false)}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "role is admin-only", path: "/v1/users/" + staff.ID, token: staffToken,
			body: marchallObj(t, user.UpdateUser{Role: user.RoleAdmin}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "username is admin-only", path: "/v1/users/" + staff.ID, token: staffToken,
			body: marchallObj(t, user.UpdateUser{Username: "conan"}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "invalid role", path: "/v1/users/" + staff.ID, token: adminToken,
			body: marchallObj(t, user.UpdateUser{Role: "lol"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "invalid role"}),
		},
		{
			name: "duplicate username", path: "/v1/users/" + staff.ID, token: adminToken,
			body: marchallObj(t, user.UpdateUser{Username: "king"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": dupMsg, "email": dupMsg}),
		},
		{
			name: "PasswordConfirm must = Password", path: "/v1/users/" + staff.ID, token: adminToken,
			body:     marchallObj(t, user.UpdateUser{Password: "NewC@t123", PasswordConfirm: "lol"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "owner can update own name", path: "/v1/users/" + staff.ID, token: staffToken,
			body: marchallObj(t, user.UpdateUser{Name: "Conan"}), wantCode: http.StatusOK,
			extra: extraTest{wantName: "Conan", wantRole: user.RoleStaff},
		},
		{
			name: "admin can promote", path: "/v1/users/" + king.ID, token: adminToken,
			body:     marchallObj(t, user.UpdateUser{Role: user.RoleAdmin, CanModify: bPtr(true), IsActive: bPtr(false)}),
			wantCode: http.StatusOK,
			extra:    extraTest{wantName: "King", wantRole: user.RoleAdmin, wantCanModify: true, wantInactive: true},
		},
		{
			name: "password updated", path: "/v1/users/" + staff.ID, token: adminToken,
			body:     marchallObj(t, user.UpdateUser{Password: "NewC@t123", PasswordConfirm: "NewC@t123"}),
			wantCode: http.StatusOK,
			extra:    extraTest{wantName: "Conan", wantRole: user.RoleStaff, newPassword: "NewC@t123"},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if extra, ok := tt.extra.(extraTest); ok {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Name != extra.wantName {
					t.Errorf("failed! name = %v; want %v", respData.Name, extra.wantName)
				}
				if respData.Role != extra.wantRole {
					t.Errorf("failed! role = %v; want %v", respData.Role, extra.wantRole)
				}
				if respData.CanModify != extra.wantCanModify {
					t.Errorf("failed! canModify = %v; want %v", respData.CanModify, extra.wantCanModify)
				}
				if respData.Active() == extra.wantInactive {
					t.Errorf("failed! isActive = %v; want %v", respData.Active(), !extra.wantInactive)
				}
				if extra.newPassword != "" {
					refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: respData.ID})
					if err != nil {
						t.Fatalf("GetUser() failed, %v", err)
					}
					if err := refreshed.CheckPassword(extra.newPassword); err != nil {
						t.Error("failed to update new password")
					}
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userDestroy(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", user.RoleAdmin, true, true)
	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)
	king := testutil.CreateUser(t, usrRepo, "King", "king", "king@test.kr", "", user.RoleStaff, false, true)

	adminToken := getToken(t, admin)
	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/" + staff.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users/" + staff.ID, token: getToken(t, staff),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Unknown user", path: "/v1/users/deadbeef-0000-4000-8000-000000000000", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Cannot delete self", path: "/v1/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "User deleted", path: "/v1/users/" + king.ID, token: adminToken, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		tt.method = http.MethodDelete

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusNoContent {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				if _, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: king.ID}); err != user.ErrNotFound {
					t.Errorf("failed! user still exists; err %v", err)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userDestroyMultiple(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", user.RoleAdmin, true, true)
	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)
	king := testutil.CreateUser(t, usrRepo, "King", "king", "king@test.kr", "", user.RoleStaff, false, true)

	path := func(ids ...string) string {
		v := make(url.Values)
		for _, id := range ids {
			v.Add("id", id)
		}
		return "/v1/users?" + v.Encode()
	}

	adminToken := getToken(t, admin)
	tests := []httpTest{
		{name: "Auth required", path: path(staff.ID), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: path(staff.ID), token: getToken(t, staff),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Cannot delete self", path: path(staff.ID, admin.ID), token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "No ids", path: "/v1/users", token: adminToken, wantCode: http.StatusNoContent},
		{name: "Users deleted", path: path(staff.ID, king.ID), token: adminToken, wantCode: http.StatusNoContent, extra: true},
	}
	for _, tt := range tests {
		tt.method = http.MethodDelete

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusNoContent {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				if deleted, ok := tt.extra.(bool); ok && deleted {
					for _, id := range []string{staff.ID, king.ID} {
						if _, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: id}); err != user.ErrNotFound {
							t.Errorf("failed! user %s still exists; err %v", id, err)
						}
					}
					if _, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: admin.ID}); err != nil {
						t.Errorf("failed! admin was deleted; err %v", err)
					}
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQueryRoles(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.kr", "", user.RoleAdmin, true, true)
	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, staff), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all roles", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/users/roles"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userRefreshToken(t *testing.T) {
	app := setup(t)

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.kr", "", user.RoleStaff, false, false) // 😂
	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    "Hagwon",
			Subject:   staff.ID,
			Audience:  "Hagwon",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Username:     staff.Username,
		Email:        staff.Email,
		IsAdmin:      staff.IsAdmin(),
		CanModify:    staff.CanEdit(),
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, staff), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userResetPassword(t *testing.T) {
	app := setup(t)

	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "", user.RoleStaff, false, true)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	pathRegex, err := regexp.Compile(`/password-reset\?uid=.+&(amp;)?token=.+`)
	if err != nil {
		t.Fatalf("regexp.Compile(): %v", err)
	}

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "know email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: staff.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: staff.Name, Address: staff.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages = nil // reset

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				if extra.emailSent {
					if len(emailsvc.SentMessages) != 1 {
						t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
					}
					msg := emailsvc.SentMessages[0]
					if msg.To[0] != extra.to {
						t.Errorf("failed! To = %v; want %v", msg.To[0], extra.to)
					}
					if !strings.Contains(msg.TextContent, staff.Username) {
						t.Errorf("failed! text content does not contain recipient's username %q", staff.Username)
					}
					if !strings.Contains(msg.HTMLContent, staff.Username) {
						t.Errorf("failed! HTML content does not contain recipient's username %q", staff.Username)
					}
					if !pathRegex.MatchString(msg.TextContent) {
						t.Errorf("failed! text content does not match pathRegex %v", pathRegex)
					}
					if !pathRegex.MatchString(msg.HTMLContent) {
						t.Errorf("failed! HTML content does not match pathRegex %v", pathRegex)
					}
				} else {
					if len(emailsvc.SentMessages) > 0 {
						t.Errorf("failed! len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
					}
				}
			}
		})
	}
}

func Test_userApi_userConfirmPasswordReset(t *testing.T) {
	app := setup(t)

	staff := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.kr", "lol", user.RoleStaff, false, true)
	validUID := user.EncodeUID(staff)
	validToken := user.MakeToken(staff)

	// generate an expired token
	dayLate := core.Conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	user.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := user.MakeToken(staff)
	user.NowFunc = time.Now // reset

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: "password must contain at least 8 characters", PasswordConfirm: reqMsg}),
		},
		{
			name: "invalid pwd: min len", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: no whitespace", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "l o loll", PasswordConfirm: "l o loll"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must not contain whitespace"}),
		},
		{
			name: "invalid pwd: not all numeric", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "12345678", PasswordConfirm: "12345678"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password cannot be entirely numeric"}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "invalid pwd: too common", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "P@$$w0rd", PasswordConfirm: "P@$$w0rd"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password is too common"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "bG9s", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{UID: "invalid value"}),
		},
		{
			name: "user not found", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "OTk5", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{UID: "invalid value"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid value"}),
		},
		{
			name: "expired token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: expiredToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid value"}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: staff.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, staff.PasswordHash) {
					t.Fatalf("failed to update new password")
				}
			}
		})
	}
}
