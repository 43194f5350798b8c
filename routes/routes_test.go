package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"library_backend/app"
	"library_backend/config"
	"library_backend/db/dbtest"
	"library_backend/logging"
	"library_backend/models"
	"library_backend/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t     *testing.T
	app   *app.App
	mr    *miniredis.Miniredis
	clock time.Time
}

func newTestServer(t *testing.T, edit ...func(*config.Config)) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Config{
		SessionTTL:       time.Hour,
		RequestTimeout:   5 * time.Second,
		LoginMaxAttempts: 20,
		LoginWindow:      time.Minute,
		Loans:            config.DefaultLoanPolicy(),
	}
	for _, fn := range edit {
		fn(&cfg)
	}
	a := app.New(cfg, dbtest.Open(t), rdb, logging.Discard())
	a.Identity.WithHashCost(bcrypt.MinCost)
	ts := &testServer{t: t, app: a, mr: mr, clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	a.Loans.Now = func() time.Time { return ts.clock }
	RegisterRoutes(a.Router, a)
	return ts
}

func (ts *testServer) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(ts.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.app.Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireEnvelope(t *testing.T, rec *httptest.ResponseRecorder, status int, success bool, msg string) map[string]any {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, success, body["success"])
	if msg != "" {
		assert.Equal(t, msg, body["message"])
	}
	return body
}

func (ts *testServer) register(username, email string, role models.Role) {
	ts.t.Helper()
	_, err := ts.app.Identity.Register(context.Background(), service.Registration{
		Username: username, Password: "secret1", FullName: username + " Full", Email: email, Role: role,
	})
	require.NoError(ts.t, err)
}

func (ts *testServer) login(username, password string) *http.Cookie {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/login", map[string]string{"username": username, "password": password}, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == app.AppSessionCookie {
			return ck
		}
	}
	ts.t.Fatalf("no session cookie in login response")
	return nil
}

// adminAndStudent seeds admin (user 1) and alice (user 2) and logs both in.
func (ts *testServer) adminAndStudent() (admin, student *http.Cookie) {
	ts.register("admin", "admin@lib.io", models.RoleAdmin)
	ts.register("alice", "alice@lib.io", models.RoleStudent)
	return ts.login("admin", "secret1"), ts.login("alice", "secret1")
}

func (ts *testServer) addBook(admin *http.Cookie, isbn string, copies int) uint {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/books", map[string]any{
		"title": "Book " + isbn, "author": "Y", "isbn": isbn, "publisher": "P",
		"publicationYear": 2020, "category": "C", "totalCopies": copies,
	}, admin)
	body := requireEnvelope(ts.t, rec, http.StatusOK, true, "Book added successfully")
	return uint(body["bookId"].(float64))
}

func (ts *testServer) book(id uint) map[string]any {
	ts.t.Helper()
	rec := ts.do(http.MethodGet, fmt.Sprintf("/api/books/%d", id), nil, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(ts.t, rec)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/register", map[string]string{
		"username": "alice", "password": "secret1", "fullName": "Alice A", "email": "a@b.co", "role": "STUDENT",
	}, nil)
	requireEnvelope(t, rec, http.StatusOK, true, "")

	rec = ts.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "secret1"}, nil)
	body := requireEnvelope(t, rec, http.StatusOK, true, "Login successful")
	assert.Equal(t, "STUDENT", body["role"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "Alice A", body["fullName"])
	assert.Equal(t, "a@b.co", body["email"])
	assert.EqualValues(t, 1, body["userId"])

	rec = ts.do(http.MethodPost, "/api/register", map[string]string{
		"username": "alice2", "password": "secret1", "fullName": "Alice B", "email": "a@b.co", "role": "STUDENT",
	}, nil)
	requireEnvelope(t, rec, http.StatusConflict, false, "Email already exists")

	rec = ts.do(http.MethodPost, "/api/register", map[string]string{
		"username": "carol", "password": "secret1", "fullName": "Carol C", "email": "c@b.co",
	}, nil)
	requireEnvelope(t, rec, http.StatusBadRequest, false, "Invalid role. Must be ADMIN or STUDENT")

	rec = ts.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "nope123"}, nil)
	requireEnvelope(t, rec, http.StatusUnauthorized, false, "Invalid username or password")

	rec = ts.do(http.MethodPost, "/api/login", map[string]string{"username": "alice"}, nil)
	requireEnvelope(t, rec, http.StatusBadRequest, false, "Username and password are required")
}

func TestRegister_AdminRoleNeedsAdmin(t *testing.T) {
	ts := newTestServer(t)
	req := map[string]string{"username": "eve", "password": "secret1", "fullName": "Eve", "email": "eve@b.co", "role": "ADMIN"}

	rec := ts.do(http.MethodPost, "/api/register", req, nil)
	requireEnvelope(t, rec, http.StatusForbidden, false, "Only an admin can create admin accounts")

	ts.register("root", "root@lib.io", models.RoleAdmin)
	admin := ts.login("root", "secret1")
	rec = ts.do(http.MethodPost, "/api/register", req, admin)
	requireEnvelope(t, rec, http.StatusOK, true, "")

	open := newTestServer(t, func(c *config.Config) { c.AllowAdminSignup = true })
	rec = open.do(http.MethodPost, "/api/register", req, nil)
	requireEnvelope(t, rec, http.StatusOK, true, "")
}

func TestSession_WhoAmIAndLogout(t *testing.T) {
	ts := newTestServer(t)
	_, student := ts.adminAndStudent()

	rec := ts.do(http.MethodGet, "/api/whoami", nil, student)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "password")

	rec = ts.do(http.MethodPost, "/api/logout", nil, student)
	requireEnvelope(t, rec, http.StatusOK, true, "Logged out")

	rec = ts.do(http.MethodGet, "/api/whoami", nil, student)
	requireEnvelope(t, rec, http.StatusUnauthorized, false, "")
	rec = ts.do(http.MethodGet, "/api/whoami", nil, nil)
	requireEnvelope(t, rec, http.StatusUnauthorized, false, "")
}

func TestBooks_AuthorizationAndSearch(t *testing.T) {
	ts := newTestServer(t)
	admin, student := ts.adminAndStudent()

	book := map[string]any{"title": "The Go Way", "author": "Pike", "isbn": "1", "publicationYear": "2015", "category": "Programming", "totalCopies": "2"}
	requireEnvelope(t, ts.do(http.MethodPost, "/api/books", book, nil), http.StatusUnauthorized, false, "")
	requireEnvelope(t, ts.do(http.MethodPost, "/api/books", book, student), http.StatusForbidden, false, "")
	requireEnvelope(t, ts.do(http.MethodPost, "/api/books", book, admin), http.StatusOK, true, "Book added successfully")
	ts.addBook(admin, "2", 1)

	bad := map[string]any{"title": "T", "author": "A", "isbn": "3", "publicationYear": 2020, "totalCopies": 0}
	requireEnvelope(t, ts.do(http.MethodPost, "/api/books", bad, admin), http.StatusBadRequest, false, "Total copies must be greater than 0")
	requireEnvelope(t, ts.do(http.MethodPost, "/api/books", book, admin), http.StatusConflict, false, "ISBN already exists")

	rec := ts.do(http.MethodGet, "/api/books", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeList(t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "Book 2", all[0]["title"])

	rec = ts.do(http.MethodGet, "/api/books?action=search&type=author&query=PIK", nil, nil)
	found := decodeList(t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, "The Go Way", found[0]["title"])
	assert.EqualValues(t, 2, found[0]["availableCopies"])

	rec = ts.do(http.MethodGet, "/api/books?action=category&category=programming", nil, nil)
	assert.Len(t, decodeList(t, rec), 1)

	rec = ts.do(http.MethodGet, "/api/books/999", nil, nil)
	requireEnvelope(t, rec, http.StatusNotFound, false, "Book not found")
}

func TestIssueReturn_NoFine(t *testing.T) {
	ts := newTestServer(t)
	admin, _ := ts.adminAndStudent()
	rec := ts.do(http.MethodPost, "/api/books", map[string]any{
		"title": "X", "author": "Y", "isbn": "9780000000001", "publisher": "P",
		"publicationYear": 2020, "category": "C", "totalCopies": 1,
	}, admin)
	requireEnvelope(t, rec, http.StatusOK, true, "Book added successfully")

	rec = ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "issue", "bookId": 1, "userId": 2}, admin)
	body := requireEnvelope(t, rec, http.StatusOK, true, "Book issued successfully")
	assert.Equal(t, "2026-01-15", body["dueDate"])
	assert.EqualValues(t, 0, ts.book(1)["availableCopies"])

	ts.clock = ts.clock.AddDate(0, 0, 5)
	rec = ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "return", "issueId": 1}, admin)
	body = requireEnvelope(t, rec, http.StatusOK, true, "Book returned successfully. No fine")
	assert.EqualValues(t, 0, body["fine"])
	assert.EqualValues(t, 1, ts.book(1)["availableCopies"])
}

func TestIssueReturn_LateFine(t *testing.T) {
	ts := newTestServer(t)
	admin, student := ts.adminAndStudent()
	id := ts.addBook(admin, "9780000000001", 1)

	// 学生给自己借，数字以字符串形式提交
	rec := ts.do(http.MethodPost, "/api/issue", `{"action":"issue","bookId":"`+fmt.Sprint(id)+`"}`, student)
	requireEnvelope(t, rec, http.StatusOK, true, "Book issued successfully")

	ts.clock = ts.clock.AddDate(0, 0, 20)
	rec = ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "return", "issueId": 1}, student)
	body := requireEnvelope(t, rec, http.StatusOK, true, "Book returned successfully. Fine: Rs 30.00")
	assert.EqualValues(t, 30, body["fine"])
	assert.EqualValues(t, 6, body["daysOverdue"])

	rec = ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "return", "issueId": 1}, admin)
	requireEnvelope(t, rec, http.StatusConflict, false, "Book has already been returned")

	rec = ts.do(http.MethodGet, "/api/issue?action=history", nil, student)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decodeList(t, rec)
	require.Len(t, hist, 1)
	assert.Equal(t, "RETURNED", hist[0]["status"])
	assert.EqualValues(t, 30, hist[0]["fineAmount"])
	assert.Equal(t, "Book 9780000000001", hist[0]["bookTitle"])
	assert.Equal(t, "alice Full", hist[0]["userName"])
}

func TestIssue_QuotaAndDuplicate(t *testing.T) {
	ts := newTestServer(t)
	admin, student := ts.adminAndStudent()
	var ids []uint
	for i := 1; i <= 4; i++ {
		ids = append(ids, ts.addBook(admin, fmt.Sprintf("97800000000%02d", i), 2))
	}

	issue := func(bookID uint) *httptest.ResponseRecorder {
		return ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "issue", "bookId": bookID, "userId": 2}, student)
	}
	requireEnvelope(t, issue(ids[0]), http.StatusOK, true, "")
	requireEnvelope(t, issue(ids[0]), http.StatusConflict, false, "You have already issued this book. Return it before issuing again")
	requireEnvelope(t, issue(ids[1]), http.StatusOK, true, "")
	requireEnvelope(t, issue(ids[2]), http.StatusOK, true, "")
	requireEnvelope(t, issue(ids[3]), http.StatusConflict, false, "You have reached the maximum limit of 3 books")

	rec := ts.do(http.MethodGet, "/api/issue?action=count", nil, student)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["count"])
	assert.EqualValues(t, 3, body["limit"])

	rec = ts.do(http.MethodGet, "/api/issue?action=mybooks&userId=2", nil, student)
	assert.Len(t, decodeList(t, rec), 3)
}

func TestIssue_StudentBoundaries(t *testing.T) {
	ts := newTestServer(t)
	admin, student := ts.adminAndStudent()
	ts.register("bob", "bob@lib.io", models.RoleStudent)
	bob := ts.login("bob", "secret1")
	id := ts.addBook(admin, "9780000000001", 3)

	rec := ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "issue", "bookId": id}, nil)
	requireEnvelope(t, rec, http.StatusUnauthorized, false, "")

	rec = ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "issue", "bookId": id, "userId": 3}, student)
	requireEnvelope(t, rec, http.StatusForbidden, false, "You can only issue books to yourself")

	rec = ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "issue", "bookId": id}, student)
	requireEnvelope(t, rec, http.StatusOK, true, "")

	rec = ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "return", "issueId": 1}, bob)
	requireEnvelope(t, rec, http.StatusForbidden, false, "You can only return your own books")

	rec = ts.do(http.MethodGet, "/api/issue?action=history&userId=2", nil, bob)
	requireEnvelope(t, rec, http.StatusForbidden, false, "")
	rec = ts.do(http.MethodGet, "/api/issue?action=overdue", nil, bob)
	requireEnvelope(t, rec, http.StatusForbidden, false, "")
	rec = ts.do(http.MethodGet, "/api/issue", nil, bob)
	requireEnvelope(t, rec, http.StatusForbidden, false, "")

	rec = ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "renew", "issueId": 1}, student)
	requireEnvelope(t, rec, http.StatusBadRequest, false, "Invalid action")

	rec = ts.do(http.MethodGet, "/api/issue", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)
}

func TestIssue_Overdue(t *testing.T) {
	ts := newTestServer(t)
	admin, _ := ts.adminAndStudent()
	id := ts.addBook(admin, "9780000000001", 2)
	rec := ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "issue", "bookId": id, "userId": 2}, admin)
	requireEnvelope(t, rec, http.StatusOK, true, "")

	ts.clock = ts.clock.AddDate(0, 0, 14)
	rec = ts.do(http.MethodGet, "/api/issue?action=overdue", nil, admin)
	assert.Empty(t, decodeList(t, rec))

	ts.clock = ts.clock.AddDate(0, 0, 1)
	rec = ts.do(http.MethodGet, "/api/issue?action=overdue", nil, admin)
	assert.Len(t, decodeList(t, rec), 1)
}

func TestBooks_DeleteBlockedWhileIssued(t *testing.T) {
	ts := newTestServer(t)
	admin, _ := ts.adminAndStudent()
	id := ts.addBook(admin, "9780000000001", 1)
	path := fmt.Sprintf("/api/books/%d", id)

	requireEnvelope(t, ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "issue", "bookId": id, "userId": 2}, admin), http.StatusOK, true, "")
	requireEnvelope(t, ts.do(http.MethodDelete, path, nil, admin), http.StatusConflict, false, "Cannot delete book. Some copies are currently issued")

	// 更新不接受 availableCopies
	upd := map[string]any{"title": "New", "author": "Y", "isbn": "9780000000001", "publicationYear": 2021, "totalCopies": 3, "availableCopies": 3}
	body := requireEnvelope(t, ts.do(http.MethodPut, path, upd, admin), http.StatusOK, true, "Book updated successfully")
	assert.EqualValues(t, 2, body["book"].(map[string]any)["availableCopies"])

	requireEnvelope(t, ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "return", "issueId": 1}, admin), http.StatusOK, true, "")
	requireEnvelope(t, ts.do(http.MethodDelete, path, nil, admin), http.StatusOK, true, "Book deleted successfully")
	requireEnvelope(t, ts.do(http.MethodGet, path, nil, nil), http.StatusNotFound, false, "Book not found")
}

func TestUsers_AdminManagement(t *testing.T) {
	ts := newTestServer(t)
	admin, student := ts.adminAndStudent()
	ts.register("bob", "bob@lib.io", models.RoleStudent)

	requireEnvelope(t, ts.do(http.MethodGet, "/api/users", nil, student), http.StatusForbidden, false, "Access denied. Admin only")

	rec := ts.do(http.MethodGet, "/api/users?role=STUDENT", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)
	rec = ts.do(http.MethodGet, "/api/users?role=admin", nil, admin)
	assert.Len(t, decodeList(t, rec), 1)

	rec = ts.do(http.MethodPut, "/api/users/3", map[string]string{"fullName": "Bob B", "email": "alice@lib.io", "role": "STUDENT"}, admin)
	requireEnvelope(t, rec, http.StatusConflict, false, "Email already exists")
	rec = ts.do(http.MethodPut, "/api/users/3", map[string]string{"fullName": "Bob B", "email": "bobby@lib.io", "role": "STUDENT"}, admin)
	requireEnvelope(t, rec, http.StatusOK, true, "User updated successfully")

	requireEnvelope(t, ts.do(http.MethodDelete, "/api/users/1", nil, admin), http.StatusBadRequest, false, "You cannot delete your own account")

	id := ts.addBook(admin, "9780000000001", 1)
	requireEnvelope(t, ts.do(http.MethodPost, "/api/issue", map[string]any{"action": "issue", "bookId": id, "userId": 2}, admin), http.StatusOK, true, "")
	requireEnvelope(t, ts.do(http.MethodDelete, "/api/users/2", nil, admin), http.StatusConflict, false, "Cannot delete user. User has book issue history")

	// 删除用户会撤销其会话
	bob := ts.login("bob", "secret1")
	requireEnvelope(t, ts.do(http.MethodDelete, "/api/users/3", nil, admin), http.StatusOK, true, "User deleted successfully")
	requireEnvelope(t, ts.do(http.MethodGet, "/api/whoami", nil, bob), http.StatusUnauthorized, false, "")
	requireEnvelope(t, ts.do(http.MethodGet, "/api/users/3", nil, admin), http.StatusNotFound, false, "User not found")
}

func TestLoginThrottle(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.LoginMaxAttempts = 3 })
	ts.register("alice", "a@b.co", models.RoleStudent)

	for i := 0; i < 3; i++ {
		rec := ts.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "bad-pass"}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := ts.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "secret1"}, nil)
	requireEnvelope(t, rec, http.StatusTooManyRequests, false, "Too many login attempts. Please try again later")

	ts.mr.FastForward(2 * time.Minute)
	rec = ts.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "secret1"}, nil)
	requireEnvelope(t, rec, http.StatusOK, true, "")
}

func TestCORS_AllowsAnyOrigin(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Origin", "http://example.org")
	rec := httptest.NewRecorder()
	ts.app.Router.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBadJSONBody(t *testing.T) {
	ts := newTestServer(t)
	admin, _ := ts.adminAndStudent()
	rec := ts.do(http.MethodPost, "/api/issue", `{"action":`, admin)
	requireEnvelope(t, rec, http.StatusBadRequest, false, "Invalid request body")
}

func TestStoreFailure_AsksClientToRetry(t *testing.T) {
	ts := newTestServer(t)
	sqlDB, err := ts.app.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rec := ts.do(http.MethodGet, "/api/books", nil, nil)
	requireEnvelope(t, rec, http.StatusServiceUnavailable, false, "Something went wrong. Please try again")
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	ok := newTestServer(t)
	rec = ok.do(http.MethodGet, "/api/books/999", nil, nil)
	requireEnvelope(t, rec, http.StatusNotFound, false, "Book not found")
	assert.Empty(t, rec.Header().Get("Retry-After"))
}
