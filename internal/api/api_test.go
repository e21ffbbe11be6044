package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcl-hz/PMS-board/internal/board"
	"github.com/hcl-hz/PMS-board/internal/models"
	"github.com/hcl-hz/PMS-board/internal/query"
	"github.com/hcl-hz/PMS-board/internal/store"
)

func setupTestServer(t *testing.T) (*Server, *board.Service) {
	t.Helper()
	st := store.NewMemoryStore(store.NewSeedSource(time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC), 30, time.UTC))
	require.NoError(t, st.Load(context.Background()))

	now := time.Date(2026, time.March, 20, 12, 0, 0, 0, time.UTC)
	svc := board.NewService(st, board.WithClock(func() time.Time { return now }), board.WithLocation(time.UTC))
	return NewServer(svc, Config{}), svc
}

func do(t *testing.T, h http.Handler, method, path, actor, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	if actor != "" {
		req.Header.Set(HeaderActor, actor)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) query.Page {
	t.Helper()
	var p query.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func decodeIssue(t *testing.T, w *httptest.ResponseRecorder) models.Issue {
	t.Helper()
	var issue models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issue))
	return issue
}

func TestListIssues_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "GET", "/api/v1/issues", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	p := decodePage(t, w)
	assert.Equal(t, 27, p.TotalCount)
	assert.Len(t, p.Issues, 10)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PageSize)
	assert.True(t, p.HasMore)
	for _, issue := range p.Issues {
		assert.False(t, issue.IsSecret)
	}

	w = do(t, router, "GET", "/api/v1/issues?page=3&page_size=12", "user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	p = decodePage(t, w)
	assert.Equal(t, 30, p.TotalCount)
	assert.Len(t, p.Issues, 6)
	assert.False(t, p.HasMore)
}

func TestListIssues_Filters(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "GET", "/api/v1/issues?project=project-3&status=completed", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	p := decodePage(t, w)
	require.NotZero(t, p.TotalCount)
	for _, issue := range p.Issues {
		assert.Equal(t, "project-3", issue.ProjectID)
		assert.Equal(t, models.StatusCompleted, issue.Status.Code)
	}

	w = do(t, router, "GET", "/api/v1/issues?secret=true", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decodePage(t, w).TotalCount)

	w = do(t, router, "GET", "/api/v1/issues?from=2024-01-03&to=2024-01-05", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	p = decodePage(t, w)
	assert.Equal(t, 3, p.TotalCount)
	assert.Equal(t, "board-5", p.Issues[0].ID)

	w = do(t, router, "GET", "/api/v1/issues?q="+"%EB%B2%84%EA%B7%B8", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotZero(t, decodePage(t, w).TotalCount)
}

func TestListIssues_BadParams(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	for _, path := range []string{
		"/api/v1/issues?page=0",
		"/api/v1/issues?page_size=abc",
		"/api/v1/issues?secret=maybe",
	} {
		w := do(t, router, "GET", path, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}

	w := do(t, router, "GET", "/api/v1/issues", "user-404", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListIssues_RedactsInternalComments(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	counts := map[string]int{"": 1, "user-4": 1, "user-2": 2, "user-1": 2}
	for actor, want := range counts {
		w := do(t, router, "GET", "/api/v1/issues?status=notice", actor, "")
		require.Equal(t, http.StatusOK, w.Code)
		p := decodePage(t, w)
		require.Len(t, p.Issues, 1, actor)
		assert.Len(t, p.Issues[0].Comments, want, actor)
	}
}

func TestCreateIssue_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	body := `{"project_id":"project-1","title":"로그인 오류","body_html":"<p>로그인 불가</p>","body_text":"로그인 불가",
		"tag_ids":["tag-1"],"files":[{"name":"trace.log","size":2048,"mime_type":"text/plain"}]}`
	w := do(t, router, "POST", "/api/v1/issues", "user-2", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["id"]
	require.NotEmpty(t, id)

	w = do(t, router, "GET", "/api/v1/issues/"+id, "user-2", "")
	require.Equal(t, http.StatusOK, w.Code)
	issue := decodeIssue(t, w)
	assert.Equal(t, "로그인 오류", issue.Title)
	assert.Equal(t, models.StatusReceived, issue.Status.Code)
	require.Len(t, issue.Attachments, 1)
	assert.Equal(t, "trace.log", issue.Attachments[0].OriginalName)

	w = do(t, router, "GET", "/api/v1/issues", "user-2", "")
	assert.Equal(t, id, decodePage(t, w).Issues[0].ID)
}

func TestCreateIssue_Rejected(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()
	valid := `{"project_id":"project-1","title":"t","body_text":"b","tag_ids":["tag-1"]`

	w := do(t, router, "POST", "/api/v1/issues", "", valid+"}")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, "POST", "/api/v1/issues", "user-2", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "POST", "/api/v1/issues", "user-2", valid+`,"files":[{"name":"setup.exe"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var vr ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vr))
	assert.Contains(t, vr.Fields["files"], ".exe")

	w = do(t, router, "POST", "/api/v1/issues", "user-2",
		valid+`,"files":[{"name":"run.bat"},{"name":"a.png"},{"name":"setup.exe"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	vr = ValidationResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vr))
	assert.Contains(t, vr.Fields["files"], "run.bat")
	assert.Contains(t, vr.Fields["files"], "2 rejected")
	assert.Contains(t, vr.Fields["files"], ".png,.jpg")

	w = do(t, router, "POST", "/api/v1/issues", "user-2",
		`{"project_id":"project-404","title":"t","body_text":"b","tag_ids":["tag-1"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	vr = ValidationResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vr))
	assert.Equal(t, "unknown project", vr.Fields["project"])

	w = do(t, router, "POST", "/api/v1/issues", "user-2", `{"project_id":"project-1","title":" ","body_text":"b","tag_ids":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vr))
	assert.Contains(t, vr.Fields, "title")
	assert.Contains(t, vr.Fields, "tags")
}

func TestGetIssue_ViewCountPerSession(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "GET", "/api/v1/issues/board-5", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	sid := w.Header().Get(HeaderSession)
	require.NotEmpty(t, sid)
	assert.Equal(t, 13, decodeIssue(t, w).ViewCount)

	w = do(t, router, "GET", "/api/v1/issues/board-5", "", "", HeaderSession, sid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sid, w.Header().Get(HeaderSession))
	assert.Equal(t, 13, decodeIssue(t, w).ViewCount)

	w = do(t, router, "GET", "/api/v1/issues/board-5", "", "")
	assert.Equal(t, 14, decodeIssue(t, w).ViewCount)
}

func TestGetIssue_SessionBoundToActor(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "GET", "/api/v1/issues/board-4", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	sid := w.Header().Get(HeaderSession)

	// Reusing an admin's session id does not lend its identity.
	var wg sync.WaitGroup
	for i := range 20 {
		actor := "user-1"
		if i%2 == 1 {
			actor = "user-4"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := do(t, router, "GET", "/api/v1/issues/board-4", actor, "", HeaderSession, sid)
			if actor == "user-4" {
				assert.Equal(t, http.StatusForbidden, w.Code)
				assert.NotEqual(t, sid, w.Header().Get(HeaderSession))
				return
			}
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, sid, w.Header().Get(HeaderSession))
		}()
	}
	wg.Wait()
}

func TestGetIssue_SessionsAreBounded(t *testing.T) {
	st := store.NewMemoryStore(store.NewSeedSource(time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC), 30, time.UTC))
	require.NoError(t, st.Load(context.Background()))
	srv := NewServer(board.NewService(st), Config{MaxSessions: 5})
	router := srv.Router()

	w := do(t, router, "GET", "/api/v1/issues/board-6", "", "")
	first := w.Header().Get(HeaderSession)
	assert.Same(t, srv.sessions.Get(first, nil), srv.sessions.Get(first, nil))

	for range 50 {
		do(t, router, "GET", "/api/v1/issues/board-6", "", "")
	}

	// The oldest session was evicted; its id now opens a new one.
	w = do(t, router, "GET", "/api/v1/issues/board-6", "", "", HeaderSession, first)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, first, w.Header().Get(HeaderSession))
}

func TestGetIssue_Access(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	assert.Equal(t, http.StatusForbidden, do(t, router, "GET", "/api/v1/issues/board-4", "user-4", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, "GET", "/api/v1/issues/board-4", "", "").Code)
	assert.Equal(t, http.StatusOK, do(t, router, "GET", "/api/v1/issues/board-4", "user-2", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, "GET", "/api/v1/issues/board-404", "user-1", "").Code)

	w := do(t, router, "GET", "/api/v1/issues/board-1", "user-4", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeIssue(t, w).Comments, 1)
}

func TestUpdateStatus_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "PUT", "/api/v1/issues/board-2/status", "user-2", `{"status_id":"status-4"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, "PUT", "/api/v1/issues/board-2/status", "", `{"status_id":"status-4"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, "PUT", "/api/v1/issues/board-2/status", "user-1", `{"status_id":"status-4"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCompleted, decodeIssue(t, w).Status.Code)

	w = do(t, router, "PUT", "/api/v1/issues/board-2/status", "user-1", `{"status_id":"status-99"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCompleted, decodeIssue(t, w).Status.Code)

	w = do(t, router, "PUT", "/api/v1/issues/board-404/status", "user-1", `{"status_id":"status-4"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateWorkHours_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "PUT", "/api/v1/issues/board-3/work-hours", "user-1", `{"hours":-2.5}`)
	require.Equal(t, http.StatusOK, w.Code)
	issue := decodeIssue(t, w)
	require.NotNil(t, issue.WorkHours)
	assert.Equal(t, -2.5, *issue.WorkHours)

	w = do(t, router, "PUT", "/api/v1/issues/board-3/work-hours", "user-1", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, router, "PUT", "/api/v1/issues/board-3/work-hours", "user-4", `{"hours":1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestComments_API(t *testing.T) {
	srv, svc := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	w := do(t, router, "POST", "/api/v1/issues/board-3/comments", "", `{"content":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, "POST", "/api/v1/issues/board-3/comments", "user-2", `{"content":"   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	long := strings.Repeat("가", DefaultCommentMaxLength+1)
	w = do(t, router, "POST", "/api/v1/issues/board-3/comments", "user-2", `{"content":"`+long+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, router, "POST", "/api/v1/issues/board-3/comments", "user-2", `{"content":"memo","internal":true}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, "POST", "/api/v1/issues/board-4/comments", "user-4", `{"content":"hi"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	exact := strings.Repeat("가", DefaultCommentMaxLength)
	w = do(t, router, "POST", "/api/v1/issues/board-3/comments", "user-2", `{"content":"  `+exact+`  "}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	cid := created["id"]

	issue, err := svc.GetIssue(ctx, "board-3")
	require.NoError(t, err)
	require.Len(t, issue.Comments, 1)
	assert.Equal(t, exact, issue.Comments[0].Content)

	path := "/api/v1/issues/board-3/comments/" + cid
	w = do(t, router, "PUT", path, "user-4", `{"content":"mine now"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, "PUT", path, "user-2", `{"content":" edited "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "edited", decodeIssue(t, w).Comments[0].Content)

	w = do(t, router, "PUT", "/api/v1/issues/board-3/comments/nope", "user-2", `{"content":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "DELETE", path, "user-4", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, "DELETE", path, "user-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	issue, err = svc.GetIssue(ctx, "board-3")
	require.NoError(t, err)
	assert.Empty(t, issue.Comments)
}

func TestReferenceData_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	cases := map[string]int{
		"/api/v1/tags":     4,
		"/api/v1/statuses": 7,
		"/api/v1/projects": 3,
		"/api/v1/users":    3,
	}
	for path, want := range cases {
		w := do(t, router, "GET", path, "", "")
		require.Equal(t, http.StatusOK, w.Code, path)
		var items []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
		assert.Len(t, items, want, path)
	}
}

func TestDownloadFile(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "GET", "/api/files/file-2", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, `attachment; filename="버그스크린샷.png"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "id: file-2")

	w = do(t, router, "GET", "/api/files/att-unknown", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="att-unknown.txt"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "fallback")
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_.txt", safeFilename("a\rb\nc\".txt"))
	assert.Equal(t, "보고서 (최종).pdf", safeFilename("보고서 (최종).pdf"))
}

func TestCORS(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "OPTIONS", "/api/v1/issues", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderActor)
}
