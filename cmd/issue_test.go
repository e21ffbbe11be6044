package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcl-hz/PMS-board/internal/board"
)

// resetIssueFlags clears issue list flags after the test.
func resetIssueFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		issueStatus, issueProject, issueOrg, issueAuthor = "", "", "", ""
		issueSecret, issueFrom, issueTo, issueQuery = "", "", "", ""
		issuePage = 1
	})
}

func TestIssueList_AnonymousFirstPage(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	buf := captureOutput(t)
	issuePage = 1

	require.NoError(t, issueListRun())

	out := buf.String()
	assert.Contains(t, out, "showing 10 of 27 issues")
	assert.Contains(t, out, "--page 2")
	assert.NotContains(t, out, "board-4")
}

func TestIssueList_AdminSeesSecret(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	asActor = "user-1"
	buf := captureOutput(t)
	issuePage = 1
	issueSecret = "true"

	require.NoError(t, issueListRun())

	out := buf.String()
	assert.Contains(t, out, "showing 3 of 3 issues")
	assert.Contains(t, out, "board-4")
}

func TestIssueList_Search(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	buf := captureOutput(t)
	issuePage = 1
	issueQuery = "API 명세서"

	require.NoError(t, issueListRun())

	out := buf.String()
	assert.Contains(t, out, "board-5")
	assert.Contains(t, out, "showing 1 of 1 issues")
}

func TestIssueList_NoMatches(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	buf := captureOutput(t)
	issuePage = 1
	issueQuery = "no-such-text-anywhere"

	require.NoError(t, issueListRun())
	assert.Contains(t, buf.String(), "No issues found.")
}

func TestIssueList_InvalidSecretFlag(t *testing.T) {
	testEnv(t)
	resetIssueFlags(t)
	issueSecret = "maybe"

	err := issueListRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--secret")
}

func TestIssueShow_HidesInternalComments(t *testing.T) {
	testEnv(t)
	buf := captureOutput(t)

	require.NoError(t, issueShowRun("board-1"))

	out := buf.String()
	assert.Contains(t, out, "[공지] 파일 업로드 정책 안내")
	assert.Contains(t, out, "이 문제 확인했습니다.")
	assert.NotContains(t, out, "[internal]")
	assert.NotContains(t, out, "개발팀에 전달했습니다")
}

func TestIssueShow_AdminSeesInternalComments(t *testing.T) {
	testEnv(t)
	asActor = "user-1"
	buf := captureOutput(t)

	require.NoError(t, issueShowRun("board-1"))

	out := buf.String()
	assert.Contains(t, out, "[internal]")
	assert.Contains(t, out, "개발팀에 전달했습니다")
}

func TestIssueShow_Attachments(t *testing.T) {
	testEnv(t)
	buf := captureOutput(t)

	require.NoError(t, issueShowRun("board-2"))

	out := buf.String()
	assert.Contains(t, out, "에러로그.txt")
	assert.Contains(t, out, "/api/files/file-1")
}

func TestIssueShow_SecretIssue(t *testing.T) {
	testEnv(t)
	captureOutput(t)

	err := issueShowRun("board-4")
	assert.ErrorIs(t, err, board.ErrUnauthorized)

	boardSvc = nil
	asActor = "user-4"
	err = issueShowRun("board-4")
	assert.ErrorIs(t, err, board.ErrForbidden)

	boardSvc = nil
	asActor = "user-2"
	assert.NoError(t, issueShowRun("board-4"))
}

func TestIssueShow_NotFound(t *testing.T) {
	testEnv(t)
	captureOutput(t)

	err := issueShowRun("board-missing")
	assert.ErrorIs(t, err, board.ErrNotFound)
}
