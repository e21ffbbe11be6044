package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hcl-hz/PMS-board/internal/models"
)

// DefaultSeedCount is the number of issues the seed pads the board up to.
const DefaultSeedCount = 200

// SeedSource generates a deterministic demo board.
//
// Six hand-written issues come first, then generated issues pad the board to
// Count by cycling actors, projects, tags and every status except notice.
// Generated dates fall within the 30 days before Base, at 10:00 local time.
type SeedSource struct {
	Base     time.Time
	Count    int
	Location *time.Location
}

// NewSeedSource creates a seed source anchored at base.
func NewSeedSource(base time.Time, count int, loc *time.Location) *SeedSource {
	if count <= 0 {
		count = DefaultSeedCount
	}
	if loc == nil {
		loc = time.Local
	}
	return &SeedSource{Base: base, Count: count, Location: loc}
}

// Dataset builds a fresh copy of the seed board.
func (s *SeedSource) Dataset(_ context.Context) (*Dataset, error) {
	ds := seedReference()
	ds.Issues = seedIssues(ds)
	s.pad(ds)
	return ds, nil
}

func seedReference() *Dataset {
	orgs := []*models.Organization{
		{ID: "company-1", Name: "ABC 테크놀로지", Code: "ABC"},
		{ID: "company-2", Name: "XYZ 솔루션", Code: "XYZ"},
	}
	actors := []*models.Actor{
		{
			ID: "user-1", Name: "김관리자", Email: "admin@company.com", Role: models.RoleAdmin,
			OrganizationID: "company-1", Avatar: "👨‍💼",
			AssignedProjectIDs: []string{"project-1", "project-2", "project-3"},
		},
		{
			ID: "user-2", Name: "박담당자", Email: "manager@company.com", Role: models.RoleContributor,
			OrganizationID: "company-1", Avatar: "👩‍💻",
			AssignedProjectIDs: []string{"project-1"},
		},
		{
			ID: "user-4", Name: "정개발자", Email: "dev@company.com", Role: models.RoleContributor,
			OrganizationID: "company-2", Avatar: "👨‍🔧",
			AssignedProjectIDs: []string{"project-3"},
		},
	}
	projects := []*models.Project{
		{ID: "project-1", Name: "웹사이트 리뉴얼", Code: "WEB-001", OrganizationID: "company-1", Description: "기업 웹사이트 전체 리뉴얼 프로젝트"},
		{ID: "project-2", Name: "모바일 앱 개발", Code: "APP-001", OrganizationID: "company-1", Description: "iOS/Android 앱 개발 프로젝트"},
		{ID: "project-3", Name: "ERP 시스템 구축", Code: "ERP-001", OrganizationID: "company-2", Description: "기업 자원 관리 시스템 구축"},
	}
	tags := []*models.Tag{
		{ID: "tag-1", Name: "버그", Code: "BUG", ProjectID: "project-1", Color: "#ef4444"},
		{ID: "tag-2", Name: "기능요청", Code: "FEATURE", ProjectID: "project-1", Color: "#3b82f6"},
		{ID: "tag-3", Name: "개선", Code: "IMPROVE", ProjectID: "project-2", Color: "#10b981"},
		{ID: "tag-4", Name: "긴급", Code: "URGENT", ProjectID: "project-3", Color: "#f59e0b"},
	}
	statuses := []*models.Status{
		{ID: "status-1", Name: "접수", Code: models.StatusReceived, Color: "#6b7280", Label: "접수됨"},
		{ID: "status-2", Name: "확인", Code: models.StatusConfirmed, Color: "#3b82f6", Label: "확인됨"},
		{ID: "status-3", Name: "진행", Code: models.StatusInProgress, Color: "#10b981", Label: "진행중"},
		{ID: "status-4", Name: "완료", Code: models.StatusCompleted, Color: "#059669", Label: "완료됨"},
		{ID: "status-5", Name: "보류", Code: models.StatusHold, Color: "#f59e0b", Label: "보류됨"},
		{ID: "status-6", Name: "취소", Code: models.StatusCancelled, Color: "#ef4444", Label: "취소됨"},
		{ID: "status-notice", Name: "공지", Code: models.StatusNotice, Color: "#374151", Label: "공지"},
	}
	attachments := []*models.Attachment{
		{ID: "file-1", StoredName: "error_log_20240101.txt", OriginalName: "에러로그.txt", SizeBytes: 245760, MimeType: "text/plain", DownloadURL: "/api/files/file-1", UploadedAt: utc("2024-01-01T10:30:00Z")},
		{ID: "file-2", StoredName: "screenshot_bug.png", OriginalName: "버그스크린샷.png", SizeBytes: 1048576, MimeType: "image/png", DownloadURL: "/api/files/file-2", UploadedAt: utc("2024-01-01T10:35:00Z")},
		{ID: "file-3", StoredName: "user_manual.pdf", OriginalName: "사용자매뉴얼.pdf", SizeBytes: 2097152, MimeType: "application/pdf", DownloadURL: "/api/files/file-3", UploadedAt: utc("2024-01-02T14:20:00Z")},
	}
	return &Dataset{
		Organizations: orgs,
		Actors:        actors,
		Projects:      projects,
		Tags:          tags,
		Statuses:      statuses,
		Attachments:   attachments,
	}
}

func seedIssues(ds *Dataset) []*models.Issue {
	admin, park, jung := *ds.Actors[0], *ds.Actors[1], *ds.Actors[2]
	st := ds.Statuses
	tg := ds.Tags

	issue := func(id, title, body string, author models.Actor, status *models.Status, tag *models.Tag,
		secret bool, projectID, orgID, created string, views int, hours float64) *models.Issue {
		ts := utc(created)
		h := hours
		return &models.Issue{
			ID:             id,
			Title:          title,
			BodyHTML:       body,
			BodyText:       stripForSeed(body),
			Author:         author,
			Status:         *status,
			Tags:           []models.Tag{*tag},
			IsSecret:       secret,
			ProjectID:      projectID,
			OrganizationID: orgID,
			CreatedAt:      ts,
			UpdatedAt:      ts,
			ViewCount:      views,
			WorkHours:      &h,
		}
	}

	noticeBody := `<p>안전한 운영을 위해 첨부파일 업로드 정책을 안내드립니다.</p>
<ul>
<li><strong>차단 파일:</strong> exe 등 실행파일/스크립트 계열은 업로드 불가</li>
<li><strong>권장 파일:</strong> 이미지(PNG/JPG), 문서(PDF), 텍스트(TXT) 등</li>
<li><strong>주의:</strong> 민감정보가 포함된 파일은 업로드하지 말아주세요</li>
</ul>
<p>정책은 추후 운영 기준에 따라 변경될 수 있습니다.</p>`

	b1 := issue("board-1", "[공지] 파일 업로드 정책 안내", noticeBody, admin, st[6], tg[1], false, "project-1", "company-1", "2024-01-01T09:00:00Z", 10, 0)
	b1.Comments = []models.Comment{
		{ID: "comment-1", IssueID: "board-1", Content: "이 문제 확인했습니다. 빠른 시일 내에 수정하겠습니다.", Author: park, CreatedAt: utc("2024-01-01T11:00:00Z"), UpdatedAt: utc("2024-01-01T11:00:00Z")},
		{ID: "comment-2", IssueID: "board-1", Content: "@김관리자 개발팀에 전달했습니다. 내일까지 수정 예정입니다.", Author: park, CreatedAt: utc("2024-01-01T11:30:00Z"), UpdatedAt: utc("2024-01-01T11:30:00Z"), IsInternal: true, Mentions: []string{"user-1"}},
	}

	b2 := issue("board-2", "박담당자 작성글 1 - 웹사이트 리뉴얼 요청", "<p>박담당자가 작성한 첫 번째 게시글입니다.</p>", park, st[0], tg[0], false, "project-1", "company-1", "2024-01-02T10:00:00Z", 5, 1.0)
	b2.Comments = []models.Comment{
		{ID: "comment-3", IssueID: "board-2", Content: "로그 파일 첨부했습니다. 확인 부탁드립니다.", Author: park, CreatedAt: utc("2024-01-02T09:15:00Z"), UpdatedAt: utc("2024-01-02T09:15:00Z")},
	}
	// file-1 belongs to board-2; the rest stay loose.
	b2.Attachments = []models.Attachment{*ds.Attachments[0]}
	ds.Attachments = ds.Attachments[1:]

	// Most recent first.
	return []*models.Issue{
		issue("board-6", "정개발자 작성글 2 - 데이터베이스 마이그레이션 계획", "<p>정개발자가 작성한 두 번째 게시글입니다.</p>", jung, st[0], tg[0], false, "project-3", "company-2", "2024-01-06T14:00:00Z", 8, 1.5),
		issue("board-5", "정개발자 작성글 1 - API 명세서 업데이트", "<p>정개발자가 작성한 첫 번째 게시글입니다.</p>", jung, st[3], tg[1], false, "project-3", "company-2", "2024-01-05T13:00:00Z", 12, 4.0),
		issue("board-4", "박담당자 작성글 3 - 시스템 보안 점검 요청", "<p>박담당자가 작성한 세 번째 게시글입니다.</p>", park, st[1], tg[3], true, "project-3", "company-1", "2024-01-04T12:00:00Z", 7, 0.5),
		issue("board-3", "박담당자 작성글 2 - 모바일 앱 디자인 피드백", "<p>박담당자가 작성한 두 번째 게시글입니다.</p>", park, st[2], tg[2], false, "project-2", "company-1", "2024-01-03T11:00:00Z", 3, 2.0),
		b2,
		b1,
	}
}

// pad appends generated issues until the board holds s.Count issues.
func (s *SeedSource) pad(ds *Dataset) {
	start := len(ds.Issues)
	if start >= s.Count {
		return
	}

	base := s.Base.In(s.Location)
	// Only the six non-notice statuses take part in the cycle.
	cycle := make([]*models.Status, 0, len(ds.Statuses))
	for _, st := range ds.Statuses {
		if !st.IsNotice() {
			cycle = append(cycle, st)
		}
	}

	for i := start + 1; i <= s.Count; i++ {
		author := ds.Actors[i%len(ds.Actors)]
		status := cycle[i%len(cycle)]
		project := ds.Projects[i%len(ds.Projects)]
		tag := ds.Tags[i%len(ds.Tags)]

		day := base.AddDate(0, 0, -(i % 30))
		created := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, s.Location)
		body := fmt.Sprintf("<p>무한스크롤 테스트를 위해 자동 생성된 %d번째 게시글입니다.</p><p>내용은 샘플입니다.</p>", i)

		ds.Issues = append(ds.Issues, &models.Issue{
			ID:             fmt.Sprintf("board-gen-%d", i),
			Title:          fmt.Sprintf("[테스트] %s 관련 이슈 %d", project.Name, i),
			BodyHTML:       body,
			BodyText:       stripForSeed(body),
			Author:         *author,
			Status:         *status,
			Tags:           []models.Tag{*tag},
			IsSecret:       i%15 == 0,
			ProjectID:      project.ID,
			OrganizationID: author.OrganizationID,
			CreatedAt:      created,
			UpdatedAt:      created,
			ViewCount:      (i * 37) % 50,
		})
	}
}

// stripForSeed produces the plain-text rendition of seed markup by dropping tags.
func stripForSeed(html string) string {
	out := make([]rune, 0, len(html))
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out = append(out, r)
		}
	}
	return string(out)
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(fmt.Sprintf("seed timestamp %q: %v", s, err))
	}
	return t
}
