package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hcl-hz/PMS-board/internal/models"
	"github.com/hcl-hz/PMS-board/internal/output"
	"github.com/hcl-hz/PMS-board/internal/query"
	"github.com/hcl-hz/PMS-board/internal/session"
	"github.com/hcl-hz/PMS-board/internal/upload"
)

var (
	issueStatus  string
	issueProject string
	issueOrg     string
	issueAuthor  string
	issueSecret  string
	issueFrom    string
	issueTo      string
	issueQuery   string
	issuePage    int
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Browse board issues",
	Long:  "List and show issues as the current actor sees them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List visible issues, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show issue details, comments and attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

func init() {
	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status code: received, confirmed, in_progress, completed, hold, cancelled, notice")
	issueListCmd.Flags().StringVar(&issueProject, "project", "", "Filter by project id")
	issueListCmd.Flags().StringVar(&issueOrg, "org", "", "Filter by organization id")
	issueListCmd.Flags().StringVar(&issueAuthor, "author", "", "Filter by author id")
	issueListCmd.Flags().StringVar(&issueSecret, "secret", "", "Filter by secrecy: true or false")
	issueListCmd.Flags().StringVar(&issueFrom, "from", "", "Created on or after (YYYY-MM-DD)")
	issueListCmd.Flags().StringVar(&issueTo, "to", "", "Created on or before (YYYY-MM-DD)")
	issueListCmd.Flags().StringVarP(&issueQuery, "query", "q", "", "Search title, body, author, tags and comments")
	issueListCmd.Flags().IntVar(&issuePage, "page", 1, "Page number")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueFilter() (query.Filter, error) {
	f := query.Filter{
		Status:         models.StatusCode(issueStatus),
		ProjectID:      issueProject,
		OrganizationID: issueOrg,
		AuthorID:       issueAuthor,
		DateFrom:       issueFrom,
		DateTo:         issueTo,
	}
	if issueSecret != "" {
		b, err := strconv.ParseBool(issueSecret)
		if err != nil {
			return f, fmt.Errorf("invalid --secret value %q: want true or false", issueSecret)
		}
		f.IsSecret = &b
	}
	return f, nil
}

func issueListRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := currentActor(ctx, svc)
	if err != nil {
		return err
	}
	filter, err := issueFilter()
	if err != nil {
		return err
	}

	issues, err := svc.VisibleIssues(ctx, actor, filter, issueQuery)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	page := query.Paginate(issues, issuePage, viper.GetInt("page_size"))
	table := ui.Table([]string{"ID", "Status", "Title", "Author", "Tags", "Views", "Created"})
	for _, issue := range page.Issues {
		title := output.Truncate(issue.Title, 48)
		if issue.IsSecret {
			title = "🔒 " + title
		}
		table.Append([]string{
			issue.ID,
			output.StatusColor(issue.Status.Code, issue.Status.Label),
			title,
			issue.Author.Name,
			tagNames(issue.Tags),
			strconv.Itoa(issue.ViewCount),
			issue.CreatedAt.Format("2006-01-02"),
		})
	}
	table.Render()

	fmt.Fprintf(ui.Out, "\nPage %d, showing %d of %d issues", page.Page, len(page.Issues), page.TotalCount)
	if page.HasMore {
		fmt.Fprintf(ui.Out, " (next: --page %d)", page.Page+1)
	}
	fmt.Fprintln(ui.Out)
	return nil
}

func issueShowRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := currentActor(ctx, svc)
	if err != nil {
		return err
	}
	issue, err := svc.ViewIssue(ctx, session.New(actor), id)
	if err != nil {
		return fmt.Errorf("show issue %s: %w", id, err)
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(issue.Title))
	fmt.Fprintf(ui.Out, "  ID:         %s\n", issue.ID)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(issue.Status.Code, issue.Status.Label))
	fmt.Fprintf(ui.Out, "  Author:     %s (%s)\n", issue.Author.Name, issue.Author.ID)
	fmt.Fprintf(ui.Out, "  Project:    %s\n", issue.ProjectID)
	if len(issue.Tags) > 0 {
		fmt.Fprintf(ui.Out, "  Tags:       %s\n", tagNames(issue.Tags))
	}
	if issue.IsSecret {
		fmt.Fprintf(ui.Out, "  Secret:     %s\n", output.Yellow("yes"))
	}
	fmt.Fprintf(ui.Out, "  Views:      %d\n", issue.ViewCount)
	fmt.Fprintf(ui.Out, "  Work hours: %s\n", output.Hours(issue.WorkHours))
	fmt.Fprintf(ui.Out, "  Created:    %s\n", issue.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", issue.UpdatedAt.Format("2006-01-02 15:04"))

	if issue.BodyText != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", strings.TrimSpace(issue.BodyText))
	}

	if len(issue.Attachments) > 0 {
		fmt.Fprintf(ui.Out, "\nAttachments:\n")
		for _, a := range issue.Attachments {
			fmt.Fprintf(ui.Out, "  %s  %s  %s\n", a.OriginalName, output.Faint(upload.FormatSize(a.SizeBytes)), a.DownloadURL)
		}
	}

	if len(issue.Comments) > 0 {
		fmt.Fprintf(ui.Out, "\nComments:\n")
		for _, c := range issue.Comments {
			marker := ""
			if c.IsInternal {
				marker = output.Yellow(" [internal]")
			}
			fmt.Fprintf(ui.Out, "  %s %s%s\n", output.Cyan(c.Author.Name), output.Faint(c.CreatedAt.Format("2006-01-02 15:04")), marker)
			fmt.Fprintf(ui.Out, "    %s\n", c.Content)
		}
	}
	return nil
}

func tagNames(tags []models.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}
