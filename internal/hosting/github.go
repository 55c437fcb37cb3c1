package hosting

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHub reviews pull requests through the GitHub REST API.
type GitHub struct {
	api *github.Client
}

// NewGitHub creates a GitHub host authenticated with a personal access
// token.
func NewGitHub(token string) *GitHub {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	return &GitHub{api: github.NewClient(tc)}
}

// ChangedFiles lists the files of a pull request with their content at the
// head commit. Removed files are skipped.
func (g *GitHub) ChangedFiles(ctx context.Context, repo, ref string) ([]ChangedFile, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	number, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	pr, _, err := g.api.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("get pull request %s#%d: %w", repo, number, err)
	}
	head := pr.GetHead().GetSHA()

	var files []ChangedFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := g.api.PullRequests.ListFiles(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list pull request files: %w", err)
		}
		for _, f := range page {
			if f.GetStatus() == "removed" {
				continue
			}
			content, err := g.fileContent(ctx, owner, name, f.GetFilename(), head)
			if err != nil {
				return nil, fmt.Errorf("fetch %s at %s: %w", f.GetFilename(), head, err)
			}
			files = append(files, ChangedFile{
				Path:    f.GetFilename(),
				Content: content,
				Patch:   f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func (g *GitHub) fileContent(ctx context.Context, owner, name, path, ref string) (string, error) {
	fc, _, _, err := g.api.Repositories.GetContents(ctx, owner, name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", err
	}
	if fc == nil {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return fc.GetContent()
}

// SubmitFeedback posts the feedback as one pull request review. Comments
// without a line anchor are folded into the review body.
func (g *GitHub) SubmitFeedback(ctx context.Context, repo, ref string, fb Feedback) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	number, err := parseRef(ref)
	if err != nil {
		return err
	}

	body := fb.Summary
	req := &github.PullRequestReviewRequest{
		Event: github.String(string(fb.Verdict)),
	}
	for _, c := range fb.Comments {
		if c.Line <= 0 {
			body += fmt.Sprintf("\n\n**%s:** %s", c.Path, c.Body)
			continue
		}
		req.Comments = append(req.Comments, &github.DraftReviewComment{
			Path: github.String(c.Path),
			Line: github.Int(c.Line),
			Side: github.String("RIGHT"),
			Body: github.String(c.Body),
		})
	}
	req.Body = github.String(body)

	if _, _, err := g.api.PullRequests.CreateReview(ctx, owner, name, number, req); err != nil {
		return fmt.Errorf("create pull request review: %w", err)
	}
	return nil
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q, want owner/name", repo)
	}
	return parts[0], parts[1], nil
}

func parseRef(ref string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(ref, "#"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pull request number %q", ref)
	}
	return n, nil
}
