// Package hosting connects reviews to code hosting services: it fetches the
// files of a proposed change and submits review feedback. GitHub is the
// shipped implementation.
package hosting

import "context"

// ChangedFile is one file of a proposed change as the host reports it.
type ChangedFile struct {
	Path    string
	Content string // full content at the head of the change
	Patch   string // unified diff hunk for this file
}

// ReviewComment is one piece of feedback. Line 0 means the comment is not
// anchored to a line and belongs in the review body.
type ReviewComment struct {
	Path string
	Line int
	Body string
}

// Verdict is the overall judgement submitted with feedback.
type Verdict string

const (
	VerdictApprove        Verdict = "APPROVE"
	VerdictRequestChanges Verdict = "REQUEST_CHANGES"
	VerdictComment        Verdict = "COMMENT"
)

// Feedback is a complete review submission.
type Feedback struct {
	Summary  string
	Comments []ReviewComment
	Verdict  Verdict
}

// Host abstracts a code hosting service. repo is "owner/name"; ref
// identifies the proposed change, for GitHub the pull request number.
type Host interface {
	ChangedFiles(ctx context.Context, repo, ref string) ([]ChangedFile, error)
	SubmitFeedback(ctx context.Context, repo, ref string, fb Feedback) error
}
