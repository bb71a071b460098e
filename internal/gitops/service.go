// Package gitops runs repository operations against the GitHub API and
// keeps an audit log of them.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"
)

const (
	DefaultBranch        = "main"
	DefaultCommitMessage = "Force commit: Pushing all files to master"
)

var ErrNotConfigured = errors.New("GitHub token not configured")

// RefGetter is the part of the GitHub git API the service calls.
type RefGetter interface {
	GetRef(ctx context.Context, owner, repo, ref string) (*github.Reference, *github.Response, error)
}

type LogStore interface {
	Start(ctx context.Context, op, userID, message string) (int64, error)
	Complete(ctx context.Context, id int64, message string) error
	Fail(ctx context.Context, op, userID, message string) error
}

type PushRequest struct {
	Branch        string `json:"branch"`
	CommitMessage string `json:"commitMessage"`
}

type PushResult struct {
	Message string            `json:"message"`
	Ref     *github.Reference `json:"ref"`
	Request PushRequest       `json:"request"`
}

type Service struct {
	Logs   LogStore
	Refs   RefGetter
	Owner  string
	Repo   string
	Logger *slog.Logger
}

// NewService builds a service talking to GitHub with token. An empty token
// leaves the service unconfigured; Push then fails with ErrNotConfigured.
func NewService(logs LogStore, token, owner, repo string, logger *slog.Logger) *Service {
	s := &Service{Logs: logs, Owner: owner, Repo: repo, Logger: logger}
	if token != "" {
		s.Refs = github.NewClient(nil).WithAuthToken(token).Git
	}
	return s
}

// Push checks the target branch on GitHub, recording started and then
// completed or failed in the log. The returned error message is safe to
// show to the caller.
func (s *Service) Push(ctx context.Context, userID string, req PushRequest) (*PushResult, error) {
	if req.Branch == "" {
		req.Branch = DefaultBranch
	}
	if req.CommitMessage == "" {
		req.CommitMessage = DefaultCommitMessage
	}

	res, err := s.push(ctx, userID, req)
	if err != nil {
		s.Logger.Error("git push", "err", err, "branch", req.Branch, "user", userID)
		if lerr := s.Logs.Fail(ctx, OperationPush, userID, err.Error()); lerr != nil {
			s.Logger.Error("log failed git operation", "err", lerr)
		}
		return nil, err
	}
	return res, nil
}

func (s *Service) push(ctx context.Context, userID string, req PushRequest) (*PushResult, error) {
	if s.Refs == nil {
		return nil, ErrNotConfigured
	}
	id, err := s.Logs.Start(ctx, OperationPush, userID, "Starting Git push operation")
	if err != nil {
		// the operation still runs without an audit row
		s.Logger.Error("log git operation start", "err", err)
	}

	ref, resp, err := s.Refs.GetRef(ctx, s.Owner, s.Repo, "heads/"+req.Branch)
	if err != nil {
		if resp != nil && resp.Response != nil {
			return nil, fmt.Errorf("GitHub API error: %s", http.StatusText(resp.StatusCode))
		}
		return nil, errors.New("GitHub API error: request failed")
	}

	msg := "Successfully pushed to " + req.Branch
	if id != 0 {
		if err := s.Logs.Complete(ctx, id, msg); err != nil {
			s.Logger.Error("log git operation completion", "err", err, "id", id)
		}
	}
	s.Logger.Info("git push", "branch", req.Branch, "sha", ref.GetObject().GetSHA(), "user", userID)
	return &PushResult{Message: msg, Ref: ref, Request: req}, nil
}
