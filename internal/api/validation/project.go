package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	repoFullNameRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})/[A-Za-z0-9._-]{1,100}$`)
	branchRegex       = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,255}$`)
)

// ValidateProjectName validates the name of a new project.
func ValidateProjectName(name string) []FieldError {
	var errs []FieldError
	name = strings.TrimSpace(name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if utf8.RuneCountInString(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}
	return errs
}

// ConnectGitHubRequest mirrors the fields needed to link a repository.
type ConnectGitHubRequest struct {
	RepoID       int64
	RepoFullName string
	Branch       string
}

// ValidateConnectGitHubRequest validates the fields of a GitHub link request.
func ValidateConnectGitHubRequest(req ConnectGitHubRequest) []FieldError {
	var errs []FieldError

	if req.RepoID <= 0 {
		errs = append(errs, FieldError{Field: "repoId", Message: "repoId must be a positive integer"})
	}

	name := strings.TrimSpace(req.RepoFullName)
	if name == "" {
		errs = append(errs, FieldError{Field: "repoFullName", Message: "repoFullName is required"})
	} else if !repoFullNameRegex.MatchString(name) {
		errs = append(errs, FieldError{Field: "repoFullName", Message: "repoFullName must look like owner/name"})
	}

	branch := strings.TrimSpace(req.Branch)
	if branch != "" && (!branchRegex.MatchString(branch) || strings.Contains(branch, "..") || strings.HasPrefix(branch, "-")) {
		errs = append(errs, FieldError{Field: "branch", Message: "branch is not a valid git branch name"})
	}

	return errs
}
