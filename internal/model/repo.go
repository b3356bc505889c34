package model

import "strings"

type RemoteRepo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	CloneURL      string `json:"clone_url"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
}

// RepositoryRecord pairs a local working copy with its remote counterpart.
// Either side may be missing.
type RepositoryRecord struct {
	Name      string
	LocalPath string
	Remote    *RemoteRepo
}

func Key(name string) string {
	return strings.ToLower(name)
}

func (r RepositoryRecord) Key() string {
	return Key(r.Name)
}

func (r RepositoryRecord) Paired() bool {
	return r.LocalPath != "" && r.Remote != nil
}

func (r RepositoryRecord) PushCandidate() bool {
	return r.LocalPath != "" && r.Remote == nil
}

func (r RepositoryRecord) CloneCandidate() bool {
	return r.LocalPath == "" && r.Remote != nil
}
