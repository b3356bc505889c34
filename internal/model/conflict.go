package model

import "bytes"

// Fingerprint is a content digest plus modification time in unix millis.
// The zero value means the file could not be read.
type Fingerprint struct {
	Digest  []byte
	ModTime int64
	Present bool
}

func (f Fingerprint) SameContent(other Fingerprint) bool {
	return f.Present && other.Present && bytes.Equal(f.Digest, other.Digest)
}

type ConflictDescriptor struct {
	File         string
	AbsPath      string
	LocalModTime int64
	LocalDigest  []byte
}

type ResolutionOutcome string

const (
	OutcomeIdentical   ResolutionOutcome = "IDENTICAL"
	OutcomeLocalNewer  ResolutionOutcome = "LOCAL_NEWER"
	OutcomeRemoteNewer ResolutionOutcome = "REMOTE_NEWER"
	OutcomeSkipped     ResolutionOutcome = "SKIPPED"
	OutcomeFailed      ResolutionOutcome = "FAILED"
)

type Resolution struct {
	File        string
	Outcome     ResolutionOutcome
	BackupPaths []string
	Err         error
}

// Resolved reports whether a winner was chosen and staged.
func (r Resolution) Resolved() bool {
	switch r.Outcome {
	case OutcomeIdentical, OutcomeLocalNewer, OutcomeRemoteNewer:
		return true
	case OutcomeSkipped, OutcomeFailed:
		return false
	default:
		return false
	}
}
