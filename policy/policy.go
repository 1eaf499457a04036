// Package policy decides whether a caller may perform an operation on document paths.
//
// Authorize is a pure function: every input (owner of the target record, caller
// classification, destination state for copies) must be resolved by the caller
// before any store is mutated.
package policy

import (
	"strings"

	"github.com/tnqbao/gau-document-gateway/entity"
)

type Operation string

const (
	OpRead      Operation = "read"
	OpDownload  Operation = "download"
	OpUpdate    Operation = "update"
	OpUpload    Operation = "upload"
	OpDelete    Operation = "delete"
	OpListAll   Operation = "list-all"
	OpListOwner Operation = "list-owner"
	OpSignedURL Operation = "signed-url"
	OpCopy      Operation = "copy"
	OpSign      Operation = "sign"
)

// Reason explains a denial.
type Reason string

const (
	ReasonUnauthenticated         Reason = "unauthenticated"
	ReasonNotOwner                Reason = "not-owner"
	ReasonForbiddenClassification Reason = "forbidden-classification"
	ReasonDestinationMissing      Reason = "destination-missing"
)

// Request carries everything a decision depends on.
type Request struct {
	Identity       string
	Classification entity.Classification
	Operation      Operation

	// Paths are the target paths. For OpListOwner the single entry is the owner ID.
	Paths []string

	// OwnerID is the stored owner of the target record for single-path operations.
	OwnerID string
	// Exists reports whether the target record already exists (upload/replace).
	Exists bool
	// DestinationExists reports whether the copy destination prefix holds an object.
	DestinationExists bool
}

type Decision struct {
	Allowed bool
	Reason  Reason
	// Path is the offending path for a denied batch request.
	Path string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason, path string) Decision {
	return Decision{Reason: reason, Path: path}
}

// privilegedOps are granted to privileged callers regardless of ownership.
var privilegedOps = map[Operation]bool{
	OpRead:      true,
	OpDownload:  true,
	OpListAll:   true,
	OpListOwner: true,
	OpDelete:    true,
	OpSignedURL: true,
	OpSign:      true,
	OpCopy:      true, // sources only need read access
}

// AcceptsPrivilege reports whether a privileged classification can change the
// outcome of op.
func AcceptsPrivilege(op Operation) bool {
	return privilegedOps[op]
}

// RequiresPrivilege reports whether op is never allowed without privilege.
func RequiresPrivilege(op Operation) bool {
	return op == OpListAll || op == OpSign
}

func Authorize(req Request) Decision {
	if req.Identity == "" {
		return deny(ReasonUnauthenticated, firstPath(req.Paths))
	}

	if req.Operation == OpCopy {
		// The destination precondition holds for every caller.
		if !req.DestinationExists {
			return deny(ReasonDestinationMissing, "")
		}
	}

	if req.Classification.IsPrivileged() && privilegedOps[req.Operation] {
		return allow()
	}

	switch req.Operation {
	case OpRead, OpDownload, OpDelete, OpUpdate:
		if req.OwnerID != req.Identity {
			return deny(ReasonNotOwner, firstPath(req.Paths))
		}
		return allow()

	case OpUpload:
		if !req.Exists {
			return allow()
		}
		if req.OwnerID != req.Identity {
			return deny(ReasonNotOwner, firstPath(req.Paths))
		}
		return allow()

	case OpListOwner:
		if firstPath(req.Paths) != req.Identity {
			return deny(ReasonNotOwner, firstPath(req.Paths))
		}
		return allow()

	case OpSignedURL, OpCopy:
		for _, p := range req.Paths {
			if FirstSegment(p) != req.Identity {
				return deny(ReasonNotOwner, p)
			}
		}
		return allow()

	case OpListAll, OpSign:
		return deny(ReasonForbiddenClassification, firstPath(req.Paths))
	}

	return deny(ReasonForbiddenClassification, firstPath(req.Paths))
}

// FirstSegment returns the owner segment of a path.
func FirstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

func firstPath(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}
