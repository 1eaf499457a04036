package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tnqbao/gau-document-gateway/entity"
)

func TestAuthorizeUnauthenticated(t *testing.T) {
	d := Authorize(Request{Operation: OpDownload, Paths: []string{"alice/a.pdf"}, OwnerID: "alice"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnauthenticated, d.Reason)
}

func TestAuthorizeOwnership(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		owner   string
		allowed bool
	}{
		{"owner reads", OpRead, "alice", true},
		{"owner downloads", OpDownload, "alice", true},
		{"owner deletes", OpDelete, "alice", true},
		{"owner updates", OpUpdate, "alice", true},
		{"stranger reads", OpRead, "bob", false},
		{"stranger downloads", OpDownload, "bob", false},
		{"stranger deletes", OpDelete, "bob", false},
		{"stranger updates", OpUpdate, "bob", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(Request{
				Identity:       "alice",
				Classification: entity.ClassificationCitizen,
				Operation:      tt.op,
				Paths:          []string{"x/doc.pdf"},
				OwnerID:        tt.owner,
			})
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.Equal(t, ReasonNotOwner, d.Reason)
				assert.Equal(t, "x/doc.pdf", d.Path)
			}
		})
	}
}

func TestAuthorizePrivilegedBypassesOwnership(t *testing.T) {
	for _, op := range []Operation{OpRead, OpDownload, OpDelete, OpListAll, OpListOwner, OpSignedURL, OpSign} {
		d := Authorize(Request{
			Identity:       "official",
			Classification: entity.ClassificationPrivileged,
			Operation:      op,
			Paths:          []string{"alice/a.pdf"},
			OwnerID:        "alice",
		})
		assert.True(t, d.Allowed, "operation %s", op)
	}
}

func TestAuthorizePrivilegedCannotUpdateForeignDocument(t *testing.T) {
	d := Authorize(Request{
		Identity:       "official",
		Classification: entity.ClassificationPrivileged,
		Operation:      OpUpdate,
		Paths:          []string{"alice/a.pdf"},
		OwnerID:        "alice",
	})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)
}

func TestAuthorizeUpload(t *testing.T) {
	// Brand-new path: any authenticated caller.
	d := Authorize(Request{Identity: "bob", Operation: OpUpload, Paths: []string{"alice/new.pdf"}})
	assert.True(t, d.Allowed)

	// Replace: owner only.
	d = Authorize(Request{Identity: "bob", Operation: OpUpload, Paths: []string{"alice/a.pdf"}, Exists: true, OwnerID: "alice"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)

	d = Authorize(Request{Identity: "alice", Operation: OpUpload, Paths: []string{"alice/a.pdf"}, Exists: true, OwnerID: "alice"})
	assert.True(t, d.Allowed)
}

func TestAuthorizeSignedURLBatchNamesOffendingPath(t *testing.T) {
	d := Authorize(Request{
		Identity:  "alice",
		Operation: OpSignedURL,
		Paths:     []string{"alice/a.pdf", "bob/b.pdf", "carol/c.pdf"},
	})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)
	assert.Equal(t, "bob/b.pdf", d.Path)

	d = Authorize(Request{
		Identity:  "alice",
		Operation: OpSignedURL,
		Paths:     []string{"alice/a.pdf", "alice/sub/b.pdf"},
	})
	assert.True(t, d.Allowed)
}

func TestAuthorizeListAll(t *testing.T) {
	d := Authorize(Request{Identity: "alice", Classification: entity.ClassificationCitizen, Operation: OpListAll})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonForbiddenClassification, d.Reason)

	d = Authorize(Request{Identity: "alice", Classification: entity.ClassificationUnknown, Operation: OpListAll})
	assert.False(t, d.Allowed)
}

func TestAuthorizeListOwner(t *testing.T) {
	assert.True(t, Authorize(Request{Identity: "alice", Operation: OpListOwner, Paths: []string{"alice"}}).Allowed)

	d := Authorize(Request{Identity: "alice", Operation: OpListOwner, Paths: []string{"bob"}})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)
}

func TestAuthorizeSignRequiresPrivilege(t *testing.T) {
	d := Authorize(Request{Identity: "alice", Operation: OpSign, OwnerID: "alice"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonForbiddenClassification, d.Reason)
}

func TestAuthorizeCopy(t *testing.T) {
	d := Authorize(Request{
		Identity:  "alice",
		Operation: OpCopy,
		Paths:     []string{"alice/a.pdf"},
	})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDestinationMissing, d.Reason)

	// Destination ownership is not checked.
	d = Authorize(Request{
		Identity:          "alice",
		Operation:         OpCopy,
		Paths:             []string{"alice/a.pdf"},
		DestinationExists: true,
	})
	assert.True(t, d.Allowed)

	d = Authorize(Request{
		Identity:          "alice",
		Operation:         OpCopy,
		Paths:             []string{"alice/a.pdf", "bob/b.pdf"},
		DestinationExists: true,
	})
	assert.False(t, d.Allowed)
	assert.Equal(t, "bob/b.pdf", d.Path)

	d = Authorize(Request{
		Identity:          "official",
		Classification:    entity.ClassificationPrivileged,
		Operation:         OpCopy,
		Paths:             []string{"alice/a.pdf", "bob/b.pdf"},
		DestinationExists: true,
	})
	assert.True(t, d.Allowed)
}

func TestFirstSegment(t *testing.T) {
	assert.Equal(t, "alice", FirstSegment("alice/a/b.pdf"))
	assert.Equal(t, "alice", FirstSegment("/alice/b.pdf"))
	assert.Equal(t, "alice", FirstSegment("alice"))
	assert.Equal(t, "", FirstSegment(""))
}

func TestPrivilegeHelpers(t *testing.T) {
	assert.True(t, RequiresPrivilege(OpListAll))
	assert.True(t, RequiresPrivilege(OpSign))
	assert.False(t, RequiresPrivilege(OpDownload))
	assert.True(t, AcceptsPrivilege(OpDelete))
	assert.False(t, AcceptsPrivilege(OpUpdate))
	assert.False(t, AcceptsPrivilege(OpUpload))
}
