package entity

type DocumentEventType string

const (
	EventDocumentUploaded     DocumentEventType = "document.uploaded"
	EventDocumentReplaced     DocumentEventType = "document.replaced"
	EventDocumentUpdated      DocumentEventType = "document.updated"
	EventDocumentDeleted      DocumentEventType = "document.deleted"
	EventDocumentCopied       DocumentEventType = "document.copied"
	EventDocumentSigned       DocumentEventType = "document.signed"
	EventDocumentInconsistent DocumentEventType = "document.inconsistent"
)

type DocumentEvent struct {
	Type       DocumentEventType `json:"type"`
	Path       string            `json:"path"`
	DocumentID string            `json:"document_id,omitempty"`
	OwnerID    string            `json:"owner_id,omitempty"`
	ActorID    string            `json:"actor_id"`
	SourcePath string            `json:"source_path,omitempty"`
	Detail     string            `json:"detail,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// Operations that can leave a metadata write behind.
const (
	RepairOperationUpload = "upload"
	RepairOperationUpdate = "update"
	RepairOperationCopy   = "copy"
	RepairOperationDelete = "delete"
)

// MetadataRepairJob asks the reconciler to re-apply metadata for a blob whose
// metadata write failed.
type MetadataRepairJob struct {
	Path        string `json:"path"`
	OwnerID     string `json:"owner_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        *int64 `json:"size,omitempty"`
	Operation   string `json:"operation"`
	Reason      string `json:"reason"`
	Timestamp   int64  `json:"timestamp"`
}
