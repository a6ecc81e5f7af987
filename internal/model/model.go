package model

import "time"

// Job is the subset of a nexrender job the upload action reads.
type Job struct {
	UID      string `json:"uid"`
	Output   string `json:"output"`
	Workpath string `json:"workpath"`
}

// ActionParams are the postrender action parameters supplied by the host pipeline.
type ActionParams struct {
	Base64Credentials    string `json:"base64Credentials"`
	CredentialsParam     string `json:"credentialsParam,omitempty"`     // SSM parameter holding the bundle
	EncryptedCredentials bool   `json:"encryptedCredentials,omitempty"` // bundle is KMS ciphertext
	FolderURL            string `json:"folderUrl,omitempty"`
	FolderID             string `json:"folderId,omitempty"`
	CompositionName      string `json:"compositionName,omitempty"`
	FileName             string `json:"fileName"`
	Input                string `json:"input,omitempty"`
	DriveID              string `json:"driveID,omitempty"`
	MimeType             string `json:"mimeType,omitempty"`
}

// FolderRef is a folder in the remote drive.
type FolderRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
	DriveID  string `json:"driveId,omitempty"`
	Trashed  bool   `json:"trashed"`
}

// FileDescriptor describes the local file and the names it goes through before upload.
type FileDescriptor struct {
	LocalPath    string
	DesiredName  string
	ResolvedName string
	MimeType     string
}

// UploadResult is returned once the remote file has been created.
type UploadResult struct {
	RemoteID   string `json:"remoteId"`
	RemoteName string `json:"remoteName"`
	FolderID   string `json:"folderId,omitempty"`
}

// UploadRecord is the audit entry written after each invocation.
type UploadRecord struct {
	InvocationID string    `json:"invocation_id" dynamodbav:"invocation_id"`
	JobUID       string    `json:"job_uid,omitempty" dynamodbav:"job_uid,omitempty"`
	Pipeline     string    `json:"pipeline,omitempty" dynamodbav:"pipeline,omitempty"` // JWT subject of the caller, if any
	Status       string    `json:"status" dynamodbav:"status"`
	RemoteID     string    `json:"remote_id,omitempty" dynamodbav:"remote_id,omitempty"`
	RemoteName   string    `json:"remote_name,omitempty" dynamodbav:"remote_name,omitempty"`
	FolderID     string    `json:"folder_id,omitempty" dynamodbav:"folder_id,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty" dynamodbav:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt    int64     `json:"-" dynamodbav:"expires_at,omitempty"` // DynamoDB TTL, unix seconds
}

// Upload record statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)
