// Package services holds the client's business logic: the upload
// orchestrator that drains staged files to the endpoint (UploadService) and
// the staging facade that feeds the record store (FileService).
package services
