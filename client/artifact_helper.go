package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/a2aruntime/a2a/a2a"
)

// ArtifactHelper provides utility functions for working with artifacts
// returned on completed tasks.
type ArtifactHelper struct{}

// NewArtifactHelper creates a new client-side artifact helper instance.
func NewArtifactHelper() *ArtifactHelper {
	return &ArtifactHelper{}
}

// HasArtifacts returns true if the task contains any artifacts.
func (ah *ArtifactHelper) HasArtifacts(task *a2a.Task) bool {
	return task != nil && len(task.Artifacts) > 0
}

// GetArtifactCount returns the number of artifacts in a task.
func (ah *ArtifactHelper) GetArtifactCount(task *a2a.Task) int {
	if task == nil {
		return 0
	}
	return len(task.Artifacts)
}

// GetArtifactByID retrieves a specific artifact by its ID from a task.
func (ah *ArtifactHelper) GetArtifactByID(task *a2a.Task, artifactID a2a.ArtifactId) (*a2a.Artifact, bool) {
	if task == nil {
		return nil, false
	}
	for i, artifact := range task.Artifacts {
		if artifact.Id == artifactID {
			return &task.Artifacts[i], true
		}
	}
	return nil, false
}

// GetArtifactsByType retrieves all artifacts of the given type ("text",
// "file", or "data").
func (ah *ArtifactHelper) GetArtifactsByType(task *a2a.Task, kind string) []a2a.Artifact {
	matching := make([]a2a.Artifact, 0)
	if task == nil {
		return matching
	}
	for _, artifact := range task.Artifacts {
		if artifact.Type == kind {
			matching = append(matching, artifact)
		}
	}
	return matching
}

// GetTextArtifacts retrieves all artifacts carrying text content.
func (ah *ArtifactHelper) GetTextArtifacts(task *a2a.Task) []a2a.Artifact {
	return ah.GetArtifactsByType(task, "text")
}

// GetFileArtifacts retrieves all artifacts carrying file content.
func (ah *ArtifactHelper) GetFileArtifacts(task *a2a.Task) []a2a.Artifact {
	return ah.GetArtifactsByType(task, "file")
}

// GetDataArtifacts retrieves all artifacts carrying structured data.
func (ah *ArtifactHelper) GetDataArtifacts(task *a2a.Task) []a2a.Artifact {
	return ah.GetArtifactsByType(task, "data")
}

// ExtractText returns the artifact's Data as a string, or false if it isn't
// a text artifact.
func (ah *ArtifactHelper) ExtractText(artifact *a2a.Artifact) (string, bool) {
	if artifact == nil || artifact.Type != "text" {
		return "", false
	}
	text, ok := artifact.Data.(string)
	return text, ok
}

// ExtractData returns the artifact's structured Data, or false if it isn't
// a data artifact.
func (ah *ArtifactHelper) ExtractData(artifact *a2a.Artifact) (any, bool) {
	if artifact == nil || artifact.Type != "data" {
		return nil, false
	}
	return artifact.Data, true
}

// FileData represents extracted file information from an artifact: either
// inline base64 bytes or a URI (set by ArtifactBlobStore.Offload once a file
// has been moved out of line).
type FileData struct {
	Name string
	Data []byte
	URI  string
}

// IsDataFile returns true if this file carries inline bytes.
func (fd *FileData) IsDataFile() bool {
	return len(fd.Data) > 0
}

// IsURIFile returns true if this file is a reference rather than inline data.
func (fd *FileData) IsURIFile() bool {
	return fd.URI != ""
}

// GetFileName returns the file name or a default if none is set.
func (fd *FileData) GetFileName() string {
	if fd.Name != "" {
		return fd.Name
	}
	return "unnamed_file"
}

// ExtractFileData extracts file data from a file artifact. Artifacts whose
// Data is neither a base64 string nor carry a URI return an error.
func (ah *ArtifactHelper) ExtractFileData(artifact *a2a.Artifact) (FileData, error) {
	if artifact == nil || artifact.Type != "file" {
		return FileData{}, fmt.Errorf("artifact is not a file artifact")
	}

	fileData := FileData{Name: artifact.Name}

	if artifact.URI != "" {
		fileData.URI = artifact.URI
		return fileData, nil
	}

	b64, ok := artifact.Data.(string)
	if !ok || b64 == "" {
		return FileData{}, fmt.Errorf("file artifact contains neither a URI nor inline bytes")
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return FileData{}, fmt.Errorf("failed to decode base64 file data: %w", err)
	}
	fileData.Data = data
	return fileData, nil
}

// FilterArtifactsByName returns artifacts whose name contains namePattern
// (case-insensitive).
func (ah *ArtifactHelper) FilterArtifactsByName(task *a2a.Task, namePattern string) []a2a.Artifact {
	matching := make([]a2a.Artifact, 0)
	if task == nil {
		return matching
	}

	pattern := strings.ToLower(namePattern)
	for _, artifact := range task.Artifacts {
		if strings.Contains(strings.ToLower(artifact.Name), pattern) {
			matching = append(matching, artifact)
		}
	}
	return matching
}

// GetArtifactSummary returns a count of artifacts by type.
func (ah *ArtifactHelper) GetArtifactSummary(task *a2a.Task) map[string]int {
	summary := make(map[string]int)
	if task == nil {
		return summary
	}
	for _, artifact := range task.Artifacts {
		summary[artifact.Type]++
	}
	return summary
}

// ExtractArtifactUpdate extracts the artifact-update payload from a
// streaming result, if that's the kind of event it is.
func (ah *ArtifactHelper) ExtractArtifactUpdate(event a2a.StreamingResult) (*a2a.TaskArtifactUpdateEvent, bool) {
	if event.Kind != a2a.StreamKindTaskArtifactUpdate || event.TaskArtifactUpdate == nil {
		return nil, false
	}
	return event.TaskArtifactUpdate, true
}

// DownloadConfig holds configuration for downloading artifacts.
type DownloadConfig struct {
	// OutputDir is the directory where files will be saved (default: current directory).
	OutputDir string
	// HTTPClient is the HTTP client to use for URI downloads (default: http.DefaultClient).
	HTTPClient *http.Client
	// OverwriteExisting allows overwriting existing files (default: false).
	OverwriteExisting bool
}

// DownloadResult represents the result of a file download.
type DownloadResult struct {
	FileName     string
	FilePath     string
	BytesWritten int64
	Error        error
}

// DownloadFileData downloads a FileData object to disk, fetching it from
// its URI if the data was offloaded to blob storage.
func (ah *ArtifactHelper) DownloadFileData(ctx context.Context, fileData FileData, config *DownloadConfig) (*DownloadResult, error) {
	if config == nil {
		config = &DownloadConfig{OutputDir: ".", HTTPClient: http.DefaultClient}
	}
	if config.OutputDir == "" {
		config.OutputDir = "."
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	fileName := fileData.GetFileName()
	filePath := filepath.Join(config.OutputDir, fileName)

	if !config.OverwriteExisting {
		if _, err := os.Stat(filePath); err == nil {
			return nil, fmt.Errorf("file already exists: %s (use OverwriteExisting to allow overwriting)", filePath)
		}
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var data []byte
	var err error
	switch {
	case fileData.IsDataFile():
		data = fileData.Data
	case fileData.IsURIFile():
		data, err = ah.downloadFromURI(ctx, fileData.URI, config.HTTPClient)
		if err != nil {
			return &DownloadResult{FileName: fileName, FilePath: filePath, Error: err}, err
		}
	default:
		return nil, fmt.Errorf("file data contains neither bytes nor URI")
	}

	bytesWritten, err := ah.writeFile(filePath, data)
	if err != nil {
		return &DownloadResult{FileName: fileName, FilePath: filePath, Error: err}, err
	}

	return &DownloadResult{FileName: fileName, FilePath: filePath, BytesWritten: bytesWritten}, nil
}

// DownloadArtifact downloads a single file artifact.
func (ah *ArtifactHelper) DownloadArtifact(ctx context.Context, artifact *a2a.Artifact, config *DownloadConfig) (*DownloadResult, error) {
	fileData, err := ah.ExtractFileData(artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to extract file data: %w", err)
	}
	return ah.DownloadFileData(ctx, fileData, config)
}

// DownloadAllArtifacts downloads every file artifact on a task.
func (ah *ArtifactHelper) DownloadAllArtifacts(ctx context.Context, task *a2a.Task, config *DownloadConfig) ([]*DownloadResult, error) {
	if !ah.HasArtifacts(task) {
		return []*DownloadResult{}, nil
	}

	results := make([]*DownloadResult, 0)
	for _, artifact := range ah.GetFileArtifacts(task) {
		artifact := artifact
		result, err := ah.DownloadArtifact(ctx, &artifact, config)
		if err != nil {
			results = append(results, &DownloadResult{FileName: artifact.Name, Error: err})
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func (ah *ArtifactHelper) downloadFromURI(ctx context.Context, uri string, client *http.Client) (data []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download from %s: %w", uri, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

func (ah *ArtifactHelper) writeFile(filePath string, data []byte) (bytesWritten int64, err error) {
	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", closeErr)
		}
	}()

	n, err := file.Write(data)
	if err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return int64(n), nil
}
