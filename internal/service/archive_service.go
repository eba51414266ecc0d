package service

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/pkg/executor"
	"construction-chatbot-be/pkg/storage"

	"github.com/google/uuid"
)

type IArchiveService interface {
	// BuildPackage fetches every document, zips what it could get and
	// accounts for the rest. The result is never partial-silent: every
	// requested document shows up either in downloaded or in errors.
	BuildPackage(ctx context.Context, docs []entity.DocumentRef) *entity.ArchiveResult
	// ResolveFromSearchResult maps search hits to document references.
	ResolveFromSearchResult(result *executor.SearchResult) []entity.DocumentRef
	// ResolveFromSQLRows maps report rows to document references.
	ResolveFromSQLRows(rows []map[string]any) []entity.DocumentRef
}

type archiveService struct {
	store        storage.ObjectStore
	downloadsDir string
	downloadsURL string
	logger       logger.ILogger
}

func NewArchiveService(store storage.ObjectStore, downloadsDir, downloadsURL string, log logger.ILogger) IArchiveService {
	return &archiveService{
		store:        store,
		downloadsDir: downloadsDir,
		downloadsURL: strings.TrimRight(downloadsURL, "/"),
		logger:       log,
	}
}

var unsafeFilenamePattern = regexp.MustCompile(`[^\w.-]`)
var repeatedUnderscores = regexp.MustCompile(`_+`)

func sanitizeFilename(name string) string {
	name = unsafeFilenamePattern.ReplaceAllString(name, "_")
	return repeatedUnderscores.ReplaceAllString(name, "_")
}

// ResolveFromSearchResult walks the nested reports of every hit and
// keys each document by its stored path, named {caseID}_{basename}.
func (s *archiveService) ResolveFromSearchResult(result *executor.SearchResult) []entity.DocumentRef {
	if result == nil {
		return nil
	}

	var docs []entity.DocumentRef
	for _, hit := range result.Hits {
		reports, _ := hit.Data["reports"].([]any)
		for _, rawReport := range reports {
			report, ok := rawReport.(map[string]any)
			if !ok {
				continue
			}
			path, _ := report["reportS3Path"].(string)
			if path == "" {
				continue
			}

			docs = append(docs, entity.DocumentRef{
				Key:  path,
				Name: sanitizeFilename(hit.ID + "_" + filepath.Base(path)),
			})
		}
	}
	return docs
}

// ResolveFromSQLRows rebuilds object keys from report rows. Imported
// reports were stored under their original filename; generated ones
// under {short_reference}-{reference}.
func (s *archiveService) ResolveFromSQLRows(rows []map[string]any) []entity.DocumentRef {
	var docs []entity.DocumentRef
	for _, row := range rows {
		caseId := stringValue(row["client_case_id"])
		reference := stringValue(row["reference"])
		shortRef := stringValue(row["client_case_short_reference"])
		if caseId == "" || reference == "" {
			continue
		}

		var key string
		if boolValue(row["imported"]) {
			filename := stringValue(row["filename"])
			if filename == "" {
				filename = reference
			}
			key = fmt.Sprintf("report/%s/%s.pdf", caseId, filename)
		} else {
			key = fmt.Sprintf("report/%s/%s-%s.pdf", caseId, shortRef, reference)
		}

		name := fmt.Sprintf("%s-%s-%s.pdf", shortRef, reference, dateValue(row["created_at"]))
		docs = append(docs, entity.DocumentRef{Key: key, Name: sanitizeFilename(name)})
	}
	return docs
}

func (s *archiveService) BuildPackage(ctx context.Context, docs []entity.DocumentRef) *entity.ArchiveResult {
	if len(docs) == 0 {
		return &entity.ArchiveResult{
			Success: false,
			Error:   "Aucun rapport trouvé pour votre demande.",
		}
	}

	tempDir, err := os.MkdirTemp("", "chatbot_downloads_")
	if err != nil {
		return &entity.ArchiveResult{Success: false, Error: "Impossible de créer le répertoire temporaire"}
	}
	defer os.RemoveAll(tempDir)

	zipFilename := fmt.Sprintf("reports_%s_%s.zip",
		time.Now().Format("2006-01-02_15-04-05"),
		strings.Split(uuid.NewString(), "-")[0],
	)
	zipPath := filepath.Join(tempDir, zipFilename)

	stats := entity.ArchiveStats{TotalRequested: len(docs), ErrorDetails: []string{}}
	var totalSize int

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return &entity.ArchiveResult{Success: false, Error: "Impossible de créer l'archive ZIP"}
	}
	writer := zip.NewWriter(zipFile)

	for _, doc := range docs {
		if ctx.Err() != nil {
			writer.Close()
			zipFile.Close()
			return &entity.ArchiveResult{Success: false, Error: "Génération interrompue"}
		}

		content, err := s.store.Get(ctx, doc.Key)
		if err != nil {
			stats.Errors++
			stats.ErrorDetails = append(stats.ErrorDetails,
				fmt.Sprintf("Fichier non trouvé: %s (clé: %s)", doc.Name, doc.Key))
			continue
		}

		entry, err := writer.Create(doc.Name)
		if err != nil {
			stats.Errors++
			stats.ErrorDetails = append(stats.ErrorDetails,
				fmt.Sprintf("Erreur pour le fichier %s: %v", doc.Name, err))
			continue
		}
		if _, err := entry.Write(content); err != nil {
			stats.Errors++
			stats.ErrorDetails = append(stats.ErrorDetails,
				fmt.Sprintf("Erreur pour le fichier %s: %v", doc.Name, err))
			continue
		}

		stats.Downloaded++
		totalSize += len(content)
	}

	if err := writer.Close(); err != nil {
		zipFile.Close()
		return &entity.ArchiveResult{Success: false, Error: "Impossible de finaliser l'archive ZIP"}
	}
	if err := zipFile.Close(); err != nil {
		return &entity.ArchiveResult{Success: false, Error: "Impossible de finaliser l'archive ZIP"}
	}

	stats.TotalSize = formatBytes(totalSize)

	if stats.Downloaded == 0 {
		return &entity.ArchiveResult{
			Success: false,
			Error:   "Aucun fichier n'a pu être téléchargé.",
			Stats:   stats,
		}
	}

	finalPath := filepath.Join(s.downloadsDir, zipFilename)
	if err := s.moveToDownloads(zipPath, finalPath); err != nil {
		s.logger.Error("archive", "Failed to publish archive", map[string]interface{}{
			"error": err.Error(),
		})
		return &entity.ArchiveResult{Success: false, Error: "Impossible de publier l'archive", Stats: stats}
	}

	s.logger.Info("archive", "Download package ready", map[string]interface{}{
		"file_name":  zipFilename,
		"downloaded": stats.Downloaded,
		"errors":     stats.Errors,
	})

	return &entity.ArchiveResult{
		Success:     true,
		FileName:    zipFilename,
		DownloadURL: s.downloadsURL + "/" + zipFilename,
		Stats:       stats,
	}
}

func (s *archiveService) moveToDownloads(tempPath, finalPath string) error {
	if err := os.MkdirAll(s.downloadsDir, 0o755); err != nil {
		return err
	}

	// Rename fails across filesystems; fall back to copy.
	if err := os.Rename(tempPath, finalPath); err == nil {
		return nil
	}

	data, err := os.ReadFile(tempPath)
	if err != nil {
		return err
	}
	return os.WriteFile(finalPath, data, 0o644)
}

func formatBytes(size int) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := unit, 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %s", float64(size)/float64(div), []string{"KB", "MB", "GB", "TB"}[exp])
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case int64:
		return fmt.Sprintf("%d", val)
	case int:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%.0f", val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func boolValue(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case float64:
		return val != 0
	default:
		return false
	}
}

func dateValue(v any) string {
	switch val := v.(type) {
	case time.Time:
		return val.Format("2006-01-02")
	case string:
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t.Format("2006-01-02")
		}
		if len(val) >= 10 {
			return val[:10]
		}
		return val
	default:
		return time.Now().Format("2006-01-02")
	}
}
