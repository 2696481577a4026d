package core

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
	"github.com/Meetwin/AI-Lecturer/internal/extract"
	"github.com/Meetwin/AI-Lecturer/internal/logger"
	"github.com/Meetwin/AI-Lecturer/internal/metrics"
	"github.com/Meetwin/AI-Lecturer/internal/store"
)

const (
	materialsDir = "materials"
	previewChars = 300
)

var allowedExtensions = map[string]bool{
	".pdf": true, ".txt": true, ".doc": true, ".docx": true,
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true,
	".mp3": true, ".wav": true, ".mp4": true, ".mov": true,
}

var allowedMimeTokens = []string{"pdf", "txt", "doc", "docx", "png", "jpg", "jpeg", "webp", "gif", "mp3", "wav", "mp4", "mov"}

type textExtractor interface {
	Extract(ctx context.Context, path, contentType string) extract.Result
}

type UploadService struct {
	files     store.FileStore
	extractor textExtractor
	dir       string
	maxBytes  int64
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewUploadService(files store.FileStore, extractor textExtractor, dir string, maxBytes int64, log *logger.Logger, m *metrics.Metrics) *UploadService {
	if log == nil {
		log = logger.Nop()
	}
	return &UploadService{
		files:     files,
		extractor: extractor,
		dir:       dir,
		maxBytes:  maxBytes,
		log:       log.With("service", "UploadService"),
		metrics:   m,
		now:       time.Now,
	}
}

type Upload struct {
	UserID       string
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
}

type FileInfo struct {
	ID            string    `json:"id"`
	OriginalName  string    `json:"originalName"`
	Size          int64     `json:"size"`
	Type          string    `json:"type"`
	URL           string    `json:"url"`
	UploadedAt    time.Time `json:"uploadedAt"`
	TextExtracted bool      `json:"textExtracted"`
	Preview       string    `json:"preview"`
	UserID        string    `json:"userId"`
}

// Save stores the upload on disk, extracts its text and appends that text to
// the user's file buffer as a "=== FILE: <name> ===" block.
func (s *UploadService) Save(ctx context.Context, up Upload) (*FileInfo, error) {
	if up.Body == nil || up.OriginalName == "" {
		return nil, apierr.Validation("No file uploaded")
	}
	if s.maxBytes > 0 && up.Size > s.maxBytes {
		return nil, tooLarge(s.maxBytes)
	}
	ext := strings.ToLower(filepath.Ext(up.OriginalName))
	if !allowedExtensions[ext] || !mimeAllowed(up.ContentType) {
		return nil, apierr.Validation("Only documents, images, audio, and video files are allowed")
	}
	userID := orDefault(up.UserID, AnonymousUserID)

	now := s.now()
	name := fmt.Sprintf("%d-%s%s", now.UnixMilli(), uuid.NewString()[:8], ext)
	dir := filepath.Join(s.dir, materialsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apierr.Internal("Failed to upload file", fmt.Errorf("create upload dir: %w", err))
	}
	path := filepath.Join(dir, name)
	written, err := writeFile(path, up.Body, s.maxBytes)
	if err != nil {
		os.Remove(path)
		if written < 0 {
			return nil, tooLarge(s.maxBytes)
		}
		return nil, apierr.Internal("Failed to upload file", err)
	}

	res := s.extractor.Extract(ctx, path, up.ContentType)
	if res.Err != nil {
		s.log.Warn("Text extraction degraded", "file", name, "method", string(res.Method), "error", res.Err)
	}
	s.metrics.ObserveUpload(string(res.Method))

	block := fmt.Sprintf("\n\n=== FILE: %s ===\n%s", up.OriginalName, res.Text)
	if err := s.files.AppendFileText(ctx, userID, block); err != nil {
		return nil, apierr.Internal("Failed to upload file", err)
	}
	s.log.Info("File uploaded", "user_id", userID, "file", name, "bytes", written)

	return &FileInfo{
		ID:            name,
		OriginalName:  up.OriginalName,
		Size:          written,
		Type:          up.ContentType,
		URL:           "/uploads/" + materialsDir + "/" + name,
		UploadedAt:    now,
		TextExtracted: res.Text != "",
		Preview:       preview(res.Text),
		UserID:        userID,
	}, nil
}

// writeFile returns -1 as the count when body exceeds maxBytes.
func writeFile(path string, body io.Reader, maxBytes int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	src := body
	if maxBytes > 0 {
		src = io.LimitReader(body, maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return n, fmt.Errorf("write upload file: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		return -1, fmt.Errorf("upload exceeds %d bytes", maxBytes)
	}
	return n, nil
}

func tooLarge(maxBytes int64) error {
	return apierr.New(http.StatusRequestEntityTooLarge, apierr.CodeValidation,
		fmt.Errorf("File exceeds the %d MB upload limit", maxBytes/(1024*1024)))
}

func mimeAllowed(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(contentType)
	}
	if mt == "text/plain" || mt == "application/msword" {
		return true
	}
	if strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/") {
		return true
	}
	for _, tok := range allowedMimeTokens {
		if strings.Contains(mt, tok) {
			return true
		}
	}
	return false
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewChars {
		return text
	}
	return string([]rune(text)[:previewChars]) + "..."
}
