// Package extract pulls plain text out of uploaded study materials.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

type Method string

const (
	MethodPlainText   Method = "plain_text"
	MethodPDFToText   Method = "pdftotext"
	MethodUnavailable Method = "unavailable"
	MethodUnsupported Method = "unsupported"
	MethodFailed      Method = "error"
)

const (
	PDFUnavailableText = "PDF content (install pdftotext for text extraction)"
	UnsupportedText    = "File uploaded successfully (text extraction not supported for this format)"
	FailedText         = "Error extracting text from file"
)

const pdfTimeout = 2 * time.Minute

// Result always carries usable text: extraction failures degrade to a
// placeholder sentence and Method records what happened.
type Result struct {
	Text   string
	Method Method
	Err    error
}

type Extractor struct {
	lookPath func(string) (string, error)
}

func New() *Extractor {
	return &Extractor{lookPath: exec.LookPath}
}

func (e *Extractor) Extract(ctx context.Context, path, contentType string) Result {
	switch mediaType(contentType) {
	case "text/plain":
		b, err := os.ReadFile(path)
		if err != nil {
			return Result{Text: FailedText, Method: MethodFailed, Err: fmt.Errorf("read text file: %w", err)}
		}
		return Result{Text: string(b), Method: MethodPlainText}
	case "application/pdf":
		txt, err := e.pdfToText(ctx, path)
		if err != nil {
			return Result{Text: PDFUnavailableText, Method: MethodUnavailable, Err: err}
		}
		return Result{Text: txt, Method: MethodPDFToText}
	default:
		return Result{Text: UnsupportedText, Method: MethodUnsupported}
	}
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func (e *Extractor) pdfToText(ctx context.Context, pdfPath string) (string, error) {
	bin, err := e.lookPath("pdftotext")
	if err != nil {
		return "", fmt.Errorf("pdftotext not found in PATH: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, pdfTimeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "mentora_pdftotext_*")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, "out.txt")
	cmd := exec.CommandContext(callCtx, bin, "-enc", "UTF-8", "-q", pdfPath, outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return "", fmt.Errorf("pdftotext: %w; stderr=%s", err, s)
		}
		return "", fmt.Errorf("pdftotext: %w", err)
	}

	b, err := os.ReadFile(outPath)
	if err != nil {
		return "", fmt.Errorf("read pdftotext output: %w", err)
	}
	txt := strings.TrimSpace(string(b))
	if txt == "" {
		return "", fmt.Errorf("pdftotext produced empty output")
	}
	return txt, nil
}
