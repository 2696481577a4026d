package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
	"github.com/Meetwin/AI-Lecturer/internal/core"
)

// multipart overhead allowed on top of the file size limit
const multipartSlack = 1 << 20

func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartSlack)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeError(w, r, apierr.New(http.StatusRequestEntityTooLarge, apierr.CodeValidation,
				fmt.Errorf("File exceeds the %d MB upload limit", h.maxUploadBytes/(1024*1024))))
			return
		}
		h.writeError(w, r, apierr.Validation("No file uploaded"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, apierr.Validation("No file uploaded"))
		return
	}
	defer file.Close()

	info, err := h.uploadService.Save(r.Context(), core.Upload{
		UserID:       requestUser(r, r.FormValue("userId")),
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         file,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "File uploaded and processed successfully",
		"file":    info,
	})
}
