package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/vrsandeep/oilspill-go/internal/imaging"
	"github.com/vrsandeep/oilspill-go/internal/processing"
	"github.com/vrsandeep/oilspill-go/internal/uploads"
)

// Multipart overhead allowed on top of the configured file size limit.
const multipartSlack = 1 << 20

// handleUpload stores the "file" form field and hands it to the machine.
// The machine then plays out the simulated transfer.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	m := machineFromRequest(w, r)
	if m == nil {
		return
	}

	if max := s.app.Config().Uploads.MaxBytes; max > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, max+multipartSlack)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondWithError(w, http.StatusRequestEntityTooLarge, uploads.ErrTooLarge.Error())
			return
		}
		RespondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Missing 'file' field")
		return
	}
	defer file.Close()

	handle, err := s.app.Uploads().Save(header.Filename, header.Header.Get("Content-Type"), file)
	switch {
	case errors.Is(err, uploads.ErrUnsupportedType):
		RespondWithError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, uploads.ErrTooLarge):
		RespondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, uploads.ErrEmpty):
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("Upload of %s failed: %v", header.Filename, err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	m.UploadFile(handle)
	RespondWithJSON(w, http.StatusAccepted, handle)
}

// handleGetPreview serves a JPEG rendition of the current file.
func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	m := machineFromRequest(w, r)
	if m == nil {
		return
	}

	var width uint
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			RespondWithError(w, http.StatusBadRequest, "Invalid width")
			return
		}
		width = uint(n)
	}

	file := m.Snapshot().CurrentFile
	data, err := s.app.Previews().Get(file, width)
	switch {
	case errors.Is(err, imaging.ErrNoFile):
		RespondWithError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, imaging.ErrDecode):
		log.Printf("Preview of %s failed: %v", file.Name, err)
		m.SetUploadStatus(processing.UploadError)
		m.AddLog(fmt.Sprintf("Could not read image %s", file.Name), processing.SeverityError)
		RespondWithError(w, http.StatusUnprocessableEntity, "The current file is not a readable image")
		return
	case err != nil:
		log.Printf("Preview of %s failed: %v", file.Name, err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to render preview")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}
