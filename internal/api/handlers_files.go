// handlers_files.go - record attachments (multipart upload + download)
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/facility-logbook/backend/internal/models"
	"github.com/facility-logbook/backend/internal/storage"
	"github.com/facility-logbook/backend/internal/store"
)

// FileHandler stores and serves attachments: calibration scans,
// signed certificates, photos tied to a record.
type FileHandler struct {
	st    *store.Store
	files storage.Store
}

// NewFileHandler creates a new file handler.
func NewFileHandler(st *store.Store, files storage.Store) *FileHandler {
	return &FileHandler{st: st, files: files}
}

// HandleUploadFile accepts a multipart upload. The form carries the
// file plus the recordType/recordId the attachment belongs to.
func (h *FileHandler) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	recordType := c.FormValue("recordType")
	recordID := c.FormValue("recordId")
	if recordType == "" || recordID == "" {
		return NewValidationError("recordType and recordId are required")
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	id := uuid.NewString()
	size, err := h.files.Save(id, file.Filename, src)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			return NewValidationError("file exceeds the upload size limit")
		case errors.Is(err, storage.ErrTypeNotAllowed):
			return NewValidationError("file type is not allowed")
		default:
			return NewInternalError("failed to save file", err)
		}
	}

	user := currentUser(c)
	att := &models.Attachment{
		ID:          id,
		Name:        file.Filename,
		Size:        size,
		ContentType: file.Header.Get("Content-Type"),
		RecordType:  recordType,
		RecordID:    recordID,
		UploadedBy:  &user.ID,
		UploadedAt:  time.Now(),
	}
	if err := h.st.Attachments.Create(c.Request().Context(), att); err != nil {
		h.files.Delete(id)
		return storeError(err, "attachment", id)
	}
	return c.JSON(http.StatusCreated, att)
}

// HandleListFiles lists the attachments of one record.
func (h *FileHandler) HandleListFiles(c echo.Context) error {
	recordType := c.QueryParam("recordType")
	recordID := c.QueryParam("recordId")
	if recordType == "" || recordID == "" {
		return NewValidationError("recordType and recordId are required")
	}
	items, err := h.st.Attachments.ListForRecord(c.Request().Context(), recordType, recordID)
	if err != nil {
		return NewInternalError("failed to list attachments", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
	})
}

// HandleDownloadFile streams one attachment under its original name.
func (h *FileHandler) HandleDownloadFile(c echo.Context) error {
	att, err := h.st.Attachments.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "attachment", c.Param("id"))
	}
	path, err := h.files.Path(att.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewNotFoundError("attachment", att.ID)
		}
		return NewInternalError("failed to locate file", err)
	}
	return c.Attachment(path, att.Name)
}

// HandleDeleteFile removes an attachment's metadata and bytes.
func (h *FileHandler) HandleDeleteFile(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	att, err := h.st.Attachments.GetByID(ctx, id)
	if err != nil {
		return storeError(err, "attachment", id)
	}
	if err := h.st.Attachments.Delete(ctx, id); err != nil {
		return storeError(err, "attachment", id)
	}
	if err := h.files.Delete(att.ID); err != nil {
		return NewInternalError("failed to delete file", err)
	}
	return c.NoContent(http.StatusNoContent)
}
