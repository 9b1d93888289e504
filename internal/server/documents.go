package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxDocumentBytes = 20 << 20

func (s *Server) UploadDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "missing_file", "file is required"))
		return
	}
	if header.Size > maxDocumentBytes {
		AbortWithError(c, newValidationError("file", "file_too_large", "file exceeds the upload limit"))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	doc, err := s.documentSvc.Upload(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}

func (s *Server) DownloadDocument(c *gin.Context) {
	reader, doc, err := s.documentSvc.Open(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer reader.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, doc.SizeBytes, contentType, reader, map[string]string{
		"Content-Disposition": `attachment; filename="` + doc.FileName + `"`,
	})
}
