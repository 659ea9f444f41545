package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/service"
)

const sessionKey = "session"

type ingestResponse struct {
	Fingerprint string `json:"fingerprint"`
	Filename    string `json:"filename"`
	Chunks      int    `json:"chunks"`
	Skipped     bool   `json:"skipped"`
	Summary     string `json:"summary"`
}

type answerRequest struct {
	Question string `json:"question"`
}

type sourceResponse struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Index      int     `json:"index"`
	Score      float64 `json:"score"`
}

type answerResponse struct {
	Status  service.Status   `json:"status"`
	Answer  string           `json:"answer"`
	Context string           `json:"context"`
	Sources []sourceResponse `json:"sources"`
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) withSession(c *gin.Context) {
	sess := s.sessions.get(c.GetHeader(SessionHeader))
	c.Header(SessionHeader, sess.ID)
	c.Set(sessionKey, sess)
	c.Next()
}

func (s *Server) ingest(c *gin.Context) {
	sess := c.MustGet(sessionKey).(*service.Session)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusBadRequest, "file exceeds the "+strconv.FormatInt(s.maxBytes>>20, 10)+"MB upload limit")
			return
		}
		fail(c, http.StatusBadRequest, "file is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "failed to open file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, "failed to read file")
		return
	}

	res, err := s.backend.Ingest(c.Request.Context(), sess, data, header.Filename)
	if err != nil {
		var extErr *domain.ExtractionError
		if errors.As(err, &extErr) {
			fail(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("ingest failed", zap.String("session", sess.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Error processing document: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, ingestResponse{
		Fingerprint: res.Fingerprint,
		Filename:    res.Filename,
		Chunks:      res.ChunkCount,
		Skipped:     res.Skipped,
		Summary:     res.Summary,
	})
}

func (s *Server) answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	a := s.backend.Answer(c.Request.Context(), req.Question)
	resp := answerResponse{Status: a.Status, Answer: a.Text, Context: a.Context, Sources: []sourceResponse{}}
	for _, src := range a.Sources {
		resp.Sources = append(resp.Sources, sourceResponse{
			ChunkID:    src.Chunk.ID,
			DocumentID: src.Chunk.DocumentID,
			Index:      src.Chunk.Index,
			Score:      src.Score,
		})
	}
	c.JSON(http.StatusOK, resp)
}
