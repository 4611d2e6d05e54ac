package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillsenselab/voiceid/embedding"
	apperrors "github.com/skillsenselab/voiceid/errors"
	"github.com/skillsenselab/voiceid/logger"
	"github.com/skillsenselab/voiceid/synthesis"
	"github.com/skillsenselab/voiceid/transcription"
)

const (
	// matchMessage and noMatchMessage are part of the wire contract; callers
	// display them verbatim.
	matchMessage   = "Voice verification successful"
	noMatchMessage = "Voice verification failed"
)

// EmbedResponse is the success payload of POST /embed.
type EmbedResponse struct {
	Success   bool             `json:"success"`
	Embedding embedding.Vector `json:"embedding"`
}

// VerifyResponse is the success payload of POST /verify. "Success" means the
// comparison ran; the verdict itself is IsMatch.
type VerifyResponse struct {
	Success    bool    `json:"success"`
	Similarity float64 `json:"similarity"`
	IsMatch    bool    `json:"isMatch"`
	Threshold  float64 `json:"threshold"`
	Message    string  `json:"message"`
}

// TranscribeResponse is the success payload of POST /stt.
type TranscribeResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// SynthesizeRequest is the JSON body of POST /tts.
type SynthesizeRequest struct {
	Text     string `json:"text" binding:"required"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

// Embed accepts a multipart "audio" upload and returns its voice-identity
// embedding.
func (h *Handlers) Embed(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		h.abort(c, apperrors.MissingField("audio").WithCause(err))
		return
	}
	defer file.Close()

	vec, err := h.pipe.Enroll(c.Request.Context(), file, header.Filename)
	if err != nil {
		h.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, EmbedResponse{Success: true, Embedding: vec})
}

// Verify accepts a multipart "audio" upload plus a "stored_embedding" form
// field and returns the match verdict.
func (h *Handlers) Verify(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		h.abort(c, apperrors.MissingField("audio").WithCause(err))
		return
	}
	defer file.Close()

	storedRaw := c.PostForm("stored_embedding")

	verdict, err := h.pipe.Verify(c.Request.Context(), file, header.Filename, storedRaw)
	if err != nil {
		h.abort(c, err)
		return
	}

	msg := noMatchMessage
	if verdict.IsMatch {
		msg = matchMessage
	}
	c.JSON(http.StatusOK, VerifyResponse{
		Success:    true,
		Similarity: verdict.Similarity,
		IsMatch:    verdict.IsMatch,
		Threshold:  verdict.Threshold,
		Message:    msg,
	})
}

// SpeechToText accepts a multipart "audio" upload and returns its transcript.
// The upload is staged to disk for the transcription backend and removed
// before the response is written.
func (h *Handlers) SpeechToText(c *gin.Context) {
	if h.stt == nil {
		h.abort(c, apperrors.ServiceUnavailable("speech-to-text model"))
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		h.abort(c, apperrors.MissingField("audio").WithCause(err))
		return
	}
	defer file.Close()

	stagedPath, err := h.saveUpload(file, header)
	if err != nil {
		h.abort(c, apperrors.Internal(err))
		return
	}
	defer func() {
		if rerr := os.Remove(stagedPath); rerr != nil && !os.IsNotExist(rerr) {
			h.log.Error("Failed to remove staged upload", logger.ErrorFields("stt_cleanup", rerr))
		}
	}()

	result, err := h.stt.Transcribe(c.Request.Context(), transcription.TranscriptionRequest{
		AudioPath: stagedPath,
		Language:  c.PostForm("language"),
		Model:     c.PostForm("model"),
	})
	if err != nil {
		if !h.stt.IsAvailable(c.Request.Context()) {
			h.abort(c, apperrors.ServiceUnavailable("speech-to-text model").WithCause(err))
			return
		}
		h.abort(c, apperrors.Internal(fmt.Errorf("transcription: %w", err)))
		return
	}

	c.JSON(http.StatusOK, TranscribeResponse{Success: true, Text: result.Text})
}

// TextToSpeech renders the given text to speech, persists the result at the
// configured fixed output path, and streams the audio back.
func (h *Handlers) TextToSpeech(c *gin.Context) {
	if h.tts == nil {
		h.abort(c, apperrors.ServiceUnavailable("speech synthesis model"))
		return
	}

	var req SynthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, apperrors.MissingField("text").WithCause(err))
		return
	}

	result, err := h.tts.Synthesize(c.Request.Context(), synthesis.SynthesisRequest{
		Text:     req.Text,
		Voice:    req.Voice,
		Language: req.Language,
	})
	if err != nil {
		if !h.tts.IsAvailable(c.Request.Context()) {
			h.abort(c, apperrors.ServiceUnavailable("speech synthesis model").WithCause(err))
			return
		}
		h.abort(c, apperrors.Internal(fmt.Errorf("synthesis: %w", err)))
		return
	}

	if err := h.persistSynthesis(result.Audio); err != nil {
		// The caller still gets their audio; only the on-disk copy failed.
		h.log.Error("Failed to persist synthesis output", logger.ErrorFields("tts_persist", err))
	}

	c.Data(http.StatusOK, result.ContentType, result.Audio)
}

// saveUpload writes the upload to a uniquely named file under the temp dir.
func (h *Handlers) saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" || len(ext) > 8 {
		ext = ".bin"
	}
	path := filepath.Join(h.cfg.TempDir, "stt-"+uuid.New().String()+ext)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return path, nil
}

// persistSynthesis overwrites the fixed output path with the latest audio.
func (h *Handlers) persistSynthesis(audio []byte) error {
	if h.cfg.TTSOutputPath == "" {
		return nil
	}
	if dir := filepath.Dir(h.cfg.TTSOutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(h.cfg.TTSOutputPath, audio, 0o644); err != nil {
		return fmt.Errorf("write synthesis output: %w", err)
	}
	return nil
}

// abort writes the error response for err and stops the handler chain.
func (h *Handlers) abort(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}

	fields := logger.Fields(
		"path", c.Request.URL.Path,
		"code", string(appErr.Code),
	)
	if appErr.Cause != nil {
		fields["cause"] = appErr.Cause.Error()
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.Error(appErr.Message, fields)
	} else {
		h.log.Warn(appErr.Message, fields)
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
