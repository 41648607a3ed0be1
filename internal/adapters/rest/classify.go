package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/ewilliams-labs/soundwatch/internal/logging"
	"github.com/ewilliams-labs/soundwatch/internal/worker"
)

const (
	audioField           = "audio"
	multipartMemory      = 8 << 20
	scoresQueryParam     = "scores"
	responseStatusOK     = "success"
	errMsgNoAudio        = "No audio file provided"
	errMsgServerBusy     = "Server is busy, retry later"
	errMsgUploadTooLong  = "Audio file too large"
	errMsgClassifyFailed = "Audio classification failed"
	errCodeServerBusy    = "SERVER_BUSY"
	errCodeTooLarge      = "PAYLOAD_TOO_LARGE"
)

type classifyResponse struct {
	Classification string             `json:"classification"`
	Status         string             `json:"status"`
	Confidence     *float64           `json:"confidence,omitempty"`
	Scores         map[string]float64 `json:"scores,omitempty"`
}

// ClassifyAudio handles POST /classify-audio
func (h *Handler) ClassifyAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorWithCode(w, http.StatusRequestEntityTooLarge, errMsgUploadTooLong, errCodeTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, errMsgNoAudio)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(audioField)
	if err != nil {
		writeError(w, http.StatusBadRequest, errMsgNoAudio)
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, errMsgNoAudio)
		return
	}

	clip := domain.AudioClip{
		Filename: header.Filename,
		Format:   domain.FormatFromName(header.Filename, header.Header.Get("Content-Type")),
		Data:     data,
	}

	var (
		res    domain.ClassificationResult
		runErr error
	)
	if err := h.pool.Do(func() {
		res, runErr = h.pipeline.Classify(r.Context(), clip)
	}); err != nil {
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrStopped) {
			logging.Warning(logging.CategoryHTTP, "rejecting classification of %q: %v", clip.Filename, err)
			w.Header().Set("Retry-After", "1")
			writeErrorWithCode(w, http.StatusServiceUnavailable, errMsgServerBusy, errCodeServerBusy)
			return
		}
		logging.Error(logging.CategoryHTTP, "classification of %q aborted: %v", clip.Filename, err)
		writeError(w, http.StatusInternalServerError, errMsgClassifyFailed)
		return
	}

	if runErr != nil {
		var pe *domain.PipelineError
		if !errors.As(runErr, &pe) {
			pe = &domain.PipelineError{Kind: domain.KindOf(runErr, domain.DecodeFailure), Err: runErr}
		}
		status := http.StatusInternalServerError
		if pe.Kind == domain.InputError {
			status = http.StatusBadRequest
		}
		writeErrorWithCode(w, status, pe.Message(), string(pe.Kind))
		return
	}

	resp := classifyResponse{Classification: res.Label, Status: responseStatusOK}
	if want, _ := strconv.ParseBool(r.URL.Query().Get(scoresQueryParam)); want {
		confidence := res.Confidence
		resp.Confidence = &confidence
		resp.Scores = res.Scores
	}
	writeJSON(w, http.StatusOK, resp)
}
