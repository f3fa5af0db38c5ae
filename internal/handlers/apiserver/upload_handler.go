package apiserver

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"social-go/internal/config"
	"social-go/internal/logger"
	"social-go/internal/media"
	"social-go/internal/storage"
)

const (
	defaultMaxMemory = 32 << 20 // 32 MB default max memory for multipart forms
)

// UploadHandler 封装了文件上传相关的 HTTP 处理器方法。
type UploadHandler struct {
	storageService storage.StorageService
	cfg            config.StorageConfig
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(storageService storage.StorageService, cfg config.StorageConfig) *UploadHandler {
	return &UploadHandler{
		storageService: storageService,
		cfg:            cfg,
	}
}

// UploadFileHandler 处理文件上传请求。{kind} 为 uploads 或 media。
func (h *UploadHandler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	kind := storage.UploadKind(mux.Vars(r)["kind"])
	if kind != storage.UploadKindUploads && kind != storage.UploadKindMedia {
		writeJSONError(w, "上传类型必须是 uploads 或 media", http.StatusBadRequest)
		return
	}

	file, header, ok := readUpload(w, r, h.cfg.MaxFileSizeMB)
	if !ok {
		return
	}
	defer file.Close()

	if !media.SupportedExtension(filepath.Ext(header.Filename)) {
		writeJSONError(w, "不支持的文件类型", http.StatusBadRequest)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	logger.Info("收到上传文件",
		zap.String("name", header.Filename), zap.Int64("size", header.Size), zap.String("mime", mimeType))

	fileInfo, err := h.storageService.UploadFile(r.Context(), kind, file, header.Size, header.Filename, mimeType)
	if err != nil {
		if errors.Is(err, storage.ErrSizeMismatch) {
			writeServiceError(w, err)
			return
		}
		logger.Error("存储文件失败", zap.Error(err))
		writeJSONError(w, "存储文件失败", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, fileInfo)
}

// readUpload bounds the request body and returns the "file" part of the form.
// On failure it has already written the response.
func readUpload(w http.ResponseWriter, r *http.Request, maxSizeMB int64) (multipart.File, *multipart.FileHeader, bool) {
	maxUploadSize := maxSizeMB << 20
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxMemory
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || err.Error() == "http: request body too large" {
			writeJSONError(w, fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20), http.StatusRequestEntityTooLarge)
		} else {
			writeJSONError(w, fmt.Sprintf("解析表单失败: %v", err), http.StatusBadRequest)
		}
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeJSONError(w, "请求中缺少 'file' 字段", http.StatusBadRequest)
		} else {
			writeJSONError(w, fmt.Sprintf("获取文件失败: %v", err), http.StatusBadRequest)
		}
		return nil, nil, false
	}

	if header.Size > maxUploadSize {
		file.Close()
		writeJSONError(w, fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20), http.StatusRequestEntityTooLarge)
		return nil, nil, false
	}
	return file, header, true
}
