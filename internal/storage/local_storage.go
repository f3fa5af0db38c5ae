package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"social-go/internal/config"
)

// UploadKind selects which directory an upload lands in.
type UploadKind string

const (
	UploadKindUploads UploadKind = "uploads"
	UploadKindMedia   UploadKind = "media"
	UploadKindAvatar  UploadKind = "avatar"
)

var (
	ErrUnknownUploadKind = errors.New("unknown upload kind")
	ErrOutsideStorage    = errors.New("path is outside the storage roots")
	ErrSizeMismatch      = errors.New("uploaded size does not match declared size")
)

// FileInfo 包含上传文件的基本信息和访问路径。
type FileInfo struct {
	URL      string `json:"url"`                // public mount URL, empty for avatars
	Name     string `json:"name"`               // stored filename
	Path     string `json:"-"`                  // absolute path on disk
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName,omitempty"` // 原始文件名
}

// StorageService 定义了文件存储操作的接口。
type StorageService interface {
	UploadFile(ctx context.Context, kind UploadKind, reader io.Reader, fileSize int64, fileName string, mimeType string) (*FileInfo, error)
}

// FileRemover deletes a file if it exists. A missing file is not an error.
type FileRemover interface {
	Remove(path string) error
}

// LocalStorageService stores files under BASE_DIR/uploads, BASE_DIR/media and the avatar dir.
type LocalStorageService struct {
	baseDir   string
	avatarDir string
	dirs      map[UploadKind]string
}

// NewLocalStorageService resolves the storage directories and creates them.
func NewLocalStorageService(cfg config.StorageConfig) (*LocalStorageService, error) {
	baseDir, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage base dir %q: %w", cfg.BaseDir, err)
	}
	avatarDir := cfg.AvatarDir
	if !filepath.IsAbs(avatarDir) {
		avatarDir = filepath.Join(baseDir, avatarDir)
	}

	s := &LocalStorageService{
		baseDir:   baseDir,
		avatarDir: filepath.Clean(avatarDir),
		dirs: map[UploadKind]string{
			UploadKindUploads: filepath.Join(baseDir, "uploads"),
			UploadKindMedia:   filepath.Join(baseDir, "media"),
		},
	}
	s.dirs[UploadKindAvatar] = s.avatarDir

	for _, dir := range s.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建本地存储目录失败 '%s': %w", dir, err)
		}
	}
	return s, nil
}

func (s *LocalStorageService) BaseDir() string   { return s.baseDir }
func (s *LocalStorageService) AvatarDir() string { return s.avatarDir }

// MediaRoots returns the absolute directories embedded media may live in.
func (s *LocalStorageService) MediaRoots() []string {
	return []string{s.dirs[UploadKindUploads], s.dirs[UploadKindMedia]}
}

// AvatarPath maps a stored avatar filename to its absolute path.
func (s *LocalStorageService) AvatarPath(name string) (string, bool) {
	name = filepath.Base(filepath.Clean(name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", false
	}
	return filepath.Join(s.avatarDir, name), true
}

// UploadFile 将文件保存到本地文件系统，文件名由 uuid 生成。
func (s *LocalStorageService) UploadFile(ctx context.Context, kind UploadKind, reader io.Reader, fileSize int64, fileName string, mimeType string) (*FileInfo, error) {
	dir, ok := s.dirs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUploadKind, kind)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		if extensions, _ := mime.ExtensionsByType(mimeType); len(extensions) > 0 {
			ext = extensions[0]
		}
	}
	uniqueFileName := uuid.New().String() + ext
	dstPath := filepath.Join(dir, uniqueFileName)

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("创建目标文件失败 '%s': %w", dstPath, err)
	}

	written, err := io.Copy(dst, reader)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return nil, fmt.Errorf("写入文件失败: %w", err)
	}
	if fileSize >= 0 && written != fileSize {
		_ = os.Remove(dstPath)
		return nil, fmt.Errorf("%w: expected %d, wrote %d", ErrSizeMismatch, fileSize, written)
	}

	info := &FileInfo{
		Name:     uniqueFileName,
		Path:     dstPath,
		Size:     written,
		MimeType: mimeType,
		FileName: fileName,
	}
	if kind != UploadKindAvatar {
		info.URL = path.Join("/", string(kind), url.PathEscape(uniqueFileName))
	}
	return info, nil
}

// Remove deletes p if it lies under one of the storage directories.
// Deleting a file that does not exist succeeds.
func (s *LocalStorageService) Remove(p string) error {
	if !s.owns(p) {
		return fmt.Errorf("%w: %s", ErrOutsideStorage, p)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorageService) owns(p string) bool {
	if !filepath.IsAbs(p) {
		return false
	}
	p = filepath.Clean(p)
	for _, dir := range s.dirs {
		rel, err := filepath.Rel(dir, p)
		if err != nil || rel == "." {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
