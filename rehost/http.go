package rehost

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/internal/tlsutil"
	"go.uber.org/zap"
)

// HTTPConfig 配置图床上传端点.
type HTTPConfig struct {
	Endpoint  string        `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	APIKey    string        `yaml:"api_key" json:"-" env:"API_KEY"`
	FieldName string        `yaml:"field_name" json:"field_name" env:"FIELD_NAME"`
	MaxBytes  int64         `yaml:"max_bytes" json:"max_bytes" env:"MAX_BYTES"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
}

// HTTPUploader 下载源图像并以 multipart 表单上传到图床.
// 响应格式为 {"success":bool,"message":string,"image_id":string,"links":{"direct":string}}.
type HTTPUploader struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ImageID string `json:"image_id"`
	Links   struct {
		Direct string `json:"direct"`
	} `json:"links"`
}

// NewHTTPUploader 创建图床上传器.
func NewHTTPUploader(cfg HTTPConfig, client *http.Client, logger *zap.Logger) *HTTPUploader {
	if cfg.FieldName == "" {
		cfg.FieldName = "image"
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		client = tlsutil.SecureHTTPClient(timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPUploader{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("component", "rehost")),
	}
}

// UploadFromURL 转存 sourceURL 指向的图像；data: 地址直接解码.
func (u *HTTPUploader) UploadFromURL(ctx context.Context, sourceURL string) UploadResult {
	data, filename, err := u.fetch(ctx, sourceURL)
	if err != nil {
		u.logger.Warn("fetch source image failed", zap.Error(err))
		return failed(err.Error())
	}

	resp, err := u.upload(ctx, data, filename)
	if err != nil {
		u.logger.Warn("upload image failed", zap.Error(err))
		return failed(err.Error())
	}
	return UploadResult{Success: true, URL: resp.Links.Direct}
}

func (u *HTTPUploader) fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	if strings.HasPrefix(sourceURL, "data:") {
		return decodeDataURL(sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid source url: %w", err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download source image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("source image returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, u.cfg.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read source image: %w", err)
	}
	if int64(len(data)) > u.cfg.MaxBytes {
		return nil, "", fmt.Errorf("source image exceeds %d bytes", u.cfg.MaxBytes)
	}

	filename := path.Base(req.URL.Path)
	if filename == "" || filename == "/" || filename == "." || path.Ext(filename) == "" {
		filename = "image" + extensionFor(resp.Header.Get("Content-Type"))
	}
	return data, filename, nil
}

func (u *HTTPUploader) upload(ctx context.Context, data []byte, filename string) (*uploadResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(u.cfg.FieldName, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write image bytes to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", u.cfg.APIKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("image host returned status %d: %s", resp.StatusCode, string(b))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("image host reported an error: %s", out.Message)
	}
	if out.Links.Direct == "" {
		return nil, fmt.Errorf("image host returned no direct link")
	}
	return &out, nil
}

// decodeDataURL 解析 data:[<mediatype>][;base64],<data>.
func decodeDataURL(s string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data url")
	}

	mediaType := meta
	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		mediaType = strings.TrimSuffix(meta, ";base64")
		isBase64 = true
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("malformed base64 payload: %w", err)
		}
		data = decoded
	} else {
		data = []byte(payload)
	}
	return data, "image" + extensionFor(mediaType), nil
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".png"
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
