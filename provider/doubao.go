package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/internal/tlsutil"
	"github.com/BaSui01/imageflow/types"
)

const doubaoImagesPath = "/api/v3/images/generations"

// DoubaoAdapter 使用火山方舟 Images API 执行图像生成.
// 方舟以 Bearer APIKey 认证；APISecret 属于同一对访问凭证，构造时必须存在.
// ExtraKey 非空时作为推理接入点 ID 覆盖模型变体.
type DoubaoAdapter struct {
	cfg    DoubaoConfig
	creds  Credentials
	client *http.Client
}

// NewDoubaoAdapter 创建豆包图像适配器；APIKey 与 APISecret 必须同时提供.
func NewDoubaoAdapter(cfg DoubaoConfig, creds Credentials, client *http.Client) (*DoubaoAdapter, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, missingCredentials("doubao", "an access key and a secret key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://ark.cn-beijing.volces.com"
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second
		}
		client = tlsutil.SecureHTTPClient(timeout)
	}
	return &DoubaoAdapter{
		cfg:    cfg,
		creds:  creds,
		client: client,
	}, nil
}

func (a *DoubaoAdapter) Name() string { return "doubao" }

type doubaoImageRequest struct {
	Model          string   `json:"model"`
	Prompt         string   `json:"prompt"`
	ResponseFormat string   `json:"response_format"`
	Size           string   `json:"size,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	GuidanceScale  *float64 `json:"guidance_scale,omitempty"`
	Image          string   `json:"image,omitempty"`
	Watermark      bool     `json:"watermark"`
}

type doubaoImageResponse struct {
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Data    []struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate 生成一张图像；Params 支持 model、seed、guidance_scale、image（图生图源地址）.
func (a *DoubaoAdapter) Generate(ctx context.Context, req *Request) (*Result, error) {
	model := a.creds.ExtraKey
	if model == "" {
		model = req.ModelVariant()
	}
	if model == "" {
		model = a.cfg.Model
	}
	size := req.Size
	if size == "" {
		size = a.cfg.Size
	}

	body := doubaoImageRequest{
		Model:          model,
		Prompt:         req.Prompt,
		ResponseFormat: "url",
		Size:           size,
		Image:          req.Params["image"],
		Watermark:      a.cfg.Watermark,
	}
	if v, ok := req.Params["seed"]; ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidRequest, "invalid seed %q", v).WithProvider(a.Name())
		}
		body.Seed = &seed
	}
	if v, ok := req.Params["guidance_scale"]; ok {
		gs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidRequest, "invalid guidance_scale %q", v).WithProvider(a.Name())
		}
		body.GuidanceScale = &gs
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + doubaoImagesPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.creds.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(ctx, a.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(a.Name(), resp)
	}

	var dResp doubaoImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&dResp); err != nil {
		return nil, invalidResponse(a.Name(), err)
	}
	if dResp.Error != nil && dResp.Error.Message != "" {
		return nil, types.Errorf(types.ErrUpstreamError, "doubao error: %s: %s", dResp.Error.Code, dResp.Error.Message).
			WithProvider(a.Name())
	}
	if len(dResp.Data) == 0 {
		return nil, types.NewError(types.ErrInvalidResponse, "doubao returned no images").WithProvider(a.Name())
	}

	d := dResp.Data[0]
	imageURL := d.URL
	if imageURL == "" && d.B64JSON != "" {
		imageURL = "data:image/jpeg;base64," + d.B64JSON
	}
	if imageURL == "" {
		return nil, types.NewError(types.ErrInvalidResponse, "doubao returned an empty image entry").WithProvider(a.Name())
	}

	return &Result{Success: true, ImageURL: imageURL}, nil
}
