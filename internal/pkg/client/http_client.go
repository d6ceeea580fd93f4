/**
 * 控制端HTTP客户端
 * @author: sun977
 * @date: 2026.10.14
 * @description: Launcher 与 Agent 访问控制端的HTTP客户端，统一做状态码分类
 * @func: Ping, FetchVersion, DownloadBinary, RegisterDevice, FetchRecentCommand, UpdateCommandStatus
 */
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/pma-it-suite/daemon/internal/model/base"
	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/pkg/utils"
	"github.com/pma-it-suite/daemon/internal/pkg/version"
)

// 控制端接口路径
const (
	PathPing         = "/ping.json"
	PathSemver       = "/semver.json"
	PathBinary       = "/bintest"
	PathRegister     = "/devices/register"
	PathRecent       = "/commands/recent"
	PathUpdateStatus = "/commands/update/status"
)

// Options 客户端参数
type Options struct {
	BaseURL         string
	DownloadPath    string
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	RetryCount      int
	RetryWait       time.Duration
	RetryMaxWait    time.Duration
	SkipTLSVerify   bool
}

// HTTPClient 控制端客户端
// 普通接口不在客户端内重试，由外层循环按退避策略重来；只有二进制下载走可重试传输
type HTTPClient struct {
	rest         *resty.Client
	download     *retryablehttp.Client
	baseURL      string
	downloadPath string
}

// NewHTTPClient 创建控制端客户端
func NewHTTPClient(opts Options) *HTTPClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.DownloadPath == "" {
		opts.DownloadPath = PathBinary
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryCount
	if opts.RetryWait > 0 {
		retryClient.RetryWaitMin = opts.RetryWait
	}
	if opts.RetryMaxWait > 0 {
		retryClient.RetryWaitMax = opts.RetryMaxWait
	}
	retryClient.HTTPClient.Timeout = opts.DownloadTimeout
	retryClient.Logger = nil
	// 重试用尽后把最后一次响应交回调用方分类
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.RequestTimeout).
		SetHeader("User-Agent", version.GetUserAgent()).
		SetHeader("Accept", "application/json")

	if opts.SkipTLSVerify {
		tlsConfig := &tls.Config{InsecureSkipVerify: true} //nolint:gosec // 仅在显式配置时使用
		restyClient.SetTLSClientConfig(tlsConfig)
		if transport, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &HTTPClient{
		rest:         restyClient,
		download:     retryClient,
		baseURL:      baseURL,
		downloadPath: opts.DownloadPath,
	}
}

// BaseURL 控制端地址
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Ping 健康检查，返回 ok=false 视为不可用
func (c *HTTPClient) Ping(ctx context.Context) error {
	var out client.PingResponse
	if err := c.doJSON(ctx, http.MethodGet, PathPing, nil, nil, &out); err != nil {
		return err
	}
	if !out.Ok {
		return base.NewError(base.ApiError, "control server reported not ok", client.ErrInvalidResponse)
	}
	return nil
}

// FetchVersion 获取当前发布的应用版本
func (c *HTTPClient) FetchVersion(ctx context.Context) (client.SemanticVersion, error) {
	var out client.SemanticVersion
	if err := c.doJSON(ctx, http.MethodGet, PathSemver, nil, nil, &out); err != nil {
		return client.SemanticVersion{}, err
	}
	return out, nil
}

// DownloadBinary 下载应用二进制
// 状态码校验通过后才返回响应体，调用方负责关闭
func (c *HTTPClient) DownloadBinary(ctx context.Context) (io.ReadCloser, error) {
	url := c.baseURL + c.downloadPath
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, base.NewError(base.UnknownError, "build download request", err)
	}
	req.Header.Set("User-Agent", version.GetUserAgent())
	req.Header.Set("X-Request-ID", utils.NewRequestID())

	resp, err := c.download.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, base.NewError(base.NetworkError, "GET "+c.downloadPath, err)
	}
	if err := classifyStatus(http.MethodGet, c.downloadPath, resp.StatusCode, nil); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// RegisterDevice 注册设备
func (c *HTTPClient) RegisterDevice(ctx context.Context, req *client.RegisterDeviceRequest) (*client.RegisterDeviceResponse, error) {
	var out client.RegisterDeviceResponse
	if err := c.doJSON(ctx, http.MethodPost, PathRegister, nil, req, &out); err != nil {
		return nil, err
	}
	if out.DeviceID == "" {
		return nil, base.NewError(base.ApiError, "register device", client.ErrDeviceIDMissing)
	}
	return &out, nil
}

// FetchRecentCommand 拉取设备最近一条命令，没有命令时返回 NotFound
func (c *HTTPClient) FetchRecentCommand(ctx context.Context, deviceID string) (*client.Command, error) {
	var out client.FetchRecentCommandResponse
	query := map[string]string{"device_id": deviceID}
	if err := c.doJSON(ctx, http.MethodGet, PathRecent, query, nil, &out); err != nil {
		return nil, err
	}
	// 200 但没有命令体时按没有命令处理
	if out.Command.ID == "" {
		return nil, base.NewError(base.NotFound, "recent command response carries no command", nil)
	}
	return &out.Command, nil
}

// UpdateCommandStatus 上报命令状态
func (c *HTTPClient) UpdateCommandStatus(ctx context.Context, commandID string, status client.CommandStatus) error {
	body := &client.UpdateCommandStatusRequest{CommandID: commandID, Status: status}
	return c.doJSON(ctx, http.MethodPatch, PathUpdateStatus, nil, body, nil)
}

// doJSON 发送请求并解码JSON响应
// out 为空时忽略响应体
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	req := c.rest.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", utils.NewRequestID())
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return base.NewError(base.NetworkError, method+" "+path, err)
	}
	if err := classifyStatus(method, path, resp.StatusCode(), resp.Body()); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return base.NewError(base.SerializationError, fmt.Sprintf("decode %s %s response", method, path), err)
	}
	return nil
}

// classifyStatus 状态码分类
// 200/201/204 成功; 404 NotFound; 400/422 InputError; 500 ServerError; 其它 ApiError
func classifyStatus(method, path string, status int, body []byte) error {
	var kind base.ErrorKind
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		kind = base.NotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = base.InputError
	case http.StatusInternalServerError:
		kind = base.ServerError
	default:
		kind = base.ApiError
	}

	msg := fmt.Sprintf("%s %s: status %d", method, path, status)
	if detail := strings.TrimSpace(string(body)); detail != "" {
		if len(detail) > 256 {
			detail = detail[:256]
		}
		msg += ": " + detail
	}
	return base.NewError(kind, msg, nil)
}
