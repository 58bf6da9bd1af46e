package qcontact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeoutSeconds = 30
	defaultRetryAttempts  = 3
)

// Config 客户端配置
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int // 为0时使用默认30秒
	RetryAttempts  int // 额外重试次数，为0时使用默认3次
}

// Client QContact API客户端
// 负责认证、请求追踪、错误分类和可恢复错误的自动重试
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	retryAttempts int

	// 重试等待函数，便于注入退避策略（默认指数退避）
	sleep func(d time.Duration)
}

// NewClient 创建QContact客户端
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("QContact base URL 不能为空")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("QContact API key 不能为空")
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	retries := cfg.RetryAttempts
	if retries <= 0 {
		retries = defaultRetryAttempts
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		retryAttempts: retries,
		sleep:         time.Sleep,
	}, nil
}

// ==================== 公开接口 ====================

// GetTicket 获取单个工单
// opts.ThrowOnNotFound 为 false 时，404返回 (nil, nil)
func (c *Client) GetTicket(ctx context.Context, ticketID string, opts *GetTicketOptions) (*Ticket, error) {
	var ticket Ticket
	err := c.request(ctx, requestOptions{
		method: http.MethodGet,
		path:   "/tickets/" + ticketID,
	}, &ticket)
	if err != nil {
		if opts != nil && !opts.ThrowOnNotFound && IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &ticket, nil
}

// ListTickets 分页查询工单列表
func (c *Client) ListTickets(ctx context.Context, opts ListTicketsOptions) (*TicketListResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Priority != "" {
		params.Set("priority", opts.Priority)
	}
	if opts.Category != "" {
		params.Set("category", opts.Category)
	}
	if opts.AssignedTo != "" {
		params.Set("assigned_to", opts.AssignedTo)
	}
	if opts.CreatedAfter != nil {
		params.Set("created_after", opts.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if opts.CreatedBefore != nil {
		params.Set("created_before", opts.CreatedBefore.UTC().Format(time.RFC3339))
	}
	if opts.UpdatedAfter != nil {
		params.Set("updated_after", opts.UpdatedAfter.UTC().Format(time.RFC3339))
	}
	if opts.UpdatedBefore != nil {
		params.Set("updated_before", opts.UpdatedBefore.UTC().Format(time.RFC3339))
	}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(opts.PageSize))
	}

	var resp TicketListResponse
	if err := c.request(ctx, requestOptions{
		method: http.MethodGet,
		path:   "/tickets",
		params: params,
	}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateTicket 创建工单
func (c *Client) CreateTicket(ctx context.Context, payload CreateTicketPayload) (*Ticket, error) {
	var ticket Ticket
	if err := c.request(ctx, requestOptions{
		method: http.MethodPost,
		path:   "/tickets",
		body:   payload,
	}, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// UpdateTicket 更新工单（PATCH部分更新）
func (c *Client) UpdateTicket(ctx context.Context, ticketID string, payload UpdateTicketPayload) (*Ticket, error) {
	var ticket Ticket
	if err := c.request(ctx, requestOptions{
		method: http.MethodPatch,
		path:   "/tickets/" + ticketID,
		body:   payload,
	}, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// AddNote 给工单添加备注
func (c *Client) AddNote(ctx context.Context, ticketID string, payload AddNotePayload) (*Note, error) {
	var note Note
	if err := c.request(ctx, requestOptions{
		method: http.MethodPost,
		path:   "/tickets/" + ticketID + "/notes",
		body:   payload,
	}, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// HealthCheck 健康检查，吞掉所有错误只返回布尔值，不重试
func (c *Client) HealthCheck(ctx context.Context) bool {
	err := c.request(ctx, requestOptions{
		method:    http.MethodGet,
		path:      "/health",
		skipRetry: true,
	}, nil)
	return err == nil
}

// ==================== 内部实现 ====================

type requestOptions struct {
	method    string
	path      string
	body      interface{}
	params    url.Values
	skipRetry bool
}

type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Field   string `json:"field"`
}

// request 发送请求并在可恢复错误时重试
// 400/401/403/404等不可恢复错误首次失败即返回
func (c *Client) request(ctx context.Context, opts requestOptions, out interface{}) error {
	fullURL := c.buildURL(opts.path, opts.params)

	var bodyBytes []byte
	if opts.body != nil {
		data, err := json.Marshal(opts.body)
		if err != nil {
			return &Error{
				Code:          ErrCodeUnknown,
				Message:       fmt.Sprintf("序列化请求体失败: %v", err),
				RequestURL:    fullURL,
				RequestMethod: opts.method,
			}
		}
		bodyBytes = data
	}

	attempts := c.retryAttempts
	if opts.skipRetry {
		attempts = 0
	}

	var lastErr *Error
	for attempt := 0; attempt <= attempts; attempt++ {
		err := c.do(ctx, opts.method, fullURL, bodyBytes, out)
		if err == nil {
			return nil
		}

		qe, ok := AsError(err)
		if !ok {
			return err
		}
		lastErr = qe

		if !qe.Recoverable || attempt >= attempts {
			return qe
		}

		c.sleep(backoffDelay(attempt, qe.RetryAfter))
	}

	return lastErr
}

// do 执行单次HTTP请求
func (c *Client) do(ctx context.Context, method, fullURL string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return &Error{
			Code:          ErrCodeUnknown,
			Message:       fmt.Sprintf("构建请求失败: %v", err),
			RequestURL:    fullURL,
			RequestMethod: method,
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", newRequestID())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		code := ErrCodeNetwork
		message := fmt.Sprintf("网络错误: %v", err)
		var ue *url.Error
		if errors.As(err, &ue) && ue.Timeout() {
			code = ErrCodeTimeout
			message = fmt.Sprintf("请求超时: %v", err)
		}
		return &Error{
			Code:          code,
			Message:       message,
			RequestURL:    fullURL,
			RequestMethod: method,
			Recoverable:   true,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{
			Code:          ErrCodeNetwork,
			Message:       fmt.Sprintf("读取响应失败: %v", err),
			RequestURL:    fullURL,
			RequestMethod: method,
			Recoverable:   true,
		}
	}

	return c.handleResponse(resp, respBody, fullURL, method, out)
}

// handleResponse 解析响应，失败响应转换为分类错误
func (c *Client) handleResponse(resp *http.Response, body []byte, fullURL, method string, out interface{}) error {
	statusCode := resp.StatusCode
	ok := statusCode >= 200 && statusCode < 300

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		if !ok {
			// 失败响应且响应体不是JSON
			return &Error{
				Code:          ErrCodeParse,
				Message:       "解析API响应失败",
				StatusCode:    statusCode,
				RequestURL:    fullURL,
				RequestMethod: method,
			}
		}
		// 成功但响应体为空或非JSON，视为空响应
		return nil
	}

	if ok {
		if out == nil || len(envelope.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &Error{
				Code:          ErrCodeParse,
				Message:       fmt.Sprintf("解析响应数据失败: %v", err),
				StatusCode:    statusCode,
				RequestURL:    fullURL,
				RequestMethod: method,
			}
		}
		return nil
	}

	message := fmt.Sprintf("HTTP %d error", statusCode)
	if envelope.Error != nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	retryAfter := 0
	if statusCode == http.StatusTooManyRequests {
		if header := resp.Header.Get("Retry-After"); header != "" {
			if seconds, err := strconv.Atoi(header); err == nil {
				retryAfter = seconds
			}
		}
	}

	return &Error{
		Code:          mapStatusCode(statusCode),
		Message:       message,
		StatusCode:    statusCode,
		RequestURL:    fullURL,
		RequestMethod: method,
		Recoverable:   isRetryableStatus(statusCode),
		RetryAfter:    retryAfter,
	}
}

// buildURL 拼接URL和查询参数
func (c *Client) buildURL(path string, params url.Values) string {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	return fullURL
}

// backoffDelay 计算重试等待时间
// 429带Retry-After时优先使用，否则指数退避
func backoffDelay(attempt int, retryAfterSeconds int) time.Duration {
	if retryAfterSeconds > 0 {
		return time.Duration(retryAfterSeconds) * time.Second
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

const requestIDCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// newRequestID 生成请求追踪ID，格式 req_<毫秒时间戳>_<随机串>
func newRequestID() string {
	random := make([]byte, 9)
	for i := range random {
		random[i] = requestIDCharset[rand.Intn(len(requestIDCharset))]
	}
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), string(random))
}
