package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"contactsync/internal/app/client/config"
	"contactsync/internal/domain/account"
	syncdto "contactsync/internal/domain/sync"

	"golang.org/x/exp/slog"
)

// ErrUnauthorized сервер отклонил токен устройства
var ErrUnauthorized = errors.New("требуется авторизация")

// HTTPClient реализует processor.Server поверх HTTP API сервера синхронизации
type HTTPClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	token     string
	userAgent string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) *HTTPClient {
	client := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &HTTPClient{
		client:    client,
		log:       log.With(slog.String("component", "http_client")),
		baseURL:   strings.TrimRight(cfg.BaseURL(), "/"),
		userAgent: "ContactSync-Client/1.0",
	}
}

// SetToken устанавливает токен устройства
func (h *HTTPClient) SetToken(token string) {
	h.token = token
}

// HealthCheck проверяет доступность сервера
func (h *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}
	return nil
}

// Register создает учетную запись; токен из ответа не сохраняется
func (h *HTTPClient) Register(ctx context.Context, req account.RegisterRequest) (*account.RegisterResponse, error) {
	var result account.RegisterResponse
	if err := h.call(ctx, http.MethodPost, "/api/accounts", req, &result); err != nil {
		return nil, err
	}
	if result.Status == "Error" {
		return nil, fmt.Errorf("ошибка сервера: %s", result.Error)
	}
	return &result, nil
}

// Ответы со статусом "Error" возвращаются как есть: их разбирают процессоры

func (h *HTTPClient) FetchChanges(ctx context.Context, req syncdto.ChangesRequest) (*syncdto.ChangesResponse, error) {
	var result syncdto.ChangesResponse
	return &result, h.call(ctx, http.MethodPost, "/api/sync/changes", req, &result)
}

func (h *HTTPClient) PushContacts(ctx context.Context, req syncdto.PushContactsRequest) (*syncdto.PushContactsResponse, error) {
	var result syncdto.PushContactsResponse
	return &result, h.call(ctx, http.MethodPost, "/api/sync/contacts", req, &result)
}

func (h *HTTPClient) PushDetails(ctx context.Context, req syncdto.PushDetailsRequest) (*syncdto.PushDetailsResponse, error) {
	var result syncdto.PushDetailsResponse
	return &result, h.call(ctx, http.MethodPost, "/api/sync/details", req, &result)
}

func (h *HTTPClient) DeleteContacts(ctx context.Context, req syncdto.DeleteContactsRequest) (*syncdto.AckResponse, error) {
	return h.ack(ctx, "/api/sync/contacts/delete", req)
}

func (h *HTTPClient) DeleteDetails(ctx context.Context, req syncdto.DeleteDetailsRequest) (*syncdto.AckResponse, error) {
	return h.ack(ctx, "/api/sync/details/delete", req)
}

func (h *HTTPClient) AddGroupMembers(ctx context.Context, req syncdto.GroupMembersRequest) (*syncdto.AckResponse, error) {
	return h.ack(ctx, "/api/sync/groups/add", req)
}

func (h *HTTPClient) RemoveGroupMembers(ctx context.Context, req syncdto.GroupMembersRequest) (*syncdto.AckResponse, error) {
	return h.ack(ctx, "/api/sync/groups/remove", req)
}

func (h *HTTPClient) FetchThumbnails(ctx context.Context, req syncdto.FetchThumbnailsRequest) (*syncdto.FetchThumbnailsResponse, error) {
	var result syncdto.FetchThumbnailsResponse
	return &result, h.call(ctx, http.MethodPost, "/api/sync/thumbnails/fetch", req, &result)
}

func (h *HTTPClient) PushThumbnails(ctx context.Context, req syncdto.PushThumbnailsRequest) (*syncdto.AckResponse, error) {
	return h.ack(ctx, "/api/sync/thumbnails/push", req)
}

func (h *HTTPClient) FetchProfile(ctx context.Context) (*syncdto.ProfileResponse, error) {
	var result syncdto.ProfileResponse
	return &result, h.call(ctx, http.MethodGet, "/api/profile", nil, &result)
}

func (h *HTTPClient) ack(ctx context.Context, path string, body any) (*syncdto.AckResponse, error) {
	var result syncdto.AckResponse
	return &result, h.call(ctx, http.MethodPost, path, body, &result)
}

func (h *HTTPClient) call(ctx context.Context, method, path string, body, result any) error {
	resp, err := h.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, result)
}

func (h *HTTPClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", h.userAgent)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	return resp, nil
}

func (h *HTTPClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"size", len(body),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil {
			if errResp.Error != "" {
				return fmt.Errorf("ошибка сервера: %s", errResp.Error)
			}
			if errResp.Detail != "" {
				return fmt.Errorf("ошибка сервера: %s", errResp.Detail)
			}
		}
		return fmt.Errorf("ошибка сервера: статус %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}
	return nil
}
