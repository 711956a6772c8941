package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"scheme-admin/internal/apiclient"
	"scheme-admin/internal/models"
	"scheme-admin/internal/session"
)

const (
	PathListSchemes    = "/user/getAllSchemes"
	PathSchemeBySlug   = "/user/getSchemeBySlug/"
	PathCreateScheme   = "/admin/registerScheme"
	PathUpdateScheme   = "/admin/updateSchemeById/"
	PathDeleteScheme   = "/admin/deleteSchemeById/"
	PathListStates     = "/user/getAllStates"
	PathListCategories = "/user/allCategories"
	PathLogin          = "/admin/loginUser"
	PathRegister       = "/admin/registerUser"
	PathVerifyToken    = "/user/verifyToken"
)

var ErrEmptyResponse = errors.New("response has no data")

// ListQuery scopes a listing request. StateID wins when both ids are set.
type ListQuery struct {
	Page       int
	Limit      int
	StateID    string
	CategoryID string
}

func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	stateID := strings.TrimSpace(q.StateID)
	categoryID := strings.TrimSpace(q.CategoryID)
	switch {
	case stateID != "":
		v.Set("stateId", stateID)
	case categoryID != "":
		v.Set("categoryId", categoryID)
	}
	return v
}

// SchemePage is one listing response. TotalPages is 0 when the backend sent a
// bare array or omitted the field.
type SchemePage struct {
	Items      []models.SchemeSummary
	Total      int
	TotalPages int
}

type Client struct {
	http  *apiclient.Client
	store session.Store
}

// New binds the endpoints to c. store may be nil when logins need not persist.
func New(c *apiclient.Client, store session.Store) *Client {
	return &Client{http: c, store: store}
}

func (c *Client) ListSchemes(ctx context.Context, q ListQuery) (SchemePage, error) {
	var raw json.RawMessage
	if err := c.http.Get(ctx, PathListSchemes, q.Values(), &raw); err != nil {
		return SchemePage{}, err
	}
	return decodeSchemePage(raw)
}

func decodeSchemePage(raw json.RawMessage) (SchemePage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return SchemePage{}, nil
	}
	if trimmed[0] == '[' {
		var items []models.SchemeSummary
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return SchemePage{}, fmt.Errorf("decode scheme list: %w", err)
		}
		return SchemePage{Items: items, Total: len(items), TotalPages: 1}, nil
	}

	var envelope struct {
		Data       []models.SchemeSummary `json:"data"`
		Total      int                    `json:"total"`
		TotalPages int                    `json:"totalPages"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return SchemePage{}, fmt.Errorf("decode scheme list: %w", err)
	}
	return SchemePage{
		Items:      envelope.Data,
		Total:      envelope.Total,
		TotalPages: envelope.TotalPages,
	}, nil
}

func (c *Client) GetScheme(ctx context.Context, slugOrID string) (*models.SchemeDetail, error) {
	key := strings.TrimSpace(slugOrID)
	if key == "" {
		return nil, errors.New("get scheme: missing slug or id")
	}
	var raw json.RawMessage
	if err := c.http.Get(ctx, PathSchemeBySlug+url.PathEscape(key), nil, &raw); err != nil {
		return nil, err
	}
	return decodeDetail(raw)
}

func (c *Client) CreateScheme(ctx context.Context, form *apiclient.Form) (*models.SchemeDetail, error) {
	var raw json.RawMessage
	if err := c.http.SendForm(ctx, http.MethodPost, PathCreateScheme, form, &raw); err != nil {
		return nil, err
	}
	return decodeDetail(raw)
}

func (c *Client) UpdateScheme(ctx context.Context, id string, form *apiclient.Form) (*models.SchemeDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("update scheme: missing id")
	}
	var raw json.RawMessage
	if err := c.http.SendForm(ctx, http.MethodPut, PathUpdateScheme+url.PathEscape(id), form, &raw); err != nil {
		return nil, err
	}
	return decodeDetail(raw)
}

func (c *Client) DeleteScheme(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("delete scheme: missing id")
	}
	return c.http.Delete(ctx, PathDeleteScheme+url.PathEscape(id), nil)
}

// decodeDetail accepts {data: record} or the bare record.
func decodeDetail(raw json.RawMessage) (*models.SchemeDetail, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyResponse
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode scheme: %w", err)
	}
	body := bytes.TrimSpace(envelope.Data)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		body = trimmed
	}
	var detail models.SchemeDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("decode scheme: %w", err)
	}
	if detail.ID == "" && detail.Slug == "" {
		return nil, ErrEmptyResponse
	}
	return &detail, nil
}

func (c *Client) ListStates(ctx context.Context) ([]models.NamedEntity, error) {
	return c.listNamed(ctx, PathListStates)
}

func (c *Client) ListCategories(ctx context.Context) ([]models.NamedEntity, error) {
	return c.listNamed(ctx, PathListCategories)
}

func (c *Client) listNamed(ctx context.Context, path string) ([]models.NamedEntity, error) {
	var out struct {
		Data []models.NamedEntity `json:"data"`
	}
	if err := c.http.Get(ctx, path, nil, &out); err != nil {
		if apiclient.IsNotFound(err) {
			return []models.NamedEntity{}, nil
		}
		return nil, err
	}
	if out.Data == nil {
		return []models.NamedEntity{}, nil
	}
	return out.Data, nil
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	SetupKey string `json:"setupKey,omitempty"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.http.PostJSON(ctx, PathLogin, creds, &out); err != nil {
		return models.AuthResponse{}, err
	}
	return out, c.persist(out)
}

func (c *Client) Register(ctx context.Context, reg Registration) (models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.http.PostJSON(ctx, PathRegister, reg, &out); err != nil {
		return models.AuthResponse{}, err
	}
	return out, c.persist(out)
}

func (c *Client) persist(out models.AuthResponse) error {
	if strings.TrimSpace(out.Token) == "" {
		return errors.New("auth response has no token")
	}
	if c.store == nil {
		return nil
	}
	return c.store.Save(session.Session{Token: out.Token, User: out.User})
}

// VerifyToken returns nil when the backend accepts the current token.
func (c *Client) VerifyToken(ctx context.Context) error {
	return c.http.Get(ctx, PathVerifyToken, nil, nil)
}
