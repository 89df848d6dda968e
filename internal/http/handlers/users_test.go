package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/usershub/internal/domain/user"
	"github.com/geocoder89/usershub/internal/http/handlers"
	"github.com/geocoder89/usershub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake repository implementation of the handlers.UsersStore interface

type fakeUsersRepo struct {
	createFn func(ctx context.Context, in user.CreateInput) (user.User, error)
	listFn   func(ctx context.Context) ([]user.User, error)
	getFn    func(ctx context.Context, id int64) (user.User, error)
	updateFn func(ctx context.Context, id int64, in user.UpdateInput) (user.User, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (f *fakeUsersRepo) Create(ctx context.Context, in user.CreateInput) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, in)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]user.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []user.User{}, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, in)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

// small helper which mounts one handler behind the error translator

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.ErrorTranslator(slog.New(slog.NewTextHandler(io.Discard, nil))))

	r.Handle(method, path, h)

	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Details *struct {
		Field string `json:"field"`
		Rule  string `json:"rule"`
	} `json:"details"`
}

func decode(t *testing.T, body []byte) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode body: %v, body=%s", err, body)
	}
	return env
}

const validBody = `{
	"name": "Ann Lee",
	"phone": "+1 (555) 123-4567",
	"email": "ANN@X.COM",
	"address": "10 Main Street, Springfield",
	"city": "Springfield",
	"employer": "Acme Co"
}`

func sampleUser(id int64) user.User {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return user.User{
		ID:        id,
		Name:      "Ann Lee",
		Phone:     "+1 (555) 123-4567",
		Email:     "ann@x.com",
		Address:   "10 Main Street, Springfield",
		City:      "Springfield",
		Employer:  "Acme Co",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Create user tests

func TestCreateUserHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo, *bool)
		wantStatusCode int
		wantMessage    string
		wantField      string
		wantRepoCalled bool
	}{
		{
			name: "success",
			body: validBody,
			repoSetUp: func(f *fakeUsersRepo, called *bool) {
				f.createFn = func(ctx context.Context, in user.CreateInput) (user.User, error) {
					*called = true
					if in.Email != "ann@x.com" {
						return user.User{}, errors.New("email was not normalised")
					}
					return sampleUser(1), nil
				}
			},
			wantStatusCode: http.StatusCreated,
			wantMessage:    "User created successfully",
			wantRepoCalled: true,
		},
		{
			name:           "invalid_phone",
			body:           `{"name":"Ann Lee","phone":"123","email":"ann@x.com","address":"10 Main Street, Springfield","city":"Springfield","employer":"Acme Co"}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    `"phone" must be a valid phone number format (10-15 characters: digits, spaces, +, -, parentheses)`,
			wantField:      "phone",
		},
		{
			name:           "missing_field",
			body:           `{"name":"Ann Lee"}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    `"phone" is required`,
			wantField:      "phone",
		},
		{
			name:           "empty_body",
			body:           ``,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    `"name" is required`,
			wantField:      "name",
		},
		{
			name:           "malformed_json",
			body:           `{"name":`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Invalid JSON payload",
		},
		{
			name:           "unknown_key",
			body:           `{"name":"Ann Lee","phone":"+1 (555) 123-4567","email":"ann@x.com","address":"10 Main Street, Springfield","city":"Springfield","employer":"Acme Co","isAdmin":true}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    `"isAdmin" is not allowed`,
			wantField:      "isAdmin",
		},
		{
			name:           "trailing_data",
			body:           validBody + `{"name":"Bob"}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Invalid JSON payload",
		},
		{
			name:           "wrong_type",
			body:           `{"name": 42}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    `"name" must be a string`,
			wantField:      "name",
		},
		{
			name: "conflict",
			body: validBody,
			repoSetUp: func(f *fakeUsersRepo, called *bool) {
				f.createFn = func(ctx context.Context, in user.CreateInput) (user.User, error) {
					*called = true
					return user.User{}, user.ErrConflict
				}
			},
			wantStatusCode: http.StatusConflict,
			wantMessage:    "User with this email or phone already exists",
			wantRepoCalled: true,
		},
		{
			name: "repo_error",
			body: validBody,
			repoSetUp: func(f *fakeUsersRepo, called *bool) {
				f.createFn = func(ctx context.Context, in user.CreateInput) (user.User, error) {
					*called = true
					return user.User{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
			wantMessage:    "Internal server error",
			wantRepoCalled: true,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			called := false

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo, &called)
			} else {
				repo.createFn = func(ctx context.Context, in user.CreateInput) (user.User, error) {
					called = true
					return user.User{}, nil
				}
			}

			h := handlers.NewUsersHandler(repo)
			r := setupRouter(http.MethodPost, "/users", h.CreateUser)

			req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			env := decode(t, w.Body.Bytes())
			if env.Message != tt.wantMessage {
				t.Fatalf("got message %q, want %q", env.Message, tt.wantMessage)
			}
			if env.Success != (tt.wantStatusCode < 300) {
				t.Fatalf("success=%v for status %d", env.Success, w.Code)
			}
			if tt.wantField != "" && (env.Details == nil || env.Details.Field != tt.wantField) {
				t.Fatalf("got details %+v, want field %q", env.Details, tt.wantField)
			}
			if called != tt.wantRepoCalled {
				t.Fatalf("repo called=%v, want %v", called, tt.wantRepoCalled)
			}
		})
	}
}

// List users tests

func TestListUsersHandler(t *testing.T) {
	tests := []struct {
		name           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
		wantCount      int
	}{
		{
			name: "success",
			repoSetup: func(f *fakeUsersRepo) {
				f.listFn = func(ctx context.Context) ([]user.User, error) {
					return []user.User{sampleUser(2), sampleUser(1)}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      2,
		},
		{
			name:           "empty",
			wantStatusCode: http.StatusOK,
			wantCount:      0,
		},
		{
			name: "repo_error",
			repoSetup: func(f *fakeUsersRepo) {
				f.listFn = func(ctx context.Context) ([]user.User, error) {
					return nil, errors.New("db down")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewUsersHandler(repo)
			r := setupRouter(http.MethodGet, "/users", h.ListUsers)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if tt.wantStatusCode != http.StatusOK {
				return
			}

			env := decode(t, w.Body.Bytes())
			if env.Count == nil || *env.Count != tt.wantCount {
				t.Fatalf("got count %v, want %d", env.Count, tt.wantCount)
			}

			var data []user.User
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatalf("data is not an array: %s", env.Data)
			}
			if len(data) != tt.wantCount {
				t.Fatalf("got %d users, want %d", len(data), tt.wantCount)
			}
			if w.Header().Get("ETag") == "" {
				t.Fatalf("expected ETag header")
			}
		})
	}
}

func TestListUsersHandlerNotModified(t *testing.T) {
	repo := &fakeUsersRepo{
		listFn: func(ctx context.Context) ([]user.User, error) {
			return []user.User{sampleUser(1)}, nil
		},
	}

	h := handlers.NewUsersHandler(repo)
	r := setupRouter(http.MethodGet, "/users", h.ListUsers)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))
	etag := w.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("304 must not carry a body, got %s", w.Body.String())
	}
}

func TestGetUserByIDHandlerRevalidation(t *testing.T) {
	current := sampleUser(7)
	repo := &fakeUsersRepo{
		getFn: func(ctx context.Context, id int64) (user.User, error) {
			return current, nil
		},
	}

	r := setupRouter(http.MethodGet, "/users/:id", handlers.NewUsersHandler(repo).GetUserByID)

	get := func(ifNoneMatch string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/users/7", nil)
		if ifNoneMatch != "" {
			req.Header.Set("If-None-Match", ifNoneMatch)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	etag := get("").Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	if w := get(etag); w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w.Code)
	}

	current.City = "Shelbyville"
	current.UpdatedAt = current.UpdatedAt.Add(time.Second)

	w := get(etag)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d after update, want 200", w.Code)
	}
	if w.Header().Get("ETag") == etag {
		t.Fatalf("ETag did not change after update")
	}
}

// Get user tests

func TestGetUserByIDHandler(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
		wantMessage    string
	}{
		{
			name: "success",
			id:   "7",
			repoSetup: func(f *fakeUsersRepo) {
				f.getFn = func(ctx context.Context, id int64) (user.User, error) {
					return sampleUser(id), nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantMessage:    "User retrieved successfully",
		},
		{
			name: "not_found",
			id:   "99999",
			repoSetup: func(f *fakeUsersRepo) {
				f.getFn = func(ctx context.Context, id int64) (user.User, error) {
					return user.User{}, user.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
			wantMessage:    "User not found",
		},
		{name: "non_numeric", id: "abc", wantStatusCode: http.StatusBadRequest, wantMessage: "Invalid user ID"},
		{name: "trailing_garbage", id: "12abc", wantStatusCode: http.StatusBadRequest, wantMessage: "Invalid user ID"},
		{name: "zero", id: "0", wantStatusCode: http.StatusBadRequest, wantMessage: "Invalid user ID"},
		{name: "negative", id: "-3", wantStatusCode: http.StatusBadRequest, wantMessage: "Invalid user ID"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			} else {
				repo.getFn = func(ctx context.Context, id int64) (user.User, error) {
					t.Fatalf("repo must not be called for id %q", tt.id)
					return user.User{}, nil
				}
			}

			h := handlers.NewUsersHandler(repo)
			r := setupRouter(http.MethodGet, "/users/:id", h.GetUserByID)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+tt.id, nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if got := decode(t, w.Body.Bytes()).Message; got != tt.wantMessage {
				t.Fatalf("got message %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

// Update user tests

func TestUpdateUserHandler(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		body           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
		wantMessage    string
	}{
		{
			name: "success_single_field",
			id:   "1",
			body: `{"city":"Shelbyville"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.updateFn = func(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
					if in.City == nil || *in.City != "Shelbyville" || in.Name != nil {
						return user.User{}, errors.New("unexpected update input")
					}
					u := sampleUser(id)
					u.City = *in.City
					return u, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantMessage:    "User updated successfully",
		},
		{
			name:           "empty_object",
			id:             "1",
			body:           `{}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "No valid fields provided for update",
		},
		{
			name:           "invalid_field",
			id:             "1",
			body:           `{"email":"not-an-email"}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    `"email" must be a valid email`,
		},
		{
			name:           "unknown_key",
			id:             "1",
			body:           `{"city":"Shelbyville","isAdmin":true}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    `"isAdmin" is not allowed`,
		},
		{
			name:           "only_unknown_key",
			id:             "1",
			body:           `{"isAdmin":true}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    `"isAdmin" is not allowed`,
		},
		{
			name:           "trailing_data",
			id:             "1",
			body:           `{"city":"Shelbyville"} trailing`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Invalid JSON payload",
		},
		{
			name:           "invalid_id",
			id:             "abc",
			body:           `{"city":"Shelbyville"}`,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Invalid user ID",
		},
		{
			name: "not_found",
			id:   "99999",
			body: `{"city":"Shelbyville"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.updateFn = func(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
					return user.User{}, user.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
			wantMessage:    "User not found",
		},
		{
			name: "conflict",
			id:   "1",
			body: `{"email":"taken@x.com"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.updateFn = func(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
					return user.User{}, user.ErrConflict
				}
			},
			wantStatusCode: http.StatusConflict,
			wantMessage:    "User with this email or phone already exists",
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			} else {
				repo.updateFn = func(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
					t.Fatalf("repo must not be called")
					return user.User{}, nil
				}
			}

			h := handlers.NewUsersHandler(repo)
			r := setupRouter(http.MethodPut, "/users/:id", h.UpdateUser)

			req := httptest.NewRequest(http.MethodPut, "/users/"+tt.id, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if got := decode(t, w.Body.Bytes()).Message; got != tt.wantMessage {
				t.Fatalf("got message %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUsersHandlerFormBodies(t *testing.T) {
	const formType = "application/x-www-form-urlencoded"

	t.Run("create", func(t *testing.T) {
		var got user.CreateInput
		repo := &fakeUsersRepo{
			createFn: func(ctx context.Context, in user.CreateInput) (user.User, error) {
				got = in
				return sampleUser(1), nil
			},
		}

		form := url.Values{
			"name":     {"Bob Lee"},
			"phone":    {"555-987-6543"},
			"email":    {"BOB@X.COM"},
			"address":  {"22 Side Street, Springfield"},
			"city":     {"Springfield"},
			"employer": {"Acme Co"},
		}

		r := setupRouter(http.MethodPost, "/users", handlers.NewUsersHandler(repo).CreateUser)
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", formType)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
		if got.Name != "Bob Lee" || got.Email != "bob@x.com" {
			t.Fatalf("unexpected create input %+v", got)
		}
	})

	t.Run("update", func(t *testing.T) {
		var got user.UpdateInput
		repo := &fakeUsersRepo{
			updateFn: func(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
				got = in
				return sampleUser(id), nil
			},
		}

		r := setupRouter(http.MethodPut, "/users/:id", handlers.NewUsersHandler(repo).UpdateUser)
		req := httptest.NewRequest(http.MethodPut, "/users/1", strings.NewReader("city=Shelbyville"))
		req.Header.Set("Content-Type", formType)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
		if got.City == nil || *got.City != "Shelbyville" || got.Name != nil {
			t.Fatalf("unexpected update input %+v", got)
		}
	})

	t.Run("unknown_key", func(t *testing.T) {
		repo := &fakeUsersRepo{
			updateFn: func(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
				t.Fatalf("repo must not be called")
				return user.User{}, nil
			},
		}

		r := setupRouter(http.MethodPut, "/users/:id", handlers.NewUsersHandler(repo).UpdateUser)
		req := httptest.NewRequest(http.MethodPut, "/users/1", strings.NewReader("city=Shelbyville&isAdmin=1"))
		req.Header.Set("Content-Type", formType)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
		if got := decode(t, w.Body.Bytes()).Message; got != `"isAdmin" is not allowed` {
			t.Fatalf("got message %q", got)
		}
	})
}

// Delete user tests

func TestDeleteUserHandler(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
		wantMessage    string
	}{
		{
			name:           "success",
			id:             "1",
			wantStatusCode: http.StatusOK,
			wantMessage:    "User deleted successfully",
		},
		{
			name: "not_found",
			id:   "42",
			repoSetup: func(f *fakeUsersRepo) {
				f.deleteFn = func(ctx context.Context, id int64) error {
					return user.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
			wantMessage:    "User not found",
		},
		{
			name:           "invalid_id",
			id:             "1.5",
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Invalid user ID",
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewUsersHandler(repo)
			r := setupRouter(http.MethodDelete, "/users/:id", h.DeleteUser)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/users/"+tt.id, nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			env := decode(t, w.Body.Bytes())
			if env.Message != tt.wantMessage {
				t.Fatalf("got message %q, want %q", env.Message, tt.wantMessage)
			}
			if tt.wantStatusCode == http.StatusOK && len(env.Data) != 0 {
				t.Fatalf("delete must not return data, got %s", env.Data)
			}
		})
	}
}
