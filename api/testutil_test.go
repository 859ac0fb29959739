package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStorage is an in-memory stand-in for the Postgres storage with the same
// observable semantics: nil on missing rows, sql.ErrNoRows on stale writes,
// listing ordered by creation time with id as tie-break.
type memStorage struct {
	mu         sync.Mutex
	users      map[int]*user
	todos      map[int]*todo
	nextUserID int
	nextTodoID int
	now        time.Time
}

func newMemStorage() *memStorage {
	return &memStorage{
		users: make(map[int]*user),
		todos: make(map[int]*todo),
		now:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStorage) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *memStorage) getUserByEmail(_ context.Context, email string) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStorage) getUserByID(_ context.Context, id int) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memStorage) insertUser(_ context.Context, u *user) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return errDuplicateEmail
		}
	}
	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = s.tick()
	u.UpdatedAt = u.CreatedAt
	u.Version = 1
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memStorage) updateUser(_ context.Context, u *user) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[u.ID]
	if !ok || stored.Version != u.Version {
		return sql.ErrNoRows
	}
	for _, existing := range s.users {
		if existing.ID != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return errDuplicateEmail
		}
	}
	u.UpdatedAt = s.tick()
	u.Version++
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memStorage) insertTodo(_ context.Context, t *todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTodoID++
	t.ID = s.nextTodoID
	t.CreatedAt = s.tick()
	t.UpdatedAt = t.CreatedAt
	t.Version = 1
	cp := *t
	s.todos[t.ID] = &cp
	return nil
}

func (s *memStorage) getTodoByID(_ context.Context, id, userID int) (*todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *memStorage) getTodos(_ context.Context, userID int, search string, limit, offset int) ([]todo, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []todo
	for _, t := range s.todos {
		if t.UserID != userID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(search)) {
			continue
		}
		matched = append(matched, *t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	total := len(matched)
	if offset >= total {
		return []todo{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *memStorage) updateTodo(_ context.Context, t *todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.todos[t.ID]
	if !ok || stored.UserID != t.UserID || stored.Version != t.Version {
		return sql.ErrNoRows
	}
	t.UpdatedAt = s.tick()
	t.Version++
	cp := *t
	s.todos[t.ID] = &cp
	return nil
}

func (s *memStorage) deleteTodo(_ context.Context, id, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(s.todos, id)
	return true, nil
}

func (s *memStorage) todoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todos)
}

func newTestApplication(t *testing.T) (*application, *memStorage) {
	t.Helper()
	var cfg config
	cfg.env = "test"
	cfg.jwt.secret = "test-secret"
	cfg.jwt.tokenTTL = time.Hour
	store := newMemStorage()
	app := &application{
		config:  cfg,
		storage: store,
	}
	return app, store
}

// seedUser inserts a user directly into the store and returns it with a valid
// bearer token.
func seedUser(t *testing.T, app *application, store *memStorage, name, email string) (*user, string) {
	t.Helper()
	u := &user{
		Name:         name,
		Email:        email,
		PasswordHash: []byte("irrelevant"),
	}
	err := store.insertUser(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, _, err := issueToken(u.ID, app.config.jwt.secret, app.config.jwt.tokenTTL)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return u, token
}

// doRequest runs a request through the full route table and returns the
// recorded response.
func doRequest(t *testing.T, app *application, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	composeRoutes(app).ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	err := json.Unmarshal(rr.Body.Bytes(), dst)
	if err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func createTodoFor(t *testing.T, app *application, token, title string) todo {
	t.Helper()
	rr := doRequest(t, app, http.MethodPost, "/api/todos", token, map[string]string{"title": title})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create todo %q: status %d body %s", title, rr.Code, rr.Body.String())
	}
	var created todo
	decodeBody(t, rr, &created)
	return created
}
