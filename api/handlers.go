package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	healthCheck := struct {
		Status      string `json:"status"`
		Environment string `json:"environment"`
		Version     string `json:"version"`
	}{
		Status:      "available",
		Environment: app.config.env,
		Version:     version,
	}
	writeJSON(w, http.StatusOK, healthCheck)
}

func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	v := newValidator()
	v.checkCond(input.Name != "", "name", "must be provided")
	v.checkCond(len(input.Name) <= 255, "name", "must be atmost 255 characters")
	v.checkEmail(input.Email)
	v.checkPassword(input.Password)
	if v.hasErrors() {
		writeError(w, v.message(), http.StatusBadRequest)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), 12)
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	u := &user{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
	}
	err = app.storage.insertUser(r.Context(), u)
	if err != nil {
		if errors.Is(err, errDuplicateEmail) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if app.mailer != nil {
		go func() {
			err := app.mailer.sendWelcome(u)
			if err != nil {
				log.Println(err)
			}
		}()
	}
	writeJSON(w, http.StatusCreated, u)
}

func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	v := newValidator()
	v.checkEmail(input.Email)
	v.checkCond(input.Password != "", "password", "must be provided")
	if v.hasErrors() {
		writeError(w, v.message(), http.StatusBadRequest)
		return
	}
	u, err := app.storage.getUserByEmail(r.Context(), input.Email)
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if u == nil {
		writeError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	err = bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(input.Password))
	if err != nil {
		writeError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	token, expiresAt, err := issueToken(u.ID, app.config.jwt.secret, app.config.jwt.tokenTTL)
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (app *application) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	u, err := app.storage.getUserByID(r.Context(), userIDFromRequest(r))
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if u == nil {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (app *application) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	u, err := app.storage.getUserByID(r.Context(), userIDFromRequest(r))
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if u == nil {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}
	// Empty fields leave the stored value untouched; a profile field cannot
	// be cleared through this endpoint.
	if input.Name != "" {
		v := newValidator()
		v.checkCond(len(input.Name) <= 255, "name", "must be atmost 255 characters")
		if v.hasErrors() {
			writeError(w, v.message(), http.StatusBadRequest)
			return
		}
		u.Name = input.Name
	}
	if input.Email != "" {
		v := newValidator()
		v.checkEmail(input.Email)
		if v.hasErrors() {
			writeError(w, v.message(), http.StatusBadRequest)
			return
		}
		u.Email = input.Email
	}
	err = app.storage.updateUser(r.Context(), u)
	if err != nil {
		switch {
		case errors.Is(err, errDuplicateEmail):
			writeError(w, err.Error(), http.StatusBadRequest)
		case isNoRows(err):
			writeError(w, "user not found", http.StatusNotFound)
		default:
			log.Println(err)
			writeError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
	})
}

func (app *application) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title string `json:"title"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	v := newValidator()
	v.checkCond(input.Title != "", "title", "must be provided")
	v.checkCond(len(input.Title) <= 500, "title", "must be atmost 500 characters")
	if v.hasErrors() {
		writeError(w, v.message(), http.StatusBadRequest)
		return
	}
	t := &todo{
		UserID: userIDFromRequest(r),
		Title:  input.Title,
	}
	err = app.storage.insertTodo(r.Context(), t)
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (app *application) getTodosHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	search := q.Get("search")

	todos, total, err := app.storage.getTodos(r.Context(), userIDFromRequest(r), search, limit, (page-1)*limit)
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pages := (total + limit - 1) / limit
	writeJSON(w, http.StatusOK, map[string]any{
		"todos": todos,
		"page":  page,
		"pages": pages,
		"total": total,
	})
}

func (app *application) getTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, "todo not found", http.StatusNotFound)
		return
	}
	t, err := app.storage.getTodoByID(r.Context(), id, userIDFromRequest(r))
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if t == nil {
		writeError(w, "todo not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (app *application) updateTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, "todo not found", http.StatusNotFound)
		return
	}
	var input struct {
		Title     *string `json:"title"`
		Completed *bool   `json:"completed"`
	}
	err = json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if input.Title != nil {
		v := newValidator()
		v.checkCond(*input.Title != "", "title", "must be provided")
		v.checkCond(len(*input.Title) <= 500, "title", "must be atmost 500 characters")
		if v.hasErrors() {
			writeError(w, v.message(), http.StatusBadRequest)
			return
		}
	}
	t, err := app.storage.getTodoByID(r.Context(), id, userIDFromRequest(r))
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if t == nil {
		writeError(w, "todo not found", http.StatusNotFound)
		return
	}
	if input.Title != nil {
		t.Title = *input.Title
	}
	if input.Completed != nil {
		t.IsCompleted = *input.Completed
	}
	err = app.storage.updateTodo(r.Context(), t)
	if err != nil {
		if isNoRows(err) {
			writeError(w, "todo not found", http.StatusNotFound)
			return
		}
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (app *application) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, "todo not found", http.StatusNotFound)
		return
	}
	deleted, err := app.storage.deleteTodo(r.Context(), id, userIDFromRequest(r))
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		writeError(w, "todo not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "todo deleted"})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Println(err)
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeError(w http.ResponseWriter, msg string, statusCode int) {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
