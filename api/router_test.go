package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"krisbot/chat-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestAPI(t *testing.T) *API {
	t.Helper()

	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	viper.Set("app.log_level", "error")
	viper.Set("host.cors_origins", []string{"http://localhost:3000"})
	viper.Set("jwt.secret", testSecret)
	viper.Set("jwt.expire_minutes", 60)
	viper.Set("db.url", "")
	viper.Set("db.name", filepath.Join(dir, "test"))
	viper.Set("storage.type", "local")
	viper.Set("storage.upload_dir", filepath.Join(dir, "uploads"))
	viper.Set("upload.max_size", int64(1<<20))
	viper.Set("ai.openai_api_key", "")
	viper.Set("ai.anthropic_api_key", "")

	a, err := NewRouter()
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return a
}

func doJSON(t *testing.T, a *API, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, a *API, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func registerUser(t *testing.T, a *API, email, username string) string {
	t.Helper()

	rec := doJSON(t, a, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		ID string `json:"id"`
	}
	decode(t, rec, &body)
	require.NotEmpty(t, body.ID)
	return body.ID
}

func loginUser(t *testing.T, a *API, email string) string {
	t.Helper()

	rec := doJSON(t, a, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decode(t, rec, &body)
	require.Equal(t, "bearer", body.TokenType)
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func TestRegister_Duplicates(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "kris@example.com",
		"username": "kris",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotContains(t, rec.Body.String(), "password")

	// Same email, different username
	rec = doJSON(t, a, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "kris@example.com",
		"username": "kris2",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	// Same username, different email
	rec = doJSON(t, a, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "other@example.com",
		"username": "kris",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "not-an-address",
		"username": "kris",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, a, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "kris@example.com",
		"username": "kris",
		"password": "short",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	a := newTestAPI(t)
	registerUser(t, a, "kris@example.com", "kris")

	wrongPass := doJSON(t, a, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "kris@example.com",
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, wrongPass.Code)

	noUser := doJSON(t, a, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, noUser.Code)

	var a1, a2 struct {
		Error string `json:"error"`
	}
	decode(t, wrongPass, &a1)
	decode(t, noUser, &a2)
	require.Equal(t, a1.Error, a2.Error)
}

func TestAuth_TokenLifecycle(t *testing.T) {
	a := newTestAPI(t)
	userID := registerUser(t, a, "kris@example.com", "kris")
	token := loginUser(t, a, "kris@example.com")

	// A fresh token resolves back to the same user
	rec := doJSON(t, a, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	decode(t, rec, &me)
	require.Equal(t, userID, me.ID)
	require.Equal(t, "kris@example.com", me.Email)

	// Missing, malformed and expired tokens all fail with 401
	rec = doJSON(t, a, http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, a, http.MethodGet, "/api/auth/me", nil, "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := security.MakeToken(userID, []byte(testSecret), -time.Minute)
	require.NoError(t, err)
	rec = doJSON(t, a, http.MethodGet, "/api/auth/me", nil, expired)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChat_FallbackAndHistory(t *testing.T) {
	a := newTestAPI(t)
	registerUser(t, a, "kris@example.com", "kris")
	token := loginUser(t, a, "kris@example.com")

	rec := doJSON(t, a, http.MethodPost, "/api/chat/send", map[string]any{
		"message": "hello there",
	}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var first struct {
		Response       string `json:"response"`
		ConversationID string `json:"conversation_id"`
	}
	decode(t, rec, &first)
	require.Equal(t, "Hello! I'm Kris Bot. How can I help you today?", first.Response)
	require.NotEmpty(t, first.ConversationID)

	// Unmatched keyword echoes the original message back
	rec = doJSON(t, a, http.MethodPost, "/api/chat/send", map[string]any{
		"message":         "xyzzy",
		"conversation_id": first.ConversationID,
		"conversation_history": []map[string]string{
			{"role": "user", "content": "hello there"},
			{"role": "assistant", "content": first.Response},
		},
	}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var second struct {
		Response       string `json:"response"`
		ConversationID string `json:"conversation_id"`
	}
	decode(t, rec, &second)
	require.Contains(t, second.Response, "I received your message: 'xyzzy'")
	require.Equal(t, first.ConversationID, second.ConversationID)

	// Both exchanges landed in the same conversation
	rec = doJSON(t, a, http.MethodGet, "/api/chat/history", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var history struct {
		Conversations []struct {
			ID       string `json:"id"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"conversations"`
	}
	decode(t, rec, &history)
	require.Len(t, history.Conversations, 1)
	require.Equal(t, first.ConversationID, history.Conversations[0].ID)
	require.Len(t, history.Conversations[0].Messages, 4)
	require.Equal(t, "user", history.Conversations[0].Messages[0].Role)
	require.Equal(t, "hello there", history.Conversations[0].Messages[0].Content)
	require.Equal(t, "assistant", history.Conversations[0].Messages[1].Role)

	// Delete and confirm it's gone
	rec = doJSON(t, a, http.MethodDelete, "/api/chat/history/"+first.ConversationID, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, a, http.MethodDelete, "/api/chat/history/"+first.ConversationID, nil, token)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, a, http.MethodGet, "/api/chat/history", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &history)
	require.Empty(t, history.Conversations)
}

func TestChat_HistoryOrdering(t *testing.T) {
	a := newTestAPI(t)
	registerUser(t, a, "kris@example.com", "kris")
	token := loginUser(t, a, "kris@example.com")

	var older, newer struct {
		ConversationID string `json:"conversation_id"`
	}

	rec := doJSON(t, a, http.MethodPost, "/api/chat/send", map[string]any{
		"message": "first conversation",
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &older)

	rec = doJSON(t, a, http.MethodPost, "/api/chat/send", map[string]any{
		"message": "second conversation",
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &newer)

	// A new message moves the older conversation back to the top
	rec = doJSON(t, a, http.MethodPost, "/api/chat/send", map[string]any{
		"message":         "followup",
		"conversation_id": older.ConversationID,
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, a, http.MethodGet, "/api/chat/history", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Conversations []struct {
			ID string `json:"id"`
		} `json:"conversations"`
	}
	decode(t, rec, &history)
	require.Len(t, history.Conversations, 2)
	require.Equal(t, older.ConversationID, history.Conversations[0].ID)
	require.Equal(t, newer.ConversationID, history.Conversations[1].ID)
}

func TestChat_TitleTruncation(t *testing.T) {
	a := newTestAPI(t)
	registerUser(t, a, "kris@example.com", "kris")
	token := loginUser(t, a, "kris@example.com")

	// 120 bytes of two-byte runes, a naive title[:80] would split one
	message := strings.Repeat("é", 60)
	rec := doJSON(t, a, http.MethodPost, "/api/chat/send", map[string]any{
		"message": message,
	}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, a, http.MethodGet, "/api/chat/history", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Conversations []struct {
			Title string `json:"title"`
		} `json:"conversations"`
	}
	decode(t, rec, &history)
	require.Len(t, history.Conversations, 1)

	title := history.Conversations[0].Title
	require.True(t, utf8.ValidString(title))
	require.LessOrEqual(t, len(title), 80)
	require.True(t, strings.HasPrefix(message, title))
}

func TestChat_ConversationIsolation(t *testing.T) {
	a := newTestAPI(t)
	registerUser(t, a, "a@example.com", "usera")
	registerUser(t, a, "b@example.com", "userb")
	tokenA := loginUser(t, a, "a@example.com")
	tokenB := loginUser(t, a, "b@example.com")

	rec := doJSON(t, a, http.MethodPost, "/api/chat/send", map[string]any{
		"message": "hi",
	}, tokenA)
	require.Equal(t, http.StatusOK, rec.Code)

	var sent struct {
		ConversationID string `json:"conversation_id"`
	}
	decode(t, rec, &sent)

	// B can't see or delete A's conversation
	rec = doJSON(t, a, http.MethodGet, "/api/chat/history", nil, tokenB)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Conversations []any `json:"conversations"`
	}
	decode(t, rec, &history)
	require.Empty(t, history.Conversations)

	rec = doJSON(t, a, http.MethodDelete, "/api/chat/history/"+sent.ConversationID, nil, tokenB)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFiles_RoundTrip(t *testing.T) {
	a := newTestAPI(t)
	registerUser(t, a, "kris@example.com", "kris")
	token := loginUser(t, a, "kris@example.com")

	rec := doUpload(t, a, token, "report.txt", "hello world")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var uploaded struct {
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
	}
	decode(t, rec, &uploaded)
	require.Equal(t, "report.txt", uploaded.Filename)
	require.EqualValues(t, 11, uploaded.Size)

	rec = doJSON(t, a, http.MethodGet, "/api/files/list", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Files []struct {
			Filename string `json:"filename"`
			Size     int64  `json:"size"`
		} `json:"files"`
	}
	decode(t, rec, &listing)
	require.Len(t, listing.Files, 1)
	require.Equal(t, "report.txt", listing.Files[0].Filename)
	require.EqualValues(t, 11, listing.Files[0].Size)

	rec = doJSON(t, a, http.MethodDelete, "/api/files/report.txt", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, a, http.MethodGet, "/api/files/list", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	require.Empty(t, listing.Files)

	rec = doJSON(t, a, http.MethodDelete, "/api/files/report.txt", nil, token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFiles_SizeCeiling(t *testing.T) {
	a := newTestAPI(t)
	userID := registerUser(t, a, "kris@example.com", "kris")
	token := loginUser(t, a, "kris@example.com")

	oversized := strings.Repeat("x", int(viper.GetInt64("upload.max_size"))+1)
	rec := doUpload(t, a, token, "big.bin", oversized)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	// Nothing was written for the rejected upload
	_, err := os.Stat(filepath.Join(viper.GetString("storage.upload_dir"), userID, "big.bin"))
	require.True(t, os.IsNotExist(err))

	rec = doJSON(t, a, http.MethodGet, "/api/files/list", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Files []any `json:"files"`
	}
	decode(t, rec, &listing)
	require.Empty(t, listing.Files)

	// Exactly at the ceiling still goes through
	atLimit := strings.Repeat("x", int(viper.GetInt64("upload.max_size")))
	rec = doUpload(t, a, token, "exact.bin", atLimit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, a, http.MethodGet, "/api/files/list", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored struct {
		Files []struct {
			Filename string `json:"filename"`
			Size     int64  `json:"size"`
		} `json:"files"`
	}
	decode(t, rec, &stored)
	require.Len(t, stored.Files, 1)
	require.Equal(t, "exact.bin", stored.Files[0].Filename)
	require.Equal(t, viper.GetInt64("upload.max_size"), stored.Files[0].Size)
}

func TestFiles_CrossUserIsolation(t *testing.T) {
	a := newTestAPI(t)
	registerUser(t, a, "a@example.com", "usera")
	registerUser(t, a, "b@example.com", "userb")
	tokenA := loginUser(t, a, "a@example.com")
	tokenB := loginUser(t, a, "b@example.com")

	rec := doUpload(t, a, tokenA, "secret.txt", "classified")
	require.Equal(t, http.StatusOK, rec.Code)

	// B deleting A's file reports not found, nothing leaks
	rec = doJSON(t, a, http.MethodDelete, "/api/files/secret.txt", nil, tokenB)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, a, http.MethodGet, "/api/files/list", nil, tokenB)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Files []any `json:"files"`
	}
	decode(t, rec, &listing)
	require.Empty(t, listing.Files)

	// A's file survived
	rec = doJSON(t, a, http.MethodGet, "/api/files/list", nil, tokenA)
	require.Equal(t, http.StatusOK, rec.Code)
	var listingA struct {
		Files []struct {
			Filename string `json:"filename"`
		} `json:"files"`
	}
	decode(t, rec, &listingA)
	require.Len(t, listingA.Files, 1)
	require.Equal(t, "secret.txt", listingA.Files[0].Filename)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "healthy")
}
