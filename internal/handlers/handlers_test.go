package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"atamind/internal/analytics"
	"atamind/internal/content"
	"atamind/internal/database"
	"atamind/internal/locks"
	"atamind/internal/media"
	"atamind/internal/models"
	"atamind/internal/orchestrator"
	"atamind/internal/repository"
	"atamind/internal/security"
	"atamind/internal/service"
)

type offlineContent struct{}

func (offlineContent) GenerateJSON(ctx context.Context, req content.Request) (string, error) {
	return "", errors.New("model unavailable")
}

func (offlineContent) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	return nil, "", content.ErrNotSupported
}

func (offlineContent) SynthesizeSpeech(ctx context.Context, text string) (io.ReadCloser, error) {
	return nil, content.ErrNotSupported
}

func (offlineContent) AnalyzeAudio(ctx context.Context, audio []byte, mimeType, instruction string) (string, error) {
	return "", content.ErrNotSupported
}

type stubGenerator struct {
	err error
}

func (g *stubGenerator) Run(ctx context.Context, child *models.Child, message string) (*orchestrator.Result, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &orchestrator.Result{
		Draft: &models.StoryDraft{
			Title:             "Nasreddin Hoca ve Kazan",
			Body:              "Bir gün Nasreddin Hoca komşusundan bir kazan ödünç almış...",
			ValuesTaught:      []string{"Dürüstlük"},
			CulturalElements:  []string{"Nasreddin Hoca"},
			EstimatedDuration: 3,
			Difficulty:        models.DifficultyEasy,
		},
		Assessment: &models.SafetyAssessment{
			SafetyScore:    9,
			IsSafe:         true,
			ApprovalStatus: models.ApprovalNeedsReview,
		},
		Analysis: models.AnalysisBundle{
			SafetyScore:     9,
			DifficultyLevel: models.DifficultyEasy,
			States:          []string{string(orchestrator.StateComplete)},
		},
	}, nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzeVoice(ctx context.Context, audio []byte, mimeType string) (*models.VoiceAnalysis, error) {
	return &models.VoiceAnalysis{
		Transcript:      "Paylaşmayı öğrenmesini istiyorum",
		Emotions:        []string{"şefkat"},
		ValuesExtracted: []string{"Paylaşma"},
		ParentingStyle:  "destekleyici",
	}, nil
}

type apiEnv struct {
	mux        http.Handler
	generator  *stubGenerator
	uploadsDir string
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "handlers_test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(context.Background(), "../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	store, err := media.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create media store: %v", err)
	}

	log := zap.NewNop()
	tokens := security.TokenService{Secret: []byte("test-secret"), Issuer: "atamind-test", TTL: time.Hour}
	guardianRepo := repository.NewGuardianRepository(db)
	authService := service.NewAuthService(guardianRepo, tokens)
	childService := service.NewChildService(repository.NewChildRepository(db))
	generator := &stubGenerator{}
	storyService := service.NewStoryService(childService, repository.NewStoryRepository(db), repository.NewListeningRepository(db), generator, nil, log)
	voiceService := service.NewVoiceService(childService, repository.NewVoiceRepository(db), stubAnalyzer{}, media.NewService(offlineContent{}, nil, store, log), log)
	analyticsService := service.NewAnalyticsService(
		childService,
		repository.NewSessionRepository(db),
		repository.NewRatingRepository(db),
		repository.NewReportRepository(db),
		analytics.NewAdvisor(offlineContent{}, log),
		locks.NewLocalLocker(),
		log,
	)
	emailService, err := service.NewEmailService(context.Background(), "eu-central-1", "", "", "", log)
	if err != nil {
		t.Fatalf("Failed to create email service: %v", err)
	}

	mux := http.NewServeMux()
	Routes{
		Middleware: NewMiddleware(authService),
		Auth:       NewAuthHandler(authService, emailService, nil, "", security.NewStateSigner("test-secret")),
		Children:   NewChildHandler(childService),
		Stories:    NewStoryHandler(storyService),
		Voice:      NewVoiceHandler(voiceService, 1<<20),
		Analytics:  NewAnalyticsHandler(analyticsService, childService, service.NewReportDelivery(guardianRepo, emailService, log)),
		UploadsDir: store.Dir(),
	}.Register(mux)

	return &apiEnv{mux: mux, generator: generator, uploadsDir: store.Dir()}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (e *apiEnv) register(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "Zeynep Kaya",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[service.AuthResult](t, rec).Token
}

func (e *apiEnv) createChild(t *testing.T, token string) models.Child {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/children", token, map[string]any{
		"name": "Can", "age": 5, "interests": []string{"hayvanlar"}, "learning_style": "visual",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create child status = %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[models.Child](t, rec)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequireAuthWithoutToken(t *testing.T) {
	m := NewMiddleware(nil)
	called := false
	h := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if called {
		t.Error("handler should not run without a token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer", "Bearer abc", "", "abc"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"cookie", "", "xyz", "xyz"},
		{"header wins", "Bearer abc", "xyz", "abc"},
		{"basic ignored", "Basic Zm9v", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: security.TokenCookieName, Value: tt.cookie})
			}
			if got := tokenFromRequest(req); got != tt.want {
				t.Errorf("tokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggingRecordsRoutePattern(t *testing.T) {
	logs := observeLogs(t)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/children/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	Logging(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/children/42", nil))

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusCreated) {
		t.Errorf("logged status = %v", fields["status"])
	}
	if fields["path"] != "/api/children/42" {
		t.Errorf("logged path = %v", fields["path"])
	}
}

func TestRecover(t *testing.T) {
	observeLogs(t)

	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAuthEndpoints(t *testing.T) {
	env := setupAPI(t)
	token := env.register(t, "zeynep@example.com")

	t.Run("me", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/me", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if g := decodeBody[models.Guardian](t, rec); g.Email != "zeynep@example.com" {
			t.Errorf("unexpected guardian %+v", g)
		}
	})

	t.Run("duplicate register", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "zeynep@example.com", "password": "password123", "name": "Zeynep",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "zeynep@example.com", "password": "nope-nope",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("login sets cookie", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "zeynep@example.com", "password": "password123",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		found := false
		for _, c := range rec.Result().Cookies() {
			if c.Name == security.TokenCookieName && c.Value != "" && c.HttpOnly {
				found = true
			}
		}
		if !found {
			t.Error("expected token cookie")
		}
	})

	t.Run("bad token", func(t *testing.T) {
		if rec := env.do(t, http.MethodGet, "/api/me", "garbage", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("unconfigured oauth provider", func(t *testing.T) {
		if rec := env.do(t, http.MethodGet, "/auth/google/start", "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestChildEndpoints(t *testing.T) {
	env := setupAPI(t)
	token := env.register(t, "ali@example.com")
	other := env.register(t, "ayse@example.com")
	child := env.createChild(t, token)

	t.Run("owner can read", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/children/"+child.ID, token, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("other guardian gets 404", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/children/"+child.ID, other, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("invalid age", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/children", token, map[string]any{"name": "Ece", "age": 20})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("wrong field type", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/children", token, map[string]any{"name": "Ece", "age": "five"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/children", token, nil)
		if got := decodeBody[[]models.Child](t, rec); len(got) != 1 {
			t.Errorf("expected 1 child, got %d", len(got))
		}
		rec = env.do(t, http.MethodGet, "/api/children", other, nil)
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("expected empty list, got %q", rec.Body.String())
		}
	})

	t.Run("delete", func(t *testing.T) {
		if rec := env.do(t, http.MethodDelete, "/api/children/"+child.ID, token, nil); rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec := env.do(t, http.MethodGet, "/api/children/"+child.ID, token, nil); rec.Code != http.StatusNotFound {
			t.Errorf("status after delete = %d", rec.Code)
		}
	})
}

func TestStoryEndpoints(t *testing.T) {
	env := setupAPI(t)
	token := env.register(t, "mehmet@example.com")
	child := env.createChild(t, token)

	rec := env.do(t, http.MethodPost, "/api/generate-story", token, map[string]string{
		"child_id": child.ID, "message": "Dürüstlüğün önemini anlamasını istiyorum",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[generateStoryResponse](t, rec)
	if resp.Story == nil || resp.Analysis == nil {
		t.Fatalf("expected story and analysis, got %s", rec.Body.String())
	}
	if resp.Story.AudioURI != nil || resp.Story.ImageURI != nil {
		t.Error("media URIs should be null when no media was attached")
	}

	deliverable := func() []models.Story {
		rec := env.do(t, http.MethodGet, "/api/child/"+child.ID+"/stories/deliverable", token, nil)
		return decodeBody[[]models.Story](t, rec)
	}
	if got := deliverable(); len(got) != 0 {
		t.Errorf("needs_review story must not be deliverable, got %d", len(got))
	}

	rec = env.do(t, http.MethodPost, "/api/stories/"+resp.Story.ID+"/approve", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := deliverable(); len(got) != 1 {
		t.Errorf("expected approved story to be deliverable, got %d", len(got))
	}

	rec = env.do(t, http.MethodPost, "/api/stories/"+resp.Story.ID+"/approve", token, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second approve status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/listening-history", token, map[string]any{
		"child_id": child.ID, "story_id": resp.Story.ID, "duration_listened": 120, "completion_rate": 1.5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("listening status = %d: %s", rec.Code, rec.Body.String())
	}
	if entry := decodeBody[models.ListeningEntry](t, rec); entry.CompletionRate != 1 {
		t.Errorf("completion rate = %v, want clamped to 1", entry.CompletionRate)
	}

	t.Run("generation unavailable", func(t *testing.T) {
		env.generator.err = fmt.Errorf("%w: %w", orchestrator.ErrGenerationUnavailable, errors.New("composer timeout"))
		defer func() { env.generator.err = nil }()

		rec := env.do(t, http.MethodPost, "/api/generate-story", token, map[string]string{
			"child_id": child.ID, "message": "Paylaşmayı öğrensin",
		})
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		if msg := decodeError(t, rec); msg != ErrGenerationUnavailable {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/generate-story", token, map[string]string{"child_id": child.ID, "message": " "})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestAnalyticsEndpoints(t *testing.T) {
	env := setupAPI(t)
	token := env.register(t, "fatma@example.com")
	child := env.createChild(t, token)

	rec := env.do(t, http.MethodPost, "/api/start-session", token, map[string]string{"child_id": child.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session status = %d: %s", rec.Code, rec.Body.String())
	}
	session := decodeBody[models.UsageSession](t, rec)

	rec = env.do(t, http.MethodPost, "/api/activity-rating", token, map[string]any{
		"child_id": child.ID, "activity_type": "story", "rating": 7,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("rating status = %d: %s", rec.Code, rec.Body.String())
	}
	if rating := decodeBody[models.ActivityRating](t, rec); rating.Rating != 5 {
		t.Errorf("rating = %d, want 5", rating.Rating)
	}

	rec = env.do(t, http.MethodPost, "/api/end-session", token, map[string]string{"session_id": session.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("end session status = %d: %s", rec.Code, rec.Body.String())
	}
	ended := decodeBody[models.UsageSession](t, rec)
	if ended.ActivitiesCompleted != 1 || ended.AverageRating != 5 || ended.DurationMinutes < 0 {
		t.Errorf("unexpected ended session %+v", ended)
	}

	rec = env.do(t, http.MethodPost, "/api/end-session", token, map[string]string{"session_id": session.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("second end status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/child/"+child.ID+"/generate-report?notify=true", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("report status = %d: %s", rec.Code, rec.Body.String())
	}
	if report := decodeBody[models.BiweeklyReport](t, rec); report.ChildID != child.ID {
		t.Errorf("report for wrong child: %+v", report)
	}

	for _, path := range []string{"usage-stats", "reports", "most-rated", "engagement"} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/child/"+child.ID+"/"+path, token, nil)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestVoiceEndpoints(t *testing.T) {
	env := setupAPI(t)
	token := env.register(t, "hasan@example.com")
	child := env.createChild(t, token)

	upload := func(path string, audio []byte, childID string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		if childID != "" {
			_ = mw.WriteField("child_id", childID)
		}
		if audio != nil {
			part, err := mw.CreateFormFile(audioFormField, "mesaj.webm")
			if err != nil {
				t.Fatalf("create form file: %v", err)
			}
			_, _ = part.Write(audio)
		}
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, path, &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)
		return rec
	}

	t.Run("analyze", func(t *testing.T) {
		rec := upload("/voice/analyze", []byte("fake-audio"), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		if a := decodeBody[models.VoiceAnalysis](t, rec); a.Transcript == "" {
			t.Error("expected transcript")
		}
	})

	t.Run("record", func(t *testing.T) {
		rec := upload("/api/upload-voice", []byte("fake-audio"), child.ID)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		stored := decodeBody[models.VoiceRecording](t, rec)
		if !strings.HasPrefix(stored.FileURI, media.URLPrefix) {
			t.Errorf("unexpected file URI %q", stored.FileURI)
		}

		if rec := env.do(t, http.MethodGet, stored.FileURI, "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("recording served publicly: %d", rec.Code)
		}

		audioPath := "/api/voice-recordings/" + stored.ID + "/audio"
		rec = env.do(t, http.MethodGet, audioPath, token, nil)
		if rec.Code != http.StatusOK || rec.Body.String() != "fake-audio" {
			t.Errorf("recording not served to its guardian: %d", rec.Code)
		}
		if rec := env.do(t, http.MethodGet, audioPath, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("anonymous audio status = %d, want 401", rec.Code)
		}
		otherToken := env.register(t, "baska.veli@example.com")
		if rec := env.do(t, http.MethodGet, audioPath, otherToken, nil); rec.Code != http.StatusNotFound {
			t.Errorf("foreign guardian audio status = %d, want 404", rec.Code)
		}

		rec = env.do(t, http.MethodGet, "/api/voice-recordings", token, nil)
		if got := decodeBody[[]models.VoiceRecording](t, rec); len(got) != 1 {
			t.Errorf("expected 1 recording, got %d", len(got))
		}
	})

	t.Run("uploads listing hidden", func(t *testing.T) {
		if rec := upload("/voice/record", []byte("gizli"), ""); rec.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		if err := os.WriteFile(filepath.Join(env.uploadsDir, "story_image_test.png"), []byte("png"), 0o644); err != nil {
			t.Fatalf("write story image: %v", err)
		}

		rec := env.do(t, http.MethodGet, "/uploads/", "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("directory listing status = %d, want 404", rec.Code)
		}
		if strings.Contains(rec.Body.String(), media.RecordingPrefix+"_") {
			t.Error("uploads response lists voice recordings")
		}

		rec = env.do(t, http.MethodGet, "/uploads/story_image_test.png", "", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != "png" {
			t.Errorf("story media not served: %d", rec.Code)
		}
	})

	t.Run("missing audio", func(t *testing.T) {
		if rec := upload("/voice/record", nil, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		rec := upload("/voice/record", bytes.Repeat([]byte{'a'}, 2<<20), "")
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})
}
