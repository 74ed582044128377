package speakerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/701789262a/backend-dailychat/database"
	"github.com/701789262a/backend-dailychat/internal/speaker"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/storage"
)

// storedAudio is the subclip audio whose hash the tests enroll.
var storedAudio = []byte("enrolled subclip audio")

func newTestAPI(t *testing.T) (*gin.Engine, *speaker.Repository) {
	t.Helper()
	ctx := context.Background()
	comp := database.NewComponent(database.Config{
		DSN:     fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		Migrate: true,
	}, logger.Nop()).WithMigrations(speaker.Migrations, speaker.MigrationsPath)
	if err := comp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { comp.Stop(ctx) })

	blobs := storage.NewBlobStore(storage.NewMemory())
	if _, err := blobs.Put(ctx, storage.KindSubclip, storedAudio); err != nil {
		t.Fatal(err)
	}

	repo := speaker.NewRepository(comp.DB())
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(repo, blobs, logger.Nop()).Register(r)
	return r, repo
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var hash = storage.Hash(storedAudio)

func TestCreateAndGetSpeaker(t *testing.T) {
	r, repo := newTestAPI(t)

	w := do(r, http.MethodPost, "/speakers", fmt.Sprintf(`{"name":"alice","subclip":%q}`, hash))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	var created struct {
		Data speaker.Speaker `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)

	sub, err := repo.GetSubclip(context.Background(), hash)
	if err != nil || sub.SpeakerID != created.Data.ID || sub.EvaluatedBy != hash {
		t.Errorf("enrolled subclip = %+v, %v", sub, err)
	}

	w = do(r, http.MethodGet, fmt.Sprintf("/speakers/%d", created.Data.ID), "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"name":"alice"`) {
		t.Errorf("get = %d %s", w.Code, w.Body)
	}

	w = do(r, http.MethodPost, "/speakers", `{"name":"alice"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d", w.Code)
	}

	w = do(r, http.MethodGet, fmt.Sprintf("/speakers/%d/references?limit=5", created.Data.ID), "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), hash) {
		t.Errorf("references = %d %s", w.Code, w.Body)
	}
}

func TestValidation(t *testing.T) {
	r, _ := newTestAPI(t)
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"missing name", http.MethodPost, "/speakers", `{}`, http.StatusBadRequest},
		{"bad subclip hash", http.MethodPost, "/speakers", `{"name":"x","subclip":"zz"}`, http.StatusBadRequest},
		{"subclip without audio", http.MethodPost, "/speakers", `{"name":"x","subclip":"` + strings.Repeat("ef", 32) + `"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/speakers/abc", "", http.StatusBadRequest},
		{"unknown speaker", http.MethodGet, "/speakers/99", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/speakers/1/references?limit=0", "", http.StatusBadRequest},
		{"bad hash", http.MethodDelete, "/subclips/nothex", "", http.StatusBadRequest},
		{"reassign without speaker", http.MethodPut, "/subclips/" + hash + "/speaker", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(r, tt.method, tt.path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestReassignAndDelete(t *testing.T) {
	r, repo := newTestAPI(t)
	ctx := context.Background()
	a, _ := repo.Enroll(ctx, "a", &speaker.Subclip{Hash: hash})
	b, _ := repo.Enroll(ctx, "b", nil)

	w := do(r, http.MethodPut, "/subclips/"+hash+"/speaker", fmt.Sprintf(`{"speaker_id":%d}`, b.ID))
	if w.Code != http.StatusNoContent {
		t.Fatalf("reassign = %d %s", w.Code, w.Body)
	}
	if sub, _ := repo.GetSubclip(ctx, hash); sub.SpeakerID != b.ID {
		t.Errorf("speaker = %d, want %d (was %d)", sub.SpeakerID, b.ID, a.ID)
	}

	other := strings.Repeat("cd", 32)
	if w := do(r, http.MethodPut, "/subclips/"+other+"/speaker", `{"speaker_id":1}`); w.Code != http.StatusNotFound {
		t.Errorf("reassign missing = %d", w.Code)
	}

	for i := 0; i < 2; i++ {
		if w := do(r, http.MethodDelete, "/subclips/"+hash, ""); w.Code != http.StatusNoContent {
			t.Fatalf("delete %d = %d", i, w.Code)
		}
	}
	if w := do(r, http.MethodGet, "/subclips/"+hash, ""); w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d", w.Code)
	}
}

func TestCreateRejectsSubclipWithoutAudio(t *testing.T) {
	r, repo := newTestAPI(t)
	missing := strings.Repeat("ef", 32)

	w := do(r, http.MethodPost, "/speakers", fmt.Sprintf(`{"name":"bob","subclip":%q}`, missing))
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "subclip") {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	if _, err := repo.GetSubclip(context.Background(), missing); err == nil {
		t.Error("reference enrolled without audio")
	}
	if list, _ := repo.ListSpeakers(context.Background()); len(list) != 0 {
		t.Errorf("speakers = %+v, want none", list)
	}
}
