package handler_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"

	accountrepo "github.com/sohan284/social-media-go/core/account/data/repository"
	accountstructs "github.com/sohan284/social-media-go/core/account/structs"

	"github.com/sohan284/social-media-go/biz/post/data/repository"
	"github.com/sohan284/social-media-go/biz/post/handler"
	"github.com/sohan284/social-media-go/biz/post/moderation"
	"github.com/sohan284/social-media-go/biz/post/service"
	"github.com/sohan284/social-media-go/biz/post/structs"
	"github.com/sohan284/social-media-go/internal/conf"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	cleanup, err := logger.New(&config.Logger{Level: 4, Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(cleanup)
	return logger.StdLogger()
}

func newTestService(t *testing.T) (*service.Service, accountrepo.UserRepository) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo, _, _, err := accountrepo.NewRepositories(db)
	if err != nil {
		t.Fatalf("init account repositories: %v", err)
	}
	postRepo, followRepo, err := repository.NewRepositories(db)
	if err != nil {
		t.Fatalf("init post repositories: %v", err)
	}

	feed := conf.Feed{
		FollowedUnseenLimit:  20,
		FollowedSeenLimit:    10,
		TopEngagedLimit:      10,
		EngagementWindowDays: 7,
	}
	svc := service.NewService(postRepo, followRepo, moderation.NewCheckerFromWords(nil), nil, nil, feed, testLogger(t))
	return svc, userRepo
}

type commentPage struct {
	Data struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Next    string `json:"next"`
		HasNext bool   `json:"has_next"`
	} `json:"data"`
}

// Comment listings fetch one row past the page to detect whether more
// remain; the next cursor must point at the last row kept on the page,
// so following cursors visits every comment exactly once.
func TestListCommentsPaging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, userRepo := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	author := &accountstructs.User{
		ID:        uuid.New().String(),
		Username:  "paginator",
		Email:     "paginator@example.com",
		Role:      accountstructs.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := userRepo.Create(ctx, nil, author); err != nil {
		t.Fatalf("create user: %v", err)
	}

	post, err := svc.CreatePost(ctx, author.ID, &structs.CreatePostRequest{Content: "thread starter"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	for i := 0; i < 5; i++ {
		_, err := svc.AddComment(ctx, post.ID, author.ID, &structs.CreateCommentRequest{
			Content: fmt.Sprintf("comment %d", i),
		})
		if err != nil {
			t.Fatalf("add comment %d: %v", i, err)
		}
	}

	h := handler.New(svc)
	engine := gin.New()
	engine.GET("/posts/:post_id/comments", h.HandleListComments)

	seen := map[string]int{}
	var sizes []int
	cursor := ""
	for page := 0; ; page++ {
		if page > 5 {
			t.Fatal("pagination did not terminate")
		}
		url := "/posts/" + post.ID + "/comments?limit=2"
		if cursor != "" {
			url += "&cursor=" + cursor
		}
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("page %d status = %d, body %s", page, rec.Code, rec.Body.String())
		}

		var body commentPage
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode page %d: %v", page, err)
		}
		sizes = append(sizes, len(body.Data.Items))
		for _, item := range body.Data.Items {
			seen[item.ID]++
		}
		if body.Data.Next == "" {
			if body.Data.HasNext {
				t.Errorf("page %d reports has_next without a cursor", page)
			}
			break
		}
		cursor = body.Data.Next
	}

	if len(seen) != 5 {
		t.Errorf("saw %d distinct comments, want 5", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("comment %s seen %d times, want once", id, n)
		}
	}
	want := []int{2, 2, 1}
	if len(sizes) != len(want) {
		t.Fatalf("page sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("page %d size = %d, want %d", i, sizes[i], want[i])
		}
	}
}
