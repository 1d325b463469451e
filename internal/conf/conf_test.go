package conf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sohan284/social-media-go/internal/conf"
)

func TestLoadExtras(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mail:
  smtp:
    host: smtp.example.com
    port: "587"
    from: no-reply@example.com
static:
  source_dirs:
    - assets
    - web/dist
  root: public
moderation:
  wordlist:
    - spam
feed:
  followed_unseen_limit: 30
data:
  redis:
    addr: localhost:6379
    db: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ex, err := conf.LoadExtras(path)
	if err != nil {
		t.Fatalf("load extras: %v", err)
	}

	if ex.Mail.Host != "smtp.example.com" {
		t.Errorf("mail host = %q", ex.Mail.Host)
	}
	if len(ex.Static.SourceDirs) != 2 || ex.Static.Root != "public" {
		t.Errorf("static = %+v", ex.Static)
	}
	if len(ex.Moderation.Wordlist) != 1 || ex.Moderation.Wordlist[0] != "spam" {
		t.Errorf("wordlist = %v", ex.Moderation.Wordlist)
	}
	if ex.Feed.FollowedUnseenLimit != 30 {
		t.Errorf("followed unseen limit = %d", ex.Feed.FollowedUnseenLimit)
	}
	if ex.Redis.Addr != "localhost:6379" || ex.Redis.DB != 2 {
		t.Errorf("redis = %+v", ex.Redis)
	}
}

func TestLoadExtrasDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("app_name: social\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ex, err := conf.LoadExtras(path)
	if err != nil {
		t.Fatalf("load extras: %v", err)
	}

	if ex.Static.Root != "staticfiles" {
		t.Errorf("static root default = %q", ex.Static.Root)
	}
	if ex.Feed.FollowedUnseenLimit != 20 || ex.Feed.FollowedSeenLimit != 10 {
		t.Errorf("feed defaults = %+v", ex.Feed)
	}
	if ex.Feed.TopEngagedLimit != 10 || ex.Feed.EngagementWindowDays != 7 {
		t.Errorf("feed defaults = %+v", ex.Feed)
	}
	if ex.Redis.Addr != "" {
		t.Errorf("redis addr default = %q", ex.Redis.Addr)
	}
}

func TestLoadExtrasMissingFile(t *testing.T) {
	if _, err := conf.LoadExtras(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
