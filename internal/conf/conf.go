// Package conf loads application settings that sit outside the shared
// config schema: mail delivery, static asset collection and moderation.
package conf

import (
	"fmt"

	"github.com/spf13/viper"
)

// Mail holds SMTP delivery settings.
type Mail struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Static holds static asset collection settings.
type Static struct {
	SourceDirs []string
	Root       string
}

// Moderation holds content moderation settings.
type Moderation struct {
	Wordlist []string
}

// Redis holds broker connection settings. An empty Addr disables the
// broker and everything that rides on it degrades gracefully.
type Redis struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// Feed holds news feed tuning knobs.
type Feed struct {
	FollowedUnseenLimit int
	FollowedSeenLimit   int
	TopEngagedLimit     int
	EngagementWindowDays int
}

// Extras bundles the app-specific configuration sections.
type Extras struct {
	Mail       Mail
	Static     Static
	Moderation Moderation
	Feed       Feed
	Redis      Redis
}

// LoadExtras reads the app-specific sections from the same YAML file the
// shared config loads from.
func LoadExtras(path string) (*Extras, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	ex := &Extras{
		Mail: Mail{
			Host:     v.GetString("mail.smtp.host"),
			Port:     v.GetString("mail.smtp.port"),
			Username: v.GetString("mail.smtp.username"),
			Password: v.GetString("mail.smtp.password"),
			From:     v.GetString("mail.smtp.from"),
		},
		Static: Static{
			SourceDirs: v.GetStringSlice("static.source_dirs"),
			Root:       v.GetString("static.root"),
		},
		Moderation: Moderation{
			Wordlist: v.GetStringSlice("moderation.wordlist"),
		},
		Feed: Feed{
			FollowedUnseenLimit:  v.GetInt("feed.followed_unseen_limit"),
			FollowedSeenLimit:    v.GetInt("feed.followed_seen_limit"),
			TopEngagedLimit:      v.GetInt("feed.top_engaged_limit"),
			EngagementWindowDays: v.GetInt("feed.engagement_window_days"),
		},
		Redis: Redis{
			Addr:     v.GetString("data.redis.addr"),
			Username: v.GetString("data.redis.username"),
			Password: v.GetString("data.redis.password"),
			DB:       v.GetInt("data.redis.db"),
		},
	}

	applyDefaults(ex)
	return ex, nil
}

func applyDefaults(ex *Extras) {
	if ex.Static.Root == "" {
		ex.Static.Root = "staticfiles"
	}
	if ex.Feed.FollowedUnseenLimit <= 0 {
		ex.Feed.FollowedUnseenLimit = 20
	}
	if ex.Feed.FollowedSeenLimit <= 0 {
		ex.Feed.FollowedSeenLimit = 10
	}
	if ex.Feed.TopEngagedLimit <= 0 {
		ex.Feed.TopEngagedLimit = 10
	}
	if ex.Feed.EngagementWindowDays <= 0 {
		ex.Feed.EngagementWindowDays = 7
	}
}
