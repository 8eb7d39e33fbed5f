package commands

import (
	"database/sql"
	"strings"

	"arborwatch/lib/configutil"
	configlibsql "arborwatch/lib/configutil/libsql"
	"arborwatch/lib/sqliteutil"
	"arborwatch/services/notify"
	"arborwatch/services/watcher/db"
)

type Config struct {
	// portal tenant url, e.g. https://the-castle-school.uk.arbor.sc
	BaseUrl string `json:"baseUrl"`
	// contact address advertised in request headers
	Contact  string `json:"contact"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// optional child date of birth for tenants that verify it, dd/mm/yyyy
	ChildDob string `json:"childDob"`

	Database configlibsql.Struct `json:"database"`

	Telegram *notify.TelegramConfig `json:"telegram"`
	Discord  *notify.DiscordConfig  `json:"discord"`
	Smtp     *notify.SmtpConfig     `json:"smtp"`

	// DigestBudget caps the rendered digest length; zero means the
	// default.
	DigestBudget int `json:"digestBudget"`
	// CooldownMinutes suppresses re-sending an identical digest within
	// the window; zero disables deduping.
	CooldownMinutes int `json:"cooldownMinutes"`
}

func readConfig() (Config, error) {
	return configutil.ReadConfig[Config]("config.json5")
}

func openDatabase(config Config) (*sql.DB, error) {
	if config.Database.Url == "" {
		file := config.Database.File
		if file == "" {
			file = "arborwatch.db"
		}
		return sqliteutil.OpenDB(db.Schema, file)
	}

	conn, err := config.Database.OpenDB()
	if err != nil {
		return nil, err
	}
	_, err = conn.Exec(db.Schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func buildNotifier(config Config) notify.Multi {
	var channels notify.Multi
	if config.Telegram != nil {
		channels = append(channels, notify.NewTelegram(*config.Telegram))
	}
	if config.Discord != nil {
		channels = append(channels, notify.NewDiscord(*config.Discord))
	}
	if config.Smtp != nil {
		channels = append(channels, notify.NewEmail(*config.Smtp))
	}
	return channels
}
