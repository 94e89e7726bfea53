package config

import (
	"net/http"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		AI:     AIConfig{APIKey: "sk-test", MaxRetries: 1, Timeout: 30 * time.Second},
		Mongo:  MongoConfig{URI: "mongodb://localhost:27017", Database: "tutor"},
		Seed:   SeedConfig{Owner: "acme", Repo: "math-seed", Path: "dataset/seed.json", Branch: "main"},
		Identity: IdentityConfig{
			CookieName: "tutor_cid",
			Secret:     "s3cret",
		},
	}
}

func TestConfigValidate(t *testing.T) {
	Convey("Config.Validate", t, func() {
		Convey("完整配置通过校验", func() {
			So(validConfig().Validate(), ShouldBeNil)
		})

		Convey("端口越界", func() {
			cfg := validConfig()
			cfg.Server.Port = 70000
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知运行模式", func() {
			cfg := validConfig()
			cfg.Server.Mode = "prod"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("缺少 API key", func() {
			cfg := validConfig()
			cfg.AI.APIKey = ""
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("种子题库坐标不完整", func() {
			cfg := validConfig()
			cfg.Seed.Path = ""
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("release 模式必须配置签名密钥", func() {
			cfg := validConfig()
			cfg.Identity.Secret = ""
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Server.Mode = "debug"
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("负数重试次数", func() {
			cfg := validConfig()
			cfg.AI.MaxRetries = -1
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}

func TestSameSiteMode(t *testing.T) {
	tests := []struct {
		in   string
		want http.SameSite
	}{
		{"strict", http.SameSiteStrictMode},
		{"None", http.SameSiteNoneMode},
		{"lax", http.SameSiteLaxMode},
		{"", http.SameSiteLaxMode},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := IdentityConfig{SameSite: tt.in}
			if got := cfg.SameSiteMode(); got != tt.want {
				t.Errorf("SameSiteMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
