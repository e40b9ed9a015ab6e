package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		RollbarToken string
		WorkDir      string

		Backend struct {
			BaseURL string
			Token   string
			Timeout time.Duration
		}

		Server struct {
			Host            string
			DebugHost       string
			ShutdownTimeout time.Duration
		}

		Prefs struct {
			Path string
		}

		Camera struct {
			DevDir  string
			SysDir  string
			Devices []string // static override: "label" or "id=label"
		}
	}
)

// NewConfig loads the Config from defaults, `config/.env.<env>` (if it exists) and the environment.
// Environment variables are prefixed with ATTENDLY and use "_" as separator, eg. ATTENDLY_BACKEND_BASEURL.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Attendly")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("backend.baseURL", "http://localhost:5000")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("server.host", ":8080")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("prefs.path", defaultPrefsPath())
	v.SetDefault("camera.devDir", "/dev")
	v.SetDefault("camera.sysDir", "/sys/class/video4linux")
	v.SetDefault("camera.devices", []string{})

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd: %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix("attendly")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := new(Config)
	conf.Env = env
	conf.WorkDir = wd
	conf.Build = v.GetString("build")
	conf.Debug = v.GetBool("debug")
	conf.TestMode = v.GetBool("testMode")
	conf.AppName = v.GetString("appName")
	conf.RollbarToken = v.GetString("rollbarToken")

	conf.Backend.BaseURL = strings.TrimRight(v.GetString("backend.baseURL"), "/")
	conf.Backend.Token = v.GetString("backend.token")
	conf.Backend.Timeout = v.GetDuration("backend.timeout")

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")

	conf.Prefs.Path = v.GetString("prefs.path")

	conf.Camera.DevDir = v.GetString("camera.devDir")
	conf.Camera.SysDir = v.GetString("camera.sysDir")
	conf.Camera.Devices = v.GetStringSlice("camera.devices")
	return conf
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "attendly", "prefs.json")
}
