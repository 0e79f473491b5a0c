package config

import (
	"flag"
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"production"`
	PGSQL      PGSQL      `yaml:"pgsql"`
	Redis      Redis      `yaml:"redis"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Session    Session    `yaml:"session"`
	Uploads    Uploads    `yaml:"uploads"`
	MinIO      MinIO      `yaml:"minio"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
}

type HTTPServer struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
}

type PGSQL struct {
	Host     string `yaml:"host" env:"PG_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"PG_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"PG_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"PG_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"PG_DBNAME" env-default:"movieflix_db"`
	SSLMode  string `yaml:"sslmode" env:"PG_SSLMODE" env-default:"disable"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Session struct {
	CookieName string `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"movieflix_session"`
	TTLSeconds int    `yaml:"ttl_seconds" env:"SESSION_TTL_SECONDS" env-default:"86400"`
}

// Uploads controls file validation and where uploaded files land.
// Driver is either "local" or "minio".
type Uploads struct {
	Driver            string   `yaml:"driver" env:"UPLOADS_DRIVER" env-default:"local"`
	LocalBase         string   `yaml:"local_base" env:"UPLOADS_LOCAL_BASE" env-default:"public"`
	PosterDir         string   `yaml:"poster_dir" env:"UPLOADS_POSTER_DIR" env-default:"assets/images/posters"`
	VideoDir          string   `yaml:"video_dir" env:"UPLOADS_VIDEO_DIR" env-default:"assets/videos"`
	MaxPosterSize     int64    `yaml:"max_poster_size" env:"UPLOADS_MAX_POSTER_SIZE" env-default:"5242880"`
	MaxVideoSize      int64    `yaml:"max_video_size" env:"UPLOADS_MAX_VIDEO_SIZE" env-default:"524288000"`
	AllowedImageTypes []string `yaml:"allowed_image_types" env:"UPLOADS_ALLOWED_IMAGE_TYPES" env-default:"image/jpeg,image/png,image/gif"`
	AllowedVideoTypes []string `yaml:"allowed_video_types" env:"UPLOADS_ALLOWED_VIDEO_TYPES" env-default:"video/mp4,video/webm"`
}

// RateLimit bounds repeated login attempts per account.
type RateLimit struct {
	LoginBurst     int64 `yaml:"login_burst" env:"RATE_LIMIT_LOGIN_BURST" env-default:"10"`
	LoginPerMinute int64 `yaml:"login_per_minute" env:"RATE_LIMIT_LOGIN_PER_MINUTE" env-default:"5"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_ACCESS_KEY" env-default:""`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET_NAME" env-default:"movieflix-media"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

func MustLoad() *Config {
	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags
	}

	var cfg Config

	if configPath == "" {
		// No config file: environment variables and defaults only.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("failed to read config from environment: %s", err)
		}
		return &cfg
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist at path: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to read config: %s", err)
	}

	return &cfg
}
