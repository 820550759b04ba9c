package config

import (
	"database/sql"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"time"
)

type Config struct {
	App     App           `yaml:"app"`
	Server  Server        `yaml:"server"`
	Store   Store         `yaml:"store"`
	Render  Render        `yaml:"render"`
	Worker  Worker        `yaml:"worker"`
	Credits Credits       `yaml:"credits"`
	Queue   *RabbitMQ     `yaml:"rabbitmq"`
	DB      *sql.DB       `yaml:"db"`
	Redis   *redis.Client `yaml:"redis"`
	Storage *minio.Client `yaml:"storage"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort    string `yaml:"http_port"`
	Workers     int    `yaml:"workers"`
	WorkerToken string `yaml:"worker_token"`
}

type Store struct {
	// Backend selects the job store: postgres, redis or memory.
	Backend string `yaml:"backend"`
}

type Render struct {
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"public_base_url"`
	PayloadURL    string `yaml:"payload_url"`
	PayloadSecret string `yaml:"payload_secret"`
	TempDir       string `yaml:"temp_dir"`
	WatermarkFile string `yaml:"watermark_file"`
}

type Worker struct {
	Id           string        `yaml:"id"`
	PollInterval time.Duration `yaml:"poll_interval"`
	StaleAfter   time.Duration `yaml:"stale_after"`
}

type Credits struct {
	RenderCost  int64    `yaml:"render_cost"`
	ExemptUsers []string `yaml:"exempt_users"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("worker.poll_interval", "10s")
	viper.SetDefault("credits.render_cost", 100)
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
	})

	rabbitmq := &RabbitMQ{
		Host:         viper.GetString("rabbitmq_host"),
		Port:         viper.GetInt("rabbitmq_port"),
		User:         viper.GetString("rabbitmq_user"),
		Pass:         viper.GetString("rabbitmq_pass"),
		ExchangeName: viper.GetString("rabbitmq_exchange"),
		Kind:         viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: viper.GetBool("minio.secure"),
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort:    viper.GetString("server.port"),
			Workers:     viper.GetInt("server.workers"),
			WorkerToken: viper.GetString("server.worker_token"),
		},
		Store: Store{
			Backend: viper.GetString("store.backend"),
		},
		Render: Render{
			Bucket:        viper.GetString("minio.bucket"),
			PublicBaseURL: viper.GetString("render.public_base_url"),
			PayloadURL:    viper.GetString("render.payload_url"),
			PayloadSecret: viper.GetString("render.payload_secret"),
			TempDir:       viper.GetString("render.temp_dir"),
			WatermarkFile: viper.GetString("render.watermark_file"),
		},
		Worker: Worker{
			Id:           viper.GetString("worker.id"),
			PollInterval: viper.GetDuration("worker.poll_interval"),
			StaleAfter:   viper.GetDuration("worker.stale_after"),
		},
		Credits: Credits{
			RenderCost:  viper.GetInt64("credits.render_cost"),
			ExemptUsers: viper.GetStringSlice("credits.exempt_users"),
		},
		DB:      db,
		Redis:   rdb,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
