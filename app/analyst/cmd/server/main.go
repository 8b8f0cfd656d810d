package main

import (
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/match_radar/app/analyst/internal/conf"
	radarconfig "github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	radarlogger "github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "analyst"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string
	// flagenv 是 .env 文件路径，不存在时忽略
	flagenv string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/analyst/configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagenv, "env", ".env", "dotenv file with secrets, eg: -env .env")
}

func newApp(logger log.Logger, hs *http.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs),
	)
}

func main() {
	flag.Parse()
	// 初始化日志记录器，包含时间戳、调用者信息、服务ID等上下文
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	// 初始化配置加载器
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	// 扫描配置到 Bootstrap 结构体
	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}
	if bc.Radar == nil {
		bc.Radar = &radarconfig.Config{}
	}
	if bc.Auth == nil {
		bc.Auth = &conf.Auth{}
	}

	// 环境变量中的密钥覆盖配置文件
	secrets, err := radarconfig.LoadSecrets(flagenv)
	if err != nil {
		panic(err)
	}
	bc.Radar.ApplySecrets(secrets)
	if secrets.JWTKey != "" {
		bc.Auth.JwtKey = secrets.JWTKey
	}
	bc.Radar.Normalize()
	if err := bc.Radar.Validate(); err != nil {
		panic(err)
	}

	// 引擎侧组件使用 logrus
	if err := radarlogger.InitLogger(bc.Radar.Log.Level, bc.Radar.Log.File); err != nil {
		log.NewHelper(logger).Errorf("Failed to init radar logger: %v", err)
		_ = radarlogger.InitLogger("info", "") // 降级处理
	}

	app, cleanup, err := initApp(bc.Server, bc.Auth, bc.Radar, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		panic(err)
	}
}
