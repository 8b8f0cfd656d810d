package conf

import "github.com/iWorld-y/match_radar/app/match_radar/pkg/config"

type Bootstrap struct {
	Server *Server        `json:"server"`
	Auth   *Auth          `json:"auth"`
	Radar  *config.Config `json:"radar"`
}

type Auth struct {
	JwtKey string `json:"jwt_key"`
	// TokenTTL 形如 24h，为空时 24 小时
	TokenTTL string `json:"token_ttl"`
}

type Server struct {
	Http *HTTP `json:"http"`
}

type HTTP struct {
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}
