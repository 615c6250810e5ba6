package config

import (
	"github.com/cardtable/leastcount/pkg/server"
)

type TCPIngress struct {
	Port int `yaml:"port" json:"port"`
}

type WebIngress struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Port    int  `yaml:"port" json:"port"`
}

type ServerIngress struct {
	TCP TCPIngress `yaml:"tcp" json:"tcp"`
	Web WebIngress `yaml:"web" json:"web"`
}

type ServerSettings struct {
	Ingress ServerIngress `yaml:"ingress" json:"ingress"`
	Game    server.Config `yaml:"game" json:"game"`
}

type Config struct {
	Server ServerSettings `yaml:"server" json:"server"`
}
