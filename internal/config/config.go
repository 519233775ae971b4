// config.go - 项目配置
//
// 可选的 obi.toml 预置链接库、优化级别与运行时内存水位；
// 命令行参数覆盖文件配置。

package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// 配置文件名
const FileName = "obi.toml"

// Config 项目配置
type Config struct {
	// Libraries 默认链接库
	Libraries []string `toml:"libraries"`

	// Opt 优化级别 s0-s3
	Opt string `toml:"opt"`

	// Runtime 运行时配置
	Runtime RuntimeConfig `toml:"runtime"`
}

// RuntimeConfig 运行时配置
type RuntimeConfig struct {
	// MemMax 初始堆水位（字节），0 取内置默认
	MemMax int `toml:"mem_max"`

	// SerialGC 单线程收集模式
	SerialGC bool `toml:"serial_gc"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Opt: "s3",
	}
}

// Load 从目录读取 obi.toml；文件不存在返回默认配置
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Opt == "" {
		cfg.Opt = "s3"
	}
	return cfg, nil
}
