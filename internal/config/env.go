package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvLoader .env 文件加载器
type EnvLoader struct {
	envFiles []string
	loaded   []string
}

// NewEnvLoader 创建 .env 加载器，未指定文件时加载当前目录的 .env
func NewEnvLoader(envFiles ...string) *EnvLoader {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	return &EnvLoader{envFiles: envFiles}
}

// Load 依次加载存在的 .env 文件，已设置的环境变量不会被覆盖
func (e *EnvLoader) Load() error {
	for _, envFile := range e.envFiles {
		if envFile == "" {
			continue
		}
		if err := e.loadEnvFile(envFile); err != nil {
			return err
		}
	}
	return nil
}

// Loaded 已成功加载的文件
func (e *EnvLoader) Loaded() []string {
	return e.loaded
}

func (e *EnvLoader) loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	e.loaded = append(e.loaded, envFile)
	return nil
}
