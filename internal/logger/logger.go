package logger

import (
	"sync"

	"go.uber.org/zap"
)

var once sync.Once

// Init 初始化全局 zap logger，业务代码统一使用 zap.L()
func Init() {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			panic(err)
		}
		zap.ReplaceGlobals(l)
	})
}
