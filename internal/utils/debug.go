package utils

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	debugFile *os.File
	debugOnce sync.Once
)

// Debug writes a message to debug.log when HLSGET_DEBUG is set.
func Debug(format string, args ...any) {
	debugOnce.Do(func() {
		if os.Getenv("HLSGET_DEBUG") != "" {
			debugFile, _ = os.Create("debug.log")
		}
	})
	if debugFile == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(debugFile, "[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
	debugFile.Sync()
}
