package util

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogFile returns a writer that appends to path and rotates it by size.
func NewLogFile(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}
