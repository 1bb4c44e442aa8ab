package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// NewLogger はレベルと形式 ("text" / "json") を指定してロガーを作成します
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ConfigureLogger はパッケージ全体のロガーを差し替え、slogの既定値にも設定します
func ConfigureLogger(level, format string) *slog.Logger {
	SetLogger(NewLogger(os.Stderr, level, format))
	return logger
}

// SetLogger はロガーを差し替えます
func SetLogger(l *slog.Logger) {
	logger = l
	slog.SetDefault(l)
}

// Logger は現在のロガーを返します
func Logger() *slog.Logger {
	return logger
}

// ParseLevel はログレベル文字列を変換します (不明な値は info)
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LogDebug はデバッグレベルのメッセージをログに記録します
func LogDebug(format string, v ...interface{}) {
	logf(slog.LevelDebug, format, v...)
}

// LogInfo は情報レベルのメッセージをログに記録します
func LogInfo(format string, v ...interface{}) {
	logf(slog.LevelInfo, format, v...)
}

// LogWarn は警告レベルのメッセージをログに記録します
func LogWarn(format string, v ...interface{}) {
	logf(slog.LevelWarn, format, v...)
}

// LogError はエラーレベルのメッセージをログに記録します
func LogError(format string, v ...interface{}) {
	logf(slog.LevelError, format, v...)
}

func logf(level slog.Level, format string, v ...interface{}) {
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, fmt.Sprintf(format, v...))
}

// TrackTime は関数の実行時間を計測して出力するユーティリティです
func TrackTime(start time.Time, name string) {
	elapsed := time.Since(start)
	LogInfo("%s 完了時間: %s", name, elapsed)
}
