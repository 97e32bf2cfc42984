// Package logger はop/go-loggingをラップしたアプリケーション共通のロガーを提供する。
//
// プロセス起動時にInitで一度だけ初期化し、以降はパッケージ関数から利用する。
// Initが呼ばれる前でも標準エラー出力へ書き出すため、テストから安全に呼び出せる。
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/op/go-logging"
)

// moduleName はログに付与するモジュール名。
const moduleName = "scholarhub"

// logFormat はログ1行のフォーマット。
const logFormat = `%{time:2006/01/02 15:04:05} %{level:.4s} %{shortfile} - %{message}`

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr, logging.INFO)
)

// newLogger は指定された出力先とレベルでロガーを生成する。
func newLogger(w io.Writer, level logging.Level) *logging.Logger {
	l := logging.MustGetLogger(moduleName)
	backend := logging.NewBackendFormatter(
		logging.NewLogBackend(w, "", 0),
		logging.MustStringFormatter(logFormat),
	)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(level, moduleName)
	l.SetBackend(leveled)
	// ラッパー関数の分だけ呼び出し元を遡る
	l.ExtraCalldepth = 1
	return l
}

// Init はロガーを初期化する。levelには "DEBUG" "INFO" "WARNING" "ERROR" を指定する。
// 不明なレベルが指定された場合はINFOとして扱う。
func Init(level string) {
	InitWithWriter(os.Stderr, level)
}

// InitWithWriter は出力先を指定してロガーを初期化する。
func InitWithWriter(w io.Writer, level string) {
	lv, err := logging.LogLevel(strings.ToUpper(strings.TrimSpace(level)))
	if err != nil {
		lv = logging.INFO
	}

	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w, lv)
}

func current() *logging.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debugf はDEBUGレベルのログを出力する。
func Debugf(format string, args ...any) {
	current().Debugf(format, args...)
}

// Infof はINFOレベルのログを出力する。
func Infof(format string, args ...any) {
	current().Infof(format, args...)
}

// Warningf はWARNINGレベルのログを出力する。
func Warningf(format string, args ...any) {
	current().Warningf(format, args...)
}

// Errorf はERRORレベルのログを出力する。
func Errorf(format string, args ...any) {
	current().Errorf(format, args...)
}
