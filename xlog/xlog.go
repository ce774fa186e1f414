package xlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	rsync "sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	timeKey         = "time"
	EncodingJson    = "json"
	EncodingConsole = "console"
	FileMode        = "file"
	ConsoleMode     = "console"
)

var (
	levels = map[string]zapcore.Level{
		"debug": zap.DebugLevel,
		"info":  zap.InfoLevel,
		"warn":  zap.WarnLevel,
		"error": zap.ErrorLevel,
		"panic": zap.PanicLevel,
		"fatal": zap.FatalLevel,
	}

	atomicConf   *XLogConf
	atomicLogger *zap.Logger
	mutex        rsync.RWMutex
)

type XLogConf struct {
	// service name attached to every entry
	ServiceName string `json:",optional"`
	// log directory, file mode only
	Path string `json:",optional"`
	// log file name, file mode only
	Filename string `json:",default=gadget.log"`
	// file or console
	Mode string `json:",default=console,options=file|console"`
	// json or console
	Encoding   string `json:",default=console,options=json|console"`
	TimeFormat string `json:",default=2006-01-02 15:04:05"`
	// debug, info, warn, error, panic, fatal
	Level    string `json:",default=info"`
	Compress bool   `json:",optional"`
	KeepDays int    `json:",optional"`
	// megabytes before rotation
	MaxSize int `json:",default=100"`
}

func init() {
	atomicConf = &XLogConf{}
	defaultConf(atomicConf)
	atomicLogger = instance(*atomicConf)
}

// Load replaces the process logger.
func Load(conf *XLogConf) {
	defaultConf(conf)
	logger := instance(*conf)

	mutex.Lock()
	defer mutex.Unlock()

	old := atomicLogger
	atomicConf = conf
	atomicLogger = logger
	if old != nil {
		_ = old.Sync()
	}
}

// Write returns the current process logger.
func Write() *zap.Logger {
	mutex.RLock()
	defer mutex.RUnlock()

	return atomicLogger
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Sync flushes the current logger.
func Sync() error {
	return Write().Sync()
}

// ParseLevel maps a level name onto a zap level. Unknown names fall back to info.
func ParseLevel(raw string) (zapcore.Level, bool) {
	level, ok := levels[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return zap.InfoLevel, false
	}
	return level, true
}

func instance(conf XLogConf) *zap.Logger {
	opts := []zap.Option{
		zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel),
	}
	if len(conf.ServiceName) > 0 {
		opts = append(opts, zap.Fields(zap.String("service", conf.ServiceName)))
	}

	var write zapcore.WriteSyncer
	switch conf.Mode {
	case FileMode:
		write = rotate(conf)
	default:
		write = zapcore.Lock(os.Stderr)
	}

	level, _ := ParseLevel(conf.Level)
	return zap.New(zapcore.NewCore(encoder(conf), write, level), opts...)
}

func rotate(conf XLogConf) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename: filepath.Join(conf.Path, conf.Filename),
		Compress: conf.Compress,
		MaxAge:   conf.KeepDays,
		MaxSize:  conf.MaxSize,
	})
}

func encoder(conf XLogConf) zapcore.Encoder {
	econf := zap.NewProductionEncoderConfig()
	econf.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(conf.TimeFormat))
	}
	econf.TimeKey = timeKey
	if conf.Mode != FileMode && conf.Encoding == EncodingConsole {
		econf.EncodeLevel = zapcore.LowercaseColorLevelEncoder
	} else {
		econf.EncodeLevel = zapcore.LowercaseLevelEncoder
	}

	if conf.Encoding == EncodingJson {
		return zapcore.NewJSONEncoder(econf)
	}
	return zapcore.NewConsoleEncoder(econf)
}

func defaultConf(conf *XLogConf) {
	if len(conf.Path) == 0 {
		path, _ := os.Getwd()
		conf.Path = fmt.Sprintf("%s/logs", path)
	}
	if len(conf.Level) == 0 {
		conf.Level = "info"
	}
	if len(conf.Mode) == 0 {
		conf.Mode = ConsoleMode
	}
	if len(conf.Filename) == 0 {
		conf.Filename = "gadget.log"
	}
	if len(conf.Encoding) == 0 {
		conf.Encoding = EncodingConsole
	}
	if len(conf.TimeFormat) == 0 {
		conf.TimeFormat = "2006-01-02 15:04:05"
	}
	if conf.MaxSize <= 0 {
		conf.MaxSize = 100
	}
}
