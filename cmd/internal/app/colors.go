package app

import (
	"log/slog"
	"regexp"
	"strconv"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func colorizeHTTPMethod(method string, color bool) string {
	if !color {
		return method
	}
	switch method {
	case "GET":
		return ansiGreen + method + ansiReset
	case "POST":
		return ansiBlue + method + ansiReset
	case "PATCH", "PUT":
		return ansiYellow + method + ansiReset
	case "DELETE":
		return ansiRed + method + ansiReset
	default:
		return ansiCyan + method + ansiReset
	}
}

func colorizeStatusCode(code int, color bool) string {
	s := strconv.Itoa(code)
	if !color {
		return s
	}
	switch {
	case code >= 500:
		return ansiRed + s + ansiReset
	case code >= 400:
		return ansiYellow + s + ansiReset
	case code >= 300:
		return ansiCyan + s + ansiReset
	default:
		return ansiGreen + s + ansiReset
	}
}

func colorizeStatusClass(class string, color bool) string {
	if !color {
		return class
	}
	switch class {
	case "5xx":
		return ansiRed + class + ansiReset
	case "4xx":
		return ansiYellow + class + ansiReset
	case "3xx":
		return ansiCyan + class + ansiReset
	default:
		return ansiGreen + class + ansiReset
	}
}

func colorizeDurationMS(ms int64, color bool) string {
	s := strconv.FormatInt(ms, 10) + "ms"
	if !color {
		return s
	}
	switch {
	case ms >= 1000:
		return ansiRed + s + ansiReset
	case ms >= 250:
		return ansiYellow + s + ansiReset
	default:
		return ansiDim + s + ansiReset
	}
}

func colorizeResult(result string, color bool) string {
	if !color {
		return result
	}
	switch result {
	case "server_error":
		return ansiRed + result + ansiReset
	case "client_error":
		return ansiYellow + result + ansiReset
	default:
		return ansiGreen + result + ansiReset
	}
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		u := v.Uint64()
		if u > 1<<62 {
			return 0, false
		}
		return int64(u), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	default:
		return 0, false
	}
}
