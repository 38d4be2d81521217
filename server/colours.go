package server

const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"

	ResetColor = "\033[0m"
)

var methodColors = map[string]string{
	"GET":     Green,
	"POST":    Blue,
	"PUT":     Cyan,
	"DELETE":  Yellow,
	"PATCH":   Magenta,
	"OPTIONS": Gray,
}

func colourMethod(method string) string {
	paddedMethod := " " + padRight(method, 7)
	if colour, ok := methodColors[method]; ok {
		return colour + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

func padRight(s string, width int) string {
	for len(s) < width {
		s += " "
	}
	return s
}
