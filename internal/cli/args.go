package cli

import "strings"

// reorderArgs переносит флаги перед позиционными аргументами, так как пакет
// flag останавливается на первом не-флаге. Флаги из boolFlags не забирают
// следующий аргумент как значение
func reorderArgs(args []string, boolFlags ...string) []string {
	isBool := make(map[string]bool, len(boolFlags))
	for _, name := range boolFlags {
		isBool[name] = true
	}

	var flags, positional []string
	i := 0
	for i < len(args) {
		arg := args[i]
		switch {
		case arg == "--":
			positional = append(positional, args[i+1:]...)
			i = len(args)
		case !strings.HasPrefix(arg, "-") || isNumber(arg):
			positional = append(positional, arg)
			i++
		case strings.Contains(arg, "=") || isBool[strings.TrimLeft(arg, "-")]:
			flags = append(flags, arg)
			i++
		case i+1 < len(args):
			flags = append(flags, arg, args[i+1])
			i += 2
		default:
			// флаг без значения, flag.Parse вернет ошибку
			flags = append(flags, arg)
			i++
		}
	}
	return append(flags, positional...)
}

// isNumber отличает отрицательные координаты от флагов
func isNumber(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	c := arg[1]
	return (c >= '0' && c <= '9') || c == '.'
}
